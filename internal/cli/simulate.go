package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/stepper/internal/program"
	"github.com/roach88/stepper/internal/state"
	"github.com/roach88/stepper/internal/step"
)

// SimulatedStep is one state of an offline run.
type SimulatedStep struct {
	Index     int    `json:"index"`
	A         uint64 `json:"a"`
	B         uint64 `json:"b"`
	Remaining uint64 `json:"remaining"`
}

// SimulateResult is the output of simulate.
type SimulateResult struct {
	N      uint64          `json:"n"`
	Steps  []SimulatedStep `json:"steps"`
	Result uint64          `json:"result"`
	// FitsCeiling reports whether start can finish n steps under the
	// configured stack height ceiling.
	FitsCeiling bool `json:"fits_ceiling"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <n>",
		Short: "Run the recurrence offline, without a ledger",
		Long: `Print every state the program would pass through for n steps, with no
stack height ceiling, and whether start could finish it on the ledger.

Example:
  stepper simulate 10`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid step count", err)
			}

			res := SimulateResult{N: n, Steps: []SimulatedStep{}}
			var simErr error
			for s, err := range step.Sequence(state.Initial(n, 0), step.Fibonacci) {
				if err != nil {
					simErr = err
					break
				}
				res.Steps = append(res.Steps, SimulatedStep{Index: len(res.Steps), A: s.A, B: s.B, Remaining: s.Remaining})
				res.Result = s.B
			}
			res.FitsCeiling = fitsCeiling(n, rootOpts.Config.MaxInvokeDepth)

			text := func(w io.Writer) {
				for _, s := range res.Steps {
					fmt.Fprintf(w, "%4d  a=%d b=%d n=%d\n", s.Index, s.A, s.B, s.Remaining)
				}
				if simErr != nil {
					return
				}
				fmt.Fprintf(w, "result: %d\n", res.Result)
				if !res.FitsCeiling {
					fmt.Fprintf(w, "start %d would exceed max stack height %d\n", n, rootOpts.Config.MaxInvokeDepth)
				}
			}
			out := rootOpts.formatter(cmd)
			if simErr != nil {
				return out.Fail(ExitFailure, string(program.ErrCodeArithmeticOverflow), simErr.Error(), res, text)
			}
			return out.Emit(res, text)
		},
	}
}

// fitsCeiling reports whether a start of n steps stays within maxDepth.
// The init frame runs at height 1 with the allocation at height 2, and
// step k runs at height k+1, so the deepest frame is max(2, n+1).
func fitsCeiling(n uint64, maxDepth int) bool {
	return maxDepth >= 2 && n < uint64(maxDepth)
}
