package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/stepper/internal/engine"
	"github.com/roach88/stepper/internal/ir"
	"github.com/roach88/stepper/internal/program"
	"github.com/roach88/stepper/internal/txquery"
)

// TxView is a transaction outcome as printed by start, resume and logs.
type TxView struct {
	ID        string           `json:"id"`
	Seq       int64            `json:"seq"`
	Payer     ir.Pubkey        `json:"payer"`
	Status    string           `json:"status"`
	Error     string           `json:"error,omitempty"`
	Value     *uint64          `json:"value,omitempty"`
	MaxHeight int              `json:"max_height"`
	Logs      []string         `json:"logs"`
	Frames    []ir.FrameRecord `json:"frames,omitempty"`
}

func viewReceipt(payer ir.Pubkey, r *engine.Receipt) TxView {
	v := TxView{
		ID:        r.TxID,
		Seq:       r.Seq,
		Payer:     payer,
		Status:    r.Status,
		MaxHeight: r.MaxHeight,
		Logs:      r.Logs,
		Frames:    r.Frames,
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	if val, ok := program.ResultValue(r.ReturnData); ok {
		v.Value = &val
	}
	return v
}

func viewTxRecord(rec ir.TxRecord) TxView {
	v := TxView{
		ID:        rec.ID,
		Seq:       rec.Seq,
		Payer:     rec.Payer,
		Status:    rec.Status,
		Error:     rec.Error,
		MaxHeight: rec.MaxHeight,
		Logs:      rec.Logs,
		Frames:    rec.Frames,
	}
	if val, ok := program.ResultValue(rec.ReturnData); ok && rec.ReturnProgram == program.ID {
		v.Value = &val
	}
	return v
}

func writeTx(w io.Writer, v TxView, withFrames bool) {
	fmt.Fprintf(w, "tx %s (seq %d): %s, max stack height %d\n", v.ID, v.Seq, v.Status, v.MaxHeight)
	for _, line := range v.Logs {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if withFrames {
		for _, f := range v.Frames {
			fmt.Fprintf(w, "  frame %d: %s at height %d: %s", f.Ordinal, f.ProgramID, f.Height, f.Status)
			if f.Error != "" {
				fmt.Fprintf(w, " (%s)", f.Error)
			}
			fmt.Fprintln(w)
		}
	}
	if v.Value != nil {
		fmt.Fprintf(w, "result: %d\n", *v.Value)
	}
}

// NewStartCommand creates the start command.
func NewStartCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start <identity> <n>",
		Short: "Start a computation of n steps",
		Long: `Send an init transaction: allocate the identity's record and run as
many of the n steps as the stack height ceiling allows. If the record
already exists this behaves like resume.

Exit codes:
  0 - Transaction committed
  1 - Transaction failed (nothing was written)
  2 - Command error (bad arguments or flags, unreadable database)

Example:
  stepper start alice 4`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid step count", err)
			}
			return sendInstruction(rootOpts, cmd, args[0], func(payer ir.Pubkey) (ir.Instruction, error) {
				return program.StartInstruction(program.ID, payer, n)
			})
		},
	}
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <identity>",
		Short: "Continue an identity's computation",
		Long: `Send a resume transaction with an empty payload. A finished record
reports its result again and is not changed.

Example:
  stepper resume alice`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendInstruction(rootOpts, cmd, args[0], func(payer ir.Pubkey) (ir.Instruction, error) {
				return program.ResumeFor(program.ID, payer)
			})
		},
	}
}

// sendInstruction signs one instruction as name and runs it through the
// engine's single-writer loop.
func sendInstruction(rootOpts *RootOptions, cmd *cobra.Command, name string, build func(ir.Pubkey) (ir.Instruction, error)) error {
	if name == "" {
		return NewExitError(ExitCommandError, "identity name must not be empty")
	}
	key := ir.IdentityKey(name)
	payer := ir.PubkeyOf(key)
	ix, err := build(payer)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build instruction", err)
	}

	env, err := rootOpts.openWorld()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tx := engine.NewTransaction(payer, ix).Sign(key)
	receipt, txErr := submit(ctx, env.engine, tx)
	if receipt == nil {
		return WrapExitError(ExitCommandError, "transaction not executed", txErr)
	}

	view := viewReceipt(payer, receipt)
	out := rootOpts.formatter(cmd)
	text := func(w io.Writer) { writeTx(w, view, rootOpts.Verbose) }
	if txErr != nil {
		code := program.FailureCode(txErr)
		if code == "" {
			code = "TRANSACTION_FAILED"
		}
		return out.Fail(ExitFailure, code, txErr.Error(), view, text)
	}
	return out.Emit(view, text)
}

// submit runs the engine loop for exactly one transaction.
func submit(ctx context.Context, eng *engine.Engine, tx *engine.Transaction) (*engine.Receipt, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- eng.Run(runCtx) }()

	receipt, err := eng.Submit(ctx, tx)
	eng.Stop()
	<-done
	return receipt, err
}

// NewLogsCommand creates the logs command.
func NewLogsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logs <tx-id>",
		Short: "Show a stored transaction and its log lines",
		Long: `Print a stored transaction: status, log lines, and with --verbose the
invocation frames.

Example:
  stepper logs 0192d7c4-5d0e-7c4a-9b1e-1f2a3b4c5d6e`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.ReadTransaction(cmdContext(cmd), args[0])
			if errors.Is(err, sql.ErrNoRows) {
				return NewExitError(ExitCommandError, fmt.Sprintf("transaction %s not found", args[0]))
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read transaction", err)
			}
			view := viewTxRecord(rec)
			return rootOpts.formatter(cmd).Emit(view, func(w io.Writer) {
				writeTx(w, view, rootOpts.Verbose)
				if view.Error != "" {
					fmt.Fprintf(w, "error: %s\n", view.Error)
				}
			})
		},
	}
}

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	After     int64
	Limit     int
	Status    string // "ok" | "failed" | "" for both
	Payer     string // identity name
	MinHeight int64
}

// query builds the transaction filter for the flags.
func (o *HistoryOptions) query() (txquery.Query, error) {
	preds := []txquery.Predicate{txquery.After{Seq: o.After}}
	switch o.Status {
	case "":
	case ir.TxStatusOK, ir.TxStatusFailed:
		preds = append(preds, txquery.Equals{Field: txquery.FieldStatus, Value: o.Status})
	default:
		return txquery.Query{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid --status %q: must be ok or failed", o.Status))
	}
	if o.Payer != "" {
		pk, err := identityKey(o.Payer)
		if err != nil {
			return txquery.Query{}, err
		}
		preds = append(preds, txquery.Equals{Field: txquery.FieldPayer, Value: pk})
	}
	if o.MinHeight > 0 {
		preds = append(preds, txquery.AtLeast{Field: txquery.FieldMaxHeight, Value: o.MinHeight})
	}
	return txquery.Where(preds...).WithLimit(o.Limit), nil
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored transactions in seq order",
		Long: `List stored transactions in seq order, one line each, optionally
filtered by status, payer identity or minimum stack height.

Examples:
  stepper history --after 10 --limit 5
  stepper history --status failed --payer alice`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Limit < 1 {
				return NewExitError(ExitCommandError, "--limit must be positive")
			}
			q, err := opts.query()
			if err != nil {
				return err
			}
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			recs, err := st.QueryTransactions(cmdContext(cmd), q)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read transactions", err)
			}
			views := make([]TxView, 0, len(recs))
			for _, rec := range recs {
				views = append(views, viewTxRecord(rec))
			}
			return opts.formatter(cmd).Emit(views, func(w io.Writer) {
				if len(views) == 0 {
					fmt.Fprintln(w, "No transactions.")
				}
				for _, v := range views {
					line := fmt.Sprintf("%6d  %s  %-6s  height %d", v.Seq, v.ID, v.Status, v.MaxHeight)
					if v.Value != nil {
						line += fmt.Sprintf("  result %d", *v.Value)
					}
					if v.Error != "" {
						line += "  " + strings.SplitN(v.Error, "\n", 2)[0]
					}
					fmt.Fprintln(w, line)
				}
			})
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only transactions with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of transactions")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only ok or failed transactions")
	cmd.Flags().StringVar(&opts.Payer, "payer", "", "only transactions paid by this identity")
	cmd.Flags().Int64Var(&opts.MinHeight, "min-height", 0, "only transactions reaching at least this stack height")

	return cmd
}
