package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stepper/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // defaults to <scenarios-dir>/golden
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run YAML scenarios",
		Long: `Run scenario files, each against a fresh in-memory ledger, validating
expectations and assertions. Traces are compared with golden files when
they exist; --update rewrites them.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  stepper test ./scenarios
  stepper test ./scenarios --filter "start_*"
  stepper test ./scenarios --update
  stepper test ./scenarios --golden ./golden --format json`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default <scenarios-dir>/golden)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	paths, err := harness.Discover(scenariosDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(scenariosDir, "golden")
	}
	opts.Logger.Debug("running scenarios", "count", len(paths), "golden", goldenDir, "update", opts.Update)
	result, err := harness.RunSuite(cmdContext(cmd), paths, harness.SuiteOptions{
		GoldenDir: goldenDir,
		Update:    opts.Update,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run interrupted", err)
	}

	text := func(w io.Writer) {
		failed := make(map[string]harness.ScenarioFailure, len(result.Failures))
		for _, f := range result.Failures {
			failed[f.ScenarioPath] = f
		}
		for _, p := range paths {
			if f, ok := failed[p]; ok {
				fmt.Fprintf(w, "✗ %s\n", filepath.Base(p))
				for _, line := range strings.Split(f.Error, "; ") {
					fmt.Fprintf(w, "  %s\n", line)
				}
				continue
			}
			fmt.Fprintf(w, "✓ %s\n", filepath.Base(p))
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.TotalScenarios)
		if result.Failed == 0 && result.TotalScenarios > 0 {
			fmt.Fprintln(w, "✓ All scenarios passed")
		}
	}

	out := opts.formatter(cmd)
	if err := result.Err(); err != nil {
		opts.Logger.Debug("scenario failures", "error", err)
		return out.Fail(ExitFailure, "E_TEST_FAILED", fmt.Sprintf("%d scenario(s) failed", result.Failed), result, text)
	}
	return out.Emit(result, text)
}

// filterScenarios keeps paths whose base name (without extension) matches
// the glob. An empty filter keeps everything.
func filterScenarios(paths []string, filter string) ([]string, error) {
	if filter == "" {
		return paths, nil
	}
	var out []string
	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		matched, err := filepath.Match(filter, name)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}
