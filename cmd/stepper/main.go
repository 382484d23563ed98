// Command stepper drives the resumable step program against a local ledger.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/stepper/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
