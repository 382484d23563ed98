package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/stepper/internal/ir"
	"github.com/roach88/stepper/internal/program"
	"github.com/roach88/stepper/internal/state"
)

// DeriveResult is the output of derive.
type DeriveResult struct {
	Identity string    `json:"identity"`
	Pubkey   ir.Pubkey `json:"pubkey"`
	Program  ir.Pubkey `json:"program"`
	Record   ir.Pubkey `json:"record"`
	Bump     uint8     `json:"bump"`
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "derive <identity>",
		Short: "Show the record address derived for an identity",
		Long: `Show the identity's public key and the record address the program
derives for it, with the bump that moves the address off the curve.

Example:
  stepper derive alice`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			pk, err := identityKey(args[0])
			if err != nil {
				return err
			}
			record, bump, err := recordAddress(pk)
			if err != nil {
				return WrapExitError(ExitCommandError, "derive failed", err)
			}
			res := DeriveResult{Identity: args[0], Pubkey: pk, Program: program.ID, Record: record, Bump: bump}
			return rootOpts.formatter(cmd).Emit(res, func(w io.Writer) {
				fmt.Fprintf(w, "identity: %s\n", res.Identity)
				fmt.Fprintf(w, "pubkey:   %s\n", res.Pubkey)
				fmt.Fprintf(w, "program:  %s\n", res.Program)
				fmt.Fprintf(w, "record:   %s\n", res.Record)
				fmt.Fprintf(w, "bump:     %d\n", res.Bump)
			})
		},
	}
}

// AirdropResult is the output of airdrop.
type AirdropResult struct {
	Identity string    `json:"identity"`
	Pubkey   ir.Pubkey `json:"pubkey"`
	Credited uint64    `json:"credited"`
	Balance  uint64    `json:"balance"`
}

// NewAirdropCommand creates the airdrop command.
func NewAirdropCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop <identity> <lamports>",
		Short: "Fund an identity",
		Long: `Credit lamports to an identity, creating its account if needed.
A single airdrop is bounded by airdrop_limit.

Example:
  stepper airdrop alice 10000000`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			pk, err := identityKey(args[0])
			if err != nil {
				return err
			}
			lamports, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid lamports", err)
			}
			if lamports == 0 || lamports > rootOpts.Config.AirdropLimit {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("lamports must be between 1 and %d", rootOpts.Config.AirdropLimit))
			}

			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			acct, err := st.Airdrop(cmdContext(cmd), pk, lamports)
			if err != nil {
				return WrapExitError(ExitFailure, "airdrop failed", err)
			}
			rootOpts.Logger.Info("airdrop", "identity", args[0], "lamports", lamports, "balance", acct.Lamports)

			res := AirdropResult{Identity: args[0], Pubkey: pk, Credited: lamports, Balance: acct.Lamports}
			return rootOpts.formatter(cmd).Emit(res, func(w io.Writer) {
				fmt.Fprintf(w, "%s balance: %d lamports\n", res.Identity, res.Balance)
			})
		},
	}
}

// RecordView is a decoded state record.
type RecordView struct {
	Record    ir.Pubkey `json:"record"`
	Present   bool      `json:"present"`
	Lamports  uint64    `json:"lamports,omitempty"`
	A         uint64    `json:"a"`
	B         uint64    `json:"b"`
	Remaining uint64    `json:"remaining"`
	Bump      uint8     `json:"bump"`
	Done      bool      `json:"done"`
}

func viewRecord(acct ir.Account) (RecordView, error) {
	v := RecordView{Record: acct.Key, Present: true, Lamports: acct.Lamports}
	if len(acct.Data) < state.DataLen {
		return v, fmt.Errorf("record %s holds %d bytes, want %d", acct.Key, len(acct.Data), state.DataLen)
	}
	s, err := state.Decode(acct.Data[:state.DataLen])
	if err != nil {
		return v, err
	}
	v.A, v.B, v.Remaining, v.Bump, v.Done = s.A, s.B, s.Remaining, s.Bump, s.Terminal()
	return v, nil
}

func writeRecord(w io.Writer, v RecordView) {
	if !v.Present {
		fmt.Fprintf(w, "%s: absent\n", v.Record)
		return
	}
	status := "in progress"
	if v.Done {
		status = "done"
	}
	fmt.Fprintf(w, "%s: a=%d b=%d remaining=%d bump=%d lamports=%d (%s)\n",
		v.Record, v.A, v.B, v.Remaining, v.Bump, v.Lamports, status)
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <identity>",
		Short: "Show an identity's record",
		Long: `Decode and print the identity's record, or report that it is absent.

Example:
  stepper show alice --format json`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			pk, err := identityKey(args[0])
			if err != nil {
				return err
			}
			record, _, err := recordAddress(pk)
			if err != nil {
				return WrapExitError(ExitCommandError, "derive failed", err)
			}

			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			acct, found, err := st.GetAccount(cmdContext(cmd), record)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read record", err)
			}
			view := RecordView{Record: record}
			if found {
				if view, err = viewRecord(acct); err != nil {
					return WrapExitError(ExitFailure, "undecodable record", err)
				}
			}
			return rootOpts.formatter(cmd).Emit(view, func(w io.Writer) { writeRecord(w, view) })
		},
	}
}

// NewRecordsCommand creates the records command.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "List every record the program owns",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			accts, err := st.ListAccountsByOwner(cmdContext(cmd), program.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list records", err)
			}
			views := make([]RecordView, 0, len(accts))
			for _, acct := range accts {
				v, err := viewRecord(acct)
				if err != nil {
					rootOpts.Logger.Warn("skipping undecodable record", "record", acct.Key, "error", err)
					continue
				}
				views = append(views, v)
			}
			return rootOpts.formatter(cmd).Emit(views, func(w io.Writer) {
				if len(views) == 0 {
					fmt.Fprintln(w, "No records.")
				}
				for _, v := range views {
					writeRecord(w, v)
				}
			})
		},
	}
}

// cmdContext returns the command's context, or Background when unset.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
