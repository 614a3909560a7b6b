package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/socialledger/internal/runtime"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Into string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the transaction log and verify determinism",
		Long: `Re-execute every logged transaction, in seq order, against an empty
ledger and compare each outcome and the final state hash with the recorded run.

Exit codes:
  0 - Replay reproduced every outcome and the final state
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  socialledger replay --db ./ledger.db
  socialledger replay --db ./ledger.db --into ./copy.db
  socialledger replay --db ./ledger.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Into, "into", ":memory:", "database to replay into; must be empty")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	src, err := openExisting(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer src.Close()

	if opts.Into == src.store.Path() {
		return NewExitError(ExitCommandError, "--into must name a different database than --db")
	}
	dst, err := openLedgerAt(ctx, opts.RootOptions, opts.Into)
	if err != nil {
		return err
	}
	defer dst.Close()

	result, err := runtime.Replay(ctx, src.store, dst.runtime)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	f := opts.formatter(cmd)
	if !result.Identical() {
		if err := f.Error(ErrCodeDivergence, "determinism verification failed", result); err != nil {
			return err
		}
		if f.Format != "json" {
			outputReplayText(cmd.OutOrStdout(), result)
		}
		return NewExitError(ExitFailure, "determinism verification failed")
	}

	return f.Success(result, func(w io.Writer) {
		outputReplayText(w, result)
	})
}

// outputReplayText outputs the replay result as text.
func outputReplayText(w io.Writer, result runtime.ReplayResult) {
	status := "✓"
	if !result.Identical() {
		status = "✗"
	}
	fmt.Fprintf(w, "%s Replayed %d transaction(s)\n", status, result.Transactions)
	fmt.Fprintf(w, "  source state: %s\n", result.SourceStateHash)
	fmt.Fprintf(w, "  replay state: %s\n", result.ReplayStateHash)
	for _, m := range result.Mismatches {
		fmt.Fprintf(w, "  seq %d %s: recorded %s, replayed %s\n", m.Seq, m.TransactionID[:16], m.Recorded, m.Replayed)
	}
}
