package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/socialledger/internal/ir"
	"github.com/roach88/socialledger/internal/runtime"
)

// BatchEntry is one transaction's outcome in a batch.
type BatchEntry struct {
	Receipt ir.Receipt `json:"receipt"`
	Error   string     `json:"error,omitempty"`
}

// BatchResult summarises a batch.
type BatchResult struct {
	Entries   []BatchEntry `json:"entries"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <transactions.json>",
		Short: "Execute signed transactions concurrently",
		Long: `Execute a JSON array of signed transactions (as written by --tx-out).

Transactions touching disjoint addresses run in parallel, up to
batch.workers at a time; transactions sharing an address are serialised.

Exit codes:
  0 - Every transaction succeeded
  1 - One or more transactions failed
  2 - Command error (unreadable file, database error)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runBatch(opts *RootOptions, cmd *cobra.Command, path string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transactions", err)
	}
	var txs []ir.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return WrapExitError(ExitCommandError, "failed to parse transactions", err)
	}

	l, err := openLedger(ctx, opts)
	if err != nil {
		return err
	}
	defer l.Close()

	results, err := l.runtime.ExecuteBatch(ctx, txs)
	if err != nil {
		return WrapExitError(ExitCommandError, "batch execution failed", err)
	}

	out := BatchResult{Entries: make([]BatchEntry, len(results))}
	for i, res := range results {
		out.Entries[i] = BatchEntry{Receipt: res.Receipt}
		if res.Err != nil {
			out.Entries[i].Error = runtime.ErrorCode(res.Err)
			out.Failed++
		} else {
			out.Succeeded++
		}
	}

	if err := opts.formatter(cmd).Success(out, func(w io.Writer) {
		for _, e := range out.Entries {
			if e.Error == "" {
				fmt.Fprintf(w, "✓ %s (seq %d)\n", e.Receipt.TransactionID, e.Receipt.Seq)
			} else {
				fmt.Fprintf(w, "✗ %s %s\n", e.Receipt.TransactionID, e.Error)
			}
		}
		fmt.Fprintf(w, "\n%d succeeded, %d failed\n", out.Succeeded, out.Failed)
	}); err != nil {
		return err
	}

	if out.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d transaction(s) failed", out.Failed))
	}
	return nil
}
