package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/socialledger/internal/program"
)

// LogEntry is one logged transaction.
type LogEntry struct {
	Seq           int64    `json:"seq"`
	TransactionID string   `json:"transaction_id"`
	Status        string   `json:"status"`
	ErrorCode     string   `json:"error_code,omitempty"`
	Instructions  []string `json:"instructions"`
	Signers       []string `json:"signers"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Print the transaction log in execution order",
		Long: `Print every logged transaction in seq order, including failed ones.
Rejected transactions (bad signatures, duplicates) are never logged.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(rootOpts, cmd)
		},
	}
}

func runLog(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	l, err := openExisting(ctx, opts)
	if err != nil {
		return err
	}
	defer l.Close()

	records, err := l.store.ListTransactions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read log", err)
	}

	entries := make([]LogEntry, len(records))
	for i, r := range records {
		e := LogEntry{
			Seq:           r.Seq,
			TransactionID: r.ID,
			Status:        string(r.Status),
			ErrorCode:     r.ErrorCode,
			Instructions:  []string{},
			Signers:       []string{},
		}
		for _, ix := range r.Transaction.Message.Instructions {
			name := program.InstructionName(ix.Data)
			if name == "" || ix.ProgramID != l.program.ID() {
				name = "unknown"
			}
			e.Instructions = append(e.Instructions, name)
		}
		for _, s := range r.Transaction.Message.Signers() {
			e.Signers = append(e.Signers, s.String())
		}
		entries[i] = e
	}

	return opts.formatter(cmd).Success(entries, func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, "Log is empty.")
			return
		}
		for _, e := range entries {
			outcome := e.Status
			if e.ErrorCode != "" {
				outcome += " " + e.ErrorCode
			}
			fmt.Fprintf(w, "%6d  %s  %v  %s\n", e.Seq, e.TransactionID[:16], e.Instructions, outcome)
		}
	})
}
