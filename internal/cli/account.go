package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/socialledger/internal/account"
	"github.com/roach88/socialledger/internal/store"
)

// AccountView is a stored account with its decoded record.
type AccountView struct {
	Address    string `json:"address"`
	Owner      string `json:"owner"`
	Kind       string `json:"kind"`
	UpdatedSeq int64  `json:"updated_seq"`
	Record     any    `json:"record"`
}

func viewAccount(acc store.Account) (AccountView, error) {
	kind, err := account.KindOf(acc.Data)
	if err != nil {
		return AccountView{}, err
	}
	rec, err := account.Decode(acc.Data)
	if err != nil {
		return AccountView{}, err
	}
	return AccountView{
		Address:    acc.Address.String(),
		Owner:      acc.Owner.String(),
		Kind:       string(kind),
		UpdatedSeq: acc.UpdatedSeq,
		Record:     rec,
	}, nil
}

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Inspect stored records",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show <address>",
		Short:         "Show the record at an address",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountShow(rootOpts, cmd, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List every record owned by the program",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountList(rootOpts, cmd)
		},
	})

	return cmd
}

func runAccountShow(opts *RootOptions, cmd *cobra.Command, arg string) error {
	ctx := cmd.Context()
	addr, err := parsePubkey("address", arg)
	if err != nil {
		return err
	}

	l, err := openExisting(ctx, opts)
	if err != nil {
		return err
	}
	defer l.Close()

	f := opts.formatter(cmd)
	acc, err := l.store.ReadAccount(ctx, addr)
	if errors.Is(err, sql.ErrNoRows) {
		if err := f.Error(ErrCodeNotFound, fmt.Sprintf("no account at %s", addr), nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "account not found")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read account", err)
	}

	view, err := viewAccount(acc)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to decode account", err)
	}
	return f.Success(view, func(w io.Writer) {
		printAccount(w, view)
	})
}

func runAccountList(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	l, err := openExisting(ctx, opts)
	if err != nil {
		return err
	}
	defer l.Close()

	accs, err := l.store.ListAccounts(ctx, l.program.ID())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list accounts", err)
	}

	views := make([]AccountView, 0, len(accs))
	for _, acc := range accs {
		view, err := viewAccount(acc)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to decode account %s", acc.Address), err)
		}
		views = append(views, view)
	}

	return opts.formatter(cmd).Success(views, func(w io.Writer) {
		if len(views) == 0 {
			fmt.Fprintln(w, "No accounts.")
			return
		}
		for _, v := range views {
			fmt.Fprintf(w, "%-8s %s\n", v.Kind, v.Address)
		}
	})
}

func printAccount(w io.Writer, v AccountView) {
	fmt.Fprintf(w, "%s %s (updated at seq %d)\n", v.Kind, v.Address, v.UpdatedSeq)
	switch r := v.Record.(type) {
	case *account.Profile:
		fmt.Fprintf(w, "  owner:        %s\n", r.Owner)
		fmt.Fprintf(w, "  username:     %s\n", r.Username)
		fmt.Fprintf(w, "  last_post_id: %d\n", r.LastPostID)
		fmt.Fprintf(w, "  bump:         %d\n", r.Bump)
	case *account.Post:
		fmt.Fprintf(w, "  author:     %s\n", r.Author)
		fmt.Fprintf(w, "  post_id:    %d\n", r.PostID)
		fmt.Fprintf(w, "  content:    %s\n", r.Content)
		fmt.Fprintf(w, "  like_count: %d\n", r.LikeCount)
		fmt.Fprintf(w, "  bump:       %d\n", r.Bump)
	case *account.Like:
		fmt.Fprintf(w, "  post: %s\n", r.Post)
		fmt.Fprintf(w, "  user: %s\n", r.User)
		fmt.Fprintf(w, "  bump: %d\n", r.Bump)
	}
}
