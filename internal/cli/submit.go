package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
	"github.com/roach88/socialledger/internal/keys"
	"github.com/roach88/socialledger/internal/program"
	"github.com/roach88/socialledger/internal/runtime"
)

// SubmitOptions holds flags shared by every transaction-submitting command.
type SubmitOptions struct {
	*RootOptions
	SignerOptions

	// TxOut writes the signed transaction to a file instead of executing it.
	TxOut string
}

func addSubmitFlags(cmd *cobra.Command, opts *SubmitOptions) {
	cmd.Flags().StringVarP(&opts.KeypairPath, "keypair", "k", "", "signer keypair file")
	cmd.Flags().StringVar(&opts.SeedPhrase, "seed-phrase", "", "derive the signer from a name (insecure)")
	cmd.Flags().StringVar(&opts.TxOut, "tx-out", "", "write the signed transaction here instead of executing it")
}

// NewProfileCommand creates the profile command group.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage profiles",
	}

	opts := &SubmitOptions{RootOptions: rootOpts}
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Register the signer's profile",
		Long: `Register the signer's profile. Each key may register exactly one.

Examples:
  socialledger profile create alice --keypair alice.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(opts, cmd, func(ctx context.Context, l *ledger, user address.Pubkey) (ir.Message, error) {
				return l.client.CreateProfile(user, args[0])
			})
		},
	}
	addSubmitFlags(create, opts)
	cmd.AddCommand(create)

	return cmd
}

// PostOptions holds flags for post create.
type PostOptions struct {
	SubmitOptions
	PostID uint64
}

// NewPostCommand creates the post command group.
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Publish and like posts",
	}

	postOpts := &PostOptions{SubmitOptions: SubmitOptions{RootOptions: rootOpts}}
	create := &cobra.Command{
		Use:   "create <content>",
		Short: "Publish the signer's next post",
		Long: `Publish the signer's next post.

The post id is read from the signer's profile (last_post_id + 1) unless
--post-id is given. If another post commits first the id is stale and the
transaction fails with AddressMismatch; read the profile and retry.

Examples:
  socialledger post create "hello" --keypair alice.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(&postOpts.SubmitOptions, cmd, func(ctx context.Context, l *ledger, user address.Pubkey) (ir.Message, error) {
				postID := postOpts.PostID
				if !cmd.Flags().Changed("post-id") {
					next, err := nextPostID(ctx, l, user)
					if err != nil {
						return ir.Message{}, err
					}
					postID = next
				}
				return l.client.CreatePost(user, postID, args[0])
			})
		},
	}
	addSubmitFlags(create, &postOpts.SubmitOptions)
	create.Flags().Uint64Var(&postOpts.PostID, "post-id", 0, "claim this post id (default: next)")
	cmd.AddCommand(create)

	likeOpts := &SubmitOptions{RootOptions: rootOpts}
	like := &cobra.Command{
		Use:   "like <post-address>",
		Short: "Like a post as the signer",
		Long: `Like a post. A user may like each post once.

Examples:
  socialledger post like 8hZ3rMvP33J2KTzi73a8fR2ZbGf8BvPQGS2NtcozF7Rx --keypair bob.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := parsePubkey("post address", args[0])
			if err != nil {
				return err
			}
			return submit(likeOpts, cmd, func(ctx context.Context, l *ledger, user address.Pubkey) (ir.Message, error) {
				return l.client.LikePost(user, post)
			})
		},
	}
	addSubmitFlags(like, likeOpts)
	cmd.AddCommand(like)

	return cmd
}

// nextPostID reads the signer's counter. A missing profile yields 1 so the
// ledger reports AccountNotInitialized itself.
func nextPostID(ctx context.Context, l *ledger, user address.Pubkey) (uint64, error) {
	next, _, err := l.client.NextPostID(ctx, l.store, user)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if program.IsOverflow(err) {
		return 0, NewExitError(ExitFailure, "profile has no post ids left")
	}
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "failed to read profile", err)
	}
	return next, nil
}

type buildFunc func(ctx context.Context, l *ledger, user address.Pubkey) (ir.Message, error)

// submit builds, signs and executes one transaction, or writes it to
// --tx-out.
func submit(opts *SubmitOptions, cmd *cobra.Command, build buildFunc) error {
	ctx := cmd.Context()

	signer, err := opts.signer()
	if err != nil {
		return err
	}

	l, err := openLedger(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer l.Close()

	msg, err := build(ctx, l, signer.Pubkey())
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return WrapExitError(ExitCommandError, "failed to build transaction", err)
	}
	tx, err := keys.SignTransaction(msg, signer)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to sign transaction", err)
	}

	if opts.TxOut != "" {
		return writeTransactions(opts.RootOptions, cmd, opts.TxOut, []ir.Transaction{tx})
	}

	receipt, execErr := l.runtime.Execute(ctx, tx)
	return reportReceipt(opts.RootOptions, cmd, receipt, execErr)
}

// reportReceipt prints a receipt. A coded failure is exit 1, an uncoded
// one exit 2.
func reportReceipt(opts *RootOptions, cmd *cobra.Command, receipt ir.Receipt, execErr error) error {
	f := opts.formatter(cmd)
	if execErr == nil {
		return f.Success(receipt, func(w io.Writer) {
			fmt.Fprintf(w, "✓ %s (seq %d)\n", receipt.TransactionID, receipt.Seq)
		})
	}

	code := runtime.ErrorCode(execErr)
	if code == "" {
		return WrapExitError(ExitCommandError, "failed to execute transaction", execErr)
	}
	if err := f.Error(code, execErr.Error(), receipt); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("transaction failed: %s", code))
}

// writeTransactions writes txs as a JSON array, the format batch reads.
func writeTransactions(opts *RootOptions, cmd *cobra.Command, path string, txs []ir.Transaction) error {
	data, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode transaction", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write transaction", err)
	}

	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = ir.MustTransactionID(tx.Message)
	}
	return opts.formatter(cmd).Success(map[string]any{"path": path, "transaction_ids": ids}, func(w io.Writer) {
		fmt.Fprintf(w, "Wrote %d transaction(s) to %s\n", len(ids), path)
	})
}
