package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/socialledger/internal/address"
)

// DeriveResult is a derived address with its bump.
type DeriveResult struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

// NewDeriveCommand creates the derive command group.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Compute record addresses",
		Long: `Compute where a record lives without touching the database.

Examples:
  socialledger derive profile <owner>
  socialledger derive post <author> <post-id>
  socialledger derive like <post-address> <user>`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "profile <owner>",
		Short:         "Address of an owner's profile",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := parsePubkey("owner", args[0])
			if err != nil {
				return err
			}
			return emitDerivation(rootOpts, cmd, "profile", func(d address.Deriver) (address.Derivation, error) {
				return d.Profile(owner)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "post <author> <post-id>",
		Short:         "Address of an author's post",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			author, err := parsePubkey("author", args[0])
			if err != nil {
				return err
			}
			postID, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid post id %q", args[1]), err)
			}
			return emitDerivation(rootOpts, cmd, "post", func(d address.Deriver) (address.Derivation, error) {
				return d.Post(author, postID)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "like <post-address> <user>",
		Short:         "Address of a user's like of a post",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := parsePubkey("post address", args[0])
			if err != nil {
				return err
			}
			user, err := parsePubkey("user", args[1])
			if err != nil {
				return err
			}
			return emitDerivation(rootOpts, cmd, "like", func(d address.Deriver) (address.Derivation, error) {
				return d.Like(post, user)
			})
		},
	})

	return cmd
}

func emitDerivation(opts *RootOptions, cmd *cobra.Command, kind string, derive func(address.Deriver) (address.Derivation, error)) error {
	d, err := derive(address.NewDeriver(opts.Config.ProgramID))
	if err != nil {
		return WrapExitError(ExitFailure, "derivation failed", err)
	}
	result := DeriveResult{Kind: kind, Address: d.Address.String(), Bump: d.Bump}
	return opts.formatter(cmd).Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s (bump %d)\n", result.Kind, result.Address, result.Bump)
	})
}
