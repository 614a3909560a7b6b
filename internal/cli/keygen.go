package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/socialledger/internal/keys"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Out        string
	SeedPhrase string
	Force      bool
}

// KeygenResult is the keygen output.
type KeygenResult struct {
	Pubkey string `json:"pubkey"`
	Path   string `json:"path,omitempty"`
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 keypair",
		Long: `Generate an ed25519 keypair and write it as a JSON array of 64 bytes.

Without --out only the public key is printed. --seed-phrase derives the key
deterministically from a name, for demos and tests only.

Examples:
  socialledger keygen --out alice.json
  socialledger keygen --seed-phrase alice`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the keypair to this file")
	cmd.Flags().StringVar(&opts.SeedPhrase, "seed-phrase", "", "derive the keypair from a name (insecure)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing keypair file")

	return cmd
}

func runKeygen(opts *KeygenOptions, cmd *cobra.Command) error {
	var (
		k   keys.Keypair
		err error
	)
	if opts.SeedPhrase != "" {
		k = keys.FromSeedPhrase(opts.SeedPhrase)
	} else if k, err = keys.Generate(); err != nil {
		return WrapExitError(ExitCommandError, "failed to generate keypair", err)
	}

	if opts.Out != "" {
		if _, err := os.Stat(opts.Out); err == nil && !opts.Force {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s exists; pass --force to overwrite", opts.Out))
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return WrapExitError(ExitCommandError, "failed to check keypair file", err)
		}
		if err := keys.Save(opts.Out, k); err != nil {
			return WrapExitError(ExitCommandError, "failed to write keypair", err)
		}
	}

	result := KeygenResult{Pubkey: k.Pubkey().String(), Path: opts.Out}
	return opts.formatter(cmd).Success(result, func(w io.Writer) {
		fmt.Fprintln(w, result.Pubkey)
		if result.Path != "" {
			fmt.Fprintf(w, "Wrote %s\n", result.Path)
		}
	})
}
