package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/keys"
	"github.com/roach88/socialledger/internal/program"
	"github.com/roach88/socialledger/internal/runtime"
	"github.com/roach88/socialledger/internal/store"
)

// ledger is an opened store with the program registered on a runtime.
type ledger struct {
	store   *store.Store
	runtime *runtime.Runtime
	program *program.Program
	client  *program.Client
}

// openLedger opens (creating if needed) the configured database.
func openLedger(ctx context.Context, opts *RootOptions) (*ledger, error) {
	return openLedgerAt(ctx, opts, opts.Database)
}

func openLedgerAt(ctx context.Context, opts *RootOptions, path string) (*ledger, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	rt, err := runtime.New(ctx, st, runtime.WithWorkers(opts.Config.Batch.Workers))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start runtime", err)
	}

	prog := program.New(opts.Config.ProgramID)
	rt.Register(prog.ID(), prog)

	return &ledger{
		store:   st,
		runtime: rt,
		program: prog,
		client:  program.NewClient(prog.ID(), runtime.UUIDv7Generator{}),
	}, nil
}

// openExisting is openLedger for commands that only read: a missing
// database is a command error rather than a new empty ledger.
func openExisting(ctx context.Context, opts *RootOptions) (*ledger, error) {
	if _, err := os.Stat(opts.Database); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database), err)
	}
	return openLedger(ctx, opts)
}

func (l *ledger) Close() error {
	return l.store.Close()
}

// SignerOptions selects the keypair that signs a transaction.
type SignerOptions struct {
	KeypairPath string
	SeedPhrase  string
}

// signer loads the keypair named by the flags.
func (o SignerOptions) signer() (keys.Keypair, error) {
	switch {
	case o.KeypairPath != "" && o.SeedPhrase != "":
		return keys.Keypair{}, NewExitError(ExitCommandError, "--keypair and --seed-phrase are mutually exclusive")
	case o.KeypairPath != "":
		k, err := keys.Load(o.KeypairPath)
		if err != nil {
			return keys.Keypair{}, WrapExitError(ExitCommandError, "failed to load keypair", err)
		}
		return k, nil
	case o.SeedPhrase != "":
		return keys.FromSeedPhrase(o.SeedPhrase), nil
	}
	return keys.Keypair{}, NewExitError(ExitCommandError, "a signer is required: pass --keypair or --seed-phrase")
}

// parsePubkey parses a base58 argument as a command error.
func parsePubkey(what, s string) (address.Pubkey, error) {
	pk, err := address.ParsePubkey(s)
	if err != nil {
		return address.Pubkey{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s %q", what, s), err)
	}
	return pk, nil
}
