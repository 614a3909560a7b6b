package testutil

import (
	"context"
	"encoding"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
	"github.com/roach88/socialledger/internal/keys"
	"github.com/roach88/socialledger/internal/program"
	"github.com/roach88/socialledger/internal/runtime"
	"github.com/roach88/socialledger/internal/store"
)

// Ledger is a complete runtime over a temp-dir store with the program
// registered. Everything is deterministic: keys come from names and nonces
// from a runtime.SequentialGenerator.
type Ledger struct {
	Store   *store.Store
	Runtime *runtime.Runtime
	Program *program.Program
	Client  *program.Client
	Nonces  *runtime.SequentialGenerator
}

// NewLedger builds a Ledger cleaned up with the test.
func NewLedger(t testing.TB) *Ledger {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	rt, err := runtime.New(context.Background(), s)
	require.NoError(t, err)

	prog := program.New(address.ProgramID)
	rt.Register(prog.ID(), prog)

	nonces := runtime.NewSequentialGenerator("tx")
	return &Ledger{
		Store:   s,
		Runtime: rt,
		Program: prog,
		Client:  program.NewClient(prog.ID(), nonces),
		Nonces:  nonces,
	}
}

// Key returns the deterministic keypair for name.
func Key(name string) keys.Keypair {
	return keys.FromSeedPhrase(name)
}

// Submit signs msg with signer and executes it. The error is the
// transaction's outcome, not a test failure.
func (l *Ledger) Submit(t testing.TB, signer keys.Keypair, msg ir.Message) (ir.Receipt, error) {
	t.Helper()
	tx, err := keys.SignTransaction(msg, signer)
	require.NoError(t, err)
	return l.Runtime.Execute(context.Background(), tx)
}

// CreateProfile submits create_profile for signer.
func (l *Ledger) CreateProfile(t testing.TB, signer keys.Keypair, username string) (ir.Receipt, error) {
	t.Helper()
	msg, err := l.Client.CreateProfile(signer.Pubkey(), username)
	require.NoError(t, err)
	return l.Submit(t, signer, msg)
}

// CreatePost submits create_post for signer, reading the next post id
// from the store first.
func (l *Ledger) CreatePost(t testing.TB, signer keys.Keypair, content string) (ir.Receipt, error) {
	t.Helper()
	next, _, err := l.Client.NextPostID(context.Background(), l.Store, signer.Pubkey())
	require.NoError(t, err)
	return l.CreatePostWithID(t, signer, next, content)
}

// CreatePostWithID submits create_post with a caller-chosen post id, which
// may be stale.
func (l *Ledger) CreatePostWithID(t testing.TB, signer keys.Keypair, postID uint64, content string) (ir.Receipt, error) {
	t.Helper()
	msg, err := l.Client.CreatePost(signer.Pubkey(), postID, content)
	require.NoError(t, err)
	return l.Submit(t, signer, msg)
}

// LikePost submits like_post of post by signer.
func (l *Ledger) LikePost(t testing.TB, signer keys.Keypair, post address.Pubkey) (ir.Receipt, error) {
	t.Helper()
	msg, err := l.Client.LikePost(signer.Pubkey(), post)
	require.NoError(t, err)
	return l.Submit(t, signer, msg)
}

// ProfileAddress returns the derived profile address of owner.
func (l *Ledger) ProfileAddress(t testing.TB, owner address.Pubkey) address.Pubkey {
	t.Helper()
	d, err := l.Program.Deriver().Profile(owner)
	require.NoError(t, err)
	return d.Address
}

// PostAddress returns the derived address of author's post postID.
func (l *Ledger) PostAddress(t testing.TB, author address.Pubkey, postID uint64) address.Pubkey {
	t.Helper()
	d, err := l.Program.Deriver().Post(author, postID)
	require.NoError(t, err)
	return d.Address
}

// LikeAddress returns the derived like address of (post, user).
func (l *Ledger) LikeAddress(t testing.TB, post, user address.Pubkey) address.Pubkey {
	t.Helper()
	d, err := l.Program.Deriver().Like(post, user)
	require.NoError(t, err)
	return d.Address
}

// Preset writes a record directly into the store, bypassing the program.
// Used to reach states no sequence of instructions can reach quickly, such
// as a counter at its maximum.
func (l *Ledger) Preset(t testing.TB, addr address.Pubkey, record encoding.BinaryMarshaler) {
	t.Helper()
	data, err := record.MarshalBinary()
	require.NoError(t, err)

	ctx := context.Background()
	txn, err := l.Store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn.Put(ctx, store.Account{
		Address: addr,
		Owner:   l.Program.ID(),
		Data:    data,
	}))
	require.NoError(t, txn.Commit())
}

// StateHash returns the store's state hash.
func (l *Ledger) StateHash(t testing.TB) string {
	t.Helper()
	h, err := l.Store.StateHash(context.Background())
	require.NoError(t, err)
	return h
}
