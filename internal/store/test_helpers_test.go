package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
)

var (
	alice = address.MustParsePubkey("FPP21sbqhr2LPjSnJkw5NBetPubeFG4PsQFBxHj8noTq")
	bob   = address.MustParsePubkey("GwCXyJ8AesaucFMTUSZmiFVMhVngpeBxaBC7mQJiZct3")
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// putAccounts writes accounts in one committed Txn.
func putAccounts(t *testing.T, s *Store, accounts ...Account) {
	t.Helper()
	ctx := context.Background()
	txn, err := s.Begin(ctx)
	require.NoError(t, err)
	for _, acc := range accounts {
		require.NoError(t, txn.Put(ctx, acc))
	}
	require.NoError(t, txn.Commit())
}

// createTestRecord creates a log entry with minimal required fields.
func createTestRecord(nonce string, seq int64, status ir.Status) Record {
	msg := ir.Message{
		Nonce: nonce,
		Instructions: []ir.Instruction{{
			ProgramID: address.ProgramID,
			Accounts:  []ir.AccountMeta{{Address: alice, Signer: true, Writable: true}},
			Data:      []byte{9, 9},
		}},
	}
	return Record{
		ID:  ir.MustTransactionID(msg),
		Seq: seq,
		Transaction: ir.Transaction{
			Message:    msg,
			Signatures: []ir.Signature{{Signer: alice, Bytes: []byte{1, 2, 3, 4}}},
		},
		Status: status,
	}
}
