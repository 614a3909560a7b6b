package program_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/socialledger/internal/ir"
	"github.com/roach88/socialledger/internal/keys"
)

func signWith(msg ir.Message, k keys.Keypair) (ir.Transaction, error) {
	return keys.SignTransaction(msg, k)
}

func signedTx(t *testing.T, msg ir.Message) ir.Transaction {
	t.Helper()
	tx, err := signWith(msg, alice)
	require.NoError(t, err)
	return tx
}
