package cli

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/socialledger/internal/account"
	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
	"github.com/roach88/socialledger/internal/store"
)

const (
	aliceKey  = "FPP21sbqhr2LPjSnJkw5NBetPubeFG4PsQFBxHj8noTq"
	bobKey    = "GwCXyJ8AesaucFMTUSZmiFVMhVngpeBxaBC7mQJiZct3"
	alicePost = "8hZ3rMvP33J2KTzi73a8fR2ZbGf8BvPQGS2NtcozF7Rx"
)

func dataMap(t *testing.T, resp CLIResponse) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func TestDeriveCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantAddr string
		wantBump float64
	}{
		{"profile", []string{"derive", "profile", aliceKey}, "J49qxPHHuJW8L4mEBWAWg4qtAqgiRU6QiFfeHa4T9Ubv", 255},
		{"first post", []string{"derive", "post", aliceKey, "1"}, alicePost, 255},
		{"second post", []string{"derive", "post", aliceKey, "2"}, "ExDaso3SrqeADzpyb19odjaSKA1PFM3YnVvpsABg5sjg", 250},
		{"like", []string{"derive", "like", alicePost, bobKey}, "6Da4JRNxEYaY2FuF5jpHE296NhYtMpuZv5X2Huf6dyEh", 251},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := runJSON(t, tt.args...)
			require.NoError(t, err)
			data := dataMap(t, resp)
			assert.Equal(t, tt.wantAddr, data["address"])
			assert.Equal(t, tt.wantBump, data["bump"])
		})
	}
}

func TestDeriveCommand_BadInput(t *testing.T) {
	_, err := runCLI(t, "derive", "profile", "not-base58!")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runCLI(t, "derive", "post", aliceKey, "first")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDeriveCommand_Text(t *testing.T) {
	out, err := runCLI(t, "derive", "profile", aliceKey)
	require.NoError(t, err)
	assert.Equal(t, "profile J49qxPHHuJW8L4mEBWAWg4qtAqgiRU6QiFfeHa4T9Ubv (bump 255)\n", out)
}

func TestKeygenCommand(t *testing.T) {
	resp, err := runJSON(t, "keygen", "--seed-phrase", "alice")
	require.NoError(t, err)
	assert.Equal(t, aliceKey, dataMap(t, resp)["pubkey"])

	path := filepath.Join(t.TempDir(), "key.json")
	out, err := runCLI(t, "keygen", "--out", path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, out, "Wrote "+path)

	_, err = runCLI(t, "keygen", "--out", path)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "existing file needs --force")

	_, err = runCLI(t, "keygen", "--out", path, "--seed-phrase", "bob", "--force")
	require.NoError(t, err)

	// The saved keypair signs for bob.
	db := filepath.Join(t.TempDir(), "ledger.db")
	resp, err = runJSON(t, "profile", "create", "bob", "--keypair", path, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	resp, err = runJSON(t, "account", "show", "--db", db, mustDerive(t, "profile", bobKey))
	require.NoError(t, err)
	assert.Equal(t, bobKey, dataMap(t, resp)["record"].(map[string]any)["owner"])
}

func mustDerive(t *testing.T, args ...string) string {
	t.Helper()
	resp, err := runJSON(t, append([]string{"derive"}, args...)...)
	require.NoError(t, err)
	return dataMap(t, resp)["address"].(string)
}

func TestSubmitRequiresSigner(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")
	_, err := runCLI(t, "profile", "create", "alice", "--db", db)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLedgerFlow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")
	as := func(user string, args ...string) (CLIResponse, error) {
		return runJSON(t, append(args, "--db", db, "--seed-phrase", user)...)
	}

	resp, err := as("alice", "profile", "create", "alice")
	require.NoError(t, err)
	assert.Equal(t, "Success", dataMap(t, resp)["status"])
	assert.Equal(t, float64(1), dataMap(t, resp)["seq"])

	resp, err = as("alice", "profile", "create", "alice2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "InitializationConflict", resp.Error.Code)

	resp, err = as("alice", "post", "create", "hello")
	require.NoError(t, err)
	assert.Equal(t, float64(3), dataMap(t, resp)["seq"])

	resp, err = as("alice", "post", "create", "stale", "--post-id", "1")
	require.Error(t, err)
	assert.Equal(t, "AddressMismatch", resp.Error.Code)

	_, err = as("bob", "post", "create", "no profile")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = as("bob", "post", "like", alicePost)
	require.NoError(t, err)

	resp, err = as("bob", "post", "like", alicePost)
	require.Error(t, err)
	assert.Equal(t, "InitializationConflict", resp.Error.Code)

	resp, err = runJSON(t, "account", "show", alicePost, "--db", db)
	require.NoError(t, err)
	view := dataMap(t, resp)
	assert.Equal(t, "post", view["kind"])
	record := view["record"].(map[string]any)
	assert.Equal(t, "hello", record["content"])
	assert.Equal(t, float64(1), record["like_count"])

	resp, err = runJSON(t, "account", "list", "--db", db)
	require.NoError(t, err)
	assert.Len(t, resp.Data, 3, "profile, post and like")

	resp, err = runJSON(t, "log", "--db", db)
	require.NoError(t, err)
	entries := resp.Data.([]any)
	require.Len(t, entries, 7)
	statuses := make([]string, len(entries))
	for i, e := range entries {
		entry := e.(map[string]any)
		assert.Equal(t, float64(i+1), entry["seq"])
		statuses[i] = entry["status"].(string)
	}
	assert.Equal(t, []string{"Success", "Failed", "Success", "Failed", "Failed", "Success", "Failed"}, statuses)
	assert.Equal(t, []any{"create_profile"}, entries[0].(map[string]any)["instructions"])
	assert.Equal(t, []any{bobKey}, entries[5].(map[string]any)["signers"])

	resp, err = runJSON(t, "replay", "--db", db)
	require.NoError(t, err)
	replay := dataMap(t, resp)
	assert.Equal(t, float64(7), replay["transactions"])
	assert.Equal(t, replay["source_state_hash"], replay["replay_state_hash"])

	out, err := runCLI(t, "account", "show", alicePost, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "like_count: 1")
}

func TestAccountShow_Missing(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")
	_, err := runCLI(t, "profile", "create", "alice", "--db", db, "--seed-phrase", "alice")
	require.NoError(t, err)

	resp, err := runJSON(t, "account", "show", alicePost, "--db", db)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestReadCommands_MissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "absent.db")
	for _, args := range [][]string{
		{"log"},
		{"replay"},
		{"account", "list"},
	} {
		_, err := runCLI(t, append(args, "--db", db)...)
		assert.Equal(t, ExitCommandError, GetExitCode(err), "%v", args)
		assert.NoFileExists(t, db)
	}
}

func TestTxOutAndBatch(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "ledger.db")

	_, err := runCLI(t, "profile", "create", "alice", "--db", db, "--seed-phrase", "alice")
	require.NoError(t, err)
	_, err = runCLI(t, "post", "create", "hello", "--db", db, "--seed-phrase", "alice")
	require.NoError(t, err)

	var batch []ir.Transaction
	for _, user := range []string{"bob", "carol", "dave", "bob"} {
		path := filepath.Join(dir, "tx.json")
		resp, err := runJSON(t, "post", "like", alicePost, "--db", db, "--seed-phrase", user, "--tx-out", path)
		require.NoError(t, err)
		assert.Len(t, dataMap(t, resp)["transaction_ids"], 1)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var txs []ir.Transaction
		require.NoError(t, json.Unmarshal(data, &txs))
		batch = append(batch, txs...)
	}

	resp, err := runJSON(t, "log", "--db", db)
	require.NoError(t, err)
	assert.Len(t, resp.Data, 2, "--tx-out does not execute")

	data, err := json.Marshal(batch)
	require.NoError(t, err)
	batchPath := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(batchPath, data, 0o644))

	resp, err = runJSON(t, "batch", batchPath, "--db", db)
	assert.Equal(t, ExitFailure, GetExitCode(err), "bob's second like fails")
	result := dataMap(t, resp)
	assert.Equal(t, float64(3), result["succeeded"])
	assert.Equal(t, float64(1), result["failed"])

	resp, err = runJSON(t, "account", "show", alicePost, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, float64(3), dataMap(t, resp)["record"].(map[string]any)["like_count"])

	_, err = runCLI(t, "replay", "--db", db)
	require.NoError(t, err)
}

func TestBatch_BadFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))

	_, err := runCLI(t, "batch", bad, "--db", filepath.Join(dir, "ledger.db"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runCLI(t, "batch", filepath.Join(dir, "missing.json"), "--db", filepath.Join(dir, "ledger.db"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")

	resp, err := runJSON(t, "test", scenarios)
	require.NoError(t, err)
	result := dataMap(t, resp)
	assert.Equal(t, float64(3), result["total"])
	assert.Equal(t, float64(3), result["passed"])

	resp, err = runJSON(t, "test", scenarios, "--filter", "[ow]*", "--golden", filepath.Join("..", "harness", "testdata", "golden"))
	require.NoError(t, err)
	assert.Equal(t, float64(2), dataMap(t, resp)["passed"])
}

func TestTestCommand_UpdateGolden(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")
	golden := filepath.Join(t.TempDir(), "golden")

	_, err := runCLI(t, "test", scenarios, "--golden", golden)
	assert.Equal(t, ExitFailure, GetExitCode(err), "golden files missing")

	_, err = runCLI(t, "test", scenarios, "--golden", golden, "--update")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(golden, "budgets.golden"))

	out, err := runCLI(t, "test", scenarios, "--golden", golden)
	require.NoError(t, err)
	assert.Contains(t, out, "3 passed, 0 failed, 3 total")
}

func TestTestCommand_Errors(t *testing.T) {
	_, err := runCLI(t, "test", filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runCLI(t, "test", t.TempDir(), "--update")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := runCLI(t, "test", filepath.Join("..", "harness", "testdata", "invalid"))
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗")
}

func TestReplay_IntoFile(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "ledger.db")
	_, err := runCLI(t, "profile", "create", "alice", "--db", db, "--seed-phrase", "alice")
	require.NoError(t, err)

	copyPath := filepath.Join(dir, "copy.db")
	out, err := runCLI(t, "replay", "--db", db, "--into", copyPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Replayed 1 transaction(s)")

	resp, err := runJSON(t, "account", "list", "--db", copyPath)
	require.NoError(t, err)
	assert.Len(t, resp.Data, 1)

	_, err = runCLI(t, "replay", "--db", db, "--into", db)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPostCreate_ExplicitZeroID(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")
	_, err := runCLI(t, "profile", "create", "alice", "--db", db, "--seed-phrase", "alice")
	require.NoError(t, err)

	resp, err := runJSON(t, "post", "create", "zero", "--post-id", "0", "--db", db, "--seed-phrase", "alice")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "AddressMismatch", resp.Error.Code, "0 is submitted as given, not replaced by the next id")

	// With the counter exhausted, the wrapped id 0 reaches the program's
	// overflow check.
	s, err := store.Open(db)
	require.NoError(t, err)
	profile := &account.Profile{
		Owner:      address.MustParsePubkey(aliceKey),
		Username:   "alice",
		LastPostID: math.MaxUint64,
		Bump:       255,
	}
	data, err := profile.MarshalBinary()
	require.NoError(t, err)
	ctx := context.Background()
	txn, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn.Put(ctx, store.Account{
		Address: address.MustParsePubkey("J49qxPHHuJW8L4mEBWAWg4qtAqgiRU6QiFfeHa4T9Ubv"),
		Owner:   address.ProgramID,
		Data:    data,
	}))
	require.NoError(t, txn.Commit())
	require.NoError(t, s.Close())

	resp, err = runJSON(t, "post", "create", "wrapped", "--post-id", "0", "--db", db, "--seed-phrase", "alice")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Overflow", resp.Error.Code)

	_, err = runCLI(t, "post", "create", "next", "--db", db, "--seed-phrase", "alice")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "no post ids left")
}
