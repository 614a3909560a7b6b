package runtime

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
	"github.com/roach88/socialledger/internal/keys"
	"github.com/roach88/socialledger/internal/store"
)

// Counter test program. Data[0] selects the operation, accounts[1] is the
// counter.
const (
	opCreate byte = iota
	opIncrement
	opFailCoded
	opFailPlain
	opGrow
	opReadSecond
)

var (
	counterProgram = pk(0xC0)
	alice          = keys.FromSeedPhrase("alice")
	bob            = keys.FromSeedPhrase("bob")
)

func counterProcessor(ictx *InstructionContext) error {
	if len(ictx.Data) == 0 {
		return NewUnknownInstruction(ictx.ProgramID, "empty instruction data")
	}
	switch ictx.Data[0] {
	case opCreate:
		acc, err := ictx.Account(1)
		if err != nil {
			return err
		}
		return ictx.Create(acc, make([]byte, 8))
	case opIncrement:
		acc, err := ictx.Account(1)
		if err != nil {
			return err
		}
		data, err := ictx.Load(acc)
		if err != nil {
			return err
		}
		n := binary.LittleEndian.Uint64(data)
		return ictx.Write(acc, binary.LittleEndian.AppendUint64(nil, n+1))
	case opFailCoded:
		return NewInvalidAccountData(ictx.ProgramID, errors.New("forced"))
	case opFailPlain:
		return errors.New("disk on fire")
	case opGrow:
		acc, err := ictx.Account(1)
		if err != nil {
			return err
		}
		return ictx.Write(acc, make([]byte, 9))
	case opReadSecond:
		_, err := ictx.Account(5)
		return err
	}
	return NewUnknownInstruction(ictx.ProgramID, fmt.Sprintf("op %d", ictx.Data[0]))
}

func setupTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r, err := New(context.Background(), s)
	require.NoError(t, err)
	r.Register(counterProgram, ProcessorFunc(counterProcessor))
	return r
}

func counterIx(signer address.Pubkey, counter address.Pubkey, op byte, init bool) ir.Instruction {
	return ir.Instruction{
		ProgramID: counterProgram,
		Accounts: []ir.AccountMeta{
			{Address: signer, Signer: true, Writable: true},
			{Address: counter, Writable: true, Init: init},
		},
		Data: []byte{op},
	}
}

func signed(t *testing.T, nonce string, k keys.Keypair, ixs ...ir.Instruction) ir.Transaction {
	t.Helper()
	tx, err := keys.SignTransaction(ir.Message{Nonce: nonce, Instructions: ixs}, k)
	require.NoError(t, err)
	return tx
}

func counterValue(t *testing.T, r *Runtime, addr address.Pubkey) uint64 {
	t.Helper()
	acc, err := r.Store().ReadAccount(context.Background(), addr)
	require.NoError(t, err)
	return binary.LittleEndian.Uint64(acc.Data)
}

func logLen(t *testing.T, r *Runtime) int {
	t.Helper()
	records, err := r.Store().ListTransactions(context.Background())
	require.NoError(t, err)
	return len(records)
}

func TestExecute_Success(t *testing.T) {
	r := setupTestRuntime(t)
	ctx := context.Background()
	counter := pk(1)

	tx := signed(t, "n-1", alice, counterIx(alice.Pubkey(), counter, opCreate, true))
	receipt, err := r.Execute(ctx, tx)
	require.NoError(t, err)

	assert.Equal(t, ir.StatusSuccess, receipt.Status)
	assert.Equal(t, int64(1), receipt.Seq)
	assert.Equal(t, ir.MustTransactionID(tx.Message), receipt.TransactionID)

	acc, err := r.Store().ReadAccount(ctx, counter)
	require.NoError(t, err)
	assert.Equal(t, counterProgram, acc.Owner)
	assert.Equal(t, make([]byte, 8), acc.Data)
	assert.Equal(t, int64(1), acc.UpdatedSeq)

	rec, err := r.Store().ReadTransaction(ctx, receipt.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, tx, rec.Transaction)
}

func TestExecute_MissingSignatureNotLogged(t *testing.T) {
	r := setupTestRuntime(t)

	tx := signed(t, "n-1", bob, counterIx(alice.Pubkey(), pk(1), opCreate, true))
	receipt, err := r.Execute(context.Background(), tx)

	require.Error(t, err)
	assert.True(t, IsSignatureError(err))
	assert.Equal(t, "MissingRequiredSignature", ErrorCode(err))
	assert.Equal(t, ir.StatusFailed, receipt.Status)
	assert.Equal(t, int64(0), receipt.Seq)
	assert.Equal(t, 0, logLen(t, r))
}

func TestExecute_InvalidSignature(t *testing.T) {
	r := setupTestRuntime(t)

	tx := signed(t, "n-1", alice, counterIx(alice.Pubkey(), pk(1), opCreate, true))
	tx.Message.Nonce = "n-2" // signature no longer covers the message

	_, err := r.Execute(context.Background(), tx)
	assert.Equal(t, "InvalidSignature", ErrorCode(err))
	assert.Equal(t, 0, logLen(t, r))
}

func TestExecute_AlreadyProcessed(t *testing.T) {
	r := setupTestRuntime(t)
	ctx := context.Background()

	tx := signed(t, "n-1", alice, counterIx(alice.Pubkey(), pk(1), opCreate, true))
	_, err := r.Execute(ctx, tx)
	require.NoError(t, err)

	receipt, err := r.Execute(ctx, tx)
	assert.True(t, IsAlreadyProcessed(err))
	assert.Equal(t, "AlreadyProcessed", receipt.ErrorCode)
	assert.Equal(t, 1, logLen(t, r), "duplicate is not logged twice")
	assert.Equal(t, int64(1), r.Clock().Current(), "duplicate consumes no seq")
}

func TestExecute_InitializationConflictLogged(t *testing.T) {
	r := setupTestRuntime(t)
	ctx := context.Background()
	counter := pk(1)

	_, err := r.Execute(ctx, signed(t, "n-1", alice, counterIx(alice.Pubkey(), counter, opCreate, true)))
	require.NoError(t, err)
	_, err = r.Execute(ctx, signed(t, "n-2", alice, counterIx(alice.Pubkey(), counter, opIncrement, false)))
	require.NoError(t, err)

	receipt, err := r.Execute(ctx, signed(t, "n-3", alice, counterIx(alice.Pubkey(), counter, opCreate, true)))
	assert.True(t, IsInitializationConflict(err))
	assert.Equal(t, ir.StatusFailed, receipt.Status)
	assert.Equal(t, int64(3), receipt.Seq)
	assert.Equal(t, 3, logLen(t, r), "failed transactions are logged")
	assert.Equal(t, uint64(1), counterValue(t, r, counter), "existing data untouched")
}

func TestExecute_InitMetaOnExistingAccount(t *testing.T) {
	r := setupTestRuntime(t)
	ctx := context.Background()

	_, err := r.Execute(ctx, signed(t, "n-1", alice, counterIx(alice.Pubkey(), pk(1), opCreate, true)))
	require.NoError(t, err)

	// The program only increments, but the meta still claims a fresh address.
	_, err = r.Execute(ctx, signed(t, "n-2", alice, counterIx(alice.Pubkey(), pk(1), opIncrement, true)))
	assert.True(t, IsInitializationConflict(err))
	assert.Equal(t, uint64(0), counterValue(t, r, pk(1)))
}

func TestExecute_FailureRollsBackEarlierInstructions(t *testing.T) {
	r := setupTestRuntime(t)
	ctx := context.Background()

	tx := signed(t, "n-1", alice,
		counterIx(alice.Pubkey(), pk(1), opCreate, true),
		counterIx(alice.Pubkey(), pk(1), opFailCoded, false),
	)
	receipt, err := r.Execute(ctx, tx)

	assert.Equal(t, "InvalidAccountData", ErrorCode(err))
	assert.Contains(t, err.Error(), "instruction 1")
	assert.Equal(t, ir.StatusFailed, receipt.Status)

	_, err = r.Store().ReadAccount(ctx, pk(1))
	assert.Error(t, err, "account created by instruction 0 must not persist")
}

func TestExecute_LaterInstructionSeesEarlierWrite(t *testing.T) {
	r := setupTestRuntime(t)

	tx := signed(t, "n-1", alice,
		counterIx(alice.Pubkey(), pk(1), opCreate, true),
		counterIx(alice.Pubkey(), pk(1), opIncrement, false),
		counterIx(alice.Pubkey(), pk(1), opIncrement, false),
	)
	_, err := r.Execute(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), counterValue(t, r, pk(1)))
}

func TestExecute_UnknownProgram(t *testing.T) {
	r := setupTestRuntime(t)

	ix := counterIx(alice.Pubkey(), pk(1), opCreate, true)
	ix.ProgramID = pk(0xEE)
	receipt, err := r.Execute(context.Background(), signed(t, "n-1", alice, ix))

	assert.Equal(t, "UnknownInstruction", ErrorCode(err))
	assert.Equal(t, ir.StatusFailed, receipt.Status)
	assert.Equal(t, 1, logLen(t, r))
}

func TestExecute_WriteRules(t *testing.T) {
	tests := []struct {
		name string
		ix   func() ir.Instruction
		code string
	}{
		{
			name: "readonly",
			ix: func() ir.Instruction {
				ix := counterIx(alice.Pubkey(), pk(1), opIncrement, false)
				ix.Accounts[1].Writable = false
				return ix
			},
			code: "ReadonlyDataModified",
		},
		{
			name: "grow beyond space",
			ix:   func() ir.Instruction { return counterIx(alice.Pubkey(), pk(1), opGrow, false) },
			code: "AccountDataTooSmall",
		},
		{
			name: "missing account",
			ix:   func() ir.Instruction { return counterIx(alice.Pubkey(), pk(2), opIncrement, false) },
			code: "AccountNotInitialized",
		},
		{
			name: "not enough accounts",
			ix:   func() ir.Instruction { return counterIx(alice.Pubkey(), pk(1), opReadSecond, false) },
			code: "NotEnoughAccountKeys",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupTestRuntime(t)
			ctx := context.Background()
			_, err := r.Execute(ctx, signed(t, "setup", alice, counterIx(alice.Pubkey(), pk(1), opCreate, true)))
			require.NoError(t, err)

			_, err = r.Execute(ctx, signed(t, "n-1", alice, tt.ix()))
			assert.Equal(t, tt.code, ErrorCode(err))
			assert.Equal(t, uint64(0), counterValue(t, r, pk(1)))
		})
	}
}

func TestExecute_ExternalAccountWrite(t *testing.T) {
	r := setupTestRuntime(t)
	ctx := context.Background()
	other := pk(0xC1)
	r.Register(other, ProcessorFunc(counterProcessor))

	_, err := r.Execute(ctx, signed(t, "n-1", alice, counterIx(alice.Pubkey(), pk(1), opCreate, true)))
	require.NoError(t, err)

	ix := counterIx(alice.Pubkey(), pk(1), opIncrement, false)
	ix.ProgramID = other
	_, err = r.Execute(ctx, signed(t, "n-2", alice, ix))
	assert.Equal(t, "ExternalAccountDataModified", ErrorCode(err))
}

func TestExecute_UncodedErrorNotLogged(t *testing.T) {
	r := setupTestRuntime(t)

	receipt, err := r.Execute(context.Background(),
		signed(t, "n-1", alice, counterIx(alice.Pubkey(), pk(1), opFailPlain, false)))

	require.Error(t, err)
	assert.Equal(t, "", ErrorCode(err))
	assert.Equal(t, ir.Receipt{}, receipt)
	assert.Equal(t, 0, logLen(t, r))
}

func TestNew_ClockResumesFromStore(t *testing.T) {
	r := setupTestRuntime(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = r.Execute(ctx, signed(t, fmt.Sprintf("n-%d", i), alice, counterIx(alice.Pubkey(), pk(1), opCreate, true)))
	}

	resumed, err := New(ctx, r.Store())
	require.NoError(t, err)
	assert.Equal(t, int64(3), resumed.Clock().Current())
}

func TestExecuteBatch_ConflictingWritesSerialise(t *testing.T) {
	r := setupTestRuntime(t)
	ctx := context.Background()
	counter := pk(1)
	_, err := r.Execute(ctx, signed(t, "setup", alice, counterIx(alice.Pubkey(), counter, opCreate, true)))
	require.NoError(t, err)

	const n = 40
	txs := make([]ir.Transaction, n)
	for i := range txs {
		signer := alice
		if i%2 == 1 {
			signer = bob
		}
		txs[i] = signed(t, fmt.Sprintf("inc-%d", i), signer, counterIx(signer.Pubkey(), counter, opIncrement, false))
	}

	results, err := r.ExecuteBatch(ctx, txs)
	require.NoError(t, err)

	seqs := make(map[int64]bool)
	for _, res := range results {
		require.NoError(t, res.Err)
		seqs[res.Receipt.Seq] = true
	}
	assert.Len(t, seqs, n, "every transaction gets its own seq")
	assert.Equal(t, uint64(n), counterValue(t, r, counter), "no lost updates")
}

func TestExecuteBatch_DuplicateInBatchProcessedOnce(t *testing.T) {
	r := setupTestRuntime(t)
	tx := signed(t, "n-1", alice, counterIx(alice.Pubkey(), pk(1), opCreate, true))

	results, err := r.ExecuteBatch(context.Background(), []ir.Transaction{tx, tx, tx})
	require.NoError(t, err)

	ok, dup := 0, 0
	for _, res := range results {
		switch {
		case res.Err == nil:
			ok++
		case IsAlreadyProcessed(res.Err):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 2, dup)
}

func TestExecuteBatch_InfrastructureErrorReturned(t *testing.T) {
	r := setupTestRuntime(t)
	tx := signed(t, "n-1", alice, counterIx(alice.Pubkey(), pk(1), opFailPlain, false))

	_, err := r.ExecuteBatch(context.Background(), []ir.Transaction{tx})
	assert.Error(t, err)
}

// gateProcessor reports each arrival and then waits until release closes.
func gateProcessor(arrived chan<- address.Pubkey, release <-chan struct{}) Processor {
	return ProcessorFunc(func(ictx *InstructionContext) error {
		acc, err := ictx.Account(1)
		if err != nil {
			return err
		}
		arrived <- acc.Address
		<-release
		return nil
	})
}

func gateIx(signer, target address.Pubkey) ir.Instruction {
	return ir.Instruction{
		ProgramID: gateProgram,
		Accounts: []ir.AccountMeta{
			{Address: signer, Signer: true, Writable: true},
			{Address: target, Writable: true},
		},
	}
}

var gateProgram = pk(0xD0)

func TestExecuteBatch_DisjointProgramsRunTogether(t *testing.T) {
	r := setupTestRuntime(t)
	arrived := make(chan address.Pubkey, 2)
	release := make(chan struct{})
	r.Register(gateProgram, gateProcessor(arrived, release))

	txs := []ir.Transaction{
		signed(t, "a", alice, gateIx(alice.Pubkey(), pk(10))),
		signed(t, "b", bob, gateIx(bob.Pubkey(), pk(11))),
	}
	done := make(chan error, 1)
	go func() {
		_, err := r.ExecuteBatch(context.Background(), txs)
		done <- err
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-arrived:
		case <-time.After(2 * time.Second):
			close(release)
			t.Fatalf("only %d of 2 disjoint transactions reached their program", i)
		}
	}
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 2, logLen(t, r))
}

func TestExecute_OverlappingProgramsTakeTurns(t *testing.T) {
	r := setupTestRuntime(t)
	arrived := make(chan address.Pubkey, 2)
	release := make(chan struct{})
	r.Register(gateProgram, gateProcessor(arrived, release))

	shared := pk(10)
	txs := []ir.Transaction{
		signed(t, "a", alice, gateIx(alice.Pubkey(), shared)),
		signed(t, "b", bob, gateIx(bob.Pubkey(), shared)),
	}
	var wg sync.WaitGroup
	for _, tx := range txs {
		tx := tx
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Execute(context.Background(), tx)
			assert.NoError(t, err)
		}()
	}

	select {
	case <-arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("no transaction reached its program")
	}
	select {
	case <-arrived:
		t.Fatal("second transaction entered its program while the first held the shared address")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	<-arrived
	wg.Wait()

	records, err := r.Store().ListTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []int64{1, 2}, []int64{records[0].Seq, records[1].Seq})
}

func TestExecute_CancelledContextNotLogged(t *testing.T) {
	r := setupTestRuntime(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	receipt, err := r.Execute(ctx, signed(t, "n-1", alice, counterIx(alice.Pubkey(), pk(1), opCreate, true)))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ErrorCode(err))
	assert.Equal(t, ir.Receipt{}, receipt)
	assert.Equal(t, 0, logLen(t, r))
}

func TestExecute_UpdatedSeqStampedAtCommit(t *testing.T) {
	r := setupTestRuntime(t)
	ctx := context.Background()
	counter := pk(1)

	_, err := r.Execute(ctx, signed(t, "create", alice, counterIx(alice.Pubkey(), counter, opCreate, true)))
	require.NoError(t, err)
	_, err = r.Execute(ctx, signed(t, "bad", alice, counterIx(alice.Pubkey(), counter, opFailCoded, false)))
	require.Error(t, err)
	receipt, err := r.Execute(ctx, signed(t, "inc", bob, counterIx(bob.Pubkey(), counter, opIncrement, false)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), receipt.Seq)

	acc, err := r.Store().ReadAccount(ctx, counter)
	require.NoError(t, err)
	assert.Equal(t, int64(3), acc.UpdatedSeq)
	assert.Equal(t, uint64(1), counterValue(t, r, counter))
}
