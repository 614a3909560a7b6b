package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
	"github.com/roach88/socialledger/internal/store"
)

// DefaultWorkers bounds the goroutines ExecuteBatch runs at once.
const DefaultWorkers = 4

// Runtime executes signed transactions against a store.
//
// Thread-safety model:
//   - Register(): call before the first Execute, from one goroutine
//   - Execute(), ExecuteBatch(): safe from any goroutine
//
// Transactions whose declared account sets overlap on a writable address
// are serialised by the lock table; disjoint ones run their programs
// concurrently and queue only for the commit.
type Runtime struct {
	store    *store.Store
	clock    *Clock
	locks    *lockTable
	programs map[address.Pubkey]Processor
	workers  int
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithClock replaces the clock normally resumed from the store's last seq.
func WithClock(c *Clock) Option {
	return func(r *Runtime) {
		r.clock = c
	}
}

// WithWorkers sets the ExecuteBatch concurrency limit. Values below 1 are
// ignored.
func WithWorkers(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.workers = n
		}
	}
}

// New creates a Runtime over s. The clock resumes after the last logged
// transaction unless WithClock is given.
func New(ctx context.Context, s *store.Store, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		store:    s,
		locks:    newLockTable(),
		programs: make(map[address.Pubkey]Processor),
		workers:  DefaultWorkers,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.clock == nil {
		last, err := s.LastSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("new runtime: %w", err)
		}
		r.clock = NewClockAt(last)
	}
	return r, nil
}

// Register routes instructions addressed to programID to p.
func (r *Runtime) Register(programID address.Pubkey, p Processor) {
	r.programs[programID] = p
}

// Store returns the underlying store.
func (r *Runtime) Store() *store.Store {
	return r.store
}

// Clock returns the runtime's logical clock.
func (r *Runtime) Clock() *Clock {
	return r.clock
}

// Execute runs one transaction to a terminal outcome.
//
// The program runs under the address locks but outside any store
// transaction, so transactions with disjoint account sets execute their
// programs concurrently. Only the commit (duplicate check, seq, writes, log
// entry) goes through the store's single writer connection. Reads of the
// declared accounts see committed state that no other transaction can
// change while the locks are held.
//
// Outcomes:
//   - Success: all writes and the log entry commit together; err is nil.
//   - Logged failure (program error or TransactionError raised after the
//     duplicate check): no account writes, a Failed log entry commits, and
//     err is the coded failure.
//   - Rejected (bad signature or AlreadyProcessed): nothing is written;
//     the receipt has Seq 0 and err is the coded failure.
//   - Infrastructure error or cancelled ctx: nothing is written; the
//     receipt is empty and err carries no code.
func (r *Runtime) Execute(ctx context.Context, tx ir.Transaction) (ir.Receipt, error) {
	msg, err := tx.Message.Bytes()
	if err != nil {
		return ir.Receipt{}, fmt.Errorf("execute: %w", err)
	}
	id, err := ir.TransactionID(tx.Message)
	if err != nil {
		return ir.Receipt{}, fmt.Errorf("execute: %w", err)
	}

	slog.Debug("executing transaction",
		"id", id,
		"instructions", len(tx.Message.Instructions),
	)

	if err := verifySignatures(tx, msg); err != nil {
		slog.Info("transaction rejected", "id", id, "error", err)
		return rejected(id, err), err
	}

	release, err := r.locks.acquire(ctx, lockSet(tx.Message))
	if err != nil {
		return ir.Receipt{}, fmt.Errorf("execute %s: %w", id, err)
	}
	defer release()

	seen, err := r.store.HasTransaction(ctx, id)
	if err != nil {
		return ir.Receipt{}, fmt.Errorf("execute %s: %w", id, err)
	}
	if seen {
		return r.reject(id)
	}

	writes, execErr := r.run(ctx, tx.Message)
	if execErr != nil && ErrorCode(execErr) == "" {
		return ir.Receipt{}, fmt.Errorf("execute %s: %w", id, execErr)
	}

	txn, err := r.store.Begin(ctx)
	if err != nil {
		return ir.Receipt{}, fmt.Errorf("execute %s: %w", id, err)
	}
	defer txn.Rollback()

	// A transaction with no writable account takes only shared locks, so a
	// copy may have committed since the check above.
	seen, err = txn.HasTransaction(ctx, id)
	if err != nil {
		return ir.Receipt{}, fmt.Errorf("execute %s: %w", id, err)
	}
	if seen {
		return r.reject(id)
	}

	seq := r.clock.Next()
	rec := store.Record{
		ID:          id,
		Seq:         seq,
		Transaction: tx,
		Status:      ir.StatusSuccess,
	}

	if execErr != nil {
		rec.Status = ir.StatusFailed
		rec.ErrorCode = ErrorCode(execErr)
		rec.ErrorMessage = execErr.Error()
		writes = nil
	}
	for _, acc := range writes {
		acc.UpdatedSeq = seq
		if err := txn.Put(ctx, acc); err != nil {
			return ir.Receipt{}, fmt.Errorf("execute %s: %w", id, err)
		}
	}

	if _, err := txn.RecordTransaction(ctx, rec); err != nil {
		return ir.Receipt{}, fmt.Errorf("execute %s: %w", id, err)
	}
	if err := txn.Commit(); err != nil {
		return ir.Receipt{}, fmt.Errorf("execute %s: %w", id, err)
	}

	slog.Info("transaction executed",
		"id", id,
		"seq", seq,
		"status", rec.Status,
		"error_code", rec.ErrorCode,
		"writes", len(writes),
	)
	return rec.Receipt(), execErr
}

func (r *Runtime) reject(id string) (ir.Receipt, error) {
	err := newAlreadyProcessed(id)
	slog.Info("transaction rejected", "id", id, "error", err)
	return rejected(id, err), err
}

func rejected(id string, err error) ir.Receipt {
	return ir.Receipt{
		TransactionID: id,
		Status:        ir.StatusFailed,
		ErrorCode:     ErrorCode(err),
		ErrorMessage:  err.Error(),
	}
}

// run loads every declared account, dispatches the instructions in order,
// and enforces init constraints. It returns the accounts to write,
// sorted by address, without their seq. Nothing is written to the store
// here; the caller must hold the locks for m.
func (r *Runtime) run(ctx context.Context, m ir.Message) ([]store.Account, error) {
	states := make(map[address.Pubkey]*accountState)
	for _, ix := range m.Instructions {
		for _, meta := range ix.Accounts {
			if _, ok := states[meta.Address]; ok {
				continue
			}
			acc, found, err := r.store.Get(ctx, meta.Address)
			if err != nil {
				return nil, err
			}
			states[meta.Address] = &accountState{
				owner:  acc.Owner,
				data:   acc.Data,
				exists: found,
			}
		}
	}

	preexisting := make(map[address.Pubkey]bool, len(states))
	for addr, st := range states {
		preexisting[addr] = st.exists
	}

	for i, ix := range m.Instructions {
		proc, ok := r.programs[ix.ProgramID]
		if !ok {
			return nil, fmt.Errorf("instruction %d: %w", i,
				NewUnknownInstruction(ix.ProgramID, "no program registered"))
		}

		ictx := &InstructionContext{
			ProgramID: ix.ProgramID,
			Data:      ix.Data,
			Index:     i,
			accounts:  make([]*AccountInfo, len(ix.Accounts)),
		}
		for j, meta := range ix.Accounts {
			ictx.accounts[j] = &AccountInfo{
				Address:    meta.Address,
				IsSigner:   meta.Signer,
				IsWritable: meta.Writable,
				IsInit:     meta.Init,
				state:      states[meta.Address],
			}
		}

		if err := proc.Process(ictx); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
	}

	// Init metas must name fresh addresses even when the program never
	// called Create on them. Checked after the program so that its own
	// address and arithmetic checks report first.
	for _, ix := range m.Instructions {
		for _, meta := range ix.Accounts {
			if meta.Init && preexisting[meta.Address] {
				return nil, NewInitializationConflict(meta.Address)
			}
		}
	}

	var writes []store.Account
	for addr, st := range states {
		if st.dirty {
			writes = append(writes, store.Account{
				Address: addr,
				Owner:   st.owner,
				Data:    st.data,
			})
		}
	}
	slices.SortFunc(writes, func(a, b store.Account) int {
		return a.Address.Compare(b.Address)
	})
	return writes, nil
}

// Result is the outcome of one transaction in a batch.
type Result struct {
	Receipt ir.Receipt
	Err     error
}

// ExecuteBatch runs txs concurrently, at most the configured number of
// workers at a time. Mutual exclusion comes only from the lock table, so
// the order in which conflicting transactions commit is the order in which
// they acquire their locks; their seq values record that order.
//
// Logged failures and rejections are reported per transaction in the
// results. The returned error is non-nil only for an infrastructure error,
// which also cancels the transactions not yet started, including those
// still waiting for their locks.
func (r *Runtime) ExecuteBatch(ctx context.Context, txs []ir.Transaction) ([]Result, error) {
	results := make([]Result, len(txs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, tx := range txs {
		i, tx := i, tx
		g.Go(func() error {
			receipt, err := r.Execute(gctx, tx)
			results[i] = Result{Receipt: receipt, Err: err}
			if err != nil && ErrorCode(err) == "" {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("execute batch: %w", err)
	}
	return results, nil
}
