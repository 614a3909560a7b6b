package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
)

// Account is one stored record.
type Account struct {
	Address    address.Pubkey
	Owner      address.Pubkey // Program that created the account
	Data       []byte
	UpdatedSeq int64
}

// Record is one entry of the transaction log.
type Record struct {
	ID           string
	Seq          int64
	Transaction  ir.Transaction
	Status       ir.Status
	ErrorCode    string
	ErrorMessage string
}

// Receipt returns the outcome part of the record.
func (r Record) Receipt() ir.Receipt {
	return ir.Receipt{
		TransactionID: r.ID,
		Seq:           r.Seq,
		Status:        r.Status,
		ErrorCode:     r.ErrorCode,
		ErrorMessage:  r.ErrorMessage,
	}
}

// Txn is an open SQLite transaction. All account writes and the log entry
// of one ledger transaction go through a single Txn, so they commit or roll
// back together.
//
// A Txn holds the store's only connection: do not call Store methods while
// one is open on the same goroutine.
type Txn struct {
	tx *sql.Tx
}

// Begin opens a new Txn. Blocks until the connection is free.
func (s *Store) Begin(ctx context.Context) (*Txn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Txn{tx: tx}, nil
}

// Get returns the account at addr. found is false when no record exists.
func (t *Txn) Get(ctx context.Context, addr address.Pubkey) (acc Account, found bool, err error) {
	acc, err = readAccount(ctx, t.tx, addr)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return acc, true, nil
}

// Exists reports whether addr already holds a record.
func (t *Txn) Exists(ctx context.Context, addr address.Pubkey) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM accounts WHERE address = ?
	`, addr.Bytes()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("account exists: %w", err)
	}
	return n > 0, nil
}

// Put creates or overwrites an account. The owner is fixed by the first
// write; later writes only replace data and updated_seq.
func (t *Txn) Put(ctx context.Context, acc Account) error {
	if acc.Data == nil {
		acc.Data = []byte{}
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (address, owner, data, updated_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			data = excluded.data,
			updated_seq = excluded.updated_seq
	`,
		acc.Address.Bytes(),
		acc.Owner.Bytes(),
		acc.Data,
		acc.UpdatedSeq,
	)
	if err != nil {
		return fmt.Errorf("put account %s: %w", acc.Address, err)
	}
	return nil
}

// HasTransaction reports whether the log already holds id.
func (t *Txn) HasTransaction(ctx context.Context, id string) (bool, error) {
	return hasTransaction(ctx, t.tx, id)
}

// RecordTransaction appends rec to the log.
// Uses ON CONFLICT(id) DO NOTHING for idempotency; inserted is false when
// the id was already present.
func (t *Txn) RecordTransaction(ctx context.Context, rec Record) (inserted bool, err error) {
	msg, err := marshalMessage(rec.Transaction.Message)
	if err != nil {
		return false, fmt.Errorf("record transaction: %w", err)
	}
	sigs, err := marshalSignatures(rec.Transaction.Signatures)
	if err != nil {
		return false, fmt.Errorf("record transaction: %w", err)
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions
		(id, seq, message, signatures, status, error_code, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		msg,
		sigs,
		string(rec.Status),
		rec.ErrorCode,
		rec.ErrorMessage,
	)
	if err != nil {
		return false, fmt.Errorf("record transaction: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record transaction: rows affected: %w", err)
	}
	return n > 0, nil
}

// Commit makes all writes of the Txn durable.
func (t *Txn) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards all writes. Safe to call after Commit (no-op).
func (t *Txn) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
