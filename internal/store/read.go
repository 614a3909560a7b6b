package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
)

// ReadAccount retrieves a single account by address.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadAccount(ctx context.Context, addr address.Pubkey) (Account, error) {
	return readAccount(ctx, s.db, addr)
}

// Get is ReadAccount with a found flag in place of sql.ErrNoRows.
// Outside a Txn it sees only committed state.
func (s *Store) Get(ctx context.Context, addr address.Pubkey) (acc Account, found bool, err error) {
	acc, err = readAccount(ctx, s.db, addr)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return acc, true, nil
}

func readAccount(ctx context.Context, q queryer, addr address.Pubkey) (Account, error) {
	row := q.QueryRowContext(ctx, `
		SELECT address, owner, data, updated_seq
		FROM accounts
		WHERE address = ?
	`, addr.Bytes())

	acc, err := scanAccount(row)
	if err != nil {
		return Account{}, fmt.Errorf("read account %s: %w", addr, err)
	}
	return acc, nil
}

// ListAccounts returns every account created by owner, ordered by address
// bytes. Returns an empty slice (not nil) when there are none.
func (s *Store) ListAccounts(ctx context.Context, owner address.Pubkey) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, owner, data, updated_seq
		FROM accounts
		WHERE owner = ?
		ORDER BY address ASC
	`, owner.Bytes())
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	return collectAccounts(rows)
}

// AllAccounts returns every account, ordered by address bytes.
func (s *Store) AllAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, owner, data, updated_seq
		FROM accounts
		ORDER BY address ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all accounts: %w", err)
	}
	return collectAccounts(rows)
}

func collectAccounts(rows *sql.Rows) ([]Account, error) {
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// StateHash digests every account in address order. Two stores with the
// same accounts produce the same hash regardless of the seq they were
// written at.
func (s *Store) StateHash(ctx context.Context) (string, error) {
	accounts, err := s.AllAccounts(ctx)
	if err != nil {
		return "", fmt.Errorf("state hash: %w", err)
	}
	entries := make([]ir.AccountEntry, len(accounts))
	for i, acc := range accounts {
		entries[i] = ir.AccountEntry{Address: acc.Address, Data: acc.Data}
	}
	return ir.StateHash(entries), nil
}

// HasTransaction reports whether the log already holds id.
func (s *Store) HasTransaction(ctx context.Context, id string) (bool, error) {
	return hasTransaction(ctx, s.db, id)
}

func hasTransaction(ctx context.Context, q queryer, id string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE id = ?
	`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check transaction: %w", err)
	}
	return n > 0, nil
}

// ReadTransaction retrieves a single log entry by id.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadTransaction(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, message, signatures, status, error_code, error_message
		FROM transactions
		WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("read transaction %s: %w", id, err)
	}
	return rec, nil
}

// ListTransactions returns the whole log ordered by seq ASC.
// Used for replay and for the log command.
func (s *Store) ListTransactions(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, message, signatures, status, error_code, error_message
		FROM transactions
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return records, nil
}

// LastSeq returns the highest seq in the log, or 0 for an empty log.
// The runtime starts its clock here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM transactions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (Account, error) {
	var addrRaw, ownerRaw []byte
	var acc Account
	if err := row.Scan(&addrRaw, &ownerRaw, &acc.Data, &acc.UpdatedSeq); err != nil {
		return Account{}, err
	}

	var err error
	if acc.Address, err = unmarshalPubkey("address", addrRaw); err != nil {
		return Account{}, err
	}
	if acc.Owner, err = unmarshalPubkey("owner", ownerRaw); err != nil {
		return Account{}, err
	}
	if acc.Data == nil {
		acc.Data = []byte{}
	}
	return acc, nil
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var msg, sigs, status string
	if err := row.Scan(&rec.ID, &rec.Seq, &msg, &sigs, &status, &rec.ErrorCode, &rec.ErrorMessage); err != nil {
		return Record{}, err
	}

	var err error
	if rec.Transaction.Message, err = unmarshalMessage(msg); err != nil {
		return Record{}, err
	}
	if rec.Transaction.Signatures, err = unmarshalSignatures(sigs); err != nil {
		return Record{}, err
	}
	rec.Status = ir.Status(status)
	return rec, nil
}
