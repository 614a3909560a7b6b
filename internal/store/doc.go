// Package store provides SQLite-backed durable storage for ledger state.
//
// Two tables:
//   - accounts: one row per derived address, holding the encoded record
//   - transactions: append-only log of every executed transaction
//
// # Invariants
//
// Accounts are never deleted. Put overwrites data in place and never changes
// the owning program recorded on first write.
//
// The transaction id is the primary key, so recording the same transaction
// twice is a no-op (ON CONFLICT DO NOTHING). The runtime relies on this for
// structural idempotency.
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Reads are
// ordered by seq or by raw address bytes so replays see identical results.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The pool is limited to a single connection, so a Txn holds the only writer
// until it commits or rolls back.
package store
