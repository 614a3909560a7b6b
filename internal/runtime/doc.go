// Package runtime executes signed ledger transactions.
//
// It supplies the three guarantees program code relies on:
//
//   - Verified signers: every signer meta carries a valid ed25519 signature
//     over the canonical message bytes.
//   - Address uniqueness on first write: creating an account that already
//     holds data fails the transaction with InitializationConflict, and so
//     does any Init meta naming an address that held data before the
//     transaction started.
//   - Mutual exclusion: a lock table keyed by address. Writable addresses are
//     locked exclusively, read-only ones shared, always in address order.
//
// Execution Flow:
//  1. Compute the content-addressed id and verify signatures
//  2. Acquire address locks
//  3. Reject an id already logged
//  4. Load declared accounts, dispatch instructions, check Init constraints
//  5. Open a store transaction, re-check the id, stamp the seq (Clock.Next)
//  6. Commit all writes plus the log entry, or only a Failed log entry
//
// Steps 1-4 hold no store transaction, so programs of transactions with
// disjoint account sets run at the same time. Only steps 5 and 6 queue on the
// store's single connection.
//
// Programs never touch the store. They read and write through an
// InstructionContext and the runtime persists their writes only when every
// instruction of the transaction succeeds.
package runtime
