// Package ir provides the canonical representation of ledger transactions.
//
// This package contains wire types and their deterministic encoding only.
// Other internal packages import ir; ir imports nothing internal except
// address. Keeping the representation here lets the runtime, the store and
// the CLI agree byte-for-byte on what was signed and what was logged.
//
// Key constraints:
//   - Messages are signed over their RFC 8785 canonical JSON, never over
//     encoding/json output (map order, HTML escaping and number formats differ).
//   - No float types anywhere; counters are integers.
//   - Transaction ids are content-addressed with domain separation, so a
//     replayed transaction is recognised by id alone.
//   - Ordering uses the runtime's logical seq, never wall-clock time.
package ir
