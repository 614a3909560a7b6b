package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/socialledger/internal/store"
)

// # Replay and Idempotency
//
// Idempotency is STRUCTURAL, not a special replay mode. Replay submits the
// logged transactions to a runtime through the ordinary Execute path.
//
// Two mechanisms make this safe:
//
//  1. Content-addressed ids. The transaction id hashes the canonical message
//     bytes, so the same signed message always has the same id.
//  2. The log's primary key. Execute rejects an id already in the log with
//     AlreadyProcessed before any program code runs, and RecordTransaction
//     ignores duplicates.
//
// Replaying a log into a fresh store therefore reproduces every outcome and
// the same final state; replaying it into the store it came from changes
// nothing.

// ReplayMismatch is a transaction whose replayed outcome differs from the
// recorded one.
type ReplayMismatch struct {
	Seq           int64  `json:"seq"`
	TransactionID string `json:"transaction_id"`
	Recorded      string `json:"recorded"`
	Replayed      string `json:"replayed"`
}

// ReplayResult summarises a replay.
type ReplayResult struct {
	Transactions    int              `json:"transactions"`
	Mismatches      []ReplayMismatch `json:"mismatches"`
	SourceStateHash string           `json:"source_state_hash"`
	ReplayStateHash string           `json:"replay_state_hash"`
}

// Identical reports whether every outcome and the final state matched.
func (r ReplayResult) Identical() bool {
	return len(r.Mismatches) == 0 && r.SourceStateHash == r.ReplayStateHash
}

// Replay re-executes the log of src, in seq order, on dst. dst must have
// the same programs registered as the runtime that produced src.
func Replay(ctx context.Context, src *store.Store, dst *Runtime) (ReplayResult, error) {
	records, err := src.ListTransactions(ctx)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	result := ReplayResult{
		Transactions: len(records),
		Mismatches:   []ReplayMismatch{},
	}

	for _, rec := range records {
		receipt, err := dst.Execute(ctx, rec.Transaction)
		if err != nil && ErrorCode(err) == "" {
			return result, fmt.Errorf("replay seq %d: %w", rec.Seq, err)
		}

		recorded := outcome(string(rec.Status), rec.ErrorCode)
		replayed := outcome(string(receipt.Status), receipt.ErrorCode)
		if recorded != replayed {
			slog.Warn("replay mismatch",
				"seq", rec.Seq,
				"id", rec.ID,
				"recorded", recorded,
				"replayed", replayed,
			)
			result.Mismatches = append(result.Mismatches, ReplayMismatch{
				Seq:           rec.Seq,
				TransactionID: rec.ID,
				Recorded:      recorded,
				Replayed:      replayed,
			})
		}
	}

	if result.SourceStateHash, err = src.StateHash(ctx); err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	if result.ReplayStateHash, err = dst.Store().StateHash(ctx); err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}

	slog.Info("replay finished",
		"transactions", result.Transactions,
		"mismatches", len(result.Mismatches),
		"identical", result.Identical(),
	)
	return result, nil
}

func outcome(status, code string) string {
	if code == "" {
		return status
	}
	return status + ":" + code
}
