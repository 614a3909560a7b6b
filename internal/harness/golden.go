package harness

import "github.com/roach88/socialledger/internal/ir"

// TraceSnapshot captures the complete observable outcome of a scenario.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	StateHash    string       `json:"state_hash"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		eventMap := map[string]any{
			"step":           ev.Step,
			"action":         ev.Action,
			"user":           ev.User,
			"transaction_id": ev.TransactionID,
			"seq":            ev.Seq,
			"outcome":        ev.Outcome,
		}
		if len(ev.Args) > 0 {
			eventMap["args"] = ev.Args
		}
		if ev.ErrorCode != "" {
			eventMap["error_code"] = ev.ErrorCode
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"state_hash":    s.StateHash,
	}
}

// Snapshot returns the canonical JSON bytes compared against golden files.
func Snapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		StateHash:    result.StateHash,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}
