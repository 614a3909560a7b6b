package harness

// Step outcomes recorded in the trace.
const (
	OutcomeSuccess  = "Success"
	OutcomeFailed   = "Failed"   // Logged with an error code
	OutcomeRejected = "Rejected" // Refused before logging
)

// TraceEvent is the observed outcome of one scenario step.
type TraceEvent struct {
	Step          int            `json:"step"`
	Action        string         `json:"action"`
	User          string         `json:"user"`
	Args          map[string]any `json:"args,omitempty"`
	TransactionID string         `json:"transaction_id"`
	Seq           int64          `json:"seq"`
	Outcome       string         `json:"outcome"`
	ErrorCode     string         `json:"error_code,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step met its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in step order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// StateHash digests every account after the last step.
	StateHash string `json:"state_hash"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step outcome.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
