package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/socialledger/internal/account"
	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/keys"
	"github.com/roach88/socialledger/internal/program"
	"github.com/roach88/socialledger/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		outcome := ev.Outcome
		if ev.ErrorCode != "" {
			outcome += " " + ev.ErrorCode
		}
		fmt.Fprintf(&buf, "  [%d] %s by %s %v: %s\n", ev.Step, ev.Action, ev.User, ev.Args, outcome)
	}
	return buf.String()
}

// AssertionContext gives assertions access to the final ledger.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Deriver address.Deriver
	Users   map[string]keys.Keypair
}

func (a *AssertionContext) pubkey(name string) address.Pubkey {
	return a.Users[name].Pubkey()
}

// resolve replaces user names with their base58 pubkeys in identity fields
// so scenarios can write owner: alice.
func (a *AssertionContext) resolve(field string, v any) any {
	switch field {
	case "owner", "author", "user":
		if name, ok := v.(string); ok {
			if k, ok := a.Users[name]; ok {
				return k.Pubkey().String()
			}
		}
	}
	return v
}

// EvaluateAssertions runs all assertions and returns their failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertProfile:
			err = assertProfile(actx, a, result.Trace)
		case AssertPost:
			err = assertPost(actx, a, result.Trace)
		case AssertLike:
			err = assertLike(actx, a, result.Trace)
		case AssertLogCount:
			err = assertLogCount(actx, a, result.Trace)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func assertProfile(actx *AssertionContext, a Assertion, trace []TraceEvent) error {
	derived, err := actx.Deriver.Profile(actx.pubkey(a.Owner))
	if err != nil {
		return err
	}
	p, err := program.FetchProfile(actx.Ctx, actx.Store, derived.Address)
	found, err := present(err)
	if err != nil {
		return err
	}
	if err := checkExists(AssertProfile, a, found, trace); err != nil || !found {
		return err
	}
	return checkFields(actx, AssertProfile, a.Expect, profileFields(p), trace)
}

func assertPost(actx *AssertionContext, a Assertion, trace []TraceEvent) error {
	derived, err := actx.Deriver.Post(actx.pubkey(a.Author), a.PostID)
	if err != nil {
		return err
	}
	p, err := program.FetchPost(actx.Ctx, actx.Store, derived.Address)
	found, err := present(err)
	if err != nil {
		return err
	}
	if err := checkExists(AssertPost, a, found, trace); err != nil || !found {
		return err
	}
	return checkFields(actx, AssertPost, a.Expect, postFields(p), trace)
}

func assertLike(actx *AssertionContext, a Assertion, trace []TraceEvent) error {
	post, err := actx.Deriver.Post(actx.pubkey(a.Author), a.PostID)
	if err != nil {
		return err
	}
	like, err := actx.Deriver.Like(post.Address, actx.pubkey(a.User))
	if err != nil {
		return err
	}
	_, err = program.FetchLike(actx.Ctx, actx.Store, like.Address)
	found, err := present(err)
	if err != nil {
		return err
	}
	return checkExists(AssertLike, a, found, trace)
}

func assertLogCount(actx *AssertionContext, a Assertion, trace []TraceEvent) error {
	records, err := actx.Store.ListTransactions(actx.Ctx)
	if err != nil {
		return err
	}
	n := 0
	for _, r := range records {
		if a.Status == "" || string(r.Status) == a.Status {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertLogCount,
			Expected: fmt.Sprintf("%d logged transactions (status %q)", a.Count, a.Status),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceCount checks how many steps ran action with the given outcome.
// Outcome matches either the outcome name or the error code.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Action != a.Action {
			continue
		}
		if a.Outcome == "" || a.Outcome == ev.Outcome || a.Outcome == ev.ErrorCode {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s appears %d times (outcome %q)", a.Action, a.Count, a.Outcome),
			Actual:   fmt.Sprintf("appears %d times", n),
			Trace:    trace,
		}
	}
	return nil
}

// present maps a not-found read to (false, nil).
func present(err error) (bool, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func checkExists(kind string, a Assertion, found bool, trace []TraceEvent) error {
	want := true
	if a.Exists != nil {
		want = *a.Exists
	}
	if found != want {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("exists=%t", want),
			Actual:   fmt.Sprintf("exists=%t", found),
			Trace:    trace,
		}
	}
	return nil
}

// checkFields compares expected fields against a record (subset semantics).
func checkFields(actx *AssertionContext, kind string, expect map[string]any, actual map[string]any, trace []TraceEvent) error {
	fields := make([]string, 0, len(expect))
	for k := range expect {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var mismatches []string
	for _, k := range fields {
		got, ok := actual[k]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("%s: no such field", k))
			continue
		}
		want := actx.resolve(k, expect[k])
		if !valuesEqual(got, want) {
			mismatches = append(mismatches, fmt.Sprintf("%s: got %v, want %v", k, got, want))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%v", expect),
			Actual:   strings.Join(mismatches, "; "),
			Trace:    trace,
		}
	}
	return nil
}

// valuesEqual compares by formatted value, so YAML ints match uint64 fields.
func valuesEqual(actual, expected any) bool {
	return fmt.Sprint(actual) == fmt.Sprint(expected)
}

func profileFields(p account.Profile) map[string]any {
	return map[string]any{
		"owner":        p.Owner.String(),
		"username":     p.Username,
		"last_post_id": p.LastPostID,
		"bump":         p.Bump,
	}
}

func postFields(p account.Post) map[string]any {
	return map[string]any{
		"author":     p.Author.String(),
		"post_id":    p.PostID,
		"content":    p.Content,
		"like_count": p.LikeCount,
		"bump":       p.Bump,
	}
}
