package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/socialledger/internal/account"
	"github.com/roach88/socialledger/internal/address"
	"github.com/roach88/socialledger/internal/ir"
	"github.com/roach88/socialledger/internal/keys"
	"github.com/roach88/socialledger/internal/program"
	"github.com/roach88/socialledger/internal/runtime"
	"github.com/roach88/socialledger/internal/store"
)

// Harness is the scenario execution engine. It owns an in-memory ledger
// for the duration of one scenario.
type Harness struct {
	store   *store.Store
	runtime *runtime.Runtime
	program *program.Program
	client  *program.Client
	users   map[string]keys.Keypair
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Create fresh in-memory database and runtime
//  2. Write presets
//  3. Submit steps, checking each outcome against its expectation
//  4. Evaluate assertions and record the state hash
//
// An error means the scenario could not run at all; expectation and
// assertion failures are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with step logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	rt, err := runtime.New(ctx, st, runtime.WithWorkers(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	prog := program.New(address.ProgramID)
	rt.Register(prog.ID(), prog)

	h := &Harness{
		store:   st,
		runtime: rt,
		program: prog,
		client:  program.NewClient(prog.ID(), runtime.NewSequentialGenerator(scenario.Name)),
		users:   make(map[string]keys.Keypair, len(scenario.Users)),
		logger:  logger,
	}
	for _, name := range scenario.Users {
		h.users[name] = keys.FromSeedPhrase(name)
	}

	if err := h.applyPresets(ctx, scenario.Presets); err != nil {
		return nil, fmt.Errorf("failed to apply presets: %w", err)
	}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, Deriver: prog.Deriver(), Users: h.users}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	result.StateHash, err = st.StateHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to hash state: %w", err)
	}
	return result, nil
}

// applyPresets writes records at their derived addresses, bypassing the
// program and the transaction log.
func (h *Harness) applyPresets(ctx context.Context, presets []Preset) error {
	if len(presets) == 0 {
		return nil
	}

	txn, err := h.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	deriver := h.program.Deriver()
	for i, p := range presets {
		var (
			derived address.Derivation
			data    []byte
		)
		switch {
		case p.Profile != nil:
			owner := h.users[p.Profile.Owner].Pubkey()
			if derived, err = deriver.Profile(owner); err != nil {
				return fmt.Errorf("preset %d: %w", i, err)
			}
			rec := account.Profile{
				Owner:      owner,
				Username:   p.Profile.Username,
				LastPostID: p.Profile.LastPostID,
				Bump:       derived.Bump,
			}
			data, err = rec.MarshalBinary()
		default:
			author := h.users[p.Post.Author].Pubkey()
			if derived, err = deriver.Post(author, p.Post.PostID); err != nil {
				return fmt.Errorf("preset %d: %w", i, err)
			}
			rec := account.Post{
				Author:    author,
				PostID:    p.Post.PostID,
				Content:   p.Post.Content,
				LikeCount: p.Post.LikeCount,
				Bump:      derived.Bump,
			}
			data, err = rec.MarshalBinary()
		}
		if err != nil {
			return fmt.Errorf("preset %d: %w", i, err)
		}
		if err := txn.Put(ctx, store.Account{Address: derived.Address, Owner: h.program.ID(), Data: data}); err != nil {
			return fmt.Errorf("preset %d: %w", i, err)
		}
	}
	return txn.Commit()
}

// executeSteps submits every step and checks its expectation.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		signer := h.users[step.User]

		msg, args, err := h.buildMessage(ctx, step, signer.Pubkey())
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		tx, err := keys.SignTransaction(msg, signer)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		receipt, execErr := h.runtime.Execute(ctx, tx)
		ev := TraceEvent{
			Step:          i,
			Action:        step.Action,
			User:          step.User,
			Args:          args,
			TransactionID: receipt.TransactionID,
			Seq:           receipt.Seq,
		}
		switch {
		case execErr == nil:
			ev.Outcome = OutcomeSuccess
		case runtime.ErrorCode(execErr) == "":
			return fmt.Errorf("step %d: %w", i, execErr)
		case receipt.Seq == 0:
			ev.Outcome = OutcomeRejected
			ev.ErrorCode = runtime.ErrorCode(execErr)
		default:
			ev.Outcome = OutcomeFailed
			ev.ErrorCode = runtime.ErrorCode(execErr)
		}
		result.AddTrace(ev)

		got := ExpectOK
		if ev.ErrorCode != "" {
			got = ev.ErrorCode
		}
		if want := step.Expected(); got != want {
			result.AddError(fmt.Sprintf("step %d (%s by %s): expected %s, got %s", i, step.Action, step.User, want, got))
		}

		h.logger.Info("scenario step completed",
			"step", i,
			"action", step.Action,
			"user", step.User,
			"tx_id", ev.TransactionID,
			"outcome", ev.Outcome,
			"error_code", ev.ErrorCode,
		)
	}
	return nil
}

// buildMessage turns a step into a message plus the arguments recorded in
// the trace.
func (h *Harness) buildMessage(ctx context.Context, step Step, user address.Pubkey) (ir.Message, map[string]any, error) {
	switch step.Action {
	case program.CreateProfileIx:
		msg, err := h.client.CreateProfile(user, step.Username)
		return msg, map[string]any{"username": step.Username}, err

	case program.CreatePostIx:
		postID, err := h.postID(ctx, step, user)
		if err != nil {
			return ir.Message{}, nil, err
		}
		msg, err := h.client.CreatePost(user, postID, step.Content)
		return msg, map[string]any{"post_id": postID, "content": step.Content}, err

	case program.LikePostIx:
		author := h.users[step.Author].Pubkey()
		post, err := h.program.Deriver().Post(author, *step.PostID)
		if err != nil {
			return ir.Message{}, nil, err
		}
		msg, err := h.client.LikePost(user, post.Address)
		return msg, map[string]any{"author": step.Author, "post_id": *step.PostID}, err
	}
	return ir.Message{}, nil, fmt.Errorf("unknown action %q", step.Action)
}

// postID is the explicit id of a create_post step, or last_post_id + 1 as
// a client would compute it. The addition wraps so an exhausted counter
// still reaches the program, which reports the overflow.
func (h *Harness) postID(ctx context.Context, step Step, user address.Pubkey) (uint64, error) {
	if step.PostID != nil {
		return *step.PostID, nil
	}
	derived, err := h.program.Deriver().Profile(user)
	if err != nil {
		return 0, err
	}
	profile, err := program.FetchProfile(ctx, h.store, derived.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return profile.LastPostID + 1, nil
}
