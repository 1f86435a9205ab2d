package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/szaher/miniagi/internal/expr"
	"github.com/szaher/miniagi/internal/grammar"
	"github.com/szaher/miniagi/internal/llm"
	"github.com/szaher/miniagi/internal/spinner"
	"github.com/szaher/miniagi/internal/tools"
)

// ErrGuardTripped is returned when the operator's stop condition holds.
var ErrGuardTripped = errors.New("guard tripped")

// DoneSentinel typed at any prompt ends the session.
const DoneSentinel = "done"

// DefaultMaxModelErrors is the number of consecutive failed model calls
// tolerated before Run gives up.
const DefaultMaxModelErrors = 3

// Reasons reported by EndReason.
const (
	EndObjectiveDone = "objective_done"
	EndUserDone      = "user_done"
)

// unavailableUser is remembered when the agent asks a question and no
// human is attached.
const unavailableUser = "No user is available to answer. Continue without user input."

// Human answers the agent's questions.
type Human interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// HumanFunc adapts a function to the Human interface.
type HumanFunc func(ctx context.Context, prompt string) (string, error)

// Ask calls f.
func (f HumanFunc) Ask(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

// Runner drives an Agent until it is done. User-facing output goes to Out;
// logs go to Logger.
type Runner struct {
	Agent   *Agent
	Human   Human
	Out     io.Writer
	Spinner *spinner.Spinner

	Guard          *expr.Guard
	Tracker        *llm.TokenTracker
	MaxModelErrors int

	// Critic has the model review each dispatchable action once before it runs.
	Critic bool
	// Confirm asks the human before each dispatch.
	Confirm bool

	Logger *slog.Logger

	modelErrors int
	critiqued   bool
	reason      string
}

// EndReason reports why the last successful Run stopped.
func (r *Runner) EndReason() string { return r.reason }

// Run cycles think, dispatch and remember until the agent is done, the guard
// trips, the token budget is spent, the model keeps failing or ctx is done.
// It returns nil when the model or the user ended the session.
func (r *Runner) Run(ctx context.Context) error {
	if r.Out == nil {
		r.Out = io.Discard
	}
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	a := r.Agent

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.checkLimits(); err != nil {
			return err
		}

		ok, err := r.think(ctx)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		thought, command, preview := a.ReadLastAction()
		r.printf("MiniAGI: %s\nCmd: %s, Arg: %s\n", thought, command, preview)

		switch a.State() {
		case StateDone:
			r.reason = EndObjectiveDone
			r.Logger.Info("objective reported done", "cycles", a.Cycles())
			return nil
		case StateAwaitingUser:
			done, err := r.talk(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			continue
		}

		if r.Critic && !r.critiqued {
			r.critiqued = true
			if r.critique(ctx) {
				continue
			}
		}

		if r.Confirm {
			proceed, done, err := r.confirm(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			if !proceed {
				continue
			}
		}

		if command == tools.CmdMemorizeThoughts {
			r.printf("MiniAGI is thinking:\n%s\n", a.Session().LastArgument)
		}
		if err := r.Spinner.Run(ctx, a.Act); err != nil {
			return err
		}
		r.critiqued = false
	}
}

// think runs one Think. It reports false when the cycle should start over.
func (r *Runner) think(ctx context.Context) (bool, error) {
	err := r.Spinner.Run(ctx, r.Agent.Think)
	switch {
	case err == nil:
		r.modelErrors = 0
		return true, nil
	case errors.Is(err, grammar.ErrMalformedResponse):
		r.modelErrors = 0
		r.printf("Invalid LLM response, retrying...\n")
		return false, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, ErrContextBudget), errors.Is(err, ErrInvalidState), errors.Is(err, llm.ErrBudgetExceeded):
		return false, err
	}

	r.modelErrors++
	limit := r.MaxModelErrors
	if limit <= 0 {
		limit = DefaultMaxModelErrors
	}
	if r.modelErrors >= limit {
		return false, fmt.Errorf("loop: %d consecutive model errors: %w", r.modelErrors, err)
	}
	r.Logger.Warn("model call failed, retrying", "error", err, "attempt", r.modelErrors, "limit", limit)
	return false, nil
}

// talk relays a talk_to_user question. It reports true when the user ended
// the session.
func (r *Runner) talk(ctx context.Context) (bool, error) {
	a := r.Agent
	r.printf("MiniAGI: %s\n", a.Session().LastArgument)

	answer := unavailableUser
	if r.Human != nil {
		text, err := r.Human.Ask(ctx, "Your response (type done to end): ")
		switch {
		case errors.Is(err, io.EOF):
			text = DoneSentinel
		case err != nil:
			return false, fmt.Errorf("loop: ask user: %w", err)
		}
		if strings.TrimSpace(text) == DoneSentinel {
			r.endByUser()
			return true, nil
		}
		answer = text
	}

	err := r.Spinner.Run(ctx, func(ctx context.Context) error {
		return a.RespondAsUser(ctx, answer)
	})
	r.critiqued = false
	return false, err
}

// critique stores the model's review of the proposed action as criticism.
// It reports true when the agent should think again.
func (r *Runner) critique(ctx context.Context) bool {
	var review string
	err := r.Spinner.Run(ctx, func(ctx context.Context) error {
		var err error
		review, err = r.Agent.Criticize(ctx)
		return err
	})
	if err != nil || review == "" {
		if err != nil {
			r.Logger.Warn("critic pass failed", "error", err)
		}
		return false
	}
	r.printf("Criticism: %s\n", review)
	r.Agent.SetCriticism(review)
	return true
}

// confirm asks the human whether to run the proposed action. Empty input
// proceeds, the done sentinel ends the session and anything else becomes
// criticism for another think.
func (r *Runner) confirm(ctx context.Context) (proceed, done bool, err error) {
	if r.Human == nil {
		return true, false, nil
	}
	text, err := r.Human.Ask(ctx, "Press Enter to run, type done to end, or give feedback: ")
	switch {
	case errors.Is(err, io.EOF):
		text = DoneSentinel
	case err != nil:
		return false, false, fmt.Errorf("loop: confirm: %w", err)
	}
	text = strings.TrimSpace(text)
	switch text {
	case "":
		return true, false, nil
	case DoneSentinel:
		r.endByUser()
		return false, true, nil
	}
	r.Agent.SetCriticism(text)
	return false, false, nil
}

func (r *Runner) endByUser() {
	r.Agent.End()
	r.reason = EndUserDone
	r.printf("Session ended by user.\n")
}

func (r *Runner) checkLimits() error {
	var used int
	if r.Tracker != nil {
		if err := r.Tracker.CheckBudget(0); err != nil {
			return fmt.Errorf("loop: %w", err)
		}
		used = r.Tracker.Usage().Total()
	}
	if r.Guard == nil {
		return nil
	}

	a := r.Agent
	tripped, err := r.Guard.Tripped(expr.Env{
		Cycles:        a.Cycles(),
		ParseFailures: a.ParseFailures(),
		ModelErrors:   r.modelErrors,
		TokensUsed:    used,
		LastCommand:   a.Session().LastCommand,
		Records:       a.Session().Memory.Len(),
	})
	if err != nil {
		return fmt.Errorf("loop: guard: %w", err)
	}
	if tripped {
		return fmt.Errorf("loop: %w: %s", ErrGuardTripped, r.Guard.Source)
	}
	return nil
}

func (r *Runner) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.Out, format, args...)
}
