package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/szaher/miniagi/internal/grammar"
	"github.com/szaher/miniagi/internal/llm"
	"github.com/szaher/miniagi/internal/telemetry"
	"github.com/szaher/miniagi/internal/tools"
)

// State is a step of the think/act cycle.
type State int

const (
	StateThinking State = iota
	StateParsed
	StateDispatching
	StateRemembering
	StateAwaitingUser
	StateRetryThink
	StateDone
)

var stateNames = [...]string{
	StateThinking:     "thinking",
	StateParsed:       "parsed",
	StateDispatching:  "dispatching",
	StateRemembering:  "remembering",
	StateAwaitingUser: "awaiting_user",
	StateRetryThink:   "retry_think",
	StateDone:         "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ErrInvalidState is returned when an operation is called in a state that
// does not allow it.
var ErrInvalidState = errors.New("invalid agent state")

// previewRunes is how much of an argument ReadLastAction shows.
const previewRunes = 64

// DefaultMaxResponseTokens caps each model reply when Options leaves it unset.
const DefaultMaxResponseTokens = 1024

// Options configures an Agent.
type Options struct {
	Client            llm.Client
	Model             string
	MaxResponseTokens int
	Dispatcher        *tools.Dispatcher

	// Prompt is the agent prompt template; DefaultPrompt when empty.
	Prompt string
	// CriticPrompt is the critic template; CriticPrompt when empty.
	CriticPrompt string

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Agent runs the think/act state machine over one Session. It is not safe
// for concurrent use.
type Agent struct {
	session *Session
	opts    Options
	state   State

	cycles        int
	parseFailures int
}

// NewAgent creates an agent in StateThinking.
func NewAgent(session *Session, opts Options) *Agent {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.CriticPrompt == "" {
		opts.CriticPrompt = CriticPrompt
	}
	if opts.MaxResponseTokens <= 0 {
		opts.MaxResponseTokens = DefaultMaxResponseTokens
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Agent{session: session, opts: opts, state: StateThinking}
}

// Session returns the agent's session.
func (a *Agent) Session() *Session { return a.session }

// State returns the current state.
func (a *Agent) State() State { return a.state }

// Cycles returns the number of Think calls so far.
func (a *Agent) Cycles() int { return a.cycles }

// ParseFailures returns the number of malformed model responses so far.
func (a *Agent) ParseFailures() int { return a.parseFailures }

// Think asks the model for the next action. A malformed response leaves the
// agent in StateRetryThink with memory untouched and returns an error
// wrapping grammar.ErrMalformedResponse. Thinking again from StateParsed
// discards the previous proposal.
func (a *Agent) Think(ctx context.Context) error {
	switch a.state {
	case StateThinking, StateRetryThink, StateParsed:
	default:
		return fmt.Errorf("loop: think: %w: %s", ErrInvalidState, a.state)
	}
	a.state = StateThinking
	a.cycles++
	if m := a.opts.Metrics; m != nil {
		m.RecordCycle()
	}

	history, err := BuildContext(a.session)
	if err != nil {
		return fmt.Errorf("loop: think: %w", err)
	}
	if m := a.opts.Metrics; m != nil {
		m.SetContextTokens(a.session.Estimator.Estimate(history))
	}

	prompt := RenderPrompt(a.opts.Prompt, a.session.Objective, history)
	reply, err := llm.Complete(ctx, a.opts.Client, a.opts.Model, prompt, a.opts.MaxResponseTokens)
	if err != nil {
		return fmt.Errorf("loop: think: %w", err)
	}

	action, err := grammar.Parse(reply)
	if err != nil {
		a.state = StateRetryThink
		a.parseFailures++
		if m := a.opts.Metrics; m != nil {
			m.RecordParseFailure()
		}
		a.opts.Logger.Warn("malformed model response", "error", err, "response_len", len(reply))
		return fmt.Errorf("loop: think: %w", err)
	}

	a.session.LastThought = action.Reasoning
	a.session.LastCommand = action.Command
	a.session.LastArgument = action.Argument
	a.opts.Logger.Debug("action proposed", "command", action.Command, "argument_len", len(action.Argument))

	switch action.Command {
	case tools.CmdTalkToUser:
		a.state = StateAwaitingUser
	case tools.CmdDone:
		a.state = StateDone
	default:
		a.state = StateParsed
	}
	return nil
}

// ReadLastAction returns the last proposal. Arguments of 64 runes or more
// are cut to 64 runes plus "..."; newlines are shown as \n.
func (a *Agent) ReadLastAction() (thought, command, preview string) {
	arg := []rune(a.session.LastArgument)
	preview = string(arg)
	if len(arg) >= previewRunes {
		preview = string(arg[:previewRunes]) + "..."
	}
	preview = strings.ReplaceAll(preview, "\n", `\n`)
	return a.session.LastThought, a.session.LastCommand, preview
}

// Act dispatches the proposed command and remembers its observation.
// Handler failures are observations, not errors.
func (a *Agent) Act(ctx context.Context) error {
	if a.state != StateParsed || tools.IsControl(a.session.LastCommand) {
		return fmt.Errorf("loop: act: %w: %s", ErrInvalidState, a.state)
	}

	a.state = StateDispatching
	res := a.opts.Dispatcher.Dispatch(ctx, a.session.LastCommand, a.session.LastArgument)
	if m := a.opts.Metrics; m != nil {
		m.RecordCommand(res.Command, string(res.Status))
	}

	a.remember(ctx, res.Observation)
	return nil
}

// RespondAsUser records text as the observation of the pending talk_to_user
// command.
func (a *Agent) RespondAsUser(ctx context.Context, text string) error {
	if a.state != StateAwaitingUser {
		return fmt.Errorf("loop: respond: %w: %s", ErrInvalidState, a.state)
	}
	a.remember(ctx, text)
	return nil
}

func (a *Agent) remember(ctx context.Context, observation string) {
	a.state = StateRemembering
	s := a.session
	s.Memory.Append(ctx, s.LastCommand, s.LastArgument, observation)
	if err := s.Memory.UpdateSummary(ctx); err != nil {
		a.opts.Logger.Warn("summary update failed", "error", err, "pending", s.Memory.Pending())
	}
	s.Criticism = ""
	a.state = StateThinking
}

// End stops the agent.
func (a *Agent) End() { a.state = StateDone }

// Criticize asks the model to review the proposed action against the
// current context. It does not change state.
func (a *Agent) Criticize(ctx context.Context) (string, error) {
	if a.state != StateParsed {
		return "", fmt.Errorf("loop: criticize: %w: %s", ErrInvalidState, a.state)
	}
	history, err := BuildContext(a.session)
	if err != nil {
		return "", fmt.Errorf("loop: criticize: %w", err)
	}
	s := a.session
	prompt := RenderPrompt(a.opts.CriticPrompt, s.Objective, history) +
		"<r>" + s.LastThought + "</r><c>" + s.LastCommand + "</c>\n" + s.LastArgument
	reply, err := llm.Complete(ctx, a.opts.Client, a.opts.Model, prompt, a.opts.MaxResponseTokens)
	if err != nil {
		return "", fmt.Errorf("loop: criticize: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// SetCriticism sets the criticism included in the next context.
func (a *Agent) SetCriticism(text string) {
	a.session.Criticism = text
}
