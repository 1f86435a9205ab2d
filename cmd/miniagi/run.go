package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/szaher/miniagi/internal/config"
	"github.com/szaher/miniagi/internal/expr"
	"github.com/szaher/miniagi/internal/journal"
	"github.com/szaher/miniagi/internal/llm"
	"github.com/szaher/miniagi/internal/loop"
	"github.com/szaher/miniagi/internal/memory"
	"github.com/szaher/miniagi/internal/sandbox"
	"github.com/szaher/miniagi/internal/spinner"
	"github.com/szaher/miniagi/internal/summarize"
	"github.com/szaher/miniagi/internal/telemetry"
	"github.com/szaher/miniagi/internal/tokens"
	"github.com/szaher/miniagi/internal/tools"
)

type runOptions struct {
	configPath string
	envFile    string

	model               string
	summarizerModel     string
	maxContextTokens    int
	maxMemoryItemTokens int
	workDir             string
	critic              bool
	confirm             bool
	guard               string
	journal             string
	metricsAddr         string
	logLevel            string
	noSpinner           bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <objective...>",
		Short: "Work towards an objective",
		Long: `Run the agent until the model reports the objective done, the user types
"done", the guard expression trips or the token budget is spent.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath, opts.envFile)
			if err != nil {
				return err
			}
			opts.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			objective := strings.Join(args, " ")
			err = runAgent(ctx, cfg, objective, opts.noSpinner, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(cmd.OutOrStdout(), "Interrupted.")
				return nil
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	f.StringVar(&opts.envFile, "env-file", ".env", "Path to a dotenv file")
	f.StringVar(&opts.model, "model", "", "Agent model (e.g. gpt-4o, claude-sonnet-4-20250514, ollama/llama3.2)")
	f.StringVar(&opts.summarizerModel, "summarizer-model", "", "Model used for summarization")
	f.IntVar(&opts.maxContextTokens, "max-context-tokens", 0, "Token budget of the context sent to the model")
	f.IntVar(&opts.maxMemoryItemTokens, "max-memory-item-tokens", 0, "Token limit of a single memory item")
	f.StringVar(&opts.workDir, "work-dir", "", "Directory commands run in")
	f.BoolVar(&opts.critic, "critic", false, "Have the model critique each action before it runs")
	f.BoolVar(&opts.confirm, "confirm", false, "Ask before running each action")
	f.StringVar(&opts.guard, "guard", "", `Stop condition, e.g. "cycles >= 50 || tokens_used > 200000"`)
	f.StringVar(&opts.journal, "journal", "", "SQLite file to record the session transcript in")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.BoolVar(&opts.noSpinner, "no-spinner", false, "Disable the progress spinner")

	return cmd
}

// apply overrides cfg with the flags set on the command line.
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("model") {
		cfg.Model = o.model
	}
	if changed("summarizer-model") {
		cfg.SummarizerModel = o.summarizerModel
	}
	if changed("max-context-tokens") {
		cfg.MaxContextTokens = o.maxContextTokens
	}
	if changed("max-memory-item-tokens") {
		cfg.MaxMemoryItemTokens = o.maxMemoryItemTokens
	}
	if changed("work-dir") {
		cfg.WorkDir = o.workDir
	}
	if changed("critic") {
		cfg.Critic = o.critic
	}
	if changed("confirm") {
		cfg.Confirm = o.confirm
	}
	if changed("guard") {
		cfg.Guard = o.guard
	}
	if changed("journal") {
		cfg.Journal = o.journal
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
	if changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
}

func runAgent(ctx context.Context, cfg config.Config, objective string, noSpinner bool, in io.Reader, out io.Writer) (err error) {
	logger, closeLog, err := openLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("work dir: %w", err)
	}
	fmt.Fprintf(out, "Working directory is %s\n", cfg.WorkDir)

	var guard *expr.Guard
	if cfg.Guard != "" {
		if guard, err = expr.Compile(cfg.Guard); err != nil {
			return fmt.Errorf("guard: %w", err)
		}
	}
	prompt, err := cfg.Prompt()
	if err != nil {
		return err
	}

	sessionID := telemetry.NewSessionID()
	ctx = telemetry.WithSessionID(ctx, sessionID)
	logger = telemetry.SessionLogger(ctx, logger, "agent")

	metrics := telemetry.NewMetrics()
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, metrics, logger)
		defer stop()
	}

	tracker := llm.NewTokenTracker(cfg.TokenBudget)
	observe := func(s llm.CallStats) {
		metrics.RecordModelCall(s.Model, s.Duration, s.Usage.InputTokens, s.Usage.OutputTokens)
		if s.Err != nil {
			logger.Warn("model call failed", "model", s.Model, "error", s.Err)
		}
	}
	agentClient, agentModel := llm.NewClientForModel(cfg.Model)
	agentLLM := llm.NewTrackingClient(agentClient, tracker, observe)

	summarizerModel := cfg.SummarizerModel
	if summarizerModel == "" {
		summarizerModel = cfg.Model
	}
	sumClient, sumModel := llm.NewClientForModel(summarizerModel)
	est := tokens.New(agentModel, logger)
	summarizer := &summarize.Chunked{
		Client:      llm.NewTrackingClient(sumClient, tracker, observe),
		Model:       sumModel,
		Estimator:   est,
		ChunkTokens: cfg.SummaryChunkTokens,
		Logger:      logger,
	}

	var (
		sink   memory.Sink
		runner *loop.Runner
	)
	if cfg.Journal != "" {
		j, openErr := journal.Open(cfg.Journal)
		if openErr != nil {
			return openErr
		}
		defer func() { _ = j.Close() }()
		if err := j.StartSession(ctx, sessionID, objective, cfg.Model); err != nil {
			return err
		}
		defer func() {
			if jerr := j.EndSession(context.WithoutCancel(ctx), sessionID, endReason(runner, err)); jerr != nil {
				logger.Warn("journal end session failed", "error", jerr)
			}
		}()
		sink = j.Sink(sessionID)
	}

	store := memory.New(memory.Options{
		Estimator:     est,
		Summarizer:    summarizer,
		MaxItemTokens: cfg.MaxMemoryItemTokens,
		Sink:          sink,
		Logger:        logger,
		OnSummarize:   metrics.RecordSummarization,
	})

	sb, err := sandbox.New(cfg.Sandbox.Backend)
	if err != nil {
		return err
	}
	shell := &tools.Shell{Dir: cfg.WorkDir, Timeout: seconds(cfg.Shell.TimeoutSec)}
	if cfg.Shell.CleanEnv {
		shell.Env = tools.SafeEnv(nil)
	}
	dispatcher := tools.NewDispatcher(tools.DefaultHandlers(tools.Deps{
		Code:              sandbox.NewPythonRunner(sb, cfg.WorkDir, cfg.Sandbox.TimeoutSec, cfg.Sandbox.MemoryMB),
		Shell:             shell,
		Fetcher:           tools.NewHTTPFileFetcher(cfg.WorkDir, seconds(cfg.Fetch.TimeoutSec), cfg.Fetch.MaxBytes, cfg.Fetch.BlockPrivate),
		Client:            agentLLM,
		Model:             agentModel,
		MaxResponseTokens: cfg.MaxResponseTokens,
		Summarizer:        summarizer,
		Estimator:         est,
		MaxContextTokens:  cfg.MaxContextTokens,
	}), logger)

	session := loop.NewSession(objective, store, est)
	session.ID = sessionID
	session.MaxContextTokens = cfg.MaxContextTokens
	session.RecallLimit = cfg.RecallLimit

	agent := loop.NewAgent(session, loop.Options{
		Client:            agentLLM,
		Model:             agentModel,
		MaxResponseTokens: cfg.MaxResponseTokens,
		Dispatcher:        dispatcher,
		Prompt:            prompt,
		Metrics:           metrics,
		Logger:            logger,
	})

	var spinOpts []spinner.Option
	if noSpinner {
		spinOpts = append(spinOpts, spinner.WithEnabled(false))
	}
	runner = &loop.Runner{
		Agent:          agent,
		Human:          newConsole(in, out),
		Out:            out,
		Spinner:        spinner.New(out, spinOpts...),
		Guard:          guard,
		Tracker:        tracker,
		MaxModelErrors: cfg.MaxModelErrors,
		Critic:         cfg.Critic,
		Confirm:        cfg.Confirm,
		Logger:         logger,
	}

	logger.Info("session started",
		"objective", objective, "model", cfg.Model, "summarizer_model", summarizerModel,
		"work_dir", cfg.WorkDir, "commands", dispatcher.Commands())
	err = runner.Run(ctx)

	usage := tracker.Usage()
	logger.Info("session ended",
		"reason", endReason(runner, err),
		"cycles", agent.Cycles(),
		"parse_failures", agent.ParseFailures(),
		"records", store.Len(),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"model_calls", tracker.Calls(),
		"budget_remaining", tracker.Remaining())
	return err
}

func endReason(r *loop.Runner, err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case err != nil:
		return "error: " + err.Error()
	case r != nil && r.EndReason() != "":
		return r.EndReason()
	}
	return "unknown"
}

func openLogger(cfg config.LogConfig) (*slog.Logger, func(), error) {
	level, err := telemetry.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	w, closeFn := io.Writer(os.Stderr), func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("log file: %w", err)
		}
		w, closeFn = f, func() { _ = f.Close() }
	}
	base := telemetry.NewLogger(w, level, cfg.Format)
	return slog.New(telemetry.NewRedactingHandler(base.Handler(), telemetry.EnvSecrets()...)), closeFn, nil
}

// serveMetrics serves /metrics in the background and returns a function
// that shuts the server down.
func serveMetrics(addr string, metrics *telemetry.Metrics, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
