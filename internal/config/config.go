// Package config loads agent settings from defaults, a YAML file, a .env
// file and MINIAGI_* environment variables, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MINIAGI_"

// Config is the complete agent configuration.
type Config struct {
	Model               string `yaml:"model"`
	SummarizerModel     string `yaml:"summarizer_model"`
	MaxContextTokens    int    `yaml:"max_context_tokens"`
	MaxMemoryItemTokens int    `yaml:"max_memory_item_tokens"`
	MaxResponseTokens   int    `yaml:"max_response_tokens"`
	RecallLimit         int    `yaml:"recall_limit"`
	SummaryChunkTokens  int    `yaml:"summary_chunk_tokens"`
	TokenBudget         int    `yaml:"token_budget"`
	MaxModelErrors      int    `yaml:"max_model_errors"`

	WorkDir     string `yaml:"work_dir"`
	Critic      bool   `yaml:"critic"`
	Confirm     bool   `yaml:"confirm"`
	Guard       string `yaml:"guard"`
	Journal     string `yaml:"journal"`
	MetricsAddr string `yaml:"metrics_addr"`
	PromptFile  string `yaml:"prompt_file"`

	Log     LogConfig     `yaml:"log"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Shell   ShellConfig   `yaml:"shell"`
	Fetch   FetchConfig   `yaml:"fetch"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// SandboxConfig configures execute_python.
type SandboxConfig struct {
	Backend    string `yaml:"backend"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MemoryMB   int    `yaml:"memory_mb"`
}

// ShellConfig configures execute_shell.
type ShellConfig struct {
	TimeoutSec int  `yaml:"timeout_sec"`
	CleanEnv   bool `yaml:"clean_env"`
}

// FetchConfig configures ingest_data and process_data.
type FetchConfig struct {
	TimeoutSec   int   `yaml:"timeout_sec"`
	MaxBytes     int64 `yaml:"max_bytes"`
	BlockPrivate bool  `yaml:"block_private"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model:               "gpt-4o",
		SummarizerModel:     "gpt-4o-mini",
		MaxContextTokens:    4000,
		MaxMemoryItemTokens: 2000,
		MaxResponseTokens:   1024,
		RecallLimit:         32,
		SummaryChunkTokens:  3000,
		MaxModelErrors:      3,
		WorkDir:             defaultWorkDir(),
		Log:                 LogConfig{Level: "info", Format: "json"},
		Sandbox:             SandboxConfig{Backend: "process", TimeoutSec: 60, MemoryMB: 512},
		Shell:               ShellConfig{TimeoutSec: 120},
		Fetch:               FetchConfig{TimeoutSec: 30, MaxBytes: 10 << 20},
	}
}

func defaultWorkDir() string {
	if dir := os.Getenv("WORK_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "miniagi"
	}
	return filepath.Join(home, "miniagi")
}

// Load builds the configuration. path may be empty. envFile names a dotenv
// file whose variables are added to the process environment without
// overriding it; a missing file is ignored.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration for values the agent cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.MaxContextTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_context_tokens must be positive, got %d", c.MaxContextTokens))
	}
	if c.MaxMemoryItemTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_memory_item_tokens must be positive, got %d", c.MaxMemoryItemTokens))
	}
	if c.MaxMemoryItemTokens > c.MaxContextTokens {
		errs = append(errs, fmt.Errorf("max_memory_item_tokens (%d) exceeds max_context_tokens (%d)",
			c.MaxMemoryItemTokens, c.MaxContextTokens))
	}
	if c.RecallLimit <= 0 {
		errs = append(errs, fmt.Errorf("recall_limit must be positive, got %d", c.RecallLimit))
	}
	if c.TokenBudget < 0 {
		errs = append(errs, fmt.Errorf("token_budget must not be negative, got %d", c.TokenBudget))
	}
	if c.MaxModelErrors <= 0 {
		errs = append(errs, fmt.Errorf("max_model_errors must be positive, got %d", c.MaxModelErrors))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	switch c.Sandbox.Backend {
	case "process", "none":
	default:
		errs = append(errs, fmt.Errorf("sandbox.backend must be process or none, got %q", c.Sandbox.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Prompt returns the contents of PromptFile, or "" when unset.
func (c Config) Prompt() (string, error) {
	if c.PromptFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.PromptFile)
	if err != nil {
		return "", fmt.Errorf("config: read prompt file: %w", err)
	}
	return string(data), nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"MODEL":            &cfg.Model,
		"SUMMARIZER_MODEL": &cfg.SummarizerModel,
		"WORK_DIR":         &cfg.WorkDir,
		"GUARD":            &cfg.Guard,
		"JOURNAL":          &cfg.Journal,
		"METRICS_ADDR":     &cfg.MetricsAddr,
		"PROMPT_FILE":      &cfg.PromptFile,
		"LOG_LEVEL":        &cfg.Log.Level,
		"LOG_FORMAT":       &cfg.Log.Format,
		"LOG_FILE":         &cfg.Log.File,
		"SANDBOX_BACKEND":  &cfg.Sandbox.Backend,
	}
	ints := map[string]*int{
		"MAX_CONTEXT_TOKENS":     &cfg.MaxContextTokens,
		"MAX_MEMORY_ITEM_TOKENS": &cfg.MaxMemoryItemTokens,
		"MAX_RESPONSE_TOKENS":    &cfg.MaxResponseTokens,
		"RECALL_LIMIT":           &cfg.RecallLimit,
		"SUMMARY_CHUNK_TOKENS":   &cfg.SummaryChunkTokens,
		"TOKEN_BUDGET":           &cfg.TokenBudget,
		"MAX_MODEL_ERRORS":       &cfg.MaxModelErrors,
		"SANDBOX_TIMEOUT_SEC":    &cfg.Sandbox.TimeoutSec,
		"SANDBOX_MEMORY_MB":      &cfg.Sandbox.MemoryMB,
		"SHELL_TIMEOUT_SEC":      &cfg.Shell.TimeoutSec,
		"FETCH_TIMEOUT_SEC":      &cfg.Fetch.TimeoutSec,
	}
	bools := map[string]*bool{
		"CRITIC":              &cfg.Critic,
		"CONFIRM":             &cfg.Confirm,
		"SHELL_CLEAN_ENV":     &cfg.Shell.CleanEnv,
		"FETCH_BLOCK_PRIVATE": &cfg.Fetch.BlockPrivate,
	}

	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	for name, dst := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}
	for name, dst := range bools {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}
	if v, ok := lookup(EnvPrefix + "FETCH_MAX_BYTES"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("config: %sFETCH_MAX_BYTES: %w", EnvPrefix, err)
		}
		cfg.Fetch.MaxBytes = n
	}
	return nil
}
