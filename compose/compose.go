// Package compose resolves the configured backend topology into the
// concrete capability the pipeline runs against. Configuration is read
// once at startup; runtime reconfiguration is not supported.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/notewell/inference"
	"github.com/notewell/inference/budget"
	"github.com/notewell/inference/fallback"
	"github.com/notewell/inference/gemini"
	"github.com/notewell/inference/ollama"
	"github.com/notewell/inference/pipeline"
)

// Config is the environment-level configuration surface.
type Config struct {
	Topology inference.Topology

	GeminiAPIKey string
	GeminiModel  string // "" = backend default

	OllamaBaseURL string // "" = backend default
	OllamaModel   string // "" = backend default

	Synthesis    bool
	SafetyPolicy pipeline.SafetyPolicy

	DailyCeilingUSD float64
	Rates           budget.Rates
	QueueSize       int

	Logger *slog.Logger // nil = slog.Default()
}

// Environment variable names read by FromEnv.
const (
	EnvTopology     = "INFERENCE_TOPOLOGY"
	EnvSynthesis    = "INFERENCE_SYNTHESIS"
	EnvSafetyPolicy = "INFERENCE_SAFETY_POLICY"
	EnvDailyCeiling = "INFERENCE_DAILY_CEILING_USD"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvGeminiModel  = "GEMINI_MODEL"
	EnvOllamaURL    = "OLLAMA_BASE_URL"
	EnvOllamaModel  = "OLLAMA_MODEL"
)

// defaultRates approximate Gemini 2.5 Pro pricing in USD per million
// tokens. Override per deployment when pricing changes.
var defaultRates = budget.Rates{
	InputPerMillion:  1.25,
	OutputPerMillion: 10.0,
}

// FromEnv reads the configuration surface from the environment. A .env
// file in the working directory is loaded first when present.
func FromEnv() (Config, error) {
	_ = godotenv.Load() // best-effort; env vars win

	cfg := Config{
		GeminiAPIKey:  os.Getenv(EnvGeminiAPIKey),
		GeminiModel:   os.Getenv(EnvGeminiModel),
		OllamaBaseURL: os.Getenv(EnvOllamaURL),
		OllamaModel:   os.Getenv(EnvOllamaModel),
		Rates:         defaultRates,
	}

	if s := os.Getenv(EnvTopology); s != "" {
		t, err := inference.ParseTopology(s)
		if err != nil {
			return Config{}, fmt.Errorf("compose: %s: %w", EnvTopology, err)
		}
		cfg.Topology = t
	}

	if s := os.Getenv(EnvSynthesis); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return Config{}, fmt.Errorf("compose: %s must be a boolean, got %q: %w", EnvSynthesis, s, inference.ErrValidation)
		}
		cfg.Synthesis = v
	}

	switch s := os.Getenv(EnvSafetyPolicy); s {
	case "", "open":
		cfg.SafetyPolicy = pipeline.FailOpen
	case "closed":
		cfg.SafetyPolicy = pipeline.FailClosed
	default:
		return Config{}, fmt.Errorf("compose: %s must be \"open\" or \"closed\", got %q: %w", EnvSafetyPolicy, s, inference.ErrValidation)
	}

	if s := os.Getenv(EnvDailyCeiling); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return Config{}, fmt.Errorf("compose: %s must be a non-negative number, got %q: %w", EnvDailyCeiling, s, inference.ErrValidation)
		}
		cfg.DailyCeilingUSD = v
	}

	return cfg, nil
}

// System is the fully composed subsystem.
type System struct {
	Backend  inference.Backend
	Budget   *budget.Controller
	Recorder *budget.Recorder
	Pipeline *pipeline.Pipeline
}

// Close stops the accounting side channel, draining queued records.
func (s *System) Close() {
	if s.Recorder != nil {
		s.Recorder.Close()
	}
}

// Resolve builds the composed backend capability and pipeline for the
// configured topology. The topology is resolved here, once — never
// branched on per call.
func Resolve(ctx context.Context, cfg Config) (*System, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sys := &System{
		Budget: budget.New(
			budget.Limits{DailyCeilingUSD: cfg.DailyCeilingUSD},
			cfg.Rates,
			budget.WithLogger(logger),
		),
	}
	sys.Recorder = budget.NewRecorder(sys.Budget, cfg.QueueSize, logger)

	local := func() *ollama.Client {
		var opts []ollama.Option
		if cfg.OllamaBaseURL != "" {
			opts = append(opts, ollama.WithBaseURL(cfg.OllamaBaseURL))
		}
		if cfg.OllamaModel != "" {
			opts = append(opts, ollama.WithModel(cfg.OllamaModel))
		}
		return ollama.New(opts...)
	}

	cloud := func() (*gemini.Client, error) {
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("compose: topology %s requires %s: %w", cfg.Topology, EnvGeminiAPIKey, inference.ErrValidation)
		}
		var opts []gemini.Option
		if cfg.GeminiModel != "" {
			opts = append(opts, gemini.WithModel(cfg.GeminiModel))
		}
		return gemini.New(ctx, cfg.GeminiAPIKey, opts...)
	}

	wrapperOpts := func(extra ...fallback.Option) []fallback.Option {
		return append([]fallback.Option{
			fallback.WithGate(sys.Budget),
			fallback.WithUsage(sys.Recorder),
			fallback.WithLogger(logger),
		}, extra...)
	}

	switch cfg.Topology {
	case inference.TopologyLocalOnly:
		sys.Backend = local()

	case inference.TopologyLocalFirst:
		c, err := cloud()
		if err != nil {
			return nil, err
		}
		sys.Backend = fallback.New(local(), wrapperOpts(fallback.WithSecondary(c))...)

	case inference.TopologyCloudFirst:
		c, err := cloud()
		if err != nil {
			return nil, err
		}
		sys.Backend = fallback.New(c, wrapperOpts(fallback.WithSecondary(local()))...)

	case inference.TopologyCloudOnly:
		c, err := cloud()
		if err != nil {
			return nil, err
		}
		sys.Backend = fallback.New(c, wrapperOpts()...)

	default:
		return nil, fmt.Errorf("compose: unknown topology %d: %w", int(cfg.Topology), inference.ErrValidation)
	}

	sys.Pipeline = pipeline.New(sys.Backend,
		pipeline.WithSynthesis(cfg.Synthesis),
		pipeline.WithSafetyPolicy(cfg.SafetyPolicy),
		pipeline.WithLogger(logger),
	)
	return sys, nil
}
