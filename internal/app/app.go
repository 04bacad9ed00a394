// Package app wires configuration, the run ledger and the model client into a pipeline
// Runner for the command-line entry points.
package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/llm"
	"github.com/joseph-ayodele/photo-panels/internal/llm/openai"
	"github.com/joseph-ayodele/photo-panels/internal/pipeline"
	"github.com/joseph-ayodele/photo-panels/internal/repository"
)

// NewLogger returns the process logger. JSON is meant for the daemon, text for terminals.
func NewLogger(w io.Writer, json, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey && len(groups) == 0 {
			return slog.Attr{}
		}
		return a
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Services are the long-lived collaborators of one process.
type Services struct {
	Config common.Config
	Runner *pipeline.Runner
	DB     *repository.DB // nil when the ledger is disabled or unreachable
	Runs   repository.RunRepository
	Pages  repository.PageRepository

	analyzer llm.Analyzer
	opts     []pipeline.Option
}

// OpenLedger connects the run ledger when enabled. A ledger that cannot be opened is
// logged and skipped; runs proceed without it.
func OpenLedger(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) *repository.DB {
	if !cfg.Enabled {
		return nil
	}
	db, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		logger.Warn("app.ledger.unavailable", "driver", cfg.Driver, "error", err)
		return nil
	}
	return db
}

// Build wires a Runner backed by the OpenAI-compatible client. It fails only when the model
// credential is missing.
func Build(ctx context.Context, cfg common.Config, logger *slog.Logger) (*Services, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	client := openai.NewClient(openai.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	}, logger)
	return BuildWithModel(ctx, cfg, client, logger), nil
}

// BuildWithModel wires a Runner around an arbitrary model.
func BuildWithModel(ctx context.Context, cfg common.Config, model llm.Model, logger *slog.Logger) *Services {
	s := &Services{Config: cfg}
	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if db := OpenLedger(ctx, cfg.Database, logger); db != nil {
		s.DB = db
		s.Runs = repository.NewRunRepository(db, logger)
		s.Pages = repository.NewPageRepository(db, logger)
		opts = append(opts, pipeline.WithLedger(s.Runs, s.Pages))
	}
	s.analyzer = llm.NewOrchestrator(model, cfg.LLM, logger)
	s.opts = opts
	s.Runner = pipeline.NewRunner(cfg, s.analyzer, opts...)
	return s
}

// RunInto runs source with its artifacts under outDir, sharing the model and ledger.
func (s *Services) RunInto(ctx context.Context, source, outDir string) (*pipeline.Report, error) {
	cfg := s.Config
	cfg.Output.Dir = outDir
	return pipeline.NewRunner(cfg, s.analyzer, s.opts...).Run(ctx, source)
}

// Close releases the ledger connection.
func (s *Services) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
