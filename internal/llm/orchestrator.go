package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/photo-panels/internal/common"
)

// Orchestrator runs one bounded, retried model call per page.
type Orchestrator struct {
	model  Model
	cfg    common.LLMConfig
	system string
	schema map[string]any
	logger *slog.Logger
}

func NewOrchestrator(model Model, cfg common.LLMConfig, logger *slog.Logger) *Orchestrator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 45 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		model:  model,
		cfg:    cfg,
		system: BuildSystemPrompt(),
		schema: BuildAnalysisJSONSchema(),
		logger: logger,
	}
}

// plan lists the model used by each attempt: the primary model 1+Retries times, then the
// fallback model once when configured.
func (o *Orchestrator) plan() []string {
	models := make([]string, 0, o.cfg.Retries+2)
	for i := 0; i <= o.cfg.Retries; i++ {
		models = append(models, o.cfg.Model)
	}
	if o.cfg.FallbackModel != "" && o.cfg.FallbackModel != o.cfg.Model {
		models = append(models, o.cfg.FallbackModel)
	}
	return models
}

// Analyze implements Analyzer. Every attempt sends the same prompt; a timeout, transport
// failure or invalid response moves on to the next attempt. Cancelling ctx stops at once.
func (o *Orchestrator) Analyze(ctx context.Context, req AnalyzeRequest) (AnalysisRecord, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	user := BuildUserPrompt(req)
	plan := o.plan()

	o.logger.Info("llm.analyze.start",
		"req_id", rid,
		"run_id", common.RunIDFromContext(ctx),
		"page", req.PageIndex,
		"model", o.cfg.Model,
		"text_len", len(req.Text),
		"max_attempts", len(plan),
	)

	var lastRaw []byte
	var lastErr error
	for attempt, model := range plan {
		if attempt > 0 && o.cfg.RetryBackoff > 0 {
			if err := sleep(ctx, o.cfg.RetryBackoff); err != nil {
				return AnalysisRecord{}, lastRaw, o.fail(req, attempt, lastRaw, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return AnalysisRecord{}, lastRaw, o.fail(req, attempt, lastRaw, err)
		}

		rec, raw, err := o.attempt(ctx, model, user)
		if err == nil {
			o.logger.Info("llm.analyze.ok",
				"req_id", rid,
				"page", req.PageIndex,
				"attempt", attempt+1,
				"model", model,
				"actividad", rec.Actividad,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return rec, raw, nil
		}
		if raw != nil {
			lastRaw = raw
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return AnalysisRecord{}, lastRaw, o.fail(req, attempt+1, lastRaw, ctxErr)
		}
		o.logger.Warn("llm.analyze.retry",
			"req_id", rid,
			"page", req.PageIndex,
			"attempt", attempt+1,
			"model", model,
			"error", err,
		)
	}

	o.logger.Error("llm.analyze.exhausted",
		"req_id", rid,
		"page", req.PageIndex,
		"attempts", len(plan),
		"error", lastErr,
		"raw", string(lastRaw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return AnalysisRecord{}, lastRaw, o.fail(req, len(plan), lastRaw, lastErr)
}

func (o *Orchestrator) attempt(ctx context.Context, model, user string) (AnalysisRecord, []byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	raw, err := o.model.Complete(callCtx, CompletionRequest{
		Model:       model,
		System:      o.system,
		User:        user,
		Schema:      o.schema,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return AnalysisRecord{}, raw, fmt.Errorf("call timed out after %s: %w", o.cfg.CallTimeout, context.DeadlineExceeded)
		}
		return AnalysisRecord{}, raw, fmt.Errorf("model call: %w", err)
	}
	rec, content, err := ParseAnalysis(raw)
	if err != nil {
		return AnalysisRecord{}, content, fmt.Errorf("invalid response: %w", err)
	}
	return rec, content, nil
}

func (o *Orchestrator) fail(req AnalyzeRequest, attempts int, raw []byte, cause error) error {
	return &AnalysisError{PageIndex: req.PageIndex, Attempts: attempts, RawResponse: raw, Cause: cause}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
