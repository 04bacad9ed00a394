package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/organize"
	"github.com/joseph-ayodele/photo-panels/internal/repository"
)

const ledgerTimeout = 5 * time.Second

// ledger records one run. A nil or failed ledger turns every call into a no-op: the run
// ledger is bookkeeping and never fails a run.
type ledger struct {
	runs   repository.RunRepository
	pages  repository.PageRepository
	runID  uuid.UUID
	ok     bool
	logger *slog.Logger
}

func startLedger(ctx context.Context, runs repository.RunRepository, pages repository.PageRepository, source string, total, panels int, logger *slog.Logger) *ledger {
	l := &ledger{runs: runs, pages: pages, runID: uuid.New(), logger: logger}
	if runs == nil {
		return l
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	run, err := runs.Start(ctx, source, total, panels)
	if err != nil {
		logger.Warn("pipeline.ledger.disabled", "error", err)
		return l
	}
	l.runID = run.ID
	l.ok = true
	return l
}

func (l *ledger) RunID() string { return l.runID.String() }

func (l *ledger) page(ctx context.Context, r organize.PageResult, status constants.PageStatus) {
	if !l.ok || l.pages == nil {
		return
	}
	rec := repository.PageRecord{RunID: l.runID, Page: r.PageIndex, Status: status}
	if r.Record != nil {
		rec.Activity = r.Record.Actividad
	}
	if f := r.Failure; f != nil {
		rec.Status = constants.PageStatusFailed
		rec.ErrorKind = string(f.Kind)
		rec.Error = f.Error()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := l.pages.Upsert(ctx, rec); err != nil {
		l.logger.Warn("pipeline.ledger.page_failed", "page", r.PageIndex, "error", err)
	}
}

func (l *ledger) finish(ctx context.Context, out repository.RunOutcome) {
	if !l.ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := l.runs.Finish(ctx, l.runID, out); err != nil {
		l.logger.Warn("pipeline.ledger.finish_failed", "error", err)
	}
}
