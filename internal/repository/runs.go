package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/photo-panels/constants"
)

// Run is one pipeline invocation in the ledger.
type Run struct {
	ID          uuid.UUID
	Source      string
	Status      constants.RunStatus
	TotalPages  int
	PanelPages  int
	PagesFailed int
	UnifiedPath string
	Error       string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// RunOutcome is what Finish records.
type RunOutcome struct {
	Status      constants.RunStatus
	PagesFailed int
	UnifiedPath string
	Error       string
}

type RunRepository interface {
	Start(ctx context.Context, source string, totalPages, panelPages int) (*Run, error)
	Finish(ctx context.Context, id uuid.UUID, out RunOutcome) error
	ListRecent(ctx context.Context, limit int) ([]*Run, error)
}

type runRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepository{db: db, logger: logger}
}

func (r *runRepository) Start(ctx context.Context, source string, totalPages, panelPages int) (*Run, error) {
	run := &Run{
		ID:         uuid.New(),
		Source:     source,
		Status:     constants.RunStatusRunning,
		TotalPages: totalPages,
		PanelPages: panelPages,
		StartedAt:  time.Now().UTC(),
	}
	q, args := entsql.Dialect(r.db.Dialect()).
		Insert("runs").
		Columns("id", "source", "status", "total_pages", "panel_pages", "started_at").
		Values(run.ID.String(), run.Source, string(run.Status), run.TotalPages, run.PanelPages, run.StartedAt.UnixMilli()).
		Query()
	if _, err := r.db.conn().ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("run start failed", "source", source, "error", err)
		return nil, fmt.Errorf("insert run: %w", err)
	}
	r.logger.Info("run started", "run_id", run.ID, "source", source, "panel_pages", panelPages)
	return run, nil
}

func (r *runRepository) Finish(ctx context.Context, id uuid.UUID, out RunOutcome) error {
	q, args := entsql.Dialect(r.db.Dialect()).
		Update("runs").
		Set("status", string(out.Status)).
		Set("pages_failed", out.PagesFailed).
		Set("unified_path", out.UnifiedPath).
		Set("error", out.Error).
		Set("finished_at", time.Now().UTC().UnixMilli()).
		Where(entsql.EQ("id", id.String())).
		Query()
	res, err := r.db.conn().ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("run finish failed", "run_id", id, "error", err)
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run: %s not found", id)
	}
	r.logger.Info("run finished", "run_id", id, "status", out.Status, "pages_failed", out.PagesFailed)
	return nil
}

func (r *runRepository) ListRecent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	b := entsql.Dialect(r.db.Dialect())
	q, args := b.
		Select("id", "source", "status", "total_pages", "panel_pages", "pages_failed", "unified_path", "error", "started_at", "finished_at").
		From(b.Table("runs")).
		OrderBy(entsql.Desc("started_at")).
		Limit(limit).
		Query()
	rows, err := r.db.conn().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		var (
			run      Run
			id       string
			status   string
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&id, &run.Source, &status, &run.TotalPages, &run.PanelPages, &run.PagesFailed, &run.UnifiedPath, &run.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		run.Status = constants.RunStatus(status)
		run.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			t := time.UnixMilli(finished.Int64).UTC()
			run.FinishedAt = &t
		}
		out = append(out, &run)
	}
	return out, rows.Err()
}
