package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/photo-panels/constants"
)

// PageRecord is the ledger row for one page of a run.
type PageRecord struct {
	RunID     uuid.UUID
	Page      int
	Status    constants.PageStatus
	Activity  string
	ErrorKind string
	Error     string
}

type PageRepository interface {
	Upsert(ctx context.Context, rec PageRecord) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]PageRecord, error)
}

type pageRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewPageRepository(db *DB, logger *slog.Logger) PageRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &pageRepository{db: db, logger: logger}
}

// Upsert records the latest status of a page; a later status replaces an earlier one.
func (r *pageRepository) Upsert(ctx context.Context, rec PageRecord) error {
	q, args := entsql.Dialect(r.db.Dialect()).
		Insert("page_results").
		Columns("run_id", "page", "status", "activity", "error_kind", "error", "updated_at").
		Values(rec.RunID.String(), rec.Page, string(rec.Status), rec.Activity, rec.ErrorKind, rec.Error, time.Now().UTC().UnixMilli()).
		OnConflict(
			entsql.ConflictColumns("run_id", "page"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.conn().ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("page result upsert failed", "run_id", rec.RunID, "page", rec.Page, "error", err)
		return fmt.Errorf("upsert page result: %w", err)
	}
	return nil
}

func (r *pageRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]PageRecord, error) {
	b := entsql.Dialect(r.db.Dialect())
	q, args := b.
		Select("page", "status", "activity", "error_kind", "error").
		From(b.Table("page_results")).
		Where(entsql.EQ("run_id", runID.String())).
		OrderBy("page").
		Query()
	rows, err := r.db.conn().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list page results: %w", err)
	}
	defer rows.Close()

	var out []PageRecord
	for rows.Next() {
		rec := PageRecord{RunID: runID}
		var status string
		if err := rows.Scan(&rec.Page, &status, &rec.Activity, &rec.ErrorKind, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan page result: %w", err)
		}
		rec.Status = constants.PageStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
