package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"statusboard/internal/model"
	"statusboard/pkg/metrics"
)

const projectTable = "project_status"

// ErrStorage wraps every failure to read or write a project record.
var ErrStorage = errors.New("project storage error")

// DBTX is the subset of *pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ProjectRepository struct {
	db     DBTX
	logger *zap.Logger
	now    func() time.Time
}

func NewProjectRepository(db DBTX, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (r *ProjectRepository) EnsureSchema(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS project_status (
            project_id     TEXT PRIMARY KEY,
            update_bullets TEXT NOT NULL DEFAULT '',
            metric_value   DOUBLE PRECISION NOT NULL DEFAULT 0,
            metric_delta   DOUBLE PRECISION NOT NULL DEFAULT 0,
            milestones     JSONB,
            risk           TEXT NOT NULL DEFAULT '',
            update_summary TEXT NOT NULL DEFAULT '',
            last_updated   TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `
	if _, err := r.db.Exec(ctx, query); err != nil {
		r.logger.Error("Failed to ensure project_status schema", zap.Error(err))
		return fmt.Errorf("%w: ensure schema: %v", ErrStorage, err)
	}
	r.logger.Info("project_status schema ready")
	return nil
}

// Load returns the stored record for projectID. A missing row yields the
// defaults record and no error. On a storage fault the defaults record is
// still returned, together with the error, so callers can keep going.
func (r *ProjectRepository) Load(ctx context.Context, projectID string) (*model.ProjectRecord, error) {
	r.logger.Debug("Loading project", zap.String("project_id", projectID))
	start := r.now()

	query := `
        SELECT COALESCE(update_bullets, ''), COALESCE(update_summary, ''),
               COALESCE(metric_value, 0), COALESCE(metric_delta, 0),
               COALESCE(risk, ''), milestones, last_updated
        FROM project_status
        WHERE project_id = $1
    `
	rec := model.NewProjectRecord(projectID)
	var rawMilestones []byte
	var lastUpdated *time.Time
	err := r.db.QueryRow(ctx, query, projectID).Scan(
		&rec.UpdateBullets,
		&rec.UpdateSummary,
		&rec.MetricValue,
		&rec.MetricDelta,
		&rec.Risk,
		&rawMilestones,
		&lastUpdated,
	)
	metrics.RecordDBQueryDuration("load", projectTable, r.now().Sub(start))

	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.Debug("Project has no stored row, using defaults", zap.String("project_id", projectID))
		return model.NewProjectRecord(projectID), nil
	}
	if err != nil {
		r.logger.Error("Failed to load project",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
		return model.NewProjectRecord(projectID), fmt.Errorf("%w: load %s: %v", ErrStorage, projectID, err)
	}

	rec.Milestones = r.decodeMilestones(projectID, rawMilestones)
	if lastUpdated != nil {
		rec.LastUpdated = lastUpdated.UTC()
	}
	return rec, nil
}

// Save upserts rec in a single statement and stamps last_updated with the
// current UTC time. The caller's record is never modified; the returned copy
// carries the new timestamp.
func (r *ProjectRepository) Save(ctx context.Context, rec *model.ProjectRecord) (*model.ProjectRecord, error) {
	r.logger.Debug("Saving project",
		zap.String("project_id", rec.ProjectID),
		zap.Int("milestone_count", len(rec.Milestones)),
	)

	milestones, err := json.Marshal(rec.Milestones)
	if err != nil {
		r.logger.Error("Failed to encode milestones", zap.Error(err))
		metrics.IncrementProjectSave("failed")
		return nil, fmt.Errorf("%w: encode milestones: %v", ErrStorage, err)
	}

	saved := rec.Clone()
	saved.LastUpdated = r.now().UTC()

	query := `
        INSERT INTO project_status (project_id, update_bullets, metric_value, metric_delta,
                                    milestones, risk, update_summary, last_updated)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (project_id) DO UPDATE SET
            update_bullets = EXCLUDED.update_bullets,
            metric_value   = EXCLUDED.metric_value,
            metric_delta   = EXCLUDED.metric_delta,
            milestones     = EXCLUDED.milestones,
            risk           = EXCLUDED.risk,
            update_summary = EXCLUDED.update_summary,
            last_updated   = EXCLUDED.last_updated
    `
	start := r.now()
	_, err = r.db.Exec(ctx, query,
		saved.ProjectID,
		saved.UpdateBullets,
		saved.MetricValue,
		saved.MetricDelta,
		milestones,
		saved.Risk,
		saved.UpdateSummary,
		saved.LastUpdated,
	)
	metrics.RecordDBQueryDuration("save", projectTable, r.now().Sub(start))

	if err != nil {
		r.logger.Error("Failed to save project",
			zap.String("project_id", rec.ProjectID),
			zap.Error(err),
		)
		metrics.IncrementProjectSave("failed")
		return nil, fmt.Errorf("%w: save %s: %v", ErrStorage, rec.ProjectID, err)
	}

	metrics.IncrementProjectSave("success")
	r.logger.Info("Project saved successfully",
		zap.String("project_id", saved.ProjectID),
		zap.Time("last_updated", saved.LastUpdated),
	)
	return saved, nil
}

// decodeMilestones never fails: anything unreadable is treated as no
// milestones recorded.
func (r *ProjectRepository) decodeMilestones(projectID string, raw []byte) model.Milestones {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return model.Milestones{}
	}

	// Older rows hold the list JSON-encoded inside a string.
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			r.logger.Debug("Discarding unreadable milestones", zap.String("project_id", projectID), zap.Error(err))
			return model.Milestones{}
		}
		raw = bytes.TrimSpace([]byte(inner))
		if len(raw) == 0 {
			return model.Milestones{}
		}
	}

	if raw[0] == '{' {
		return model.Milestones{}
	}

	var list model.Milestones
	if err := json.Unmarshal(raw, &list); err != nil {
		r.logger.Debug("Discarding unreadable milestones", zap.String("project_id", projectID), zap.Error(err))
		return model.Milestones{}
	}
	if list == nil {
		return model.Milestones{}
	}
	return list
}
