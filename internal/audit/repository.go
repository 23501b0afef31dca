package audit

import (
	"context"

	"github.com/jmoiron/sqlx"

	"smmstore/internal/logger"
)

// Recorder is what services depend on; audit writes are best-effort and
// must never fail the operation they describe.
type Recorder interface {
	Record(ctx context.Context, adminID int, action, entity string, entityID int, oldValue, newValue string)
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Record(ctx context.Context, adminID int, action, entity string, entityID int, oldValue, newValue string) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_audit_log (admin_id, action, entity, entity_id, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, adminID, action, entity, entityID, oldValue, newValue)
	if err != nil {
		logger.Error("failed to write audit entry",
			"admin_id", adminID, "action", action, "entity", entity, "entity_id", entityID, "error", err)
	}
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	var entries []Entry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, admin_id, action, entity, entity_id, old_value, new_value, created_at
		FROM admin_audit_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}

	return entries, nil
}
