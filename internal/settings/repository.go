package settings

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// Keys known to the application.
const (
	KeyAutoApproveMinutes = "auto_approve_minutes"

	DefaultAutoApproveMinutes = 1440
)

var ErrSettingNotFound = errors.New("setting not found")

type Setting struct {
	Key       string `db:"key" json:"key"`
	Value     string `db:"value" json:"value"`
	UpdatedAt string `db:"updated_at" json:"updated_at"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM admin_settings WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", err
	}

	return value, nil
}

func (r *Repository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	return err
}

func (r *Repository) List(ctx context.Context) ([]Setting, error) {
	var out []Setting
	err := r.db.SelectContext(ctx, &out, `SELECT key, value, updated_at::text AS updated_at FROM admin_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// AutoApproveMinutes falls back to the default when the key is missing or
// malformed.
func (r *Repository) AutoApproveMinutes(ctx context.Context) int {
	value, err := r.Get(ctx, KeyAutoApproveMinutes)
	if err != nil {
		return DefaultAutoApproveMinutes
	}

	minutes, err := strconv.Atoi(value)
	if err != nil || minutes <= 0 {
		return DefaultAutoApproveMinutes
	}

	return minutes
}
