package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var (
	ErrServiceNotFound    = errors.New("service not found")
	ErrServiceInactive    = errors.New("service is not available")
	ErrQuantityOutOfRange = errors.New("quantity is outside the allowed range")
)

const serviceColumns = `id, name, platform, category, rate_cents, min_quantity, max_quantity, quality, is_active, created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, req CreateServiceRequest) (*Service, error) {
	var svc Service
	err := r.db.GetContext(ctx, &svc, `
		INSERT INTO services (name, platform, category, rate_cents, min_quantity, max_quantity, quality)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+serviceColumns,
		req.Name, req.Platform, req.Category, req.RateCents, req.MinQuantity, req.MaxQuantity, req.Quality)
	if err != nil {
		return nil, err
	}

	return &svc, nil
}

func (r *Repository) GetByID(ctx context.Context, id int) (*Service, error) {
	var svc Service
	err := r.db.GetContext(ctx, &svc, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	return &svc, nil
}

func (r *Repository) ListActive(ctx context.Context) ([]Service, error) {
	var services []Service
	err := r.db.SelectContext(ctx, &services, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE is_active = TRUE
		ORDER BY platform, category, name
	`)
	if err != nil {
		return nil, err
	}

	return services, nil
}

func (r *Repository) ListAll(ctx context.Context) ([]Service, error) {
	var services []Service
	err := r.db.SelectContext(ctx, &services, `
		SELECT `+serviceColumns+`
		FROM services
		ORDER BY platform, category, name
	`)
	if err != nil {
		return nil, err
	}

	return services, nil
}

func (r *Repository) Update(ctx context.Context, id int, req UpdateServiceRequest) (*Service, error) {
	sets := ""
	args := []interface{}{}
	n := 1

	add := func(col string, v interface{}) {
		if sets != "" {
			sets += ", "
		}
		sets += fmt.Sprintf("%s = $%d", col, n)
		args = append(args, v)
		n++
	}

	if req.Name != nil {
		add("name", *req.Name)
	}
	if req.RateCents != nil {
		add("rate_cents", *req.RateCents)
	}
	if req.MinQuantity != nil {
		add("min_quantity", *req.MinQuantity)
	}
	if req.MaxQuantity != nil {
		add("max_quantity", *req.MaxQuantity)
	}
	if req.Quality != nil {
		add("quality", *req.Quality)
	}
	if req.IsActive != nil {
		add("is_active", *req.IsActive)
	}

	if sets == "" {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE services SET %s WHERE id = $%d RETURNING %s`, sets, n, serviceColumns)

	var svc Service
	err := r.db.GetContext(ctx, &svc, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	return &svc, nil
}

func (r *Repository) Deactivate(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE services SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrServiceNotFound
	}

	return nil
}
