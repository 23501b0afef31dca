package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrStatusConflict means the order's status changed between read and
	// write: the guarded update matched zero rows.
	ErrStatusConflict = errors.New("order status changed, transition aborted")
)

const orderColumns = `id, order_no, user_id, service_id, quantity, rate_cents, total_cents, status, link, quality, payment_method, bank_account_id, admin_notes, created_at, updated_at, payment_verified_at, completed_at, cancelled_at`

// StatusUpdate describes one guarded transition write.
type StatusUpdate struct {
	From Status
	To   Status

	SetPaymentVerified bool
	SetCompleted       bool
	SetCancelled       bool

	// Notes, when non-nil, replaces admin_notes.
	Notes *string
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// CreateTx inserts the order inside the caller's transaction. order_no is
// assigned by the database from its own sequence.
func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, o *Order) error {
	return tx.QueryRowxContext(ctx, `
		INSERT INTO orders (user_id, service_id, quantity, rate_cents, total_cents, status, link, quality, payment_method, bank_account_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+orderColumns,
		o.UserID, o.ServiceID, o.Quantity, o.RateCents, o.TotalCents, o.Status, o.Link, o.Quality, o.PaymentMethod, o.BankAccountID,
	).StructScan(o)
}

func (r *Repository) GetByID(ctx context.Context, id int) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return &o, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID int, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}

	var orders []Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *Repository) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}

	var orders []Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *Repository) ListAll(ctx context.Context, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}

	var orders []Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

// ListOverdueAwaitingConfirmation returns confirmation-stage orders older
// than the cutoff, oldest first.
func (r *Repository) ListOverdueAwaitingConfirmation(ctx context.Context, cutoff time.Time, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 100
	}

	var orders []Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`, StatusAwaitingConfirmation, cutoff, limit)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateStatus performs the compare-and-swap transition write: the UPDATE
// only matches when the status still equals upd.From. Zero matched rows
// means a concurrent transition won; the caller gets ErrStatusConflict and
// must not apply side effects.
func (r *Repository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, orderID int, upd StatusUpdate) error {
	query := `UPDATE orders SET status = $1, updated_at = NOW()`
	args := []interface{}{upd.To}
	n := 2

	if upd.SetPaymentVerified {
		query += `, payment_verified_at = NOW()`
	}
	if upd.SetCompleted {
		query += `, completed_at = NOW()`
	}
	if upd.SetCancelled {
		query += `, cancelled_at = NOW()`
	}
	if upd.Notes != nil {
		query += fmt.Sprintf(`, admin_notes = $%d`, n)
		args = append(args, *upd.Notes)
		n++
	}

	query += fmt.Sprintf(` WHERE id = $%d AND status = $%d`, n, n+1)
	args = append(args, orderID, upd.From)

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, args...)
	} else {
		res, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStatusConflict
	}

	return nil
}

// AppendNote adds a line to admin_notes without touching status. Used for
// best-effort annotations after a rolled-back transition.
func (r *Repository) AppendNote(ctx context.Context, orderID int, note string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET admin_notes = CASE WHEN admin_notes = '' THEN $1 ELSE admin_notes || E'\n' || $1 END,
		    updated_at = NOW()
		WHERE id = $2
	`, note, orderID)
	return err
}
