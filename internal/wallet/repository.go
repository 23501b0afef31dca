package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrUserNotFound      = errors.New("user not found")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// apply locks the user row, moves the balance and appends the ledger row.
// Both writes share the caller's transaction, so a failed ledger insert
// rolls the balance change back with it.
func apply(ctx context.Context, tx *sqlx.Tx, userID int, txType string, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error) {
	if amountCents <= 0 {
		return 0, ErrInvalidAmount
	}

	var before int64
	err := tx.GetContext(ctx, &before,
		`SELECT wallet_balance_cents FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	var after int64
	switch txType {
	case TypeCredit:
		after = before + amountCents
	case TypeDebit:
		after = before - amountCents
		if after < 0 {
			return 0, ErrInsufficientFunds
		}
	default:
		return 0, errors.New("unknown transaction type: " + txType)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET wallet_balance_cents = $1, updated_at = NOW() WHERE id = $2`,
		after, userID)
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (user_id, type, amount_cents, balance_before_cents, balance_after_cents, description, reference, order_id, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, userID, txType, amountCents, before, after, description, reference, orderID, actorID)
	if err != nil {
		return 0, err
	}

	return after, nil
}

// CreditTx credits inside a caller-owned transaction. The order state
// machine uses this so the status change and the credit commit together.
func (r *Repository) CreditTx(ctx context.Context, tx *sqlx.Tx, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error) {
	return apply(ctx, tx, userID, TypeCredit, amountCents, description, reference, orderID, actorID)
}

func (r *Repository) DebitTx(ctx context.Context, tx *sqlx.Tx, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error) {
	return apply(ctx, tx, userID, TypeDebit, amountCents, description, reference, orderID, actorID)
}

func (r *Repository) Credit(ctx context.Context, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error) {
	return r.run(ctx, TypeCredit, userID, amountCents, description, reference, orderID, actorID)
}

func (r *Repository) Debit(ctx context.Context, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error) {
	return r.run(ctx, TypeDebit, userID, amountCents, description, reference, orderID, actorID)
}

func (r *Repository) run(ctx context.Context, txType string, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	after, err := apply(ctx, tx, userID, txType, amountCents, description, reference, orderID, actorID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return after, nil
}

func (r *Repository) GetBalance(ctx context.Context, userID int) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance,
		`SELECT wallet_balance_cents FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	return balance, nil
}

func (r *Repository) GetTransactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	var txs []Transaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT id, user_id, type, amount_cents, balance_before_cents, balance_after_cents, description, reference, order_id, actor_id, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	return txs, nil
}

// CountByOrder reports how many ledger rows reference an order. Used to
// verify the single-credit guarantee for funding orders.
func (r *Repository) CountByOrder(ctx context.Context, orderID int) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM wallet_transactions WHERE order_id = $1`, orderID)
	if err != nil {
		return 0, err
	}

	return n, nil
}
