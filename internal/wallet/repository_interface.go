package wallet

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Ledger interface {
	Credit(ctx context.Context, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error)
	Debit(ctx context.Context, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error)
	CreditTx(ctx context.Context, tx *sqlx.Tx, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error)
	DebitTx(ctx context.Context, tx *sqlx.Tx, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error)
	GetBalance(ctx context.Context, userID int) (int64, error)
	GetTransactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error)
	CountByOrder(ctx context.Context, orderID int) (int, error)
}
