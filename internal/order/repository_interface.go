package order

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Store interface {
	DB() *sqlx.DB
	CreateTx(ctx context.Context, tx *sqlx.Tx, o *Order) error
	GetByID(ctx context.Context, id int) (*Order, error)
	ListByUser(ctx context.Context, userID int, limit, offset int) ([]Order, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Order, error)
	ListAll(ctx context.Context, limit, offset int) ([]Order, error)
	ListOverdueAwaitingConfirmation(ctx context.Context, cutoff time.Time, limit int) ([]Order, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, orderID int, upd StatusUpdate) error
	AppendNote(ctx context.Context, orderID int, note string) error
}
