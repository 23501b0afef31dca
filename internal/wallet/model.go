package wallet

import "time"

const (
	TypeCredit = "credit"
	TypeDebit  = "debit"
)

// Transaction is one append-only ledger row. balance_before/balance_after
// chain across a user's history and the latest balance_after equals the
// user's wallet balance.
type Transaction struct {
	ID                 int       `db:"id" json:"id"`
	UserID             int       `db:"user_id" json:"user_id"`
	Type               string    `db:"type" json:"type"`
	AmountCents        int64     `db:"amount_cents" json:"amount_cents"`
	BalanceBeforeCents int64     `db:"balance_before_cents" json:"balance_before_cents"`
	BalanceAfterCents  int64     `db:"balance_after_cents" json:"balance_after_cents"`
	Description        string    `db:"description" json:"description"`
	Reference          string    `db:"reference" json:"reference"`
	OrderID            *int      `db:"order_id" json:"order_id,omitempty"`
	ActorID            int       `db:"actor_id" json:"actor_id"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

type BalanceResponse struct {
	UserID       int   `json:"user_id"`
	BalanceCents int64 `json:"balance_cents"`
}

type AdjustRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Operation   string `json:"operation" binding:"required,oneof=add subtract"`
	OrderID     *int   `json:"order_id,omitempty"`
	Description string `json:"description"`
}

type AdjustResponse struct {
	UserID          int   `json:"user_id"`
	NewBalanceCents int64 `json:"new_balance_cents"`
}
