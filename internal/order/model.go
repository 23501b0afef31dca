package order

import "time"

// Status is the closed set of order lifecycle states. New values require a
// schema migration; scattered string comparisons are deliberately avoided.
type Status string

const (
	StatusAwaitingPayment      Status = "awaiting_payment"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusPending              Status = "pending"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
	StatusAwaitingRefund       Status = "awaiting_refund"
	StatusRefunded             Status = "refunded"
)

const (
	PaymentWallet       = "wallet"
	PaymentBankTransfer = "bank_transfer"

	// WalletFundingLink marks an order as a wallet top-up rather than a
	// service purchase.
	WalletFundingLink = "wallet_funding"
)

var allStatuses = map[Status]bool{
	StatusAwaitingPayment:      true,
	StatusAwaitingConfirmation: true,
	StatusPending:              true,
	StatusCompleted:            true,
	StatusFailed:               true,
	StatusAwaitingRefund:       true,
	StatusRefunded:             true,
}

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, allStatuses[st]
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRefunded
}

// userTransitions are the only transitions a customer may trigger.
var userTransitions = map[Status][]Status{
	StatusAwaitingPayment: {StatusAwaitingConfirmation},
}

func CanUserTransition(from, to Status) bool {
	for _, s := range userTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanAdminSet allows any target from a non-terminal state. Re-applying the
// current status is always allowed and treated as an idempotent touch.
func CanAdminSet(from, to Status) bool {
	if from == to {
		return true
	}
	return !from.IsTerminal()
}

// PriceForQuantity rounds up: rate is per 1000 units.
func PriceForQuantity(quantity int, rateCents int64) int64 {
	return (int64(quantity)*rateCents + 999) / 1000
}

type Order struct {
	ID                int        `db:"id" json:"id"`
	OrderNo           string     `db:"order_no" json:"order_no"`
	UserID            int        `db:"user_id" json:"user_id"`
	ServiceID         *int       `db:"service_id" json:"service_id,omitempty"`
	Quantity          int        `db:"quantity" json:"quantity"`
	RateCents         int64      `db:"rate_cents" json:"rate_cents"`
	TotalCents        int64      `db:"total_cents" json:"total_cents"`
	Status            Status     `db:"status" json:"status"`
	Link              string     `db:"link" json:"link"`
	Quality           string     `db:"quality" json:"quality"`
	PaymentMethod     string     `db:"payment_method" json:"payment_method"`
	BankAccountID     *int       `db:"bank_account_id" json:"bank_account_id,omitempty"`
	AdminNotes        string     `db:"admin_notes" json:"admin_notes"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
	PaymentVerifiedAt *time.Time `db:"payment_verified_at" json:"payment_verified_at,omitempty"`
	CompletedAt       *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt       *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// IsWalletFunding: funding orders have no service and carry the sentinel
// link. The two conditions are kept in lockstep by CreateOrder.
func (o *Order) IsWalletFunding() bool {
	return o.ServiceID == nil && o.Link == WalletFundingLink
}

type CreateOrderRequest struct {
	ServiceID     *int   `json:"service_id,omitempty"`
	Quantity      int    `json:"quantity"`
	AmountCents   int64  `json:"amount_cents,omitempty"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=wallet bank_transfer"`
	Link          string `json:"link" binding:"required"`
	BankAccountID *int   `json:"bank_account_id,omitempty"`
}

type AdminSetStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

type AutoAdvanceRequest struct {
	Reason string `json:"reason"`
}
