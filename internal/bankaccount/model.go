package bankaccount

import "time"

// BankAccount is a manual-transfer payment destination shown to users at
// checkout. Deleting one must not touch order history.
type BankAccount struct {
	ID            int       `db:"id" json:"id"`
	BankName      string    `db:"bank_name" json:"bank_name"`
	AccountName   string    `db:"account_name" json:"account_name"`
	AccountNumber string    `db:"account_number" json:"account_number"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	SortOrder     int       `db:"sort_order" json:"sort_order"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type CreateBankAccountRequest struct {
	BankName      string `json:"bank_name" binding:"required"`
	AccountName   string `json:"account_name" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
	SortOrder     int    `json:"sort_order"`
}

type UpdateBankAccountRequest struct {
	BankName      *string `json:"bank_name,omitempty"`
	AccountName   *string `json:"account_name,omitempty"`
	AccountNumber *string `json:"account_number,omitempty"`
	IsActive      *bool   `json:"is_active,omitempty"`
	SortOrder     *int    `json:"sort_order,omitempty"`
}
