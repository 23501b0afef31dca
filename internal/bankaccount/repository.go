package bankaccount

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrBankAccountNotFound = errors.New("bank account not found")

const accountColumns = `id, bank_name, account_name, account_number, is_active, sort_order, created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, req CreateBankAccountRequest) (*BankAccount, error) {
	var acc BankAccount
	err := r.db.GetContext(ctx, &acc, `
		INSERT INTO bank_accounts (bank_name, account_name, account_number, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING `+accountColumns,
		req.BankName, req.AccountName, req.AccountNumber, req.SortOrder)
	if err != nil {
		return nil, err
	}

	return &acc, nil
}

func (r *Repository) GetByID(ctx context.Context, id int) (*BankAccount, error) {
	var acc BankAccount
	err := r.db.GetContext(ctx, &acc, `SELECT `+accountColumns+` FROM bank_accounts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBankAccountNotFound
		}
		return nil, err
	}

	return &acc, nil
}

func (r *Repository) ListActive(ctx context.Context) ([]BankAccount, error) {
	var accounts []BankAccount
	err := r.db.SelectContext(ctx, &accounts, `
		SELECT `+accountColumns+`
		FROM bank_accounts
		WHERE is_active = TRUE
		ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

func (r *Repository) ListAll(ctx context.Context) ([]BankAccount, error) {
	var accounts []BankAccount
	err := r.db.SelectContext(ctx, &accounts, `
		SELECT `+accountColumns+`
		FROM bank_accounts
		ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

func (r *Repository) Update(ctx context.Context, id int, req UpdateBankAccountRequest) (*BankAccount, error) {
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

	if req.BankName != nil {
		add("bank_name", *req.BankName)
	}
	if req.AccountName != nil {
		add("account_name", *req.AccountName)
	}
	if req.AccountNumber != nil {
		add("account_number", *req.AccountNumber)
	}
	if req.IsActive != nil {
		add("is_active", *req.IsActive)
	}
	if req.SortOrder != nil {
		add("sort_order", *req.SortOrder)
	}

	if sets == "" {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE bank_accounts SET %s WHERE id = $%d RETURNING %s`, sets, n, accountColumns)

	var acc BankAccount
	err := r.db.GetContext(ctx, &acc, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBankAccountNotFound
		}
		return nil, err
	}

	return &acc, nil
}

// Delete removes the account after nulling the reference on every order
// that points at it, in one transaction. Order rows themselves survive.
func (r *Repository) Delete(ctx context.Context, id int) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET bank_account_id = NULL WHERE bank_account_id = $1`, id)
	if err != nil {
		return 0, err
	}

	detached, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM bank_accounts WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, ErrBankAccountNotFound
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return int(detached), nil
}
