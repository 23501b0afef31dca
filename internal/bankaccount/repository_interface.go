package bankaccount

import "context"

type Store interface {
	Create(ctx context.Context, req CreateBankAccountRequest) (*BankAccount, error)
	GetByID(ctx context.Context, id int) (*BankAccount, error)
	ListActive(ctx context.Context) ([]BankAccount, error)
	ListAll(ctx context.Context) ([]BankAccount, error)
	Update(ctx context.Context, id int, req UpdateBankAccountRequest) (*BankAccount, error)
	Delete(ctx context.Context, id int) (int, error)
}
