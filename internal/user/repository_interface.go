package user

import "context"

type Store interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	RoleAndActive(ctx context.Context, userID int) (string, bool, error)
	List(ctx context.Context, limit, offset int) ([]User, error)
	SetActive(ctx context.Context, userID int, active bool) error
	SetRole(ctx context.Context, userID int, role string) error
}
