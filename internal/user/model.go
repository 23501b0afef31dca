package user

import "time"

const (
	RoleUser       = "user"
	RoleSubAdmin   = "sub_admin"
	RoleSuperAdmin = "super_admin"
)

// IsAdminRole reports whether a role may use the admin surface.
func IsAdminRole(role string) bool {
	return role == RoleSubAdmin || role == RoleSuperAdmin
}

type User struct {
	ID                 int       `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Email              string    `db:"email" json:"email"`
	PasswordHash       string    `db:"password_hash" json:"-"`
	Role               string    `db:"role" json:"role"`
	WalletBalanceCents int64     `db:"wallet_balance_cents" json:"wallet_balance_cents"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}
