package catalog

import "time"

// Service is one purchasable catalogue entry, priced per 1000 units.
type Service struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Platform    string    `db:"platform" json:"platform"`
	Category    string    `db:"category" json:"category"`
	RateCents   int64     `db:"rate_cents" json:"rate_cents"`
	MinQuantity int       `db:"min_quantity" json:"min_quantity"`
	MaxQuantity int       `db:"max_quantity" json:"max_quantity"`
	Quality     string    `db:"quality" json:"quality"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type CreateServiceRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=200"`
	Platform    string `json:"platform" binding:"required"`
	Category    string `json:"category" binding:"required"`
	RateCents   int64  `json:"rate_cents" binding:"required,gt=0"`
	MinQuantity int    `json:"min_quantity" binding:"required,gt=0"`
	MaxQuantity int    `json:"max_quantity" binding:"required,gtefield=MinQuantity"`
	Quality     string `json:"quality" binding:"required,oneof=standard high premium"`
}

type UpdateServiceRequest struct {
	Name        *string `json:"name,omitempty"`
	RateCents   *int64  `json:"rate_cents,omitempty"`
	MinQuantity *int    `json:"min_quantity,omitempty"`
	MaxQuantity *int    `json:"max_quantity,omitempty"`
	Quality     *string `json:"quality,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}
