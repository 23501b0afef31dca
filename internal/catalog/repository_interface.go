package catalog

import "context"

type Store interface {
	Create(ctx context.Context, req CreateServiceRequest) (*Service, error)
	GetByID(ctx context.Context, id int) (*Service, error)
	ListActive(ctx context.Context) ([]Service, error)
	ListAll(ctx context.Context) ([]Service, error)
	Update(ctx context.Context, id int, req UpdateServiceRequest) (*Service, error)
	Deactivate(ctx context.Context, id int) error
}
