package feature

import "context"

type Repository interface {
	Create(ctx context.Context, f *Feature) error
	Get(ctx context.Context, id string) (*Feature, error)
	// List returns features, optionally filtered by status.
	List(ctx context.Context, status Status) ([]*Feature, error)
	Update(ctx context.Context, f *Feature) error
}
