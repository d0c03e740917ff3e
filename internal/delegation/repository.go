package delegation

import "context"

type Repository interface {
	Create(ctx context.Context, d *Delegation) error
	Get(ctx context.Context, id string) (*Delegation, error)
	// List returns delegations, optionally filtered by task and/or agent.
	List(ctx context.Context, taskID, toAgent string) ([]*Delegation, error)
	Update(ctx context.Context, d *Delegation) error
}
