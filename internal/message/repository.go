package message

import "context"

type Repository interface {
	Create(ctx context.Context, m *Message) error
	Get(ctx context.Context, id string) (*Message, error)
	// List returns every message ordered by id. IDs are ULIDs, so the
	// order is creation order.
	List(ctx context.Context) ([]*Message, error)
	Update(ctx context.Context, m *Message) error
}
