package contextstore

import "context"

type Repository interface {
	// Set writes the entry to its slot, assigning version 1 on first
	// write and incrementing by exactly one on every overwrite. The
	// read-modify-write is serialized per repository, so concurrent
	// sets to the same slot cannot lose an update.
	Set(ctx context.Context, e *Entry) (*Entry, error)
	Get(ctx context.Context, namespace, key string) (*Entry, error)
	List(ctx context.Context, namespace string) ([]*Entry, error)
	Delete(ctx context.Context, namespace, key string) error
}
