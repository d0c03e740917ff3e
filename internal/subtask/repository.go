package subtask

import "context"

type Repository interface {
	Create(ctx context.Context, st *Subtask) error
	Get(ctx context.Context, id string) (*Subtask, error)
	// List returns subtasks, optionally filtered by owning task.
	List(ctx context.Context, taskID string) ([]*Subtask, error)
	Update(ctx context.Context, st *Subtask) error
}
