package tasklog

import "context"

type Repository interface {
	Create(ctx context.Context, l *TaskLog) error
	// List returns log entries, optionally filtered by agent.
	List(ctx context.Context, agent string) ([]*TaskLog, error)
}
