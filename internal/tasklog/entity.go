package tasklog

import "time"

type Status string

const (
	StatusStarted    Status = "started"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

func (s Status) Valid() bool {
	switch s {
	case StatusStarted, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// TaskLog is a free-form progress ping, independent of the feature
// workflow. It is an append-only log, not a state machine.
type TaskLog struct {
	ID           string    `yaml:"id" json:"id"`
	Agent        string    `yaml:"agent" json:"agent"`
	Task         string    `yaml:"task" json:"task"`
	Status       Status    `yaml:"status" json:"status"`
	Dependencies []string  `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	CreatedAt    time.Time `yaml:"created_at" json:"createdAt"`
}
