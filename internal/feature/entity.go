package feature

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// CanAdvanceTo enforces the forward-only lifecycle:
// active → completed → archived, no reopening.
func (s Status) CanAdvanceTo(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusCompleted || next == StatusArchived
	case StatusCompleted:
		return next == StatusArchived
	default:
		return false
	}
}

type Feature struct {
	ID          string    `yaml:"id" json:"id"`
	Title       string    `yaml:"title" json:"title"`
	Description string    `yaml:"description" json:"description"`
	Status      Status    `yaml:"status" json:"status"`
	Priority    string    `yaml:"priority" json:"priority"`
	CreatedBy   string    `yaml:"created_by" json:"createdBy"`
	CreatedAt   time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updatedAt"`
}
