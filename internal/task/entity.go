package task

import "time"

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

type Task struct {
	ID             string    `yaml:"id" json:"id"`
	FeatureID      string    `yaml:"feature_id" json:"featureId"`
	Description    string    `yaml:"description" json:"description"`
	AssignedAgents []string  `yaml:"assigned_agents" json:"assignedAgents,omitempty"`
	Status         Status    `yaml:"status" json:"status"`
	CreatedBy      string    `yaml:"created_by" json:"createdBy"`
	CreatedAt      time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `yaml:"updated_at" json:"updatedAt"`
}

// AssignedTo reports whether the agent is in the task's assignee set.
func (t *Task) AssignedTo(agentID string) bool {
	for _, a := range t.AssignedAgents {
		if a == agentID {
			return true
		}
	}
	return false
}
