package delegation

import "time"

type State string

const (
	StatePending  State = "pending"
	StateAccepted State = "accepted"
	StateDeclined State = "declined"
)

// Open reports whether the delegation still binds the (task, agent)
// pair. At most one open delegation may exist per pair.
func (s State) Open() bool {
	return s == StatePending || s == StateAccepted
}

type Delegation struct {
	ID        string    `yaml:"id" json:"id"`
	TaskID    string    `yaml:"task_id" json:"taskId"`
	ToAgent   string    `yaml:"to_agent" json:"toAgent"`
	State     State     `yaml:"state" json:"state"`
	CreatedAt time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updatedAt"`
}
