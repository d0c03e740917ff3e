package agent

import "time"

type Status string

const (
	StatusActive  Status = "active"
	StatusIdle    Status = "idle"
	StatusOffline Status = "offline"
)

type Agent struct {
	ID               string    `yaml:"id" json:"id"`
	ProjectPath      string    `yaml:"project_path" json:"projectPath"`
	Role             string    `yaml:"role" json:"role"`
	Capabilities     []string  `yaml:"capabilities" json:"capabilities"`
	Status           Status    `yaml:"status" json:"status"`
	LastSeen         time.Time `yaml:"last_seen" json:"lastSeen"`
	CollaboratesWith []string  `yaml:"collaborates_with" json:"collaboratesWith,omitempty"`
	CreatedAt        time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `yaml:"updated_at" json:"updatedAt"`
}

// Stale reports whether the agent has not been seen within threshold.
func (a *Agent) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(a.LastSeen) > threshold
}
