package message

import "time"

// Broadcast is the recipient value that addresses a message to every
// registered agent.
const Broadcast = "all"

type Type string

const (
	TypeContext    Type = "context"
	TypeTask       Type = "task"
	TypeQuestion   Type = "question"
	TypeCompletion Type = "completion"
	TypeError      Type = "error"
)

func (t Type) Valid() bool {
	switch t {
	case TypeContext, TypeTask, TypeQuestion, TypeCompletion, TypeError:
		return true
	}
	return false
}

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

type Message struct {
	ID        string            `yaml:"id" json:"id"`
	From      string            `yaml:"from" json:"from"`
	To        string            `yaml:"to" json:"to"`
	Type      Type              `yaml:"type" json:"type"`
	Content   string            `yaml:"content" json:"content"`
	Priority  Priority          `yaml:"priority" json:"priority"`
	Timestamp time.Time         `yaml:"timestamp" json:"timestamp"`
	Read      bool              `yaml:"read" json:"read"`
	ThreadID  string            `yaml:"thread_id,omitempty" json:"threadId,omitempty"`
	Metadata  map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// VisibleTo reports whether the message shows up in agentID's queries.
// Broadcasts are visible to everyone except their own sender.
func (m *Message) VisibleTo(agentID string) bool {
	if m.To == Broadcast {
		return m.From != agentID
	}
	return m.To == agentID
}
