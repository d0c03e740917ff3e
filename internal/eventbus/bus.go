package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	AgentRegistered   EventType = "agent.registered"
	AgentOffline      EventType = "agent.offline"
	MessageSent       EventType = "message.sent"
	ContextUpdated    EventType = "context.updated"
	FeatureCreated    EventType = "feature.created"
	FeatureCompleted  EventType = "feature.completed"
	FeatureArchived   EventType = "feature.archived"
	TaskCreated       EventType = "task.created"
	DelegationCreated EventType = "delegation.created"
	DelegationUpdated EventType = "delegation.updated"
	SubtaskCreated    EventType = "subtask.created"
	SubtaskUpdated    EventType = "subtask.updated"
	CollectionChanged EventType = "collection.changed"
)

type Event struct {
	ID         string
	Type       EventType
	ResourceID string
	Metadata   map[string]string
	CreatedAt  time.Time
}

// Bus is a best-effort in-process notification channel. Publishing
// never blocks and never fails: subscribers with a full buffer miss the
// event. Records in storage remain the source of truth.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

func (b *Bus) PublishNew(eventType EventType, resourceID string, metadata map[string]string) {
	event := &Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		ResourceID: resourceID,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}
	b.Publish(event)
}
