package message

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/agenthub/internal/eventbus"
	"github.com/kazz187/agenthub/pkg/cerr"
)

const (
	syncPollInterval   = 500 * time.Millisecond
	DefaultSyncTimeout = 30 * time.Second
	MaxSyncTimeout     = 120 * time.Second
)

type Service struct {
	repo Repository
	bus  *eventbus.Bus
}

func NewService(repo Repository, bus *eventbus.Bus) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
	}
}

type SendParams struct {
	From     string
	To       string
	Type     Type
	Content  string
	Priority Priority
	ThreadID string
	Metadata map[string]string
}

func (s *Service) Send(ctx context.Context, params SendParams) (*Message, error) {
	if params.From == "" || params.To == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "from and to are required", nil)
	}
	if !params.Type.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid message type %q", params.Type), nil)
	}
	if params.Priority == "" {
		params.Priority = PriorityNormal
	}
	if !params.Priority.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid priority %q", params.Priority), nil)
	}

	m := &Message{
		ID:        ulid.Make().String(),
		From:      params.From,
		To:        params.To,
		Type:      params.Type,
		Content:   params.Content,
		Priority:  params.Priority,
		Timestamp: time.Now(),
		ThreadID:  params.ThreadID,
		Metadata:  params.Metadata,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.bus.PublishNew(eventbus.MessageSent, m.ID, map[string]string{
		"from": m.From,
		"to":   m.To,
		"type": string(m.Type),
	})
	return m, nil
}

type QueryParams struct {
	AgentID string
	Type    Type
	Since   time.Time
	// MarkAsRead persists read=true on returned direct messages. The
	// pull model defaults this to on; broadcasts are never mutated.
	MarkAsRead bool
}

type QueryResult struct {
	Count    int
	Messages []*Message
}

func (s *Service) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	if params.AgentID == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "agent is required", nil)
	}
	if params.Type != "" && !params.Type.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid message type %q", params.Type), nil)
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*Message
	for _, m := range all {
		if !m.VisibleTo(params.AgentID) {
			continue
		}
		if params.Type != "" && m.Type != params.Type {
			continue
		}
		if !params.Since.IsZero() && m.Timestamp.Before(params.Since) {
			continue
		}
		matched = append(matched, m)
	}

	if params.MarkAsRead {
		for _, m := range matched {
			if m.To == Broadcast || m.Read {
				continue
			}
			m.Read = true
			if err := s.repo.Update(ctx, m); err != nil {
				// Read tracking is best-effort; the query result stands.
				slog.WarnContext(ctx, "failed to mark message read", "message", m.ID, "error", err)
			}
		}
	}

	return &QueryResult{Count: len(matched), Messages: matched}, nil
}

// SyncRequest layers a synchronous request/response exchange over plain
// messages: it sends a question carrying a fresh thread id, then polls
// for a reply on the same thread from the target agent. On deadline it
// returns DeadlineExceeded; the request message is not retracted.
func (s *Service) SyncRequest(ctx context.Context, from, to, topic string, timeout time.Duration) (*Message, error) {
	if to == Broadcast {
		return nil, cerr.NewError(cerr.InvalidArgument, "sync request cannot be broadcast", nil)
	}
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}
	if timeout > MaxSyncTimeout {
		timeout = MaxSyncTimeout
	}

	threadID := ulid.Make().String()
	if _, err := s.Send(ctx, SendParams{
		From:     from,
		To:       to,
		Type:     TypeQuestion,
		Content:  topic,
		Priority: PriorityUrgent,
		ThreadID: threadID,
	}); err != nil {
		return nil, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(syncPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, cerr.NewError(cerr.Canceled, "sync request canceled", ctx.Err())
		case <-deadline.C:
			return nil, cerr.NewError(cerr.DeadlineExceeded, fmt.Sprintf("no response from %s within %s", to, timeout), nil)
		case <-ticker.C:
			reply, err := s.findReply(ctx, threadID, to, from)
			if err != nil {
				return nil, err
			}
			if reply != nil {
				return reply, nil
			}
		}
	}
}

func (s *Service) findReply(ctx context.Context, threadID, from, to string) (*Message, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		if m.ThreadID == threadID && m.From == from && m.To == to {
			return m, nil
		}
	}
	return nil, nil
}
