package contextstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kazz187/agenthub/internal/eventbus"
	"github.com/kazz187/agenthub/pkg/cerr"
)

// MaxTTL bounds per-key expiry to a sane maximum.
const MaxTTL = 24 * time.Hour

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

type SetParams struct {
	Key       string
	Value     any
	Agent     string
	Namespace string
	// TTL in milliseconds; zero means no expiry.
	TTL int64
}

func (s *Service) Set(ctx context.Context, params SetParams) (*Entry, error) {
	if params.Key == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "key is required", nil)
	}
	if params.Agent == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "agent is required", nil)
	}
	if params.TTL < 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "ttl must not be negative", nil)
	}
	ttl := time.Duration(params.TTL) * time.Millisecond
	if ttl > MaxTTL {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("ttl exceeds maximum of %s", MaxTTL), nil)
	}
	namespace := params.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	now := time.Now()
	e := &Entry{
		Namespace: namespace,
		Key:       params.Key,
		Value:     params.Value,
		SetBy:     params.Agent,
		UpdatedAt: now,
	}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}

	e, err := s.repo.Set(ctx, e)
	if err != nil {
		return nil, err
	}
	s.bus.PublishNew(eventbus.ContextUpdated, namespace+"/"+params.Key, map[string]string{
		"set_by": params.Agent,
	})
	return e, nil
}

// Get returns the live entry for (namespace, key). An expired entry is
// reported as not found and reclaimed in passing.
func (s *Service) Get(ctx context.Context, namespace, key string) (*Entry, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	e, err := s.repo.Get(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	if e.Expired(time.Now()) {
		s.reclaim(ctx, e)
		return nil, cerr.NewError(cerr.NotFound, "context entry not found", nil)
	}
	return e, nil
}

// List returns every live entry in the namespace.
func (s *Service) List(ctx context.Context, namespace string) ([]*Entry, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	all, err := s.repo.List(ctx, namespace)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	live := make([]*Entry, 0, len(all))
	for _, e := range all {
		if e.Expired(now) {
			s.reclaim(ctx, e)
			continue
		}
		live = append(live, e)
	}
	return live, nil
}

func (s *Service) reclaim(ctx context.Context, e *Entry) {
	if err := s.repo.Delete(ctx, e.Namespace, e.Key); err != nil {
		// Physical reclamation is lazy and best-effort; the entry is
		// already invisible to readers.
		slog.DebugContext(ctx, "failed to reclaim expired context entry",
			"namespace", e.Namespace, "key", e.Key, "error", err)
	}
}
