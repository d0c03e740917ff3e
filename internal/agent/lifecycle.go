package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kazz187/agenthub/internal/eventbus"
	"github.com/kazz187/agenthub/pkg/panicerr"
)

const (
	DefaultSweepInterval  = 2 * time.Minute
	DefaultStaleThreshold = 5 * time.Minute
)

// Sweeper periodically reconciles agent liveness from lastSeen
// timestamps. Because every tool call already promotes its caller to
// active, the sweep only demotes agents that went quiet; the promotion
// branch exists for records written by external processes with a fresh
// lastSeen but a stale offline status.
type Sweeper struct {
	repo      Repository
	bus       *eventbus.Bus
	interval  time.Duration
	threshold time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(repo Repository, bus *eventbus.Bus, interval, threshold time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	return &Sweeper{
		repo:      repo,
		bus:       bus,
		interval:  interval,
		threshold: threshold,
	}
}

// Start launches the periodic sweep. Starting an already-running
// sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := panicerr.SafeContext(s.RunOnce)(ctx); err != nil {
					// A failed sweep never stops the schedule.
					slog.Warn("lifecycle sweep failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the periodic sweep and waits for the in-flight run, if
// any, to finish. No further sweep runs after Stop returns. Stopping a
// stopped sweeper is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce performs a single reconciliation pass. Exposed so tests can
// sweep synchronously instead of waiting on the ticker.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	agents, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, a := range agents {
		switch {
		case a.Status == StatusActive && a.Stale(now, s.threshold):
			a.Status = StatusOffline
		case a.Status == StatusOffline && !a.Stale(now, s.threshold):
			a.Status = StatusActive
		default:
			continue
		}
		a.UpdatedAt = now
		if err := s.repo.Update(ctx, a); err != nil {
			slog.Warn("failed to update agent status", "agent", a.ID, "error", err)
			continue
		}
		if a.Status == StatusOffline {
			s.bus.PublishNew(eventbus.AgentOffline, a.ID, nil)
		}
	}
	return nil
}
