package reservation

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the Sweeper expires stale reservations.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically expires stale reservations. Lazy expiry on read keeps the
// data correct without it; the sweep returns abandoned children to the pool
// sooner.
type Sweeper struct {
	mu       sync.RWMutex
	manager  *Manager
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewSweeper(m *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{manager: m, interval: interval}
}

// Start begins the sweep loop. A first sweep runs immediately.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.manager.ExpireStale(ctx); err != nil && ctx.Err() == nil {
		s.manager.logger.Error("sweep reservations", "error", err)
	}
}
