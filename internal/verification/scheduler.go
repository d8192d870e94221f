package verification

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chatwarden/chatwarden/internal/db"
)

const sweepConcurrency = 4

type expiredStore interface {
	GetExpiredSessions(ctx context.Context, now time.Time) ([]*db.VerificationSession, error)
	UpdateSession(ctx context.Context, session *db.VerificationSession) error
}

// ExpiredFunc is called for every session the sweeper closes; the enforcement
// layer kicks the member there. Kicked members may rejoin.
type ExpiredFunc func(ctx context.Context, session *db.VerificationSession) error

// Sweeper polls for verification sessions past their deadline and closes them.
// Timeout is polled, not interrupt driven.
type Sweeper struct {
	store    expiredStore
	gate     *Gate
	onExpire ExpiredFunc
	interval time.Duration

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

func NewSweeper(store expiredStore, gate *Gate, onExpire ExpiredFunc, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		store:    store,
		gate:     gate,
		onExpire: onExpire,
		interval: interval,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := s.sweep(runCtx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
					s.getLogEntry().WithField("error", err.Error()).Error("failed to sweep expired sessions")
				}
			}
		}
	}()

	s.started = true
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time) error {
	sessions, err := s.store.GetExpiredSessions(ctx, now)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(sweepConcurrency)
	for _, session := range sessions {
		group.Go(func() error {
			closed, err := s.gate.Expire(groupCtx, session, now)
			if err != nil || !closed {
				return err
			}
			if s.onExpire == nil {
				return nil
			}
			if err := s.onExpire(groupCtx, session); err != nil {
				s.getLogEntry().WithField("error", err.Error()).
					WithField("chat_id", session.ChatID).
					WithField("user_id", session.UserID).
					Error("failed to enforce expired session")
			}
			return nil
		})
	}
	return group.Wait()
}

func (s *Sweeper) getLogEntry() *log.Entry {
	return log.WithField("object", "VerificationSweeper")
}
