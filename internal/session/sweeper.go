package session

import (
	"context"
	"time"

	"github.com/glunkad/caresimplfyservice/internal/logging"
)

// Sweeper periodically removes sessions that have been idle past their TTL.
type Sweeper struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	log      *logging.Logger
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(store Store, ttl, interval time.Duration, log *logging.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		log:      log.Sub("sweeper"),
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Debug().
		Dur("ttl", s.ttl).
		Dur("interval", s.interval).
		Msg("session sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("session sweeper stopped")
			return
		case now := <-ticker.C:
			s.Sweep(ctx, now)
		}
	}
}

// Sweep runs a single expiry pass.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) {
	removed, err := s.store.SweepExpired(ctx, now, s.ttl)
	if err != nil {
		s.log.Warn().Err(err).Msg("session sweep failed")
		return
	}
	if removed > 0 {
		s.log.Info().
			Int("removed", removed).
			Int("remaining", s.store.Len()).
			Msg("expired sessions removed")
	}
}
