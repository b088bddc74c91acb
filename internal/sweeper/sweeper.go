// Package sweeper abandons interview sessions that stopped receiving answers.
package sweeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultInterval = 5 * time.Minute
	DefaultTTL      = 2 * time.Hour
)

type Expirer interface {
	ExpireIdle(ctx context.Context, ttl time.Duration) (int, error)
}

type Config struct {
	Interval time.Duration
	TTL      time.Duration
}

type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	ttl      time.Duration
	logger   *zap.Logger
}

func New(cfg *Config, expirer Expirer, logger *zap.Logger) (*Sweeper, error) {
	if expirer == nil {
		return nil, errors.New("sweeper needs an expirer")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sweeper{
		expirer:  expirer,
		interval: cfg.Interval,
		ttl:      cfg.TTL,
		logger:   logger.With(zap.String("component", "sweeper")),
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	return s, nil
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("session sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("session_ttl", s.ttl),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep abandons idle sessions once and returns how many were abandoned.
func (s *Sweeper) Sweep(ctx context.Context) int {
	expired, err := s.expirer.ExpireIdle(ctx, s.ttl)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("expiring idle sessions", zap.Int("expired", expired), zap.Error(err))
	}
	if expired > 0 {
		s.logger.Info("abandoned idle sessions", zap.Int("count", expired))
	}
	return expired
}
