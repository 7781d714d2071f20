package shortener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sundayezeilo/linkkeeper/internal/metrics"
)

// Deactivator is the slice of Repository a Sweeper needs.
type Deactivator interface {
	Deactivate(ctx context.Context, rule Rule) ([]string, error)
	Evict(ctx context.Context, codes ...string)
}

// Sweeper periodically deactivates links matching its rule and evicts them
// from the cache. One Sweeper runs per rule, each on its own ticker.
type Sweeper struct {
	rule     Rule
	interval time.Duration
	repo     Deactivator
	logger   *slog.Logger
}

// NewSweeper returns a Sweeper for rule. A non-positive interval defaults to one minute.
func NewSweeper(repo Deactivator, rule Rule, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		rule:     rule,
		interval: interval,
		repo:     repo,
		logger:   logger.With("sweep", rule.Label),
	}
}

// Run sweeps once per interval until ctx is cancelled. A failed or panicking
// iteration is logged and the loop carries on.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single sweep and returns the codes it deactivated.
func (s *Sweeper) RunOnce(ctx context.Context) (codes []string, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			codes, err = nil, fmt.Errorf("sweep %s panicked: %v", s.rule.Label, r)
		}
		metrics.SweepDuration.WithLabelValues(s.rule.Label).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.SweepFailures.WithLabelValues(s.rule.Label).Inc()
		}
	}()

	codes, err = s.repo.Deactivate(ctx, s.rule)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, nil
	}

	s.repo.Evict(ctx, codes...)
	metrics.SweepDeactivated.WithLabelValues(s.rule.Label).Add(float64(len(codes)))
	s.logger.InfoContext(ctx, "links deactivated", "count", len(codes))
	return codes, nil
}
