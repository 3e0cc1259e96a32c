package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/observability"
	"github.com/kursadbilgin/notify-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval     = 30 * time.Second
	defaultPendingStaleAfter = 5 * time.Minute
	defaultSweepLimit        = 100
)

// Sweeper periodically resubmits notifications stuck in RETRY, plus PENDING
// records that have sat unattempted past the staleness threshold (e.g. after
// a crash mid-dispatch), back through the orchestrator.
type Sweeper struct {
	notifications     repository.NotificationRepository
	dispatcher        Dispatcher
	interval          time.Duration
	pendingStaleAfter time.Duration
	limit             int
	logger            *zap.Logger
	metrics           *observability.Metrics
	now               func() time.Time
}

func NewSweeper(
	notifications repository.NotificationRepository,
	dispatcher Dispatcher,
	interval time.Duration,
	pendingStaleAfter time.Duration,
	limit int,
	logger *zap.Logger,
) (*Sweeper, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if pendingStaleAfter <= 0 {
		pendingStaleAfter = defaultPendingStaleAfter
	}
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sweeper{
		notifications:     notifications,
		dispatcher:        dispatcher,
		interval:          interval,
		pendingStaleAfter: pendingStaleAfter,
		limit:             limit,
		logger:            logger,
		now:               time.Now,
	}, nil
}

func (s *Sweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start runs the sweep loop until context cancellation.
func (s *Sweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial sweep so records left over from a restart do not wait
	// for the first ticker edge.
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep resubmits one round of retry and stale-pending notifications and
// returns the number of records processed. One record's failure never halts
// the sweep of the remainder.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	retries, err := s.notifications.GetByStatus(ctx, domain.StatusRetry, s.limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load retry notifications: %w", err)
	}

	stalePending, err := s.notifications.GetStalePending(ctx, s.now().Add(-s.pendingStaleAfter), s.limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load stale pending notifications: %w", err)
	}

	processed := 0
	for _, batch := range [][]domain.Notification{retries, stalePending} {
		for i := range batch {
			if ctx.Err() != nil {
				return processed, nil
			}
			s.resubmit(ctx, &batch[i])
			processed++
		}
	}

	if processed > 0 {
		s.logger.Info("sweep completed",
			zap.Int("processed", processed),
			zap.Int("retries", len(retries)),
			zap.Int("stalePending", len(stalePending)),
		)
	}
	s.metrics.AddSweepProcessed(processed)
	return processed, nil
}

func (s *Sweeper) resubmit(ctx context.Context, n *domain.Notification) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep resubmission panicked",
				zap.String("notificationId", n.ID),
				zap.Any("panic", r),
			)
		}
	}()

	if _, err := s.dispatcher.Dispatch(ctx, n); err != nil {
		s.logger.Warn("sweep resubmission did not reach sent",
			zap.String("notificationId", n.ID),
			zap.String("status", n.Status.String()),
			zap.Error(err),
		)
	}
}
