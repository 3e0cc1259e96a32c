package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/observability"
	"github.com/kursadbilgin/notify-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBulkBatchSize = 100
	defaultBulkTimeout   = 5 * time.Minute
	maxBulkRecipients    = 10000
)

// BulkDispatcher fans one logical broadcast out to many recipients in
// bounded concurrent batches and collects the recipients whose notification
// reached SENT.
type BulkDispatcher struct {
	dispatcher    Dispatcher
	notifications repository.NotificationRepository
	batchSize     int
	timeout       time.Duration
	logger        *zap.Logger
	metrics       *observability.Metrics
}

func NewBulkDispatcher(dispatcher Dispatcher, notifications repository.NotificationRepository, batchSize int, timeout time.Duration, logger *zap.Logger) (*BulkDispatcher, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if batchSize < 1 {
		batchSize = defaultBulkBatchSize
	}
	if timeout <= 0 {
		timeout = defaultBulkTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BulkDispatcher{
		dispatcher:    dispatcher,
		notifications: notifications,
		batchSize:     batchSize,
		timeout:       timeout,
		logger:        logger,
	}, nil
}

func (b *BulkDispatcher) SetMetrics(metrics *observability.Metrics) {
	if b == nil {
		return
	}
	b.metrics = metrics
}

// DispatchBulk persists one PENDING notification per recipient, then submits
// each through the orchestrator, batch by batch. Recipient failures are
// isolated: a panic or error in one task never aborts its siblings, the
// recipient is simply excluded from the success list. The returned slice
// holds recipient ids in submission order.
//
// The whole run operates under the configured timeout. Because every
// recipient's notification is persisted before fan-out, recipients not
// reached before the deadline remain PENDING and are recovered by the
// sweeper, keeping at-least-once semantics.
func (b *BulkDispatcher) DispatchBulk(ctx context.Context, recipientIDs []string, category domain.Category, message string) ([]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(recipientIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", domain.ErrValidation)
	}
	if len(recipientIDs) > maxBulkRecipients {
		return nil, fmt.Errorf("%w: bulk size exceeds %d", domain.ErrValidation, maxBulkRecipients)
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	if category == "" {
		category = domain.CategoryGeneric
	}
	if !category.IsValid() {
		return nil, fmt.Errorf("%w: invalid category %q", domain.ErrValidation, category)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	// Intake first: a PENDING row per recipient, written before any channel
	// attempt, is what lets the sweeper recover recipients the deadline
	// cuts off.
	intake := make([]*domain.Notification, len(recipientIDs))
	for i, recipientID := range recipientIDs {
		n := &domain.Notification{
			ID:          uuid.NewString(),
			RecipientID: strings.TrimSpace(recipientID),
			Subject:     category.DefaultSubject(),
			Message:     message,
			Category:    category,
			Status:      domain.StatusPending,
		}
		if err := n.Validate(); err != nil {
			b.logger.Warn("bulk recipient rejected",
				zap.String("recipientId", n.RecipientID),
				zap.Error(err),
			)
			continue
		}
		if err := b.notifications.Save(ctx, n); err != nil {
			return nil, fmt.Errorf("failed to persist bulk intake: %w", err)
		}
		intake[i] = n
	}

	sent := make([]bool, len(recipientIDs))

	for start := 0; start < len(recipientIDs); start += b.batchSize {
		end := min(start+b.batchSize, len(recipientIDs))

		batchStart := time.Now()
		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			if intake[i] == nil {
				continue
			}
			g.Go(func() error {
				sent[i] = b.dispatchOne(ctx, intake[i])
				return nil
			})
		}
		// Tasks never return errors; the join is purely a barrier.
		_ = g.Wait()
		b.metrics.ObserveBulkBatchDuration(time.Since(batchStart))

		if ctx.Err() != nil {
			b.logger.Warn("bulk dispatch deadline reached, remaining recipients left for sweep",
				zap.Int("processed", end),
				zap.Int("total", len(recipientIDs)),
			)
			break
		}
	}

	succeeded := make([]string, 0, len(recipientIDs))
	for i, ok := range sent {
		if ok {
			succeeded = append(succeeded, recipientIDs[i])
		}
	}

	b.logger.Info("bulk dispatch completed",
		zap.Int("requested", len(recipientIDs)),
		zap.Int("sent", len(succeeded)),
	)
	return succeeded, nil
}

// dispatchOne isolates a single recipient task. Panics and dispatch errors
// are both absorbed into a not-sent result.
func (b *BulkDispatcher) dispatchOne(ctx context.Context, n *domain.Notification) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
			b.logger.Error("bulk recipient task panicked",
				zap.String("recipientId", n.RecipientID),
				zap.Any("panic", r),
			)
		}
	}()

	ok, err := b.dispatcher.Dispatch(ctx, n)
	if err != nil {
		b.logger.Warn("bulk recipient dispatch did not reach sent",
			zap.String("recipientId", n.RecipientID),
			zap.String("notificationId", n.ID),
			zap.Error(err),
		)
	}
	return ok
}
