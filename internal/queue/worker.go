package queue

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kursadbilgin/notify-engine/internal/dispatch"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/observability"
)

// Worker runs a pool of consumers that feed queued dispatch requests into
// the orchestrator.
type Worker struct {
	consumer    Consumer
	dispatcher  dispatch.Dispatcher
	concurrency int
	logger      *zap.Logger
}

func NewWorker(consumer Consumer, dispatcher dispatch.Dispatcher, concurrency int, logger *zap.Logger) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Worker{
		consumer:    consumer,
		dispatcher:  dispatcher,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Start blocks until the context is canceled, running the configured number
// of concurrent consumers against the work queue.
func (w *Worker) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			return w.consumer.Consume(ctx, WorkQueue, w.handle)
		})
	}

	return g.Wait()
}

func (w *Worker) handle(ctx context.Context, msg DispatchMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}

	sent, err := w.dispatcher.Dispatch(ctx, msg.Notification())
	if err != nil {
		// Terminal outcomes are already recorded against the notification,
		// so the message must not be requeued.
		if errors.Is(err, domain.ErrValidation) ||
			errors.Is(err, domain.ErrNoEligibleChannels) ||
			errors.Is(err, domain.ErrRetryExhausted) {
			w.logger.Warn("queued dispatch ended terminally",
				zap.String("recipientId", msg.RecipientID),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	w.logger.Debug("queued dispatch processed",
		zap.String("recipientId", msg.RecipientID),
		zap.Bool("sent", sent),
	)
	return nil
}
