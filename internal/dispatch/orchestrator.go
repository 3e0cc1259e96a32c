package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-engine/internal/channel"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/observability"
	"github.com/kursadbilgin/notify-engine/internal/preference"
	"github.com/kursadbilgin/notify-engine/internal/repository"
	"github.com/kursadbilgin/notify-engine/internal/template"
	"go.uber.org/zap"
)

const defaultRetryLimit = 3

// Dispatcher is the submission port used by the bulk dispatcher, the
// sweeper, and the queue worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *domain.Notification) (bool, error)
}

// Orchestrator drives a single notification through its delivery lifecycle:
// validate, normalize, persist, route, attempt every selected channel, and
// record the resulting transition.
//
// The orchestrator is the sole writer of a notification's status during a
// dispatch. Concurrent dispatch of the same notification id is not guarded
// here; callers must not race the sweeper and a direct submission on one id.
type Orchestrator struct {
	notifications repository.NotificationRepository
	resolver      preference.Resolver
	registry      *channel.Registry
	templates     template.Renderer
	retryLimit    int
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

func NewOrchestrator(
	notifications repository.NotificationRepository,
	resolver preference.Resolver,
	registry *channel.Registry,
	templates template.Renderer,
	retryLimit int,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("preference resolver is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("channel registry is required")
	}
	if retryLimit < 1 {
		retryLimit = defaultRetryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		notifications: notifications,
		resolver:      resolver,
		registry:      registry,
		templates:     templates,
		retryLimit:    retryLimit,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (o *Orchestrator) SetMetrics(metrics *observability.Metrics) {
	if o == nil {
		return
	}
	o.metrics = metrics
}

// Dispatch attempts delivery of one notification and reports whether it
// reached SENT. Terminal failures surface as ErrNoEligibleChannels or
// ErrRetryExhausted; an all-channels-failed attempt with budget left moves
// the notification to RETRY and returns (false, nil). A quiet-hours deferral
// also returns (false, nil) and leaves the status untouched. SENT is
// terminal: resubmitting an already-sent notification returns (true, nil)
// without another delivery attempt.
func (o *Orchestrator) Dispatch(ctx context.Context, n *domain.Notification) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	resubmitted := n != nil && strings.TrimSpace(n.ID) != ""

	if err := o.prepareForDispatch(n); err != nil {
		return false, err
	}

	logger := observability.WithContextLogger(o.logger, ctx).With(
		zap.String("notificationId", n.ID),
		zap.String("recipientId", n.RecipientID),
		zap.String("category", n.Category.String()),
	)

	if n.Status == domain.StatusSent {
		logger.Debug("notification already sent, resubmission ignored")
		return true, nil
	}

	// A resubmitted id may have been sent by a concurrent worker or sweep
	// after the caller loaded it; the stored record is authoritative.
	if resubmitted {
		stored, err := o.notifications.GetByID(ctx, n.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// Caller-chosen id, first submission.
		case err != nil:
			return false, fmt.Errorf("failed to load notification: %w", err)
		case stored.Status == domain.StatusSent:
			n.Status = domain.StatusSent
			n.SentAt = stored.SentAt
			n.RetryCount = stored.RetryCount
			logger.Debug("notification already sent, resubmission ignored")
			return true, nil
		}
	}

	// Persist before attempting so a crash mid-dispatch leaves a
	// recoverable record for the sweeper, not a silent loss.
	if err := o.notifications.Save(ctx, n); err != nil {
		return false, fmt.Errorf("failed to persist notification: %w", err)
	}

	selection, deferred, err := o.selectChannels(ctx, n)
	if err != nil {
		return false, err
	}

	if deferred {
		logger.Info("delivery deferred by quiet hours")
		o.metrics.IncDispatchDeferred()
		return false, nil
	}

	if len(selection) == 0 {
		if err := o.notifications.UpdateStatus(ctx, n.ID, domain.StatusFailed); err != nil {
			return false, fmt.Errorf("failed to mark notification as failed: %w", err)
		}
		n.Status = domain.StatusFailed
		logger.Warn("no eligible channels, notification failed")
		o.metrics.IncNotificationFailed("no_eligible_channels")
		return false, fmt.Errorf("%w: recipient %s", domain.ErrNoEligibleChannels, n.RecipientID)
	}

	outcomes := o.attemptAll(ctx, selection, n, logger)

	if domain.AnySuccess(outcomes) {
		return true, o.markSent(ctx, n, outcomes, logger)
	}

	if n.RetryCount < o.retryLimit {
		if err := o.notifications.MarkRetry(ctx, n.ID, n.RetryCount+1); err != nil {
			return false, fmt.Errorf("failed to mark notification for retry: %w", err)
		}
		n.RetryCount++
		n.Status = domain.StatusRetry
		logger.Info("all channels failed, retry scheduled",
			zap.Int("retryCount", n.RetryCount),
			zap.Int("retryLimit", o.retryLimit),
		)
		o.metrics.IncRetryScheduled()
		return false, nil
	}

	if err := o.notifications.UpdateStatus(ctx, n.ID, domain.StatusFailed); err != nil {
		return false, fmt.Errorf("failed to mark notification as failed: %w", err)
	}
	n.Status = domain.StatusFailed
	logger.Warn("retry budget exhausted, notification failed",
		zap.Int("retryCount", n.RetryCount),
	)
	o.metrics.IncNotificationFailed("retry_exhausted")
	return false, fmt.Errorf("%w: %d attempts", domain.ErrRetryExhausted, n.RetryCount+1)
}

// DispatchTemplated renders the stored template for the recipient's language
// and dispatches the result.
func (o *Orchestrator) DispatchTemplated(ctx context.Context, recipientID string, category domain.Category, variables map[string]string) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.templates == nil {
		return false, fmt.Errorf("template service is not configured")
	}
	if strings.TrimSpace(recipientID) == "" {
		return false, fmt.Errorf("%w: recipient id is required", domain.ErrValidation)
	}
	if !category.IsValid() {
		return false, fmt.Errorf("%w: invalid category %q", domain.ErrValidation, category)
	}

	language, err := o.resolver.Language(ctx, recipientID)
	if err != nil {
		return false, err
	}

	subject, body, err := o.templates.RenderFor(ctx, category, language, variables)
	if err != nil {
		return false, err
	}

	return o.Dispatch(ctx, &domain.Notification{
		RecipientID: recipientID,
		Subject:     subject,
		Message:     body,
		Category:    category,
	})
}

// Status returns the current lifecycle status of a notification.
func (o *Orchestrator) Status(ctx context.Context, id string) (domain.Status, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	n, err := o.notifications.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return "", err
	}
	return n.Status, nil
}

func (o *Orchestrator) prepareForDispatch(n *domain.Notification) error {
	if n == nil {
		return fmt.Errorf("%w: notification is required", domain.ErrValidation)
	}

	n.RecipientID = strings.TrimSpace(n.RecipientID)
	n.Message = strings.TrimSpace(n.Message)
	n.Subject = strings.TrimSpace(n.Subject)

	if err := n.Validate(); err != nil {
		return err
	}

	if strings.TrimSpace(n.ID) == "" {
		n.ID = uuid.NewString()
	}
	if n.Category == "" {
		n.Category = domain.CategoryGeneric
	}
	if n.Subject == "" {
		n.Subject = n.Category.DefaultSubject()
	}
	if n.Status == "" {
		n.Status = domain.StatusPending
	}
	if !n.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", domain.ErrValidation, n.Status)
	}

	return nil
}

// selectChannels applies the routing policy. The returned deferred flag is
// true when quiet hours produced an empty selection; the notification then
// stays in its current non-terminal state for a later sweep.
func (o *Orchestrator) selectChannels(ctx context.Context, n *domain.Notification) ([]domain.Channel, bool, error) {
	enabled, err := o.resolver.EnabledChannels(ctx, n.RecipientID, n.Category)
	if err != nil {
		return nil, false, err
	}

	// Every recipient is guaranteed at least passive visibility.
	if len(enabled) == 0 {
		enabled = []domain.Channel{domain.ChannelInApp}
	}

	quiet, err := o.resolver.IsQuietHours(ctx, n.RecipientID)
	if err != nil {
		return nil, false, err
	}

	// Quiet hours apply to critical categories too; the in-app record is
	// still written immediately, active channels wait for the window to end.
	if quiet {
		if containsChannel(enabled, domain.ChannelInApp) && o.registry.SystemEnabled(domain.ChannelInApp) {
			return []domain.Channel{domain.ChannelInApp}, false, nil
		}
		return nil, true, nil
	}

	critical := n.Category.Critical()
	selection := make([]domain.Channel, 0, len(enabled))
	for _, ch := range enabled {
		if !o.registry.SystemEnabled(ch) {
			continue
		}
		if !critical {
			allowed, err := o.resolver.ShouldSend(ctx, n.RecipientID, n.Category, ch)
			if err != nil {
				return nil, false, err
			}
			if !allowed {
				continue
			}
		}
		selection = append(selection, ch)
	}

	return selection, false, nil
}

// attemptAll invokes every selected channel in order. Delivery is
// best-effort broadcast: a channel failure, or an earlier success, never
// stops the remaining attempts.
func (o *Orchestrator) attemptAll(ctx context.Context, selection []domain.Channel, n *domain.Notification, logger *zap.Logger) []domain.DeliveryOutcome {
	outcomes := make([]domain.DeliveryOutcome, 0, len(selection))
	for _, name := range selection {
		capability, ok := o.registry.Get(name)
		if !ok || !capability.Enabled() {
			continue
		}
		if capability.MaxAttempts() > 0 && n.RetryCount >= capability.MaxAttempts() {
			logger.Debug("channel attempt budget spent, skipping",
				zap.String("channel", name.String()),
				zap.Int("retryCount", n.RetryCount),
			)
			continue
		}

		outcome := o.attemptChannel(ctx, capability, n, logger)
		o.metrics.IncDeliveryOutcome(name.String(), outcome.Success)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// attemptChannel holds the channel boundary: no error or panic from a
// capability escapes as anything but a failed outcome.
func (o *Orchestrator) attemptChannel(ctx context.Context, capability channel.Capability, n *domain.Notification, logger *zap.Logger) (outcome domain.DeliveryOutcome) {
	name := capability.Name()
	outcome = domain.DeliveryOutcome{Channel: name}

	defer func() {
		if r := recover(); r != nil {
			outcome.Success = false
			outcome.Error = fmt.Sprintf("panic: %v", r)
			logger.Error("channel send panicked",
				zap.String("channel", name.String()),
				zap.Any("panic", r),
			)
		}
	}()

	if err := capability.Validate(n); err != nil {
		outcome.Error = err.Error()
		logger.Warn("channel validation rejected notification",
			zap.String("channel", name.String()),
			zap.Error(err),
		)
		return outcome
	}

	start := o.now()
	err := capability.Send(ctx, n)
	o.metrics.ObserveChannelSendDuration(name.String(), o.now().Sub(start))

	if err != nil {
		outcome.Error = err.Error()
		logger.Warn("channel delivery failed",
			zap.String("channel", name.String()),
			zap.Bool("transient", channel.IsTransient(err)),
			zap.Error(err),
		)
		return outcome
	}

	outcome.Success = true
	return outcome
}

func (o *Orchestrator) markSent(ctx context.Context, n *domain.Notification, outcomes []domain.DeliveryOutcome, logger *zap.Logger) error {
	sentAt := n.SentAt
	if sentAt == nil {
		at := o.now().UTC()
		sentAt = &at
	}

	if err := o.notifications.MarkSent(ctx, n.ID, *sentAt); err != nil {
		return fmt.Errorf("failed to mark notification as sent: %w", err)
	}

	n.Status = domain.StatusSent
	n.SentAt = sentAt

	succeeded := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Success {
			succeeded = append(succeeded, strings.ToLower(outcome.Channel.String()))
			o.metrics.IncNotificationSent(strings.ToLower(outcome.Channel.String()))
		}
	}
	logger.Info("notification sent", zap.Strings("channels", succeeded))
	return nil
}

func containsChannel(channels []domain.Channel, target domain.Channel) bool {
	for _, ch := range channels {
		if ch == target {
			return true
		}
	}
	return false
}
