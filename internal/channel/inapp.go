package channel

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/repository"
	"go.uber.org/zap"
)

// InAppChannel persists a viewer-facing inbox record as its delivery. It
// requires no external address, which makes it the guaranteed fallback when
// a recipient has opted out of every other channel.
type InAppChannel struct {
	inbox       repository.InboxRepository
	enabled     bool
	maxAttempts int
	logger      *zap.Logger
}

func NewInAppChannel(inbox repository.InboxRepository, enabled bool, maxAttempts int, logger *zap.Logger) (*InAppChannel, error) {
	if inbox == nil {
		return nil, fmt.Errorf("inbox repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}

	return &InAppChannel{
		inbox:       inbox,
		enabled:     enabled,
		maxAttempts: maxAttempts,
		logger:      logger,
	}, nil
}

func (c *InAppChannel) Name() domain.Channel { return domain.ChannelInApp }

func (c *InAppChannel) Enabled() bool { return c != nil && c.enabled }

func (c *InAppChannel) MaxAttempts() int { return c.maxAttempts }

func (c *InAppChannel) Validate(n *domain.Notification) error {
	if n == nil {
		return fmt.Errorf("%w: notification is required", domain.ErrValidation)
	}
	return n.Validate()
}

func (c *InAppChannel) Send(ctx context.Context, n *domain.Notification) error {
	if c == nil || c.inbox == nil {
		return fmt.Errorf("in-app channel is not initialized")
	}
	if err := c.Validate(n); err != nil {
		return err
	}

	msg := &domain.InboxMessage{
		ID:             uuid.NewString(),
		RecipientID:    n.RecipientID,
		NotificationID: n.ID,
		Subject:        n.Subject,
		Body:           n.Message,
		Category:       n.Category,
	}

	if err := c.inbox.Create(ctx, msg); err != nil {
		return &ChannelError{
			Channel:   domain.ChannelInApp,
			Message:   "failed to persist inbox message",
			Transient: true,
			Cause:     err,
		}
	}

	c.logger.Debug("inbox message stored",
		zap.String("recipientId", n.RecipientID),
		zap.String("notificationId", n.ID),
	)
	return nil
}
