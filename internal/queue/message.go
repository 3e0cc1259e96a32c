package queue

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

// DispatchMessage is the broker payload for asynchronous dispatch requests.
// It carries the full submission so workers can dispatch without a prior
// persistence step.
type DispatchMessage struct {
	NotificationID string          `json:"notificationId,omitempty"`
	CorrelationID  string          `json:"correlationId,omitempty"`
	RecipientID    string          `json:"recipientId"`
	Subject        string          `json:"subject,omitempty"`
	Message        string          `json:"message"`
	Category       domain.Category `json:"category,omitempty"`
}

func (m DispatchMessage) Validate() error {
	if strings.TrimSpace(m.RecipientID) == "" {
		return fmt.Errorf("recipientId is required")
	}
	if strings.TrimSpace(m.Message) == "" {
		return fmt.Errorf("message is required")
	}
	if m.Category != "" && !m.Category.IsValid() {
		return fmt.Errorf("invalid category %q", m.Category)
	}
	return nil
}

// Notification converts the message into a dispatchable notification.
func (m DispatchMessage) Notification() *domain.Notification {
	return &domain.Notification{
		ID:          m.NotificationID,
		RecipientID: strings.TrimSpace(m.RecipientID),
		Subject:     strings.TrimSpace(m.Subject),
		Message:     strings.TrimSpace(m.Message),
		Category:    m.Category,
	}
}
