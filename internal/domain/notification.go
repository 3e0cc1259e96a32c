package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a notification.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusRetry   Status = "RETRY"
	StatusFailed  Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusRetry, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Channel names the delivery mechanism for a notification.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "PUSH"
	ChannelInApp Channel = "IN_APP"
)

// AllChannels lists every channel in routing order. The resolver and the
// orchestrator rely on this ordering being stable.
var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp}

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Category classifies a notification. The set is closed here but new
// categories only need a constant and, if critical, an entry in Critical.
type Category string

const (
	CategoryGeneric     Category = "GENERIC"
	CategoryOrderUpdate Category = "ORDER_UPDATE"
	CategoryPromotional Category = "PROMOTIONAL"
	CategorySecurity    Category = "SECURITY_ALERT"
	CategorySystemAlert Category = "SYSTEM_ALERT"
)

func (c Category) String() string { return string(c) }

func (c Category) IsValid() bool {
	switch c {
	case CategoryGeneric, CategoryOrderUpdate, CategoryPromotional, CategorySecurity, CategorySystemAlert:
		return true
	}
	return false
}

// Critical reports whether the category bypasses per-channel opt-outs.
// Quiet hours still apply to critical categories.
func (c Category) Critical() bool {
	return c == CategorySecurity || c == CategorySystemAlert
}

// DefaultSubject derives a subject line when the caller supplied none.
func (c Category) DefaultSubject() string {
	switch c {
	case CategoryOrderUpdate:
		return "Order update"
	case CategoryPromotional:
		return "Special offer"
	case CategorySecurity:
		return "Security alert"
	case CategorySystemAlert:
		return "System alert"
	default:
		return "Notification"
	}
}

func ParseCategoryFromString(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: invalid category %q", ErrValidation, s)
	}
	return c, nil
}

// Notification is the unit of work driven through the dispatch lifecycle.
type Notification struct {
	ID          string
	RecipientID string
	Subject     string
	Message     string
	Category    Category
	Status      Status
	RetryCount  int
	SentAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.RecipientID) == "" {
		return fmt.Errorf("%w: recipient id is required", ErrValidation)
	}
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if n.Category != "" && !n.Category.IsValid() {
		return fmt.Errorf("%w: invalid category %q", ErrValidation, n.Category)
	}
	if n.RetryCount < 0 {
		return fmt.Errorf("%w: retry count must not be negative", ErrValidation)
	}
	return nil
}

// DeliveryOutcome is the per-channel result of one dispatch attempt. It is
// aggregated in memory to drive the status transition, not persisted.
type DeliveryOutcome struct {
	Channel Channel
	Success bool
	Error   string
}

// AnySuccess reports whether at least one channel accepted the notification.
func AnySuccess(outcomes []DeliveryOutcome) bool {
	for _, outcome := range outcomes {
		if outcome.Success {
			return true
		}
	}
	return false
}
