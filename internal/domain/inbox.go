package domain

import "time"

// InboxMessage is the viewer-facing record written by a successful in-app
// send. Reading and acknowledging it belongs to the surrounding system.
type InboxMessage struct {
	ID             string
	RecipientID    string
	NotificationID string
	Subject        string
	Body           string
	Category       Category
	Read           bool
	CreatedAt      time.Time
}
