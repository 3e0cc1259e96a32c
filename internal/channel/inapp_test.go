package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

type fakeInboxRepo struct {
	createFn func(ctx context.Context, msg *domain.InboxMessage) error

	created []*domain.InboxMessage
}

func (f *fakeInboxRepo) Create(ctx context.Context, msg *domain.InboxMessage) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, msg); err != nil {
			return err
		}
	}
	f.created = append(f.created, msg)
	return nil
}

func (f *fakeInboxRepo) ListByRecipient(context.Context, string, int) ([]domain.InboxMessage, error) {
	return nil, nil
}

func TestInAppChannelSend(t *testing.T) {
	t.Parallel()

	inbox := &fakeInboxRepo{}
	ch, err := NewInAppChannel(inbox, true, 0, nil)
	if err != nil {
		t.Fatalf("NewInAppChannel() error = %v", err)
	}

	n := &domain.Notification{
		ID:          "n-1",
		RecipientID: "user-1",
		Subject:     "Order update",
		Message:     "shipped",
		Category:    domain.CategoryOrderUpdate,
	}
	if err := ch.Send(context.Background(), n); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(inbox.created) != 1 {
		t.Fatalf("created = %d, want 1", len(inbox.created))
	}
	msg := inbox.created[0]
	if msg.ID == "" {
		t.Fatal("inbox message id should be generated")
	}
	if msg.NotificationID != "n-1" || msg.RecipientID != "user-1" {
		t.Fatalf("unexpected message linkage: %+v", msg)
	}
	if msg.Body != "shipped" || msg.Category != domain.CategoryOrderUpdate {
		t.Fatalf("unexpected message content: %+v", msg)
	}
}

func TestInAppChannelSendStoreFailure(t *testing.T) {
	t.Parallel()

	inbox := &fakeInboxRepo{
		createFn: func(context.Context, *domain.InboxMessage) error {
			return errors.New("insert failed")
		},
	}
	ch, err := NewInAppChannel(inbox, true, 0, nil)
	if err != nil {
		t.Fatalf("NewInAppChannel() error = %v", err)
	}

	n := &domain.Notification{RecipientID: "user-1", Message: "hello"}
	err = ch.Send(context.Background(), n)
	if err == nil {
		t.Fatal("expected error when inbox store fails")
	}

	var chErr *ChannelError
	if !errors.As(err, &chErr) {
		t.Fatalf("error type = %T, want *ChannelError", err)
	}
	if !chErr.Transient {
		t.Fatal("store failure should be transient")
	}
}

func TestNewInAppChannelRequiresInbox(t *testing.T) {
	t.Parallel()

	if _, err := NewInAppChannel(nil, true, 0, nil); err == nil {
		t.Fatal("expected error for nil inbox repository")
	}
}
