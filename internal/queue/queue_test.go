package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

func TestDispatchMessageValidate(t *testing.T) {
	msg := DispatchMessage{
		RecipientID: "user-1",
		Message:     "hello",
		Category:    domain.CategoryGeneric,
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	msg.RecipientID = " "
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty recipient id")
	}

	msg.RecipientID = "user-1"
	msg.Message = ""
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty message")
	}

	msg.Message = "hello"
	msg.Category = domain.Category("invalid")
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for invalid category")
	}

	msg.Category = ""
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() with empty category unexpected error: %v", err)
	}
}

func TestDispatchMessageNotification(t *testing.T) {
	msg := DispatchMessage{
		NotificationID: "n1",
		RecipientID:    " user-1 ",
		Subject:        " subj ",
		Message:        " body ",
		Category:       domain.CategoryOrderUpdate,
	}

	n := msg.Notification()
	if n.ID != "n1" {
		t.Fatalf("ID = %q, want n1", n.ID)
	}
	if n.RecipientID != "user-1" {
		t.Fatalf("RecipientID = %q, want user-1", n.RecipientID)
	}
	if n.Subject != "subj" || n.Message != "body" {
		t.Fatalf("unexpected content: subject=%q message=%q", n.Subject, n.Message)
	}
	if n.Category != domain.CategoryOrderUpdate {
		t.Fatalf("Category = %q, want %q", n.Category, domain.CategoryOrderUpdate)
	}
}

type fakeDispatcher struct {
	sent bool
	err  error

	calls int
	last  *domain.Notification
}

func (f *fakeDispatcher) Dispatch(_ context.Context, n *domain.Notification) (bool, error) {
	f.calls++
	f.last = n
	return f.sent, f.err
}

func TestWorkerHandle(t *testing.T) {
	t.Parallel()

	msg := DispatchMessage{RecipientID: "user-1", Message: "hello"}

	tests := []struct {
		name        string
		dispatchErr error
		wantErr     bool
	}{
		{name: "success", dispatchErr: nil, wantErr: false},
		{name: "no eligible channels is terminal", dispatchErr: domain.ErrNoEligibleChannels, wantErr: false},
		{name: "retry exhausted is terminal", dispatchErr: domain.ErrRetryExhausted, wantErr: false},
		{name: "validation failure is terminal", dispatchErr: domain.ErrValidation, wantErr: false},
		{name: "infrastructure error requeues", dispatchErr: errors.New("db down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dispatcher := &fakeDispatcher{err: tt.dispatchErr}
			w := NewWorker(nil, dispatcher, 4, nil)

			err := w.handle(context.Background(), msg)
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dispatcher.calls != 1 {
				t.Fatalf("dispatcher calls = %d, want 1", dispatcher.calls)
			}
			if dispatcher.last.RecipientID != "user-1" {
				t.Fatalf("RecipientID = %q, want user-1", dispatcher.last.RecipientID)
			}
		})
	}
}

func TestNewWorkerDefaults(t *testing.T) {
	t.Parallel()

	w := NewWorker(nil, &fakeDispatcher{}, 0, nil)
	if w.concurrency != 1 {
		t.Fatalf("concurrency = %d, want 1", w.concurrency)
	}
	if w.logger == nil {
		t.Fatal("expected non-nil logger")
	}
}
