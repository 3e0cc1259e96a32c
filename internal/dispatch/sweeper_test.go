package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

func TestSweepResubmitsRetryAndStalePending(t *testing.T) {
	t.Parallel()

	repo := newMemNotificationRepo()
	seed := []domain.Notification{
		{ID: "n-retry", RecipientID: "user-1", Message: "m", Status: domain.StatusRetry, RetryCount: 1},
		{ID: "n-stale", RecipientID: "user-2", Message: "m", Status: domain.StatusPending, CreatedAt: time.Now().Add(-time.Hour)},
		{ID: "n-fresh", RecipientID: "user-3", Message: "m", Status: domain.StatusPending, CreatedAt: time.Now()},
		{ID: "n-sent", RecipientID: "user-4", Message: "m", Status: domain.StatusSent},
	}
	for i := range seed {
		if err := repo.Save(context.Background(), &seed[i]); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	dispatcher := &recordingDispatcher{}
	sweeper, err := NewSweeper(repo, dispatcher, time.Minute, 5*time.Minute, 100, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}

	processed, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if processed != 2 {
		t.Fatalf("processed = %d, want 2", processed)
	}

	dispatcher.mu.Lock()
	resubmitted := map[string]bool{}
	for _, recipientID := range dispatcher.calls {
		resubmitted[recipientID] = true
	}
	dispatcher.mu.Unlock()

	if !resubmitted["user-1"] || !resubmitted["user-2"] {
		t.Fatalf("resubmitted = %v, want retry and stale pending recipients", resubmitted)
	}
	if resubmitted["user-3"] || resubmitted["user-4"] {
		t.Fatalf("resubmitted = %v, fresh pending and sent must be left alone", resubmitted)
	}
}

func TestSweepSurvivesDispatchPanics(t *testing.T) {
	t.Parallel()

	repo := newMemNotificationRepo()
	seed := []domain.Notification{
		{ID: "n-1", RecipientID: "user-1", Message: "m", Status: domain.StatusRetry},
		{ID: "n-2", RecipientID: "user-2", Message: "m", Status: domain.StatusRetry},
	}
	for i := range seed {
		if err := repo.Save(context.Background(), &seed[i]); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	dispatcher := &recordingDispatcher{
		dispatchFn: func(_ context.Context, n *domain.Notification) (bool, error) {
			if n.RecipientID == "user-1" {
				panic("boom")
			}
			return true, nil
		},
	}
	sweeper, err := NewSweeper(repo, dispatcher, time.Minute, 5*time.Minute, 100, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}

	processed, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if processed != 2 {
		t.Fatalf("processed = %d, want 2 despite the panic", processed)
	}
	if dispatcher.callCount() != 2 {
		t.Fatalf("dispatch calls = %d, want 2", dispatcher.callCount())
	}
}

func TestSweepStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	repo := newMemNotificationRepo()
	n := domain.Notification{ID: "n-1", RecipientID: "user-1", Message: "m", Status: domain.StatusRetry}
	if err := repo.Save(context.Background(), &n); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	dispatcher := &recordingDispatcher{}
	sweeper, err := NewSweeper(repo, dispatcher, time.Minute, 5*time.Minute, 100, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processed, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if processed != 0 {
		t.Fatalf("processed = %d, want 0 on canceled context", processed)
	}
	if dispatcher.callCount() != 0 {
		t.Fatalf("dispatch calls = %d, want 0", dispatcher.callCount())
	}
}

func TestSweeperStartRunsInitialSweep(t *testing.T) {
	t.Parallel()

	repo := newMemNotificationRepo()
	n := domain.Notification{ID: "n-1", RecipientID: "user-1", Message: "m", Status: domain.StatusRetry}
	if err := repo.Save(context.Background(), &n); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	done := make(chan struct{})
	dispatcher := &recordingDispatcher{
		dispatchFn: func(context.Context, *domain.Notification) (bool, error) {
			close(done)
			return true, nil
		},
	}
	sweeper, err := NewSweeper(repo, dispatcher, time.Hour, 5*time.Minute, 100, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = sweeper.Start(ctx)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("initial sweep did not run")
	}
	cancel()
}
