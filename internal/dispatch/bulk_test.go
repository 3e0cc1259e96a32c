package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

// recordingDispatcher is a Dispatcher stub with per-recipient behavior.
type recordingDispatcher struct {
	dispatchFn func(ctx context.Context, n *domain.Notification) (bool, error)

	mu    sync.Mutex
	calls []string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, n *domain.Notification) (bool, error) {
	d.mu.Lock()
	d.calls = append(d.calls, n.RecipientID)
	d.mu.Unlock()

	if d.dispatchFn != nil {
		return d.dispatchFn(ctx, n)
	}
	return true, nil
}

func (d *recordingDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func TestDispatchBulkAllRecipients(t *testing.T) {
	t.Parallel()

	dispatcher := &recordingDispatcher{}
	repo := newMemNotificationRepo()
	bulk, err := NewBulkDispatcher(dispatcher, repo, 100, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewBulkDispatcher() error = %v", err)
	}

	recipients := make([]string, 250)
	for i := range recipients {
		recipients[i] = fmt.Sprintf("user-%d", i)
	}

	sentTo, err := bulk.DispatchBulk(context.Background(), recipients, domain.CategoryPromotional, "big sale")
	if err != nil {
		t.Fatalf("DispatchBulk() error = %v", err)
	}
	if len(sentTo) != 250 {
		t.Fatalf("sentTo = %d, want 250", len(sentTo))
	}
	if dispatcher.callCount() != 250 {
		t.Fatalf("dispatch calls = %d, want 250", dispatcher.callCount())
	}

	// Result order follows submission order, not completion order.
	for i, id := range sentTo {
		if id != recipients[i] {
			t.Fatalf("sentTo[%d] = %s, want %s", i, id, recipients[i])
		}
	}
}

func TestDispatchBulkIsolatesRecipientFailures(t *testing.T) {
	t.Parallel()

	dispatcher := &recordingDispatcher{
		dispatchFn: func(_ context.Context, n *domain.Notification) (bool, error) {
			switch {
			case strings.HasSuffix(n.RecipientID, "-panic"):
				panic("resolver blew up")
			case strings.HasSuffix(n.RecipientID, "-fail"):
				return false, domain.ErrNoEligibleChannels
			default:
				return true, nil
			}
		},
	}
	repo := newMemNotificationRepo()
	bulk, err := NewBulkDispatcher(dispatcher, repo, 10, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewBulkDispatcher() error = %v", err)
	}

	recipients := []string{"user-1", "user-2-panic", "user-3-fail", "user-4"}
	sentTo, err := bulk.DispatchBulk(context.Background(), recipients, domain.CategoryGeneric, "hello")
	if err != nil {
		t.Fatalf("DispatchBulk() error = %v", err)
	}
	if len(sentTo) != 2 {
		t.Fatalf("sentTo = %v, want 2 successes", sentTo)
	}
	if sentTo[0] != "user-1" || sentTo[1] != "user-4" {
		t.Fatalf("sentTo = %v, want [user-1 user-4]", sentTo)
	}
	if dispatcher.callCount() != 4 {
		t.Fatalf("dispatch calls = %d, want 4", dispatcher.callCount())
	}
}

func TestDispatchBulkZeroSuccessIsNotAnError(t *testing.T) {
	t.Parallel()

	// Quiet-hours deferrals return not-sent without error; a bulk run where
	// every recipient defers still completes cleanly.
	dispatcher := &recordingDispatcher{
		dispatchFn: func(context.Context, *domain.Notification) (bool, error) {
			return false, nil
		},
	}
	repo := newMemNotificationRepo()
	bulk, err := NewBulkDispatcher(dispatcher, repo, 10, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewBulkDispatcher() error = %v", err)
	}

	sentTo, err := bulk.DispatchBulk(context.Background(), []string{"a", "b", "c"}, domain.CategoryGeneric, "hello")
	if err != nil {
		t.Fatalf("DispatchBulk() error = %v", err)
	}
	if len(sentTo) != 0 {
		t.Fatalf("sentTo = %v, want empty", sentTo)
	}
}

func TestDispatchBulkValidation(t *testing.T) {
	t.Parallel()

	bulk, err := NewBulkDispatcher(&recordingDispatcher{}, newMemNotificationRepo(), 10, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewBulkDispatcher() error = %v", err)
	}

	if _, err := bulk.DispatchBulk(context.Background(), nil, domain.CategoryGeneric, "hello"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation for empty recipients", err)
	}
	if _, err := bulk.DispatchBulk(context.Background(), []string{"a"}, domain.CategoryGeneric, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation for empty message", err)
	}
	if _, err := bulk.DispatchBulk(context.Background(), []string{"a"}, domain.Category("bogus"), "hello"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation for invalid category", err)
	}
}

func TestDispatchBulkDeadlineLeavesPendingForSweep(t *testing.T) {
	t.Parallel()

	// Every dispatch blocks until the bulk deadline fires, so only the
	// first batch is ever handed to the orchestrator.
	dispatcher := &recordingDispatcher{
		dispatchFn: func(ctx context.Context, _ *domain.Notification) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		},
	}
	repo := newMemNotificationRepo()
	bulk, err := NewBulkDispatcher(dispatcher, repo, 5, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewBulkDispatcher() error = %v", err)
	}

	recipients := make([]string, 15)
	for i := range recipients {
		recipients[i] = fmt.Sprintf("user-%d", i)
	}

	sentTo, err := bulk.DispatchBulk(context.Background(), recipients, domain.CategoryGeneric, "hello")
	if err != nil {
		t.Fatalf("DispatchBulk() error = %v", err)
	}
	if len(sentTo) != 0 {
		t.Fatalf("sentTo = %v, want empty", sentTo)
	}
	if got := dispatcher.callCount(); got != 5 {
		t.Fatalf("dispatch calls = %d, want first batch of 5", got)
	}

	// The cut-off recipients were persisted before fan-out, so the sweeper
	// can pick every one of them up.
	pending, err := repo.GetByStatus(context.Background(), domain.StatusPending, 0)
	if err != nil {
		t.Fatalf("GetByStatus() error = %v", err)
	}
	if len(pending) != 15 {
		t.Fatalf("pending rows = %d, want 15", len(pending))
	}
}

func TestDispatchBulkIntakePersistFailure(t *testing.T) {
	t.Parallel()

	dispatcher := &recordingDispatcher{}
	repo := newMemNotificationRepo()
	repo.saveErr = errors.New("db down")
	bulk, err := NewBulkDispatcher(dispatcher, repo, 10, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewBulkDispatcher() error = %v", err)
	}

	if _, err := bulk.DispatchBulk(context.Background(), []string{"a", "b"}, domain.CategoryGeneric, "hello"); err == nil {
		t.Fatal("expected error when intake cannot be persisted")
	}
	if got := dispatcher.callCount(); got != 0 {
		t.Fatalf("dispatch calls = %d, want 0", got)
	}
}

func TestDispatchBulkSkipsBlankRecipients(t *testing.T) {
	t.Parallel()

	dispatcher := &recordingDispatcher{}
	repo := newMemNotificationRepo()
	bulk, err := NewBulkDispatcher(dispatcher, repo, 10, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewBulkDispatcher() error = %v", err)
	}

	sentTo, err := bulk.DispatchBulk(context.Background(), []string{"user-1", "   "}, domain.CategoryGeneric, "hello")
	if err != nil {
		t.Fatalf("DispatchBulk() error = %v", err)
	}
	if len(sentTo) != 1 || sentTo[0] != "user-1" {
		t.Fatalf("sentTo = %v, want [user-1]", sentTo)
	}
	if repo.saveCalls != 1 {
		t.Fatalf("intake saves = %d, want 1", repo.saveCalls)
	}
}
