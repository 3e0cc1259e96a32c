package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

// memNotificationRepo is an in-memory NotificationRepository with the same
// first-sent-wins MarkSent semantics as the gorm implementation.
type memNotificationRepo struct {
	mu      sync.Mutex
	records map[string]*domain.Notification

	saveErr       error
	updateErr     error
	markSentErr   error
	markRetryErr  error
	saveCalls     int
	markSentCalls int
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{records: make(map[string]*domain.Notification)}
}

func (r *memNotificationRepo) Save(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saveCalls++
	if r.saveErr != nil {
		return r.saveErr
	}

	// Same terminal-row guard as the gorm upsert: sent rows are never
	// rewritten by a resubmission.
	if existing, ok := r.records[n.ID]; ok && existing.Status == domain.StatusSent {
		return nil
	}

	stored := *n
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.records[n.ID] = &stored
	return nil
}

func (r *memNotificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	n := *stored
	return &n, nil
}

func (r *memNotificationRepo) GetByStatus(_ context.Context, status domain.Status, limit int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Notification
	for _, stored := range r.records {
		if stored.Status == status {
			result = append(result, *stored)
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *memNotificationRepo) GetStalePending(_ context.Context, olderThan time.Time, limit int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Notification
	for _, stored := range r.records {
		if stored.Status == domain.StatusPending && stored.CreatedAt.Before(olderThan) {
			result = append(result, *stored)
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *memNotificationRepo) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Status = status
	return nil
}

func (r *memNotificationRepo) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.markSentCalls++
	if r.markSentErr != nil {
		return r.markSentErr
	}
	stored, ok := r.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Status = domain.StatusSent
	if stored.SentAt == nil {
		at := sentAt
		stored.SentAt = &at
	}
	return nil
}

func (r *memNotificationRepo) MarkRetry(_ context.Context, id string, retryCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.markRetryErr != nil {
		return r.markRetryErr
	}
	stored, ok := r.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Status = domain.StatusRetry
	stored.RetryCount = retryCount
	return nil
}

func (r *memNotificationRepo) stored(id string) *domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[id]
	if !ok {
		return nil
	}
	n := *stored
	return &n
}

// fakeResolver defaults to every channel enabled, no quiet hours, every
// category allowed, and English.
type fakeResolver struct {
	enabledFn    func(ctx context.Context, recipientID string, category domain.Category) ([]domain.Channel, error)
	quietFn      func(ctx context.Context, recipientID string) (bool, error)
	shouldSendFn func(ctx context.Context, recipientID string, category domain.Category, ch domain.Channel) (bool, error)
	languageFn   func(ctx context.Context, recipientID string) (string, error)
}

func (f *fakeResolver) EnabledChannels(ctx context.Context, recipientID string, category domain.Category) ([]domain.Channel, error) {
	if f.enabledFn != nil {
		return f.enabledFn(ctx, recipientID, category)
	}
	return append([]domain.Channel(nil), domain.AllChannels...), nil
}

func (f *fakeResolver) IsQuietHours(ctx context.Context, recipientID string) (bool, error) {
	if f.quietFn != nil {
		return f.quietFn(ctx, recipientID)
	}
	return false, nil
}

func (f *fakeResolver) ShouldSend(ctx context.Context, recipientID string, category domain.Category, ch domain.Channel) (bool, error) {
	if f.shouldSendFn != nil {
		return f.shouldSendFn(ctx, recipientID, category, ch)
	}
	return true, nil
}

func (f *fakeResolver) Language(ctx context.Context, recipientID string) (string, error) {
	if f.languageFn != nil {
		return f.languageFn(ctx, recipientID)
	}
	return "en", nil
}

// fakeChannel records send attempts and can be told to fail or panic.
type fakeChannel struct {
	name        domain.Channel
	enabled     bool
	maxAttempts int

	validateErr error
	sendErr     error
	sendPanic   bool

	mu        sync.Mutex
	sendCalls int
}

func (c *fakeChannel) Name() domain.Channel { return c.name }
func (c *fakeChannel) Enabled() bool        { return c.enabled }
func (c *fakeChannel) MaxAttempts() int     { return c.maxAttempts }

func (c *fakeChannel) Validate(*domain.Notification) error {
	return c.validateErr
}

func (c *fakeChannel) Send(context.Context, *domain.Notification) error {
	c.mu.Lock()
	c.sendCalls++
	c.mu.Unlock()

	if c.sendPanic {
		panic(fmt.Sprintf("%s channel exploded", c.name))
	}
	return c.sendErr
}

func (c *fakeChannel) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCalls
}

// fakeTemplateRepo serves one template per category+language key.
type fakeTemplateRepo struct {
	templates map[string]*domain.MessageTemplate
}

func (f *fakeTemplateRepo) GetByCategoryAndLanguage(_ context.Context, category domain.Category, language string) (*domain.MessageTemplate, error) {
	tmpl, ok := f.templates[category.String()+"/"+language]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return tmpl, nil
}
