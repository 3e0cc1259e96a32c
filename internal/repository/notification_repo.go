package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/notify-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository is the persistence contract the orchestrator and
// sweeper depend on. Implementations must keep MarkSent idempotent on the
// sent timestamp: the first recorded sent_at wins.
type NotificationRepository interface {
	Save(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	GetByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Notification, error)
	GetStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Notification, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkRetry(ctx context.Context, id string, retryCount int) error
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Save(ctx context.Context, n *domain.Notification) error {
	model := notificationModelFromDomain(n)
	if model == nil {
		return domain.ErrValidation
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"subject", "message", "category", "status", "retry_count", "updated_at",
			}),
			// A sent row is terminal; a resubmission must not rewrite it.
			Where: clause.Where{Exprs: []clause.Expression{
				gorm.Expr("notifications.status <> ?", domain.StatusSent),
			}},
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	*n = *notificationModelToDomain(model)
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) GetByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Notification, error) {
	if limit < 1 {
		limit = 100
	}

	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return notificationsToDomain(models), nil
}

func (r *GormNotificationRepo) GetStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Notification, error) {
	if limit < 1 {
		limit = 100
	}

	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.StatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return notificationsToDomain(models), nil
}

func (r *GormNotificationRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  domain.StatusSent,
			"sent_at": gorm.Expr("COALESCE(sent_at, ?)", sentAt.UTC()),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepo) MarkRetry(ctx context.Context, id string, retryCount int) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      domain.StatusRetry,
			"retry_count": retryCount,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func notificationsToDomain(models []NotificationModel) []domain.Notification {
	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}
	return notifications
}
