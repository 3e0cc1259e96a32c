package repository

import (
	"context"

	"github.com/kursadbilgin/notify-engine/internal/domain"
	"gorm.io/gorm"
)

// InboxRepository stores viewer-facing in-app messages.
type InboxRepository interface {
	Create(ctx context.Context, msg *domain.InboxMessage) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.InboxMessage, error)
}

type GormInboxRepo struct {
	db *gorm.DB
}

func NewGormInboxRepo(db *gorm.DB) *GormInboxRepo {
	return &GormInboxRepo{db: db}
}

func (r *GormInboxRepo) Create(ctx context.Context, msg *domain.InboxMessage) error {
	model := inboxMessageModelFromDomain(msg)
	if model == nil {
		return domain.ErrValidation
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	*msg = *inboxMessageModelToDomain(model)
	return nil
}

func (r *GormInboxRepo) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.InboxMessage, error) {
	if limit < 1 {
		limit = 50
	}

	var models []InboxMessageModel
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]domain.InboxMessage, 0, len(models))
	for i := range models {
		messages = append(messages, *inboxMessageModelToDomain(&models[i]))
	}
	return messages, nil
}
