package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/notify-engine/internal/domain"
	"gorm.io/gorm"
)

// TemplateRepository loads stored subject/body templates.
type TemplateRepository interface {
	GetByCategoryAndLanguage(ctx context.Context, category domain.Category, language string) (*domain.MessageTemplate, error)
}

type GormTemplateRepo struct {
	db *gorm.DB
}

func NewGormTemplateRepo(db *gorm.DB) *GormTemplateRepo {
	return &GormTemplateRepo{db: db}
}

func (r *GormTemplateRepo) GetByCategoryAndLanguage(ctx context.Context, category domain.Category, language string) (*domain.MessageTemplate, error) {
	var model MessageTemplateModel
	err := r.db.WithContext(ctx).
		Where("category = ? AND language = ?", category, language).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return messageTemplateModelToDomain(&model), nil
}
