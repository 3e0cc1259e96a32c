package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/notify-engine/internal/domain"
	"gorm.io/gorm"
)

// PreferenceRepository loads per-recipient delivery preferences.
type PreferenceRepository interface {
	GetChannelPreferences(ctx context.Context, recipientID string) ([]domain.ChannelPreference, error)
	GetCategoryOverrides(ctx context.Context, recipientID string, category domain.Category) ([]domain.CategoryOverride, error)
	GetRecipientSettings(ctx context.Context, recipientID string) (*domain.RecipientSettings, error)
}

type GormPreferenceRepo struct {
	db *gorm.DB
}

func NewGormPreferenceRepo(db *gorm.DB) *GormPreferenceRepo {
	return &GormPreferenceRepo{db: db}
}

func (r *GormPreferenceRepo) GetChannelPreferences(ctx context.Context, recipientID string) ([]domain.ChannelPreference, error) {
	var models []ChannelPreferenceModel
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	preferences := make([]domain.ChannelPreference, 0, len(models))
	for i := range models {
		preferences = append(preferences, *channelPreferenceModelToDomain(&models[i]))
	}
	return preferences, nil
}

func (r *GormPreferenceRepo) GetCategoryOverrides(ctx context.Context, recipientID string, category domain.Category) ([]domain.CategoryOverride, error) {
	var models []CategoryOverrideModel
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND category = ?", recipientID, category).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	overrides := make([]domain.CategoryOverride, 0, len(models))
	for i := range models {
		overrides = append(overrides, *categoryOverrideModelToDomain(&models[i]))
	}
	return overrides, nil
}

func (r *GormPreferenceRepo) GetRecipientSettings(ctx context.Context, recipientID string) (*domain.RecipientSettings, error) {
	var model RecipientSettingsModel
	err := r.db.WithContext(ctx).First(&model, "recipient_id = ?", recipientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return recipientSettingsModelToDomain(&model), nil
}
