package preference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/repository"
	"go.uber.org/zap"
)

// Resolver answers which channels a recipient has opted into and whether the
// recipient is currently in a quiet period. The orchestrator layers the
// routing policy on top of these answers.
type Resolver interface {
	EnabledChannels(ctx context.Context, recipientID string, category domain.Category) ([]domain.Channel, error)
	IsQuietHours(ctx context.Context, recipientID string) (bool, error)
	ShouldSend(ctx context.Context, recipientID string, category domain.Category, channel domain.Channel) (bool, error)
	Language(ctx context.Context, recipientID string) (string, error)
}

const defaultLanguage = "en"

// StoreResolver resolves preferences from persisted preference records.
type StoreResolver struct {
	preferences repository.PreferenceRepository
	logger      *zap.Logger
	now         func() time.Time
}

func NewStoreResolver(preferences repository.PreferenceRepository, logger *zap.Logger) (*StoreResolver, error) {
	if preferences == nil {
		return nil, fmt.Errorf("preference repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StoreResolver{
		preferences: preferences,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// EnabledChannels returns the recipient's opted-in channels ordered by the
// fixed routing order. An empty result means the recipient has no explicit
// opt-ins; the orchestrator decides the fallback.
func (r *StoreResolver) EnabledChannels(ctx context.Context, recipientID string, category domain.Category) ([]domain.Channel, error) {
	if strings.TrimSpace(recipientID) == "" {
		return nil, fmt.Errorf("%w: recipient id is required", domain.ErrValidation)
	}

	preferences, err := r.preferences.GetChannelPreferences(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel preferences: %w", err)
	}

	enabled := make(map[domain.Channel]bool, len(preferences))
	for _, pref := range preferences {
		if pref.Enabled {
			enabled[pref.Channel] = true
		}
	}

	channels := make([]domain.Channel, 0, len(enabled))
	for _, ch := range domain.AllChannels {
		if enabled[ch] {
			channels = append(channels, ch)
		}
	}

	return channels, nil
}

// IsQuietHours reports whether the recipient's configured quiet window
// covers the current instant. Missing settings mean no quiet period.
func (r *StoreResolver) IsQuietHours(ctx context.Context, recipientID string) (bool, error) {
	settings, err := r.preferences.GetRecipientSettings(ctx, recipientID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load recipient settings: %w", err)
	}

	quiet, err := settings.InQuietHours(r.now())
	if err != nil {
		// A corrupt window must not block delivery.
		r.logger.Warn("invalid quiet hours configuration, treating as inactive",
			zap.String("recipientId", recipientID),
			zap.Error(err),
		)
		return false, nil
	}
	return quiet, nil
}

// ShouldSend applies the per-category, per-channel override on top of the
// coarse enabled set. Absent an override the channel is allowed.
func (r *StoreResolver) ShouldSend(ctx context.Context, recipientID string, category domain.Category, channel domain.Channel) (bool, error) {
	overrides, err := r.preferences.GetCategoryOverrides(ctx, recipientID, category)
	if err != nil {
		return false, fmt.Errorf("failed to load category overrides: %w", err)
	}

	for _, override := range overrides {
		if override.Channel == channel {
			return override.Allowed, nil
		}
	}
	return true, nil
}

// Language returns the recipient's preferred language, defaulting to "en".
func (r *StoreResolver) Language(ctx context.Context, recipientID string) (string, error) {
	settings, err := r.preferences.GetRecipientSettings(ctx, recipientID)
	if errors.Is(err, domain.ErrNotFound) {
		return defaultLanguage, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load recipient settings: %w", err)
	}

	if lang := strings.TrimSpace(settings.Language); lang != "" {
		return lang, nil
	}
	return defaultLanguage, nil
}
