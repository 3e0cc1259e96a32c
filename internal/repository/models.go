package repository

import (
	"time"

	"github.com/kursadbilgin/notify-engine/internal/domain"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID          string          `gorm:"type:uuid;primaryKey"`
	RecipientID string          `gorm:"type:varchar(255);not null"`
	Subject     string          `gorm:"type:varchar(255)"`
	Message     string          `gorm:"type:text;not null"`
	Category    domain.Category `gorm:"type:varchar(20);not null"`
	Status      domain.Status   `gorm:"type:varchar(10);not null"`
	RetryCount  int             `gorm:"not null;default:0"`
	SentAt      *time.Time      `gorm:"type:timestamptz"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// ChannelPreferenceModel is the persistence model for channel_preferences.
type ChannelPreferenceModel struct {
	ID          string         `gorm:"type:uuid;primaryKey"`
	RecipientID string         `gorm:"type:varchar(255);not null"`
	Channel     domain.Channel `gorm:"type:varchar(10);not null"`
	Enabled     bool           `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ChannelPreferenceModel) TableName() string {
	return "channel_preferences"
}

// CategoryOverrideModel is the persistence model for category_overrides.
type CategoryOverrideModel struct {
	ID          string          `gorm:"type:uuid;primaryKey"`
	RecipientID string          `gorm:"type:varchar(255);not null"`
	Category    domain.Category `gorm:"type:varchar(20);not null"`
	Channel     domain.Channel  `gorm:"type:varchar(10);not null"`
	Allowed     bool            `gorm:"not null;default:true"`
	CreatedAt   time.Time
}

func (CategoryOverrideModel) TableName() string {
	return "category_overrides"
}

// RecipientSettingsModel is the persistence model for recipient_settings.
type RecipientSettingsModel struct {
	RecipientID     string `gorm:"type:varchar(255);primaryKey"`
	Language        string `gorm:"type:varchar(8)"`
	Timezone        string `gorm:"type:varchar(64)"`
	QuietHoursStart string `gorm:"type:varchar(5)"`
	QuietHoursEnd   string `gorm:"type:varchar(5)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (RecipientSettingsModel) TableName() string {
	return "recipient_settings"
}

// MessageTemplateModel is the persistence model for message_templates.
type MessageTemplateModel struct {
	ID        string          `gorm:"type:uuid;primaryKey"`
	Category  domain.Category `gorm:"type:varchar(20);not null"`
	Language  string          `gorm:"type:varchar(8);not null"`
	Subject   string          `gorm:"type:varchar(255)"`
	Body      string          `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (MessageTemplateModel) TableName() string {
	return "message_templates"
}

// InboxMessageModel is the persistence model for inbox_messages.
type InboxMessageModel struct {
	ID             string          `gorm:"type:uuid;primaryKey"`
	RecipientID    string          `gorm:"type:varchar(255);not null"`
	NotificationID string          `gorm:"type:uuid;not null"`
	Subject        string          `gorm:"type:varchar(255)"`
	Body           string          `gorm:"type:text;not null"`
	Category       domain.Category `gorm:"type:varchar(20);not null"`
	Read           bool            `gorm:"not null;default:false"`
	CreatedAt      time.Time
}

func (InboxMessageModel) TableName() string {
	return "inbox_messages"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Subject:     n.Subject,
		Message:     n.Message,
		Category:    n.Category,
		Status:      n.Status,
		RetryCount:  n.RetryCount,
		SentAt:      n.SentAt,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:          m.ID,
		RecipientID: m.RecipientID,
		Subject:     m.Subject,
		Message:     m.Message,
		Category:    m.Category,
		Status:      m.Status,
		RetryCount:  m.RetryCount,
		SentAt:      m.SentAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func channelPreferenceModelToDomain(m *ChannelPreferenceModel) *domain.ChannelPreference {
	if m == nil {
		return nil
	}

	return &domain.ChannelPreference{
		ID:          m.ID,
		RecipientID: m.RecipientID,
		Channel:     m.Channel,
		Enabled:     m.Enabled,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func categoryOverrideModelToDomain(m *CategoryOverrideModel) *domain.CategoryOverride {
	if m == nil {
		return nil
	}

	return &domain.CategoryOverride{
		ID:          m.ID,
		RecipientID: m.RecipientID,
		Category:    m.Category,
		Channel:     m.Channel,
		Allowed:     m.Allowed,
		CreatedAt:   m.CreatedAt,
	}
}

func recipientSettingsModelToDomain(m *RecipientSettingsModel) *domain.RecipientSettings {
	if m == nil {
		return nil
	}

	return &domain.RecipientSettings{
		RecipientID:     m.RecipientID,
		Language:        m.Language,
		Timezone:        m.Timezone,
		QuietHoursStart: m.QuietHoursStart,
		QuietHoursEnd:   m.QuietHoursEnd,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func messageTemplateModelToDomain(m *MessageTemplateModel) *domain.MessageTemplate {
	if m == nil {
		return nil
	}

	return &domain.MessageTemplate{
		ID:        m.ID,
		Category:  m.Category,
		Language:  m.Language,
		Subject:   m.Subject,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func inboxMessageModelFromDomain(msg *domain.InboxMessage) *InboxMessageModel {
	if msg == nil {
		return nil
	}

	return &InboxMessageModel{
		ID:             msg.ID,
		RecipientID:    msg.RecipientID,
		NotificationID: msg.NotificationID,
		Subject:        msg.Subject,
		Body:           msg.Body,
		Category:       msg.Category,
		Read:           msg.Read,
		CreatedAt:      msg.CreatedAt,
	}
}

func inboxMessageModelToDomain(m *InboxMessageModel) *domain.InboxMessage {
	if m == nil {
		return nil
	}

	return &domain.InboxMessage{
		ID:             m.ID,
		RecipientID:    m.RecipientID,
		NotificationID: m.NotificationID,
		Subject:        m.Subject,
		Body:           m.Body,
		Category:       m.Category,
		Read:           m.Read,
		CreatedAt:      m.CreatedAt,
	}
}
