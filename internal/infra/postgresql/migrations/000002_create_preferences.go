package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/kursadbilgin/notify-engine/internal/repository"
)

func createPreferenceTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_preferences",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(
				&repository.ChannelPreferenceModel{},
				&repository.CategoryOverrideModel{},
				&repository.RecipientSettingsModel{},
			); err != nil {
				return err
			}
			indexes := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_channel_preferences_recipient_channel ON channel_preferences (recipient_id, channel)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_category_overrides_recipient_category_channel ON category_overrides (recipient_id, category, channel)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.ChannelPreferenceModel{},
				&repository.CategoryOverrideModel{},
				&repository.RecipientSettingsModel{},
			)
		},
	}
}
