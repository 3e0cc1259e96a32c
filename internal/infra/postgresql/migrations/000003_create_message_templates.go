package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/kursadbilgin/notify-engine/internal/repository"
)

func createMessageTemplatesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_message_templates",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.MessageTemplateModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_message_templates_category_language ON message_templates (category, language)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.MessageTemplateModel{})
		},
	}
}
