package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/kursadbilgin/notify-engine/internal/repository"
)

func createInboxMessagesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_inbox_messages",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.InboxMessageModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_inbox_messages_recipient_created ON inbox_messages (recipient_id, created_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.InboxMessageModel{})
		},
	}
}
