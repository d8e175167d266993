package db

import (
	"fmt"

	"gorm.io/gorm"
)

// CreateMessageTypeCheck adds a CHECK constraint limiting messages.message_type
// to the known kinds, if it does not exist yet.
func CreateMessageTypeCheck(db *gorm.DB) error {
	createCheckSQL := `
	DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'messages_message_type_check') THEN
			ALTER TABLE messages ADD CONSTRAINT messages_message_type_check CHECK (message_type IN (1, 2));
		END IF;
	END
	$$;
	`
	if err := db.Exec(createCheckSQL).Error; err != nil {
		return fmt.Errorf("failed to create message_type check: %w", err)
	}
	return nil
}
