package models

import "gorm.io/gorm"

// Migrate applies the schema for all messenger entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Conversation{}, &Message{})
}
