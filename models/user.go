package models

import (
	"strings"
	"time"
)

// User is owned by the accounts subsystem. The messenger reads it and only
// ever writes MessengerID, which is assigned on first use.
type User struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email       string    `json:"email" gorm:"uniqueIndex;type:varchar(255)"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	MessengerID string    `json:"messenger_id" gorm:"index;type:varchar(32)"`
	PhotoURL    string    `json:"photo_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DisplayName combines first and last name, falling back to "Unknown" so
// response projection never has to nil-check upstream.
func (u *User) DisplayName() string {
	if u == nil {
		return "Unknown"
	}
	combined := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if combined == "" {
		return "Unknown"
	}
	return combined
}

func (u *User) ProfilePhotoURL() string {
	if u == nil {
		return ""
	}
	return u.PhotoURL
}
