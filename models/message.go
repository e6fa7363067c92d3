package models

import "time"

// Message belongs to exactly one conversation. Immutable after creation
// except for ReadAt, which is stamped once by a read acknowledgment.
type Message struct {
	MessageID      string     `gorm:"primaryKey;type:varchar(36)" json:"message_id"`
	ConversationID string     `gorm:"type:varchar(36);index:idx_conversation_sent" json:"conversation_id"`
	SenderID       string     `gorm:"type:varchar(64)" json:"sender_id"`
	RecipientID    string     `gorm:"type:varchar(64)" json:"recipient_id"`
	Body           string     `json:"body"`
	SentAt         time.Time  `gorm:"index:idx_conversation_sent" json:"sent_at"`
	ReadAt         *time.Time `json:"read_at"`
}
