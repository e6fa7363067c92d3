// Package repositories holds the thin persistence adapters the messenger
// uses. Services depend on the interfaces; the gorm implementations live
// alongside them. Lookups return (nil, nil) when no record matches so the
// caller decides whether absence is an error.
package repositories

import "messenger-service/models"

type UserRepository interface {
	FindByID(id string) (*models.User, error)
	FindByMessengerID(messengerID string) (*models.User, error)
	MessengerIDExists(messengerID string) (bool, error)
	FindWithoutMessengerID() ([]models.User, error)
	Save(user *models.User) error
}

type ConversationRepository interface {
	FindByID(id string) (*models.Conversation, error)
	// FindByParticipantPair expects a, b already in canonical order.
	FindByParticipantPair(a, b string) (*models.Conversation, error)
	FindByParticipant(id string) ([]models.Conversation, error)
	Save(convo *models.Conversation) error
	// Delete exists solely for merging colliding legacy conversations.
	Delete(convo *models.Conversation) error
}

type MessageRepository interface {
	// FindByConversationID returns messages ordered by sent_at ascending,
	// message_id ascending as a stable tiebreak for equal timestamps.
	FindByConversationID(conversationID string) ([]models.Message, error)
	FindUnreadFor(conversationID, recipientID string) ([]models.Message, error)
	CountUnread(conversationID, recipientID string) (int64, error)
	Save(message *models.Message) error
	SaveAll(messages []models.Message) error
	// RepointConversation moves every message from one conversation id to
	// another; used when merging colliding legacy conversations.
	RepointConversation(fromID, toID string) error
}
