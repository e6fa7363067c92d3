package repositories

import (
	"gorm.io/gorm"

	"messenger-service/models"
)

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) FindByConversationID(conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.
		Where("conversation_id = ?", conversationID).
		Order("sent_at ASC, message_id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *GormMessageRepository) FindUnreadFor(conversationID, recipientID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.
		Where("conversation_id = ? AND recipient_id = ? AND read_at IS NULL", conversationID, recipientID).
		Order("sent_at ASC, message_id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *GormMessageRepository) CountUnread(conversationID, recipientID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND read_at IS NULL", conversationID, recipientID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormMessageRepository) Save(message *models.Message) error {
	return r.db.Save(message).Error
}

func (r *GormMessageRepository) SaveAll(messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return r.db.Save(&messages).Error
}

func (r *GormMessageRepository) RepointConversation(fromID, toID string) error {
	return r.db.Model(&models.Message{}).
		Where("conversation_id = ?", fromID).
		Update("conversation_id", toID).Error
}
