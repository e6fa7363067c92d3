package repositories

import (
	"errors"

	"gorm.io/gorm"

	"messenger-service/models"
)

type GormConversationRepository struct {
	db *gorm.DB
}

func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db}
}

func (r *GormConversationRepository) FindByID(id string) (*models.Conversation, error) {
	var convo models.Conversation
	err := r.db.Where("conversation_id = ?", id).First(&convo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &convo, nil
}

func (r *GormConversationRepository) FindByParticipantPair(a, b string) (*models.Conversation, error) {
	var convo models.Conversation
	err := r.db.Where("participant_a = ? AND participant_b = ?", a, b).First(&convo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &convo, nil
}

func (r *GormConversationRepository) FindByParticipant(id string) ([]models.Conversation, error) {
	var convos []models.Conversation
	err := r.db.Where("participant_a = ? OR participant_b = ?", id, id).Find(&convos).Error
	if err != nil {
		return nil, err
	}
	return convos, nil
}

func (r *GormConversationRepository) Save(convo *models.Conversation) error {
	return r.db.Save(convo).Error
}

func (r *GormConversationRepository) Delete(convo *models.Conversation) error {
	return r.db.Delete(convo).Error
}
