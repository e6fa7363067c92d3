package repositories

import (
	"errors"

	"gorm.io/gorm"

	"messenger-service/models"
)

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(id string) (*models.User, error) {
	var user models.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) FindByMessengerID(messengerID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("messenger_id = ?", messengerID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) MessengerIDExists(messengerID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("messenger_id = ?", messengerID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormUserRepository) FindWithoutMessengerID() ([]models.User, error) {
	var users []models.User
	err := r.db.Where("messenger_id IS NULL OR messenger_id = ''").Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *GormUserRepository) Save(user *models.User) error {
	return r.db.Save(user).Error
}
