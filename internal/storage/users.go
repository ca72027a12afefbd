package storage

import (
	"context"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/models"

	"gorm.io/gorm"
)

func (s *Service) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db(ctx).First(&user, id).Error; err != nil {
		return nil, wrapErr(err, "user not found")
	}
	return &user, nil
}

func (s *Service) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, wrapErr(err, "user not found")
	}
	return &user, nil
}

// LinkTelegramChat attaches a Telegram chat to the user. A chat linked to a
// different account is moved.
func (s *Service) LinkTelegramChat(ctx context.Context, userID uint, chatID int64) error {
	return wrapErr(s.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("telegram_chat_id = ? AND id <> ?", chatID, userID).
			Update("telegram_chat_id", nil).Error; err != nil {
			return err
		}
		res := tx.Model(&models.User{}).Where("id = ?", userID).Update("telegram_chat_id", chatID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("user not found")
		}
		return nil
	}), "user not found")
}

func (s *Service) UnlinkTelegramChat(ctx context.Context, chatID int64) error {
	err := s.db(ctx).Model(&models.User{}).
		Where("telegram_chat_id = ?", chatID).
		Update("telegram_chat_id", nil).Error
	return wrapErr(err, "user not found")
}

func (s *Service) ListTelegramLinkedUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db(ctx).Where("telegram_chat_id IS NOT NULL").Find(&users).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}
