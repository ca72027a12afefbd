package storage

import (
	"context"
	"errors"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/models"

	"gorm.io/gorm"
)

func (s *Service) FindThreadByRequest(ctx context.Context, requestID uint) (*models.ChatThread, error) {
	var thread models.ChatThread
	if err := s.db(ctx).Where("request_id = ?", requestID).First(&thread).Error; err != nil {
		return nil, wrapErr(err, "chat thread not found")
	}
	return &thread, nil
}

func (s *Service) FindThreadByToken(ctx context.Context, token string) (*models.ChatThread, error) {
	var thread models.ChatThread
	if err := s.db(ctx).Where("token = ?", token).First(&thread).Error; err != nil {
		return nil, wrapErr(err, "chat thread not found")
	}
	return &thread, nil
}

// CreateThread inserts the thread. When another caller won the race for the
// same request, thread is overwritten with the stored row.
func (s *Service) CreateThread(ctx context.Context, thread *models.ChatThread) error {
	err := s.db(ctx).Create(thread).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, findErr := s.FindThreadByRequest(ctx, thread.RequestID)
		if findErr != nil {
			return findErr
		}
		*thread = *existing
		return nil
	}
	return wrapErr(err, "chat thread not found")
}

// ListThreadsForUser returns the user's active threads, newest first.
func (s *Service) ListThreadsForUser(ctx context.Context, userID uint) ([]models.ChatThread, error) {
	var threads []models.ChatThread
	err := s.db(ctx).
		Where("active = ?", true).
		Where("user_a = ? OR user_b = ?", userID, userID).
		Order("created_at desc, id desc").
		Find(&threads).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return threads, nil
}

func (s *Service) DeactivateThreadByRequest(ctx context.Context, requestID uint) error {
	err := s.db(ctx).Model(&models.ChatThread{}).
		Where("request_id = ?", requestID).
		Update("active", false).Error
	return wrapErr(err, "chat thread not found")
}

func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	return wrapErr(s.db(ctx).Create(msg).Error, "message not found")
}

// betweenClause matches messages exchanged by a and b in either direction.
func betweenClause(db *gorm.DB, a, b uint) *gorm.DB {
	return db.Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a)
}

// Conversation returns every message between a and b, oldest first.
func (s *Service) Conversation(ctx context.Context, a, b uint) ([]models.Message, error) {
	var msgs []models.Message
	if err := betweenClause(s.db(ctx), a, b).Order("created_at asc, id asc").Find(&msgs).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return msgs, nil
}

func (s *Service) LatestMessageBetween(ctx context.Context, a, b uint) (*models.Message, error) {
	var msg models.Message
	err := betweenClause(s.db(ctx), a, b).Order("created_at desc, id desc").First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &msg, nil
}

// Contacts lists every user that exchanged at least one message with userID.
func (s *Service) Contacts(ctx context.Context, userID uint) ([]models.User, error) {
	db := s.db(ctx)
	sent := db.Model(&models.Message{}).Select("recipient_id").Where("sender_id = ?", userID)
	received := db.Model(&models.Message{}).Select("sender_id").Where("recipient_id = ?", userID)

	var users []models.User
	err := db.Where("id IN (?) OR id IN (?)", sent, received).
		Order("display_name asc").
		Find(&users).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

// MarkConversationRead flags every unread message from other to reader.
func (s *Service) MarkConversationRead(ctx context.Context, reader, other uint) (int64, error) {
	res := s.db(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND read_flag = ?", other, reader, false).
		Update("read_flag", true)
	if res.Error != nil {
		return 0, apperr.Internal(res.Error)
	}
	return res.RowsAffected, nil
}
