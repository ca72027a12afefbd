package chathub_test

import (
	"context"

	"pratojusto/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock covering every storage interface the chathub
// package consumes.
type MockStorage struct {
	mock.Mock
}

// Users

func (m *MockStorage) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// Threads

func (m *MockStorage) FindThreadByRequest(ctx context.Context, requestID uint) (*models.ChatThread, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatThread), args.Error(1)
}

func (m *MockStorage) FindThreadByToken(ctx context.Context, token string) (*models.ChatThread, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatThread), args.Error(1)
}

func (m *MockStorage) CreateThread(ctx context.Context, thread *models.ChatThread) error {
	args := m.Called(ctx, thread)
	return args.Error(0)
}

func (m *MockStorage) ListThreadsForUser(ctx context.Context, userID uint) ([]models.ChatThread, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatThread), args.Error(1)
}

func (m *MockStorage) DeactivateThreadByRequest(ctx context.Context, requestID uint) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

// Requests

func (m *MockStorage) FindOpenRequestBetween(ctx context.Context, a, b uint) (*models.Request, uint, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(*models.Request), args.Get(1).(uint), args.Error(2)
}

func (m *MockStorage) GetRequest(ctx context.Context, id uint) (*models.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Request), args.Error(1)
}

// Messages

func (m *MockStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) Conversation(ctx context.Context, a, b uint) ([]models.Message, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) LatestMessageBetween(ctx context.Context, a, b uint) (*models.Message, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStorage) Contacts(ctx context.Context, userID uint) ([]models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStorage) MarkConversationRead(ctx context.Context, reader, other uint) (int64, error) {
	args := m.Called(ctx, reader, other)
	return args.Get(0).(int64), args.Error(1)
}

// Broker and presence

func (m *MockStorage) PublishDelivery(ctx context.Context, d models.Delivery) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockStorage) SubscribeDeliveries(ctx context.Context) (<-chan models.Delivery, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan models.Delivery), args.Error(1)
}

func (m *MockStorage) MarkOnline(ctx context.Context, userID uint, connID string) error {
	args := m.Called(ctx, userID, connID)
	return args.Error(0)
}

func (m *MockStorage) MarkOffline(ctx context.Context, userID uint, connID string) error {
	args := m.Called(ctx, userID, connID)
	return args.Error(0)
}

func (m *MockStorage) IsOnline(ctx context.Context, userID uint) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}
