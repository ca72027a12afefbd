package storage

import (
	"context"
	"errors"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestStore persists Request rows.
type RequestStore interface {
	GetRequest(ctx context.Context, id uint) (*models.Request, error)
	// FindRequest returns nil, nil when the pair has no row.
	FindRequest(ctx context.Context, donationID, requesterID uint) (*models.Request, error)
	ListRequestsByDonation(ctx context.Context, donationID uint) ([]models.Request, error)
	ListRequestsByRequester(ctx context.Context, requesterID uint) ([]models.Request, error)
	CreateRequest(ctx context.Context, req *models.Request) error
	SaveRequest(ctx context.Context, req *models.Request) error
	// FindOpenRequestBetween finds a pending or accepted request pairing the
	// two users, in either direction, and returns it with the donor's id.
	FindOpenRequestBetween(ctx context.Context, a, b uint) (*models.Request, uint, error)
	// WithinDonation runs fn while holding the donation's row lock. Every
	// store call made with the ctx passed to fn joins the same transaction.
	WithinDonation(ctx context.Context, donationID uint, fn func(ctx context.Context) error) error
}

// DonationGateway is the narrow view of the donation catalogue.
type DonationGateway interface {
	GetDonation(ctx context.Context, id uint) (*models.Donation, error)
	SetDonationActive(ctx context.Context, id uint, active bool) error
}

type UserDirectory interface {
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	LinkTelegramChat(ctx context.Context, userID uint, chatID int64) error
	UnlinkTelegramChat(ctx context.Context, chatID int64) error
	ListTelegramLinkedUsers(ctx context.Context) ([]models.User, error)
}

type ThreadStore interface {
	FindThreadByRequest(ctx context.Context, requestID uint) (*models.ChatThread, error)
	FindThreadByToken(ctx context.Context, token string) (*models.ChatThread, error)
	CreateThread(ctx context.Context, thread *models.ChatThread) error
	ListThreadsForUser(ctx context.Context, userID uint) ([]models.ChatThread, error)
	DeactivateThreadByRequest(ctx context.Context, requestID uint) error
}

type MessageStore interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	Conversation(ctx context.Context, a, b uint) ([]models.Message, error)
	// LatestMessageBetween returns nil, nil for an empty conversation.
	LatestMessageBetween(ctx context.Context, a, b uint) (*models.Message, error)
	Contacts(ctx context.Context, userID uint) ([]models.User, error)
	MarkConversationRead(ctx context.Context, reader, other uint) (int64, error)
}

// Broker carries deliveries between server instances.
type Broker interface {
	PublishDelivery(ctx context.Context, d models.Delivery) error
	SubscribeDeliveries(ctx context.Context) (<-chan models.Delivery, error)
}

// Presence tracks which users hold at least one live connection.
type Presence interface {
	MarkOnline(ctx context.Context, userID uint, connID string) error
	MarkOffline(ctx context.Context, userID uint, connID string) error
	IsOnline(ctx context.Context, userID uint) (bool, error)
}

// Storage is everything the Postgres + Redis service provides.
type Storage interface {
	RequestStore
	DonationGateway
	UserDirectory
	ThreadStore
	MessageStore
	Broker
	Presence
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

var _ Storage = (*Service)(nil)

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// AutoMigrate creates or updates every table the service owns.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Donation{},
		&models.Request{},
		&models.ChatThread{},
		&models.Message{},
	)
}

type txKey struct{}

// db returns the transaction carried by ctx, or the root handle.
func (s *Service) db(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.DB.WithContext(ctx)
}

func (s *Service) WithinDonation(ctx context.Context, donationID uint, fn func(ctx context.Context) error) error {
	return s.db(ctx).Transaction(func(tx *gorm.DB) error {
		var donation models.Donation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&donation, donationID).Error
		if err != nil {
			return wrapErr(err, "donation not found")
		}
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// wrapErr maps gorm failures onto the business taxonomy. Errors that already
// carry a kind pass through untouched.
func wrapErr(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(notFound)
	}
	return apperr.Internal(err)
}
