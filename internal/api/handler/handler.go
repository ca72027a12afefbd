// Package handler exposes the lifecycle and chat services over HTTP and the
// realtime hub over WebSocket.
package handler

import (
	"context"

	"pratojusto/backend/internal/chathub"
	"pratojusto/backend/internal/config"
	"pratojusto/backend/internal/identity"
	"pratojusto/backend/internal/lifecycle"
	"pratojusto/backend/internal/logger"
	"pratojusto/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Lifecycle is implemented by *lifecycle.Manager.
type Lifecycle interface {
	Create(ctx context.Context, donationID, requesterID uint) (*lifecycle.Outcome, error)
	Accept(ctx context.Context, requestID, actorID uint) (*lifecycle.Outcome, error)
	Recuse(ctx context.Context, requestID, actorID uint) (*lifecycle.Outcome, error)
	Cancel(ctx context.Context, requestID, actorID uint) (*lifecycle.Outcome, error)
	MarkCompleted(ctx context.Context, requestID, actorID uint) (*lifecycle.Outcome, error)
	Get(ctx context.Context, requestID, actorID uint) (*models.Request, error)
	ListForDonation(ctx context.Context, donationID, actorID uint) ([]models.Request, error)
	ListForRequester(ctx context.Context, requesterID uint) ([]models.Request, error)
}

// Chat is implemented by *chathub.Router.
type Chat interface {
	Send(ctx context.Context, senderID, recipientID uint, body string) (*models.Message, error)
	NotifyLifecycleChange(ctx context.Context, userID uint, event models.RequestEvent) error
	Conversation(ctx context.Context, self, other uint) ([]models.Message, error)
	Contacts(ctx context.Context, userID uint) ([]models.Contact, error)
	Threads(ctx context.Context, userID uint) ([]chathub.ThreadSummary, error)
	MarkRead(ctx context.Context, reader, other uint) (int64, error)
}

// Threads is implemented by *chathub.ThreadRegistry.
type Threads interface {
	GetOrCreate(ctx context.Context, requestID, userA, userB uint) (*models.ChatThread, error)
	GetByToken(ctx context.Context, token string, userID uint) (*models.ChatThread, error)
	Deactivate(ctx context.Context, requestID uint) error
}

// Handler містить посилання на сервіси
type Handler struct {
	Lifecycle  Lifecycle
	Chat       Chat
	Threads    Threads
	Verifier   identity.Verifier
	Users      chathub.SubjectResolver
	Hub        *chathub.ManagerService
	Dispatcher chathub.FrameHandler

	realtime config.RealtimeConfig
	log      logrus.FieldLogger
}

func NewHandler(lc Lifecycle, chat Chat, threads Threads, verifier identity.Verifier, users chathub.SubjectResolver, hub *chathub.ManagerService, d chathub.FrameHandler, realtime config.RealtimeConfig, log logrus.FieldLogger) *Handler {
	return &Handler{
		Lifecycle:  lc,
		Chat:       chat,
		Threads:    threads,
		Verifier:   verifier,
		Users:      users,
		Hub:        hub,
		Dispatcher: d,
		realtime:   realtime,
		log:        logger.OrStandard(log).WithField("component", "http"),
	}
}

// RegisterRoutes mounts every route on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api/v1", h.RequireUser())
	{
		api.POST("/donations/:id/requests", h.CreateRequest)
		api.GET("/donations/:id/requests", h.ListDonationRequests)

		api.GET("/requests/mine", h.ListMyRequests)
		api.GET("/requests/:id", h.GetRequest)
		api.POST("/requests/:id/accept", h.AcceptRequest)
		api.POST("/requests/:id/recuse", h.RecuseRequest)
		api.POST("/requests/:id/cancel", h.CancelRequest)
		api.POST("/requests/:id/complete", h.CompleteRequest)

		chat := api.Group("/chat")
		chat.POST("/messages", h.SendMessage)
		chat.GET("/conversations/:userId", h.GetConversation)
		chat.POST("/conversations/:userId/read", h.MarkConversationRead)
		chat.GET("/contacts", h.ListContacts)
		chat.GET("/threads", h.ListThreads)
		chat.GET("/threads/:token", h.GetThread)
	}
}
