package chathub

import (
	"context"
	"strings"
	"sync"
	"time"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/logger"
	"pratojusto/backend/internal/models"
	"pratojusto/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

const deliveryTimeout = 5 * time.Second

// Deliverer pushes an envelope to a user's private destination.
type Deliverer interface {
	Deliver(ctx context.Context, userID uint, env models.Envelope) error
}

// MessageStorage is what the router reads and writes.
type MessageStorage interface {
	storage.MessageStore
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
}

// Router persists chat messages and pushes them, together with lifecycle
// events, to per-user private destinations.
type Router struct {
	store    MessageStorage
	threads  *ThreadRegistry
	hub      Deliverer
	presence storage.Presence
	log      logrus.FieldLogger
	now      func() time.Time

	// wg tracks in-flight deliveries; tests wait on it.
	wg sync.WaitGroup
}

// NewRouter builds the router. presence may be nil, in which case every
// contact is reported offline.
func NewRouter(store MessageStorage, threads *ThreadRegistry, hub Deliverer, presence storage.Presence, log logrus.FieldLogger) *Router {
	return &Router{
		store:    store,
		threads:  threads,
		hub:      hub,
		presence: presence,
		log:      logger.OrStandard(log).WithField("component", "router"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Send persists a message and then delivers it to the recipient and, as an
// echo, to the sender. The call returns once the message is stored;
// delivery happens in the background.
func (r *Router) Send(ctx context.Context, senderID, recipientID uint, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.InvalidArgument("message body is empty")
	}
	if senderID == recipientID {
		return nil, apperr.InvalidArgument("you cannot send a message to yourself")
	}

	recipient, err := r.store.FindUserByID(ctx, recipientID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.RecipientNotFound("recipient not found")
	}
	if err != nil {
		return nil, err
	}
	sender, err := r.store.FindUserByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		SenderID:    senderID,
		RecipientID: recipient.ID,
		Body:        body,
		CreatedAt:   r.now(),
	}
	if err := r.store.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}

	if r.threads != nil {
		if _, err := r.threads.EnsureForParticipants(ctx, senderID, recipientID); err != nil {
			r.log.WithError(err).Warn("could not ensure chat thread")
		}
	}

	env, err := models.NewEnvelope(models.EnvelopeChat, models.ChatPayload{
		ID:          msg.ID,
		SenderID:    senderID,
		SenderName:  sender.DisplayName,
		RecipientID: recipient.ID,
		Content:     msg.Body,
		Timestamp:   msg.CreatedAt,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	r.deliverAsync(env, recipient.ID, senderID)
	return msg, nil
}

// deliverAsync pushes env to each user without blocking the caller.
func (r *Router) deliverAsync(env models.Envelope, userIDs ...uint) {
	for _, userID := range userIDs {
		r.wg.Add(1)
		go func(userID uint) {
			defer r.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
			defer cancel()
			if err := r.hub.Deliver(ctx, userID, env); err != nil {
				r.log.WithError(err).WithField("user_id", userID).Warn("delivery failed")
			}
		}(userID)
	}
}

// Wait blocks until every background delivery started so far has finished.
func (r *Router) Wait() {
	r.wg.Wait()
}

// NotifyLifecycleChange pushes a REQUEST_UPDATE to the user's private
// destination.
func (r *Router) NotifyLifecycleChange(ctx context.Context, userID uint, event models.RequestEvent) error {
	env, err := models.NewEnvelope(models.EnvelopeRequestUpdate, event)
	if err != nil {
		return apperr.Internal(err)
	}
	return r.hub.Deliver(ctx, userID, env)
}

// Conversation returns the messages exchanged by self and other, oldest first.
func (r *Router) Conversation(ctx context.Context, self, other uint) ([]models.Message, error) {
	if _, err := r.store.FindUserByID(ctx, other); err != nil {
		return nil, err
	}
	return r.store.Conversation(ctx, self, other)
}

func (r *Router) Contacts(ctx context.Context, userID uint) ([]models.Contact, error) {
	users, err := r.store.Contacts(ctx, userID)
	if err != nil {
		return nil, err
	}

	contacts := make([]models.Contact, 0, len(users))
	for _, u := range users {
		contacts = append(contacts, models.Contact{User: u, Online: r.isOnline(ctx, u.ID)})
	}
	return contacts, nil
}

func (r *Router) isOnline(ctx context.Context, userID uint) bool {
	if r.presence == nil {
		return false
	}
	online, err := r.presence.IsOnline(ctx, userID)
	if err != nil {
		r.log.WithError(err).Debug("presence lookup failed")
		return false
	}
	return online
}

func (r *Router) Threads(ctx context.Context, userID uint) ([]ThreadSummary, error) {
	return r.threads.ListForUser(ctx, userID)
}

// MarkRead flags as read every message other sent to reader.
func (r *Router) MarkRead(ctx context.Context, reader, other uint) (int64, error) {
	return r.store.MarkConversationRead(ctx, reader, other)
}
