package chathub

import (
	"context"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/logger"
	"pratojusto/backend/internal/models"
	"pratojusto/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ThreadStorage is what the registry reads and writes.
type ThreadStorage interface {
	storage.ThreadStore
	LatestMessageBetween(ctx context.Context, a, b uint) (*models.Message, error)
	FindOpenRequestBetween(ctx context.Context, a, b uint) (*models.Request, uint, error)
	GetRequest(ctx context.Context, id uint) (*models.Request, error)
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
}

// ThreadSummary is one row of a user's thread list.
type ThreadSummary struct {
	Thread        models.ChatThread    `json:"thread"`
	Other         models.User          `json:"other"`
	LatestMessage *models.Message      `json:"latest_message,omitempty"`
	RequestStatus models.RequestStatus `json:"request_status,omitempty"`
}

// ThreadRegistry keeps one chat thread per request.
type ThreadRegistry struct {
	store ThreadStorage
	log   logrus.FieldLogger
}

func NewThreadRegistry(store ThreadStorage, log logrus.FieldLogger) *ThreadRegistry {
	return &ThreadRegistry{
		store: store,
		log:   logger.OrStandard(log).WithField("component", "threads"),
	}
}

// GetOrCreate returns the request's thread, creating it on first use.
func (r *ThreadRegistry) GetOrCreate(ctx context.Context, requestID, userA, userB uint) (*models.ChatThread, error) {
	if userA == userB {
		return nil, apperr.InvalidArgument("a thread needs two distinct participants")
	}

	thread, err := r.store.FindThreadByRequest(ctx, requestID)
	if err == nil {
		return thread, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	thread = &models.ChatThread{
		Token:     uuid.NewString(),
		UserA:     userA,
		UserB:     userB,
		RequestID: requestID,
		Active:    true,
	}
	if err := r.store.CreateThread(ctx, thread); err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{"request_id": requestID, "thread_id": thread.ID}).Info("chat thread created")
	return thread, nil
}

// ResolveOtherParticipant returns the member of thread that is not self.
func (r *ThreadRegistry) ResolveOtherParticipant(thread *models.ChatThread, self uint) (uint, error) {
	switch self {
	case thread.UserA:
		return thread.UserB, nil
	case thread.UserB:
		return thread.UserA, nil
	}
	return 0, apperr.InvalidArgument("user is not a participant of this thread")
}

// LatestMessage returns nil when the participants never talked.
func (r *ThreadRegistry) LatestMessage(ctx context.Context, thread *models.ChatThread) (*models.Message, error) {
	return r.store.LatestMessageBetween(ctx, thread.UserA, thread.UserB)
}

// GetByToken opens a share link. Only participants may follow it.
func (r *ThreadRegistry) GetByToken(ctx context.Context, token string, userID uint) (*models.ChatThread, error) {
	thread, err := r.store.FindThreadByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(userID) {
		return nil, apperr.Forbidden("you are not a participant of this thread")
	}
	return thread, nil
}

// EnsureForParticipants creates the thread lazily when an open request pairs
// the two users. It returns nil, nil when nothing pairs them.
func (r *ThreadRegistry) EnsureForParticipants(ctx context.Context, a, b uint) (*models.ChatThread, error) {
	req, donorID, err := r.store.FindOpenRequestBetween(ctx, a, b)
	if err != nil || req == nil {
		return nil, err
	}
	return r.GetOrCreate(ctx, req.ID, donorID, req.RequesterID)
}

func (r *ThreadRegistry) Deactivate(ctx context.Context, requestID uint) error {
	return r.store.DeactivateThreadByRequest(ctx, requestID)
}

// ListForUser lists the user's active threads, newest first.
func (r *ThreadRegistry) ListForUser(ctx context.Context, userID uint) ([]ThreadSummary, error) {
	threads, err := r.store.ListThreadsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]ThreadSummary, 0, len(threads))
	for i := range threads {
		thread := &threads[i]
		otherID, err := r.ResolveOtherParticipant(thread, userID)
		if err != nil {
			return nil, err
		}
		other, err := r.store.FindUserByID(ctx, otherID)
		if err != nil {
			return nil, err
		}
		latest, err := r.LatestMessage(ctx, thread)
		if err != nil {
			return nil, err
		}

		summary := ThreadSummary{Thread: *thread, Other: *other, LatestMessage: latest}
		if req, err := r.store.GetRequest(ctx, thread.RequestID); err == nil {
			summary.RequestStatus = req.Status
		} else if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}
