package models

import (
	"fmt"
	"time"

	"pratojusto/backend/internal/apperr"
)

// RequestStatus is the lifecycle state of a Request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusAccepted  RequestStatus = "accepted"
	StatusCompleted RequestStatus = "completed"
	StatusCancelled RequestStatus = "cancelled"
)

var allowedTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusAccepted, StatusCancelled},
	StatusAccepted: {StatusCompleted, StatusCancelled},
}

// Terminal reports whether no transition may leave s.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Request is one requester's claim on one donation.
// There is a single row per (donation, requester) pair; a cancelled row is
// reopened instead of duplicated.
type Request struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	DonationID  uint          `gorm:"not null;uniqueIndex:idx_request_pair;index:idx_request_donation" json:"donation_id"`
	RequesterID uint          `gorm:"not null;uniqueIndex:idx_request_pair;index:idx_request_requester" json:"requester_id"`
	Status      RequestStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TransitionTo moves the request to next, or fails with INVALID_TRANSITION.
func (r *Request) TransitionTo(next RequestStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return apperr.InvalidTransition(fmt.Sprintf("cannot move request from %s to %s", r.Status, next))
	}
	r.Status = next
	r.UpdatedAt = now
	return nil
}

// Reopen revives a cancelled request into pending. CreatedAt is kept.
func (r *Request) Reopen(now time.Time) error {
	if r.Status != StatusCancelled {
		return apperr.InvalidTransition("only cancelled requests can be reopened")
	}
	r.Status = StatusPending
	r.UpdatedAt = now
	return nil
}
