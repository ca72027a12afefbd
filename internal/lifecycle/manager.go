// Package lifecycle drives donation requests through their state machine.
//
// Every mutation on a donation runs under a per-donation critical section:
// an in-process mutex keyed by donation id, and a store transaction that
// holds the donation row lock. The target row is re-read inside that section,
// so two donors racing to accept different requests of the same donation
// serialize and the loser observes the winner's commit.
package lifecycle

import (
	"context"
	"time"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/logger"
	"pratojusto/backend/internal/models"
	"pratojusto/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

type Manager struct {
	store     storage.RequestStore
	donations storage.DonationGateway
	locks     *keyedMutex
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewManager(store storage.RequestStore, donations storage.DonationGateway, log logrus.FieldLogger) *Manager {
	return &Manager{
		store:     store,
		donations: donations,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.OrStandard(log).WithField("component", "lifecycle"),
	}
}

// withDonation runs fn inside the donation's critical section.
func (m *Manager) withDonation(ctx context.Context, donationID uint, fn func(ctx context.Context) error) error {
	unlock := m.locks.Lock(donationID)
	defer unlock()
	return m.store.WithinDonation(ctx, donationID, fn)
}

// Create claims a donation for requester. A cancelled claim on the same pair
// is reopened rather than duplicated.
func (m *Manager) Create(ctx context.Context, donationID, requesterID uint) (*Outcome, error) {
	out := &Outcome{Action: ActionCreated, ActorID: requesterID}

	err := m.withDonation(ctx, donationID, func(ctx context.Context) error {
		donation, err := m.donations.GetDonation(ctx, donationID)
		if err != nil {
			return err
		}
		if !donation.Active {
			return apperr.InvalidArgument("donation is no longer available")
		}
		if donation.OwnerUserID == requesterID {
			return apperr.InvalidArgument("you cannot request your own donation")
		}
		out.Donation = donation

		existing, err := m.store.FindRequest(ctx, donationID, requesterID)
		if err != nil {
			return err
		}
		now := m.now()

		if existing != nil {
			if existing.Status != models.StatusCancelled {
				return apperr.DuplicateRequest("you already requested this donation")
			}
			if err := existing.Reopen(now); err != nil {
				return err
			}
			if err := m.store.SaveRequest(ctx, existing); err != nil {
				return err
			}
			out.Action = ActionReopened
			out.Request = existing
			return nil
		}

		req := &models.Request{
			DonationID:  donationID,
			RequesterID: requesterID,
			Status:      models.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := m.store.CreateRequest(ctx, req); err != nil {
			return err
		}
		out.Request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"request_id":  out.Request.ID,
		"donation_id": donationID,
		"action":      out.Action,
	}).Info("request created")
	return out, nil
}

// Accept moves a pending request to accepted and cancels every other pending
// request on the same donation in the same unit. Donor only.
func (m *Manager) Accept(ctx context.Context, requestID, actorID uint) (*Outcome, error) {
	out, err := m.mutate(ctx, requestID, actorID, ActionAccepted, func(ctx context.Context, req *models.Request, donation *models.Donation, out *Outcome) error {
		if donation.OwnerUserID != actorID {
			return apperr.Forbidden("only the donor can accept a request")
		}
		if req.Status != models.StatusPending {
			return apperr.InvalidTransition("only pending requests can be accepted")
		}

		siblings, err := m.store.ListRequestsByDonation(ctx, donation.ID)
		if err != nil {
			return err
		}
		for _, s := range siblings {
			if s.ID != req.ID && s.Status == models.StatusAccepted {
				return apperr.InvalidTransition("this donation already has an accepted request")
			}
		}

		now := m.now()
		if err := req.TransitionTo(models.StatusAccepted, now); err != nil {
			return err
		}
		if err := m.store.SaveRequest(ctx, req); err != nil {
			return err
		}

		for i := range siblings {
			sibling := &siblings[i]
			if sibling.ID == req.ID || sibling.Status != models.StatusPending {
				continue
			}
			if err := sibling.TransitionTo(models.StatusCancelled, now); err != nil {
				return err
			}
			if err := m.store.SaveRequest(ctx, sibling); err != nil {
				return err
			}
			out.Superseded = append(out.Superseded, *sibling)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"donation_id": out.Request.DonationID,
		"superseded":  len(out.Superseded),
	}).Info("request accepted")
	return out, nil
}

// Recuse declines a pending request. Donor only.
func (m *Manager) Recuse(ctx context.Context, requestID, actorID uint) (*Outcome, error) {
	return m.mutate(ctx, requestID, actorID, ActionRecused, func(ctx context.Context, req *models.Request, donation *models.Donation, _ *Outcome) error {
		if donation.OwnerUserID != actorID {
			return apperr.Forbidden("only the donor can recuse a request")
		}
		if req.Status != models.StatusPending {
			return apperr.InvalidTransition("only pending requests can be recused")
		}
		if err := req.TransitionTo(models.StatusCancelled, m.now()); err != nil {
			return err
		}
		return m.store.SaveRequest(ctx, req)
	})
}

// Cancel withdraws a non-terminal request. Donor or requester.
func (m *Manager) Cancel(ctx context.Context, requestID, actorID uint) (*Outcome, error) {
	return m.mutate(ctx, requestID, actorID, ActionCancelled, func(ctx context.Context, req *models.Request, donation *models.Donation, _ *Outcome) error {
		if !isParticipant(req, donation, actorID) {
			return apperr.Forbidden("only the donor or the requester can cancel a request")
		}
		if req.Status.Terminal() {
			return apperr.InvalidTransition("request is already " + string(req.Status))
		}
		if err := req.TransitionTo(models.StatusCancelled, m.now()); err != nil {
			return err
		}
		return m.store.SaveRequest(ctx, req)
	})
}

// MarkCompleted closes an accepted request and retires the donation. Both
// writes commit together or not at all.
func (m *Manager) MarkCompleted(ctx context.Context, requestID, actorID uint) (*Outcome, error) {
	out, err := m.mutate(ctx, requestID, actorID, ActionCompleted, func(ctx context.Context, req *models.Request, donation *models.Donation, _ *Outcome) error {
		if !isParticipant(req, donation, actorID) {
			return apperr.Forbidden("only the donor or the requester can complete a request")
		}
		if req.Status != models.StatusAccepted {
			return apperr.InvalidTransition("only accepted requests can be completed")
		}
		if err := req.TransitionTo(models.StatusCompleted, m.now()); err != nil {
			return err
		}
		if err := m.store.SaveRequest(ctx, req); err != nil {
			return err
		}
		if err := m.donations.SetDonationActive(ctx, donation.ID, false); err != nil {
			return err
		}
		donation.Active = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"donation_id": out.Donation.ID,
	}).Info("request completed, donation retired")
	return out, nil
}

type mutation func(ctx context.Context, req *models.Request, donation *models.Donation, out *Outcome) error

// mutate resolves the request's donation, enters its critical section and
// re-reads the request there before applying fn.
func (m *Manager) mutate(ctx context.Context, requestID, actorID uint, action Action, fn mutation) (*Outcome, error) {
	target, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Action: action, ActorID: actorID}
	err = m.withDonation(ctx, target.DonationID, func(ctx context.Context) error {
		req, err := m.store.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		donation, err := m.donations.GetDonation(ctx, req.DonationID)
		if err != nil {
			return err
		}
		if err := fn(ctx, req, donation, out); err != nil {
			return err
		}
		out.Request = req
		out.Donation = donation
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			m.log.WithError(err).WithField("request_id", requestID).Errorf("%s failed", action)
		}
		return nil, err
	}
	return out, nil
}

// Get returns a request visible to its donor or requester.
func (m *Manager) Get(ctx context.Context, requestID, actorID uint) (*models.Request, error) {
	req, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	donation, err := m.donations.GetDonation(ctx, req.DonationID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(req, donation, actorID) {
		return nil, apperr.Forbidden("you are not part of this request")
	}
	return req, nil
}

// ListForDonation lists every request on a donation. Donor only.
func (m *Manager) ListForDonation(ctx context.Context, donationID, actorID uint) ([]models.Request, error) {
	donation, err := m.donations.GetDonation(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if donation.OwnerUserID != actorID {
		return nil, apperr.Forbidden("only the donor can list the requests of a donation")
	}
	return m.store.ListRequestsByDonation(ctx, donationID)
}

func (m *Manager) ListForRequester(ctx context.Context, requesterID uint) ([]models.Request, error) {
	return m.store.ListRequestsByRequester(ctx, requesterID)
}

func isParticipant(req *models.Request, donation *models.Donation, userID uint) bool {
	return req.RequesterID == userID || donation.OwnerUserID == userID
}
