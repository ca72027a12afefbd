package lifecycle

import (
	"context"
	"errors"
	"sort"
	"sync"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/models"
)

// memStore is an in-memory RequestStore and DonationGateway. WithinDonation
// snapshots the donation and its requests and restores them when fn fails;
// it does not serialize callers, so the manager's own locking is what keeps
// concurrent mutations apart.
type memStore struct {
	mu        sync.Mutex
	nextID    uint
	requests  map[uint]*models.Request
	donations map[uint]*models.Donation

	failSetActive error
}

func newMemStore() *memStore {
	return &memStore{
		nextID:    100,
		requests:  make(map[uint]*models.Request),
		donations: make(map[uint]*models.Donation),
	}
}

func (s *memStore) addDonation(id, owner uint, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donations[id] = &models.Donation{ID: id, OwnerUserID: owner, Title: "marmitas", Active: active}
}

func (s *memStore) request(id uint) models.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.requests[id]
}

func (s *memStore) donation(id uint) models.Donation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.donations[id]
}

func (s *memStore) countStatus(donationID uint, status models.RequestStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.DonationID == donationID && r.Status == status {
			n++
		}
	}
	return n
}

func (s *memStore) WithinDonation(ctx context.Context, donationID uint, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	d, ok := s.donations[donationID]
	if !ok {
		s.mu.Unlock()
		return apperr.NotFound("donation not found")
	}
	donationSnap := *d
	requestSnap := make(map[uint]models.Request)
	for id, r := range s.requests {
		if r.DonationID == donationID {
			requestSnap[id] = *r
		}
	}
	s.mu.Unlock()

	err := fn(ctx)
	if err == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	*s.donations[donationID] = donationSnap
	for id, r := range s.requests {
		if r.DonationID != donationID {
			continue
		}
		if snap, ok := requestSnap[id]; ok {
			*r = snap
		} else {
			delete(s.requests, id)
		}
	}
	return err
}

func (s *memStore) GetRequest(_ context.Context, id uint) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, apperr.NotFound("request not found")
	}
	c := *r
	return &c, nil
}

func (s *memStore) FindRequest(_ context.Context, donationID, requesterID uint) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.DonationID == donationID && r.RequesterID == requesterID {
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memStore) list(match func(*models.Request) bool) []models.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Request
	for _, r := range s.requests {
		if match(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) ListRequestsByDonation(_ context.Context, donationID uint) ([]models.Request, error) {
	return s.list(func(r *models.Request) bool { return r.DonationID == donationID }), nil
}

func (s *memStore) ListRequestsByRequester(_ context.Context, requesterID uint) ([]models.Request, error) {
	return s.list(func(r *models.Request) bool { return r.RequesterID == requesterID }), nil
}

func (s *memStore) CreateRequest(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.DonationID == req.DonationID && r.RequesterID == req.RequesterID {
			return apperr.DuplicateRequest("a request for this donation already exists")
		}
	}
	s.nextID++
	req.ID = s.nextID
	c := *req
	s.requests[req.ID] = &c
	return nil
}

func (s *memStore) SaveRequest(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; !ok {
		return apperr.NotFound("request not found")
	}
	c := *req
	s.requests[req.ID] = &c
	return nil
}

func (s *memStore) FindOpenRequestBetween(context.Context, uint, uint) (*models.Request, uint, error) {
	return nil, 0, errors.New("not used by the manager")
}

func (s *memStore) GetDonation(_ context.Context, id uint) (*models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok {
		return nil, apperr.NotFound("donation not found")
	}
	c := *d
	return &c, nil
}

func (s *memStore) SetDonationActive(_ context.Context, id uint, active bool) error {
	if s.failSetActive != nil {
		return s.failSetActive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok {
		return apperr.NotFound("donation not found")
	}
	d.Active = active
	return nil
}
