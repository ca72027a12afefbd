package storage

import (
	"context"
	"errors"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/models"

	"gorm.io/gorm"
)

func (s *Service) GetRequest(ctx context.Context, id uint) (*models.Request, error) {
	var req models.Request
	if err := s.db(ctx).First(&req, id).Error; err != nil {
		return nil, wrapErr(err, "request not found")
	}
	return &req, nil
}

func (s *Service) FindRequest(ctx context.Context, donationID, requesterID uint) (*models.Request, error) {
	var req models.Request
	err := s.db(ctx).
		Where("donation_id = ? AND requester_id = ?", donationID, requesterID).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &req, nil
}

// ListRequestsByDonation returns the donation's requests, oldest first.
func (s *Service) ListRequestsByDonation(ctx context.Context, donationID uint) ([]models.Request, error) {
	var reqs []models.Request
	if err := s.db(ctx).Where("donation_id = ?", donationID).Order("created_at asc, id asc").Find(&reqs).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return reqs, nil
}

// ListRequestsByRequester returns the requester's requests, newest first.
func (s *Service) ListRequestsByRequester(ctx context.Context, requesterID uint) ([]models.Request, error) {
	var reqs []models.Request
	if err := s.db(ctx).Where("requester_id = ?", requesterID).Order("created_at desc, id desc").Find(&reqs).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return reqs, nil
}

func (s *Service) CreateRequest(ctx context.Context, req *models.Request) error {
	err := s.db(ctx).Create(req).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.DuplicateRequest("a request for this donation already exists")
	}
	return wrapErr(err, "request not found")
}

func (s *Service) SaveRequest(ctx context.Context, req *models.Request) error {
	return wrapErr(s.db(ctx).Save(req).Error, "request not found")
}

func (s *Service) FindOpenRequestBetween(ctx context.Context, a, b uint) (*models.Request, uint, error) {
	var row struct {
		models.Request
		OwnerUserID uint
	}
	err := s.db(ctx).
		Table("requests").
		Select("requests.*, donations.owner_user_id").
		Joins("JOIN donations ON donations.id = requests.donation_id").
		Where("requests.status IN ?", []models.RequestStatus{models.StatusPending, models.StatusAccepted}).
		Where("(requests.requester_id = ? AND donations.owner_user_id = ?) OR (requests.requester_id = ? AND donations.owner_user_id = ?)", a, b, b, a).
		Order("requests.updated_at desc").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	if row.ID == 0 {
		return nil, 0, nil
	}
	req := row.Request
	return &req, row.OwnerUserID, nil
}

func (s *Service) GetDonation(ctx context.Context, id uint) (*models.Donation, error) {
	var donation models.Donation
	if err := s.db(ctx).First(&donation, id).Error; err != nil {
		return nil, wrapErr(err, "donation not found")
	}
	return &donation, nil
}

func (s *Service) SetDonationActive(ctx context.Context, id uint, active bool) error {
	res := s.db(ctx).Model(&models.Donation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"active":     active,
			"updated_at": gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return apperr.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("donation not found")
	}
	return nil
}
