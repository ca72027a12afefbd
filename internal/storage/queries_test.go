package storage

import (
	"context"
	"testing"
	"time"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	return NewStorageService(db, nil), mock
}

func TestWithinDonation_LocksRowAndCommits(t *testing.T) {
	s, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "donations" .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectQuery(`SELECT \* FROM "requests"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "donation_id", "requester_id", "status"}).
			AddRow(4, 2, 9, "pending"))
	mock.ExpectCommit()

	var got *models.Request
	err := s.WithinDonation(context.Background(), 2, func(ctx context.Context) error {
		var err error
		got, err = s.GetRequest(ctx, 4)
		return err
	})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint(9), got.RequesterID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinDonation_RollsBackOnError(t *testing.T) {
	s, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "donations" .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectRollback()

	forbidden := apperr.Forbidden("not the donor")
	err := s.WithinDonation(context.Background(), 2, func(ctx context.Context) error {
		return forbidden
	})

	assert.Same(t, forbidden, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinDonation_MissingDonation(t *testing.T) {
	s, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "donations" .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	called := false
	err := s.WithinDonation(context.Background(), 99, func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOpenRequestBetween(t *testing.T) {
	s, mock := newMockService(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT requests\.\*, donations\.owner_user_id FROM "requests".*JOIN donations ON donations\.id = requests\.donation_id.*requests\.status IN .*ORDER BY requests\.updated_at desc LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "donation_id", "requester_id", "status", "created_at", "updated_at", "owner_user_id"}).
			AddRow(4, 2, 9, "accepted", now, now, 7))

	req, ownerID, err := s.FindOpenRequestBetween(context.Background(), 7, 9)

	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, uint(4), req.ID)
	assert.Equal(t, uint(2), req.DonationID)
	assert.Equal(t, uint(9), req.RequesterID)
	assert.Equal(t, models.StatusAccepted, req.Status)
	assert.Equal(t, uint(7), ownerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOpenRequestBetween_NoneOpen(t *testing.T) {
	s, mock := newMockService(t)

	mock.ExpectQuery(`FROM "requests" JOIN donations`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "donation_id", "requester_id", "status", "owner_user_id"}))

	req, ownerID, err := s.FindOpenRequestBetween(context.Background(), 7, 9)

	assert.NoError(t, err)
	assert.Nil(t, req)
	assert.Zero(t, ownerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContacts_BothDirections(t *testing.T) {
	s, mock := newMockService(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id IN \(.*recipient_id.* FROM "messages" WHERE sender_id = .* OR id IN \(.*sender_id.* FROM "messages" WHERE recipient_id = .*ORDER BY display_name asc`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "display_name"}).
			AddRow(9, "bia@example.com", "Bia").
			AddRow(10, "caio@example.com", "Caio"))

	users, err := s.Contacts(context.Background(), 7)

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Bia", users[0].DisplayName)
	assert.Equal(t, uint(10), users[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDonationActive_UnknownDonation(t *testing.T) {
	s, mock := newMockService(t)

	mock.ExpectExec(`UPDATE "donations" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetDonationActive(context.Background(), 99, false)

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequest_DuplicatePair(t *testing.T) {
	s, mock := newMockService(t)

	mock.ExpectQuery(`INSERT INTO "requests"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := s.CreateRequest(context.Background(), &models.Request{DonationID: 2, RequesterID: 9, Status: models.StatusPending})

	assert.True(t, apperr.Is(err, apperr.KindDuplicateRequest))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkConversationRead_ReturnsAffectedRows(t *testing.T) {
	s, mock := newMockService(t)

	mock.ExpectExec(`UPDATE "messages" SET "read_flag"=.*WHERE sender_id = .* AND recipient_id = .* AND read_flag = `).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.MarkConversationRead(context.Background(), 7, 9)

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
