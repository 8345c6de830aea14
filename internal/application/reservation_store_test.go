package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/auditlog"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
)

// MockReservationRepository implements reservation.Repository
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) Create(ctx context.Context, r *reservation.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) Update(ctx context.Context, r *reservation.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockReservationRepository) UpdateStatus(ctx context.Context, id string, from, to reservation.Status, at time.Time) error {
	args := m.Called(ctx, id, from, to, at)
	return args.Error(0)
}

func (m *MockReservationRepository) SetInventoryHeld(ctx context.Context, id string, held bool) error {
	args := m.Called(ctx, id, held)
	return args.Error(0)
}

func (m *MockReservationRepository) DeletePending(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockReservationRepository) GetStalePending(ctx context.Context, olderThan time.Duration) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

// MockAuditLogRepository implements auditlog.Repository
type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Append(ctx context.Context, entry *auditlog.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditLogRepository) ListByReservationID(ctx context.Context, id string) ([]*auditlog.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auditlog.Entry), args.Error(1)
}

func newTestStore() (*ReservationStore, *MockReservationRepository, *MockAuditLogRepository) {
	rr := new(MockReservationRepository)
	lr := new(MockAuditLogRepository)
	return NewReservationStore(rr, lr, func() time.Time { return testNow }, nil), rr, lr
}

func auditEntry(process auditlog.Process, status auditlog.Status) interface{} {
	return mock.MatchedBy(func(e *auditlog.Entry) bool {
		return e.Process == process && e.Status == status && e.ReservationID == "RES-001"
	})
}

func TestReservationStore_CreatePending(t *testing.T) {
	ctx := context.Background()

	t.Run("ID重複はそのまま返す", func(t *testing.T) {
		store, rr, _ := newTestStore()
		rr.On("Create", ctx, mock.Anything).Return(reservation.ErrReservationAlreadyExists)

		err := store.CreatePending(ctx, confirmedReservation())

		assert.ErrorIs(t, err, reservation.ErrReservationAlreadyExists)
		var pErr *PersistenceError
		assert.False(t, errors.As(err, &pErr))
	})

	t.Run("DBエラーはPersistenceErrorで包む", func(t *testing.T) {
		store, rr, _ := newTestStore()
		rr.On("Create", ctx, mock.Anything).Return(errors.New("connection refused"))

		err := store.CreatePending(ctx, confirmedReservation())

		var pErr *PersistenceError
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, "create_pending", pErr.Op)
	})
}

func TestReservationStore_CreateReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("保留中の予約を確定して成功を記録する", func(t *testing.T) {
		store, rr, lr := newTestStore()
		rec := confirmedReservation()
		rec.Status = reservation.StatusPending
		rr.On("UpdateStatus", ctx, "RES-001", reservation.StatusPending, reservation.StatusConfirmed, testNow).Return(nil)
		lr.On("Append", mock.Anything, mock.MatchedBy(func(e *auditlog.Entry) bool {
			return e.Process == auditlog.ProcessReservation && e.Status == auditlog.StatusSuccess &&
				e.XMLSent == "<xml/>" && e.RawResponse == "<ok/>"
		})).Return(nil)

		err := store.CreateReservation(ctx, rec, map[string]string{"k": "v"}, []byte("<xml/>"), []byte("<ok/>"))

		require.NoError(t, err)
		assert.Equal(t, reservation.StatusConfirmed, rec.Status)
		rr.AssertExpectations(t)
		lr.AssertExpectations(t)
	})

	t.Run("監査ログの失敗は結果に影響しない", func(t *testing.T) {
		store, rr, lr := newTestStore()
		rec := confirmedReservation()
		rec.Status = reservation.StatusPending
		rr.On("UpdateStatus", ctx, "RES-001", reservation.StatusPending, reservation.StatusConfirmed, testNow).Return(nil)
		lr.On("Append", mock.Anything, mock.Anything).Return(errors.New("log table locked"))

		err := store.CreateReservation(ctx, rec, nil, nil, nil)

		require.NoError(t, err)
	})
}

func TestReservationStore_AbortCreate(t *testing.T) {
	ctx := context.Background()
	store, rr, lr := newTestStore()
	cause := errors.New("rejected")
	rr.On("DeletePending", ctx, "RES-001").Return(nil)
	lr.On("Append", mock.Anything, mock.MatchedBy(func(e *auditlog.Entry) bool {
		return e.Status == auditlog.StatusFailure && e.ErrorMessage == "rejected"
	})).Return(nil)

	err := store.AbortCreate(ctx, confirmedReservation(), nil, []byte("<xml/>"), nil, cause)

	require.NoError(t, err)
	rr.AssertExpectations(t)
	lr.AssertExpectations(t)
}

func TestReservationStore_AmendReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("内容を上書きして成功を記録する", func(t *testing.T) {
		store, rr, lr := newTestStore()
		existing := confirmedReservation()
		updated := confirmedReservation()
		updated.CheckOutDate = date(2025, 7, 5)
		updated.NumberOfRooms = 2
		rr.On("GetByID", ctx, "RES-001").Return(existing, nil)
		rr.On("Update", ctx, mock.MatchedBy(func(r *reservation.Reservation) bool {
			return r.NumberOfRooms == 2 && r.CheckOutDate.Equal(date(2025, 7, 5)) && r.Status == reservation.StatusConfirmed
		})).Return(nil)
		lr.On("Append", mock.Anything, auditEntry(auditlog.ProcessAmend, auditlog.StatusSuccess)).Return(nil)

		saved, err := store.AmendReservation(ctx, "RES-001", updated, nil, nil, nil)

		require.NoError(t, err)
		assert.Equal(t, 2, saved.NumberOfRooms)
		assert.Equal(t, testNow, saved.UpdatedAt)
		lr.AssertExpectations(t)
	})

	t.Run("キャンセル済みの予約は失敗を記録してエラーを返す", func(t *testing.T) {
		store, rr, lr := newTestStore()
		existing := confirmedReservation()
		existing.Status = reservation.StatusCancelled
		rr.On("GetByID", ctx, "RES-001").Return(existing, nil)
		lr.On("Append", mock.Anything, auditEntry(auditlog.ProcessAmend, auditlog.StatusFailure)).Return(nil)

		_, err := store.AmendReservation(ctx, "RES-001", confirmedReservation(), nil, nil, nil)

		assert.ErrorIs(t, err, reservation.ErrReservationAlreadyCancelled)
		rr.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		lr.AssertExpectations(t)
	})

	t.Run("チェックイン日を過ぎた予約はErrCheckInPassed", func(t *testing.T) {
		store, rr, lr := newTestStore()
		existing := confirmedReservation()
		existing.CheckInDate = date(2025, 6, 1)
		rr.On("GetByID", ctx, "RES-001").Return(existing, nil)
		lr.On("Append", mock.Anything, auditEntry(auditlog.ProcessAmend, auditlog.StatusFailure)).Return(nil)

		_, err := store.AmendReservation(ctx, "RES-001", confirmedReservation(), nil, nil, nil)

		assert.ErrorIs(t, err, reservation.ErrCheckInPassed)
	})

	t.Run("存在しない予約はErrReservationNotFound", func(t *testing.T) {
		store, rr, lr := newTestStore()
		rr.On("GetByID", ctx, "RES-001").Return(nil, reservation.ErrReservationNotFound)
		lr.On("Append", mock.Anything, auditEntry(auditlog.ProcessAmend, auditlog.StatusFailure)).Return(nil)

		_, err := store.AmendReservation(ctx, "RES-001", confirmedReservation(), nil, nil, nil)

		assert.ErrorIs(t, err, reservation.ErrReservationNotFound)
	})
}

func TestReservationStore_CancelReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("キャンセルして宿泊者を記録する", func(t *testing.T) {
		store, rr, lr := newTestStore()
		rr.On("GetByID", ctx, "RES-001").Return(confirmedReservation(), nil)
		rr.On("Update", ctx, mock.MatchedBy(func(r *reservation.Reservation) bool {
			return r.IsCancelled() && r.CancelledGuest != nil && r.CancelledGuest.FirstName == "Taro"
		})).Return(nil)
		lr.On("Append", mock.Anything, auditEntry(auditlog.ProcessCancel, auditlog.StatusSuccess)).Return(nil)

		saved, err := store.CancelReservation(ctx, "RES-001", CancelInput{Reason: "体調不良"}, nil, nil)

		require.NoError(t, err)
		assert.True(t, saved.IsCancelled())
		require.NotNil(t, saved.CancelledAt)
		assert.Equal(t, testNow, *saved.CancelledAt)
	})

	t.Run("キャンセル済みの予約はErrReservationAlreadyCancelled", func(t *testing.T) {
		store, rr, lr := newTestStore()
		existing := confirmedReservation()
		existing.Status = reservation.StatusCancelled
		rr.On("GetByID", ctx, "RES-001").Return(existing, nil)
		lr.On("Append", mock.Anything, auditEntry(auditlog.ProcessCancel, auditlog.StatusFailure)).Return(nil)

		_, err := store.CancelReservation(ctx, "RES-001", CancelInput{}, nil, nil)

		assert.ErrorIs(t, err, reservation.ErrReservationAlreadyCancelled)
	})

	t.Run("更新に失敗した場合はPersistenceError", func(t *testing.T) {
		store, rr, lr := newTestStore()
		rr.On("GetByID", ctx, "RES-001").Return(confirmedReservation(), nil)
		rr.On("Update", ctx, mock.Anything).Return(errors.New("deadlock detected"))
		lr.On("Append", mock.Anything, auditEntry(auditlog.ProcessCancel, auditlog.StatusFailure)).Return(nil)

		_, err := store.CancelReservation(ctx, "RES-001", CancelInput{}, nil, nil)

		var pErr *PersistenceError
		assert.ErrorAs(t, err, &pErr)
	})
}
