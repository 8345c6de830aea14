package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/auditlog"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/metrics"
)

const auditTimeout = 5 * time.Second

// ReservationStore は予約レコードの状態遷移と監査ログの記録を担う
// 監査ログの書き込みはベストエフォートで、失敗しても主処理の結果は変えない
type ReservationStore struct {
	reservations reservation.Repository
	logs         auditlog.Repository
	now          func() time.Time
	metrics      *metrics.Metrics
}

// NewReservationStore は ReservationStore を作成する（now が nil なら time.Now）
func NewReservationStore(rr reservation.Repository, lr auditlog.Repository, now func() time.Time, m *metrics.Metrics) *ReservationStore {
	if now == nil {
		now = time.Now
	}
	return &ReservationStore{reservations: rr, logs: lr, now: now, metrics: m}
}

func (s *ReservationStore) GetReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	r, err := s.reservations.GetByID(ctx, id)
	return r, persistence("get", err)
}

func (s *ReservationStore) ListLogs(ctx context.Context, id string) ([]*auditlog.Entry, error) {
	entries, err := s.logs.ListByReservationID(ctx, id)
	return entries, persistence("list_logs", err)
}

// CreatePending は保留中の予約を登録する。ID重複は ErrReservationAlreadyExists
func (s *ReservationStore) CreatePending(ctx context.Context, rec *reservation.Reservation) error {
	return persistence("create_pending", s.reservations.Create(ctx, rec))
}

// MarkInventoryHeld は在庫を確保済みとして記録する
func (s *ReservationStore) MarkInventoryHeld(ctx context.Context, id string) error {
	return persistence("mark_inventory_held", s.reservations.SetInventoryHeld(ctx, id, true))
}

// CreateReservation は保留中の予約を確定し、成功を記録する
func (s *ReservationStore) CreateReservation(ctx context.Context, rec *reservation.Reservation, input any, xmlSent, rawResponse []byte) error {
	now := s.now()
	if err := s.reservations.UpdateStatus(ctx, rec.ID, reservation.StatusPending, reservation.StatusConfirmed, now); err != nil {
		return persistence("confirm", err)
	}
	if err := rec.Confirm(now); err != nil {
		return err
	}
	s.append(ctx, auditlog.NewEntry(auditlog.ProcessReservation, rec.ID, input, xmlSent, rawResponse, nil))
	return nil
}

// AbortCreate は外部で確定しなかった保留中の予約を削除し、失敗を記録する
// 削除後も同じ予約IDで再試行できる
func (s *ReservationStore) AbortCreate(ctx context.Context, rec *reservation.Reservation, input any, xmlSent, rawResponse []byte, cause error) error {
	err := s.reservations.DeletePending(ctx, rec.ID)
	s.append(ctx, auditlog.NewEntry(auditlog.ProcessReservation, rec.ID, input, xmlSent, rawResponse, cause))
	return persistence("abort_create", err)
}

// AmendReservation は予約内容を上書きし、成功を記録する
// 失敗した場合も失敗として記録してからエラーを返す
func (s *ReservationStore) AmendReservation(ctx context.Context, id string, updated *reservation.Reservation, input any, xmlSent, rawResponse []byte) (res *reservation.Reservation, err error) {
	defer func() {
		s.append(ctx, auditlog.NewEntry(auditlog.ProcessAmend, id, input, xmlSent, rawResponse, err))
	}()

	existing, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, persistence("amend", err)
	}
	now := s.now()
	if err := existing.CheckModifiable(stay.DateOf(now)); err != nil {
		return nil, err
	}
	existing.ApplyAmendment(updated, now)
	if err := s.reservations.Update(ctx, existing); err != nil {
		return nil, persistence("amend", err)
	}
	return existing, nil
}

// CancelReservation は予約をキャンセル済みにし、成功を記録する
func (s *ReservationStore) CancelReservation(ctx context.Context, id string, input any, xmlSent, rawResponse []byte) (res *reservation.Reservation, err error) {
	defer func() {
		s.append(ctx, auditlog.NewEntry(auditlog.ProcessCancel, id, input, xmlSent, rawResponse, err))
	}()

	existing, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, persistence("cancel", err)
	}
	now := s.now()
	if err := existing.CheckModifiable(stay.DateOf(now)); err != nil {
		return nil, err
	}
	if err := existing.Cancel(now); err != nil {
		return nil, err
	}
	if err := s.reservations.Update(ctx, existing); err != nil {
		return nil, persistence("cancel", err)
	}
	return existing, nil
}

// RecordFailure はストアに到達する前に失敗した操作を記録する
func (s *ReservationStore) RecordFailure(ctx context.Context, process auditlog.Process, id string, input any, xmlSent, rawResponse []byte, cause error) {
	s.append(ctx, auditlog.NewEntry(process, id, input, xmlSent, rawResponse, cause))
}

// ListStalePending は確定されないまま残った保留中の予約を取得する
func (s *ReservationStore) ListStalePending(ctx context.Context, olderThan time.Duration) ([]*reservation.Reservation, error) {
	rs, err := s.reservations.GetStalePending(ctx, olderThan)
	return rs, persistence("list_stale_pending", err)
}

func (s *ReservationStore) append(ctx context.Context, entry *auditlog.Entry) {
	// フローのタイムアウト後も記録できるようキャンセルを切り離す
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := s.logs.Append(ctx, entry); err != nil {
		s.metrics.AuditAppendFailed(string(entry.Process))
		logger.Ctx(ctx).Error("監査ログの記録に失敗",
			zap.String("reservation_id", entry.ReservationID),
			zap.String("process", string(entry.Process)),
			zap.String("status", string(entry.Status)),
			zap.Error(err),
		)
	}
}

var _ ReservationStoreInterface = (*ReservationStore)(nil)
