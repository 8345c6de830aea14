package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/config"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/auditlog"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/notification"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/channelmanager"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/ota"
	redislock "github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/redis"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/metrics"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/tracing"
)

const compensationTimeout = 10 * time.Second

// ErrPendingAbandoned は確定されないまま放置された保留中予約を破棄したことを表す
var ErrPendingAbandoned = errors.New("確定されないまま放置された予約を破棄しました")

// CancelInput は予約キャンセルの入力
type CancelInput struct {
	Reason string `json:"reason,omitempty"`
}

// CreateReservationResult は予約作成の結果
type CreateReservationResult struct {
	ReservationID  string
	AgeCodeSummary reservation.AgeCodeSummary
}

// AmendReservationResult は予約変更の結果
type AmendReservationResult struct {
	AgeCodeSummary reservation.AgeCodeSummary
}

// CancelReservationResult は予約キャンセルの結果
type CancelReservationResult struct {
	ReservationID string
}

// ReservationService は予約の作成・変更・キャンセルを調整する
// 在庫確保 → チャネルマネージャー送信 → 確定の順に進め、失敗時は補償処理で在庫を戻す
type ReservationService struct {
	processor   *reservation.Processor
	formatter   FormatterInterface
	client      ChannelClientInterface
	store       ReservationStoreInterface
	inventory   InventoryAdjusterInterface
	notifier    notification.Notifier
	locker      redislock.Locker
	cfg         config.ReservationConfig
	flowTimeout time.Duration
	metrics     *metrics.Metrics
}

// NewReservationService は ReservationService を作成する
// notifier は nil でもよい。locker が nil の場合は同一予約への変更・キャンセルを直列化しない
func NewReservationService(
	p *reservation.Processor,
	f FormatterInterface,
	c ChannelClientInterface,
	store ReservationStoreInterface,
	adj InventoryAdjusterInterface,
	locker redislock.Locker,
	n notification.Notifier,
	cfg config.ReservationConfig,
	m *metrics.Metrics,
) *ReservationService {
	return &ReservationService{
		processor:   p,
		formatter:   f,
		client:      c,
		store:       store,
		inventory:   adj,
		notifier:    n,
		locker:      locker,
		cfg:         cfg,
		flowTimeout: cfg.FlowTimeout,
		metrics:     m,
	}
}

// CreateReservation は予約を作成する
// 戻り値のエラーが *NotificationError の場合、予約自体は成功しており結果も返す
func (s *ReservationService) CreateReservation(ctx context.Context, in reservation.BookingInput) (result *CreateReservationResult, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ctx, span := tracing.Start(ctx, "ReservationService.CreateReservation")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
		s.metrics.ObserveReservation("create", outcome(err))
	}()

	rec, err := s.processor.Process(in)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("reservation.id", rec.ID))

	message, err := s.formatter.FormatCreate(rec)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreatePending(ctx, rec); err != nil {
		return nil, err
	}

	hold := adjustmentFor(rec)
	if err := s.adjust(s.inventory.Decrement(ctx, hold)); err != nil {
		s.abortCreate(ctx, rec, in, message, nil, err)
		return nil, err
	}
	if err := s.store.MarkInventoryHeld(ctx, rec.ID); err != nil {
		s.release(ctx, "create", rec.ID, hold)
		s.abortCreate(ctx, rec, in, message, nil, err)
		return nil, err
	}
	rec.InventoryHeld = true

	raw, err := s.send(ctx, ota.OperationCreate, message)
	if err != nil {
		s.release(ctx, "create", rec.ID, hold)
		s.abortCreate(ctx, rec, in, message, raw, err)
		return nil, err
	}

	if err := s.store.CreateReservation(ctx, rec, in, message, raw); err != nil {
		// チャネルマネージャーでは確定済み。保留中のまま残し、リコンサイラーで確定させる
		s.metrics.Inconsistency("create")
		logger.Alert(ctx, "チャネルマネージャーで確定した予約を保存できませんでした",
			zap.String("reservation_id", rec.ID),
			zap.Error(err),
		)
		return nil, err
	}

	result = &CreateReservationResult{ReservationID: rec.ID, AgeCodeSummary: rec.AgeCodeSummary}
	if err := s.notify(ctx, notification.KindCreated, rec); err != nil {
		return result, err
	}
	return result, nil
}

// AmendReservation は予約内容を変更する
// 外部で変更が拒否された場合は元の在庫確保状態に戻す
func (s *ReservationService) AmendReservation(ctx context.Context, id string, in reservation.StayDetails) (result *AmendReservationResult, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ctx, span := tracing.Start(ctx, "ReservationService.AmendReservation",
		traceAttr(id))
	defer func() {
		tracing.RecordError(span, err)
		span.End()
		s.metrics.ObserveReservation("amend", outcome(err))
	}()

	var message []byte
	fail := func(cause error, raw []byte) (*AmendReservationResult, error) {
		s.store.RecordFailure(ctx, auditlog.ProcessAmend, id, in, message, raw, cause)
		return nil, cause
	}

	unlock, err := s.lockReservation(ctx, id)
	if err != nil {
		return fail(err, nil)
	}
	defer unlock()

	existing, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return fail(err, nil)
	}
	if err := existing.CheckModifiable(s.processor.Today()); err != nil {
		return fail(err, nil)
	}
	updated, err := s.processor.ProcessAmendment(existing, in)
	if err != nil {
		return fail(err, nil)
	}
	message, err = s.formatter.FormatAmend(updated)
	if err != nil {
		return fail(err, nil)
	}

	original, replacement := adjustmentFor(existing), adjustmentFor(updated)
	if existing.InventoryHeld {
		if err := s.adjust(s.inventory.Swap(ctx, original, replacement)); err != nil {
			return fail(err, nil)
		}
	}

	raw, err := s.send(ctx, ota.OperationAmend, message)
	if err != nil {
		if existing.InventoryHeld {
			s.restore(ctx, id, replacement, original)
		}
		return fail(err, raw)
	}

	saved, err := s.store.AmendReservation(ctx, id, updated, in, message, raw)
	if err != nil {
		s.metrics.Inconsistency("amend")
		logger.Alert(ctx, "チャネルマネージャーで変更済みの予約を保存できませんでした",
			zap.String("reservation_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	result = &AmendReservationResult{AgeCodeSummary: saved.AgeCodeSummary}
	if err := s.notify(ctx, notification.KindAmended, saved); err != nil {
		return result, err
	}
	return result, nil
}

// CancelReservation は予約をキャンセルし、確保していた在庫を戻す
func (s *ReservationService) CancelReservation(ctx context.Context, id string, in CancelInput) (result *CancelReservationResult, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ctx, span := tracing.Start(ctx, "ReservationService.CancelReservation",
		traceAttr(id))
	defer func() {
		tracing.RecordError(span, err)
		span.End()
		s.metrics.ObserveReservation("cancel", outcome(err))
	}()

	var message []byte
	fail := func(cause error, raw []byte) (*CancelReservationResult, error) {
		s.store.RecordFailure(ctx, auditlog.ProcessCancel, id, in, message, raw, cause)
		return nil, cause
	}

	unlock, err := s.lockReservation(ctx, id)
	if err != nil {
		return fail(err, nil)
	}
	defer unlock()

	existing, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return fail(err, nil)
	}
	if err := existing.CheckModifiable(s.processor.Today()); err != nil {
		return fail(err, nil)
	}
	message, err = s.formatter.FormatCancel(existing)
	if err != nil {
		return fail(err, nil)
	}

	raw, err := s.send(ctx, ota.OperationCancel, message)
	if err != nil {
		return fail(err, raw)
	}

	saved, err := s.store.CancelReservation(ctx, id, in, message, raw)
	if err != nil {
		s.metrics.Inconsistency("cancel")
		logger.Alert(ctx, "チャネルマネージャーでキャンセル済みの予約を保存できませんでした",
			zap.String("reservation_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	if existing.InventoryHeld {
		s.release(ctx, "cancel", id, adjustmentFor(existing))
	}

	result = &CancelReservationResult{ReservationID: id}
	if err := s.notify(ctx, notification.KindCancelled, saved); err != nil {
		return result, err
	}
	return result, nil
}

// GetReservation は予約を取得する
func (s *ReservationService) GetReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	return s.store.GetReservation(ctx, id)
}

// ListReservationLogs は予約の監査ログを取得する
// 作成に失敗して予約が残っていない場合もログは返す
func (s *ReservationService) ListReservationLogs(ctx context.Context, id string) ([]*auditlog.Entry, error) {
	return s.store.ListLogs(ctx, id)
}

// ReconcilePendingReservations は確定されないまま残った保留中予約を処理する
// 作成メッセージを再送して受理されれば確定し、そうでなければ在庫を戻して破棄する
func (s *ReservationService) ReconcilePendingReservations(ctx context.Context, olderThan time.Duration) (int, error) {
	ctx, span := tracing.Start(ctx, "ReservationService.ReconcilePendingReservations")
	defer span.End()

	stale, err := s.store.ListStalePending(ctx, olderThan)
	if err != nil {
		tracing.RecordError(span, err)
		return 0, err
	}
	s.metrics.SetPending(len(stale))

	resolved := 0
	for _, rec := range stale {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		if s.reconcile(ctx, rec) {
			resolved++
		}
	}
	return resolved, nil
}

func (s *ReservationService) reconcile(ctx context.Context, rec *reservation.Reservation) bool {
	log := logger.Ctx(ctx).With(zap.String("reservation_id", rec.ID))

	if !rec.InventoryHeld {
		s.abortCreate(ctx, rec, nil, nil, nil, ErrPendingAbandoned)
		log.Info("在庫未確保の保留中予約を破棄しました")
		return true
	}

	message, err := s.formatter.FormatCreate(rec)
	if err == nil {
		var raw []byte
		raw, err = s.send(ctx, ota.OperationCreate, message)
		if err == nil {
			if err := s.store.CreateReservation(ctx, rec, nil, message, raw); err != nil {
				log.Error("保留中予約の確定に失敗", zap.Error(err))
				return false
			}
			log.Info("保留中予約を確定しました")
			return true
		}
		if !isPermanentRejection(err) {
			log.Warn("保留中予約の再送に失敗したため次回に持ち越します", zap.Error(err))
			return false
		}
	}

	s.release(ctx, "reconcile", rec.ID, adjustmentFor(rec))
	s.abortCreate(ctx, rec, nil, message, nil, fmt.Errorf("%w: %v", ErrPendingAbandoned, err))
	log.Info("保留中予約を破棄しました", zap.Error(err))
	return true
}

// send はメッセージを送信し、応答に Errors 要素があれば拒否として扱う
// 戻り値の応答本文は失敗時も監査ログ用に返す
func (s *ReservationService) send(ctx context.Context, op ota.Operation, message []byte) ([]byte, error) {
	resp, err := s.client.Send(ctx, op, message)
	if err != nil {
		if resp != nil {
			return resp.Body, err
		}
		return nil, err
	}
	ack := ota.ParseAcknowledgement(resp.Body)
	if ack.Unparsed {
		logger.Ctx(ctx).Warn("チャネルマネージャーの応答を解釈できないため受理として扱います",
			zap.String("operation", string(op)),
			zap.Int("status", resp.StatusCode),
		)
	}
	if !ack.Accepted() {
		return resp.Body, channelmanager.NewRejectedError(string(op), resp.StatusCode, resp.Body, ack.ErrorSummary())
	}
	return resp.Body, nil
}

// lockReservation は予約単位の分散ロックを取得し、解放関数を返す
// 読み取りから保存までを同じ予約への他の変更・キャンセルと直列化する
func (s *ReservationService) lockReservation(ctx context.Context, id string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	ttl := s.cfg.LockTTL
	if s.flowTimeout > 0 {
		ttl = s.flowTimeout + compensationTimeout
	}
	retries := 1
	if s.cfg.LockRetryInterval > 0 {
		retries = int(s.cfg.LockWait/s.cfg.LockRetryInterval) + 1
	}

	start := time.Now()
	lock, err := s.locker.AcquireLockWithRetry(ctx, "reservation:"+id, ttl, retries, s.cfg.LockRetryInterval)
	if err != nil {
		s.metrics.ObserveLock("acquire", "failure", time.Since(start))
		if errors.Is(err, redislock.ErrLockNotAcquired) {
			return nil, reservation.ErrReservationBusy
		}
		return nil, fmt.Errorf("予約ロックの取得に失敗: %w", err)
	}
	s.metrics.ObserveLock("acquire", "success", time.Since(start))

	return func() {
		ctx, cancel := detached(ctx)
		defer cancel()
		if err := lock.Release(ctx); err != nil {
			logger.Ctx(ctx).Warn("予約ロックの解放に失敗", zap.String("reservation_id", id), zap.Error(err))
		}
	}, nil
}

// adjust は在庫調整の結果をエラーに変換する
func (s *ReservationService) adjust(result *inventory.AdjustmentResult, err error) error {
	if err != nil {
		return err
	}
	return result.Err()
}

// release は確保済みの在庫を戻す。失敗した場合は運用者に通知する
func (s *ReservationService) release(ctx context.Context, operation, id string, adj inventory.Adjustment) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := s.adjust(s.inventory.Increment(ctx, adj)); err != nil {
		s.metrics.Inconsistency(operation)
		logger.Alert(ctx, "在庫を戻せませんでした",
			zap.String("reservation_id", id),
			zap.String("operation", operation),
			zap.String("inventory", adj.Key.String()),
			zap.Error(err),
		)
	}
}

// restore は変更で入れ替えた在庫を元に戻す
func (s *ReservationService) restore(ctx context.Context, id string, current, original inventory.Adjustment) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := s.adjust(s.inventory.Swap(ctx, current, original)); err != nil {
		s.metrics.Inconsistency("amend")
		logger.Alert(ctx, "変更前の在庫に戻せませんでした",
			zap.String("reservation_id", id),
			zap.Error(err),
		)
	}
}

func (s *ReservationService) abortCreate(ctx context.Context, rec *reservation.Reservation, input any, message, raw []byte, cause error) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := s.store.AbortCreate(ctx, rec, input, message, raw, cause); err != nil {
		logger.Ctx(ctx).Error("保留中予約の破棄に失敗",
			zap.String("reservation_id", rec.ID),
			zap.Error(err),
		)
	}
}

// notify は予約の宛先に通知する。宛先がなければ何もしない
func (s *ReservationService) notify(ctx context.Context, kind notification.Kind, r *reservation.Reservation) error {
	if s.notifier == nil || r.Email == "" {
		return nil
	}
	n, err := buildNotification(kind, r)
	if err == nil {
		err = s.notifier.Notify(ctx, n)
	}
	if err != nil {
		s.metrics.NotificationFailed(string(kind))
		logger.Ctx(ctx).Warn("通知の送信に失敗",
			zap.String("reservation_id", r.ID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return &NotificationError{Kind: kind, ReservationID: r.ID, Err: err}
	}
	return nil
}

func (s *ReservationService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.flowTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.flowTimeout)
}

// detached は呼び出し元のキャンセルに影響されない補償処理用のコンテキストを返す
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
}

func adjustmentFor(r *reservation.Reservation) inventory.Adjustment {
	return inventory.Adjustment{
		Key:      inventory.Key{HotelCode: r.HotelCode, InvTypeCode: r.RoomTypeCode},
		CheckIn:  r.CheckInDate,
		CheckOut: r.CheckOutDate,
		Rooms:    r.NumberOfRooms,
	}
}

func isChannelManagerError(err error) bool {
	var cmErr *channelmanager.Error
	return errors.As(err, &cmErr)
}

// isPermanentRejection はチャネルマネージャーが要求そのものを受け付けなかったかを判定する
// 通信エラーや 5xx、408・429 は一時的な障害として扱う
func isPermanentRejection(err error) bool {
	if errors.Is(err, channelmanager.ErrRejected) {
		return true
	}
	var cmErr *channelmanager.Error
	if !errors.As(err, &cmErr) {
		return false
	}
	switch cmErr.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return cmErr.StatusCode >= 400 && cmErr.StatusCode < 500
}

func traceAttr(id string) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("reservation.id", id))
}

// outcome はメトリクス用に結果を分類する
func outcome(err error) string {
	var notifyErr *NotificationError
	switch {
	case err == nil, errors.As(err, &notifyErr):
		return "success"
	case errors.Is(err, reservation.ErrValidation):
		return "invalid"
	case errors.Is(err, inventory.ErrInsufficientAvailability), errors.Is(err, inventory.ErrInventoryNotFound),
		errors.Is(err, inventory.ErrInventoryBusy):
		return "unavailable"
	case errors.Is(err, reservation.ErrReservationBusy), errors.Is(err, reservation.ErrReservationNotConfirmed),
		errors.Is(err, reservation.ErrReservationAlreadyCancelled), errors.Is(err, reservation.ErrCheckInPassed):
		return "conflict"
	case isChannelManagerError(err):
		return "channel_error"
	default:
		return "error"
	}
}
