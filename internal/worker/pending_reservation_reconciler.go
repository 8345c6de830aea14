package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/logger"
)

// PendingReconciler は確定されないまま残った保留中の予約を解決するインターフェース
type PendingReconciler interface {
	ReconcilePendingReservations(ctx context.Context, olderThan time.Duration) (int, error)
}

// PendingReservationReconciler は保留中の予約を定期的に解決するワーカー
// プロセスが送信途中で停止した予約を、在庫の確保状況に応じて確定または破棄する
type PendingReservationReconciler struct {
	reservationService PendingReconciler
	interval           time.Duration
	olderThan          time.Duration
	stopCh             chan struct{}
	doneCh             chan struct{}
}

// NewPendingReservationReconciler は新しいワーカーを作成
func NewPendingReservationReconciler(
	rs PendingReconciler,
	interval time.Duration,
	olderThan time.Duration,
) *PendingReservationReconciler {
	return &PendingReservationReconciler{
		reservationService: rs,
		interval:           interval,
		olderThan:          olderThan,
		stopCh:             make(chan struct{}),
		doneCh:             make(chan struct{}),
	}
}

// Start はワーカーを開始
func (r *PendingReservationReconciler) Start(ctx context.Context) {
	logger.Info("保留予約リコンサイラー開始",
		zap.Duration("interval", r.interval),
		zap.Duration("older_than", r.olderThan),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("保留予約リコンサイラー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("保留予約リコンサイラー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// Stop はワーカーを停止
func (r *PendingReservationReconciler) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *PendingReservationReconciler) reconcile(ctx context.Context) {
	log := logger.Get()
	log.Debug("保留予約の解決開始")

	count, err := r.reservationService.ReconcilePendingReservations(ctx, r.olderThan)
	if err != nil {
		log.Error("保留予約の解決失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("保留予約を解決", zap.Int("count", count))
	} else {
		log.Debug("解決対象の保留予約なし")
	}
}
