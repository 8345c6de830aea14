package reservation

import (
	"context"
	"time"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（ID重複時は ErrReservationAlreadyExists）
	Create(ctx context.Context, reservation *Reservation) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Reservation, error)

	// Update は予約の内容を更新する（キャンセル済みの予約は更新しない）
	Update(ctx context.Context, reservation *Reservation) error

	// UpdateStatus は状態が from の場合のみ to に遷移させる
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) error

	// SetInventoryHeld は在庫確保状態を記録する
	SetInventoryHeld(ctx context.Context, id string, held bool) error

	// DeletePending は保留中の予約を削除する
	DeletePending(ctx context.Context, id string) error

	// GetStalePending は olderThan より前に作成された保留中予約を取得する
	GetStalePending(ctx context.Context, olderThan time.Duration) ([]*Reservation, error)
}
