package application

import (
	"context"
	"time"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/auditlog"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/channelmanager"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/ota"
)

// ChannelClientInterface はチャネルマネージャークライアントのインターフェース
type ChannelClientInterface interface {
	Send(ctx context.Context, op ota.Operation, message []byte) (*channelmanager.RawResponse, error)
}

// FormatterInterface は OTA メッセージ生成のインターフェース
type FormatterInterface interface {
	FormatCreate(r *reservation.Reservation) ([]byte, error)
	FormatAmend(r *reservation.Reservation) ([]byte, error)
	FormatCancel(r *reservation.Reservation) ([]byte, error)
}

// ReservationStoreInterface は予約の永続化と監査ログのインターフェース
type ReservationStoreInterface interface {
	GetReservation(ctx context.Context, id string) (*reservation.Reservation, error)
	ListLogs(ctx context.Context, id string) ([]*auditlog.Entry, error)
	CreatePending(ctx context.Context, rec *reservation.Reservation) error
	MarkInventoryHeld(ctx context.Context, id string) error
	CreateReservation(ctx context.Context, rec *reservation.Reservation, input any, xmlSent, rawResponse []byte) error
	AbortCreate(ctx context.Context, rec *reservation.Reservation, input any, xmlSent, rawResponse []byte, cause error) error
	AmendReservation(ctx context.Context, id string, updated *reservation.Reservation, input any, xmlSent, rawResponse []byte) (*reservation.Reservation, error)
	CancelReservation(ctx context.Context, id string, input any, xmlSent, rawResponse []byte) (*reservation.Reservation, error)
	RecordFailure(ctx context.Context, process auditlog.Process, id string, input any, xmlSent, rawResponse []byte, cause error)
	ListStalePending(ctx context.Context, olderThan time.Duration) ([]*reservation.Reservation, error)
}

// InventoryAdjusterInterface は在庫調整のインターフェース
// 在庫なし・在庫不足は AdjustmentResult で返し、error はインフラ障害のみ
type InventoryAdjusterInterface interface {
	Decrement(ctx context.Context, adj inventory.Adjustment) (*inventory.AdjustmentResult, error)
	Increment(ctx context.Context, adj inventory.Adjustment) (*inventory.AdjustmentResult, error)
	Swap(ctx context.Context, release, hold inventory.Adjustment) (*inventory.AdjustmentResult, error)
}

// InventoryCacheInterface は在庫数キャッシュのインターフェース
type InventoryCacheInterface interface {
	GetCounts(ctx context.Context, key inventory.Key, dates []time.Time) (map[string]int, error)
	SetCounts(ctx context.Context, key inventory.Key, counts map[string]int, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...inventory.Key) error
}
