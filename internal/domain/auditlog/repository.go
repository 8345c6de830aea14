package auditlog

import "context"

// Repository は監査ログリポジトリのインターフェース
type Repository interface {
	// Append は監査ログを追記する
	Append(ctx context.Context, entry *Entry) error

	// ListByReservationID は予約の監査ログを記録順に取得する
	ListByReservationID(ctx context.Context, reservationID string) ([]*Entry, error)
}
