package inventory

import (
	"context"
	"time"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/transaction"
)

// Repository は在庫リポジトリのインターフェース
type Repository interface {
	// LockRange は指定日の在庫レコードを行ロック付きで日付順に取得する（トランザクション必須）
	LockRange(ctx context.Context, tx transaction.Tx, key Key, dates []time.Time) ([]*Record, error)

	// ApplyChanges は在庫数の増減を一括で反映する（トランザクション必須）
	ApplyChanges(ctx context.Context, tx transaction.Tx, changes []Change) error

	// ListRange は [from, to) の在庫レコードを取得する
	ListRange(ctx context.Context, key Key, from, to time.Time) ([]*Record, error)
}
