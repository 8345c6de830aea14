package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
)

// Inventory ドメインのエラー定義
var (
	ErrInventoryNotFound        = errors.New("在庫が見つかりません")
	ErrInsufficientAvailability = errors.New("在庫が不足しています")
	ErrInvalidAdjustment        = errors.New("在庫調整の内容が不正です")
	ErrInventoryBusy            = errors.New("在庫が他のリクエストによって処理中です")
)

// InsufficientError は特定の宿泊日で在庫が不足していることを表す
type InsufficientError struct {
	Key       Key
	Date      time.Time
	Available int
	Requested int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("%s の在庫が不足しています（%s: 残り%d室, 要求%d室）",
		stay.Format(e.Date), e.Key, e.Available, e.Requested)
}

// Is は errors.Is(err, ErrInsufficientAvailability) を満たす
func (e *InsufficientError) Is(target error) bool {
	return target == ErrInsufficientAvailability
}
