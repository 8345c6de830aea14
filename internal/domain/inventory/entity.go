package inventory

import (
	"fmt"
	"time"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
)

// Key は在庫を識別する（ホテル, 部屋タイプ）の組
type Key struct {
	HotelCode   string
	InvTypeCode string
}

func (k Key) String() string {
	return k.HotelCode + ":" + k.InvTypeCode
}

// Record は宿泊日ごとの在庫数
type Record struct {
	HotelCode   string
	InvTypeCode string
	Date        time.Time
	Count       int
	UpdatedAt   time.Time
}

// Key は在庫キーを返す
func (r *Record) Key() Key {
	return Key{HotelCode: r.HotelCode, InvTypeCode: r.InvTypeCode}
}

// Adjustment は宿泊期間に対する在庫調整の単位
type Adjustment struct {
	Key
	CheckIn  time.Time
	CheckOut time.Time
	Rooms    int
}

// Dates は調整対象の宿泊日（チェックアウト日を除く）を返す
func (a Adjustment) Dates() []time.Time {
	return stay.Nights(a.CheckIn, a.CheckOut)
}

// Validate は在庫調整の内容を検証する
func (a Adjustment) Validate() error {
	switch {
	case a.HotelCode == "" || a.InvTypeCode == "":
		return fmt.Errorf("%w: ホテルコードと部屋タイプは必須です", ErrInvalidAdjustment)
	case a.Rooms <= 0:
		return fmt.Errorf("%w: 部屋数は1以上である必要があります", ErrInvalidAdjustment)
	case len(a.Dates()) == 0:
		return fmt.Errorf("%w: 宿泊日がありません", ErrInvalidAdjustment)
	}
	return nil
}

// Direction は在庫調整の方向
type Direction string

const (
	DirectionDecrement Direction = "decrement"
	DirectionIncrement Direction = "increment"
)

// Step は1回の在庫調整操作
type Step struct {
	Direction  Direction
	Adjustment Adjustment
}

// Change は1レコードに対する在庫数の増減
type Change struct {
	HotelCode   string
	InvTypeCode string
	Date        time.Time
	Delta       int
}

// FailureReason は在庫調整が失敗した理由
type FailureReason string

const (
	ReasonNotFound     FailureReason = "not_found"
	ReasonInsufficient FailureReason = "insufficient"
)

// AdjustmentResult は在庫調整の結果
// インフラ障害以外の失敗（在庫なし・在庫不足）はこの値で表す
type AdjustmentResult struct {
	Success   bool
	Reason    FailureReason
	Key       Key
	Date      *time.Time
	Available int
	Requested int
}

// Succeeded は成功結果を返す
func Succeeded() *AdjustmentResult {
	return &AdjustmentResult{Success: true}
}

func notFound(key Key, date *time.Time) *AdjustmentResult {
	return &AdjustmentResult{Reason: ReasonNotFound, Key: key, Date: date}
}

func insufficient(key Key, date time.Time, available, requested int) *AdjustmentResult {
	return &AdjustmentResult{
		Reason: ReasonInsufficient, Key: key, Date: &date,
		Available: available, Requested: requested,
	}
}

// Message は結果の説明を返す
func (r *AdjustmentResult) Message() string {
	if err := r.Err(); err != nil {
		return err.Error()
	}
	return "ok"
}

// Err は失敗結果をエラーに変換する（成功時は nil）
func (r *AdjustmentResult) Err() error {
	if r == nil || r.Success {
		return nil
	}
	switch r.Reason {
	case ReasonInsufficient:
		return &InsufficientError{Key: r.Key, Date: *r.Date, Available: r.Available, Requested: r.Requested}
	default:
		if r.Date != nil {
			return fmt.Errorf("%w: %s %s", ErrInventoryNotFound, r.Key, stay.Format(*r.Date))
		}
		return fmt.Errorf("%w: %s", ErrInventoryNotFound, r.Key)
	}
}
