package reservation

import (
	"errors"
	"fmt"
)

// Reservation ドメインのエラー定義
var (
	ErrReservationNotFound         = errors.New("予約が見つかりません")
	ErrReservationNotPending       = errors.New("予約は保留中ではありません")
	ErrReservationAlreadyCancelled = errors.New("予約は既にキャンセルされています")
	ErrReservationAlreadyExists    = errors.New("同じIDの予約が既に存在します")
	ErrReservationNotConfirmed     = errors.New("確定していない予約は変更・キャンセルできません")
	ErrReservationBusy             = errors.New("予約は他のリクエストで処理中です")
	ErrCheckInPassed               = errors.New("チェックイン日を過ぎた予約は変更・キャンセルできません")
)

// ErrValidation はすべての入力検証エラーが一致するセンチネル
var ErrValidation = errors.New("入力値が不正です")

// ValidationError は入力検証エラーを表す
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is は errors.Is(err, ErrValidation) を満たす
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// 検証エラーの定義
var (
	ErrHotelCodeRequired        = invalid("hotel_code", "ホテルコードは必須です")
	ErrRatePlanCodeRequired     = invalid("rate_plan_code", "料金プランコードは必須です")
	ErrRoomTypeCodeRequired     = invalid("room_type_code", "部屋タイプコードは必須です")
	ErrCurrencyCodeRequired     = invalid("currency_code", "通貨コードは必須です")
	ErrGuestsRequired           = invalid("guests", "宿泊者は1名以上必要です")
	ErrGuestNameRequired        = invalid("guests", "宿泊者の氏名は必須です")
	ErrGuestDateOfBirthRequired = invalid("guests", "宿泊者の生年月日は必須です")
	ErrGuestDateOfBirthFuture   = invalid("guests", "宿泊者の生年月日が未来日です")
	ErrInvalidStayPeriod        = invalid("check_out_date", "チェックアウト日はチェックイン日より後である必要があります")
	ErrCheckInInPast            = invalid("check_in_date", "チェックイン日に過去日は指定できません")
	ErrInvalidNumberOfRooms     = invalid("number_of_rooms", "部屋数は1以上である必要があります")
	ErrInvalidTotalAmount       = invalid("total_amount", "合計金額は0以上である必要があります")
	ErrUnknownPaymentMethod     = invalid("payment_method", "未対応の支払い方法です")
	ErrPaymentNotCompleted      = invalid("payment_method", "決済が完了していません")
)
