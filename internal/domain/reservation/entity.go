package reservation

import (
	"time"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
)

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// PaymentMethod は支払い方法を表す
type PaymentMethod string

const (
	PaymentPayAtHotel PaymentMethod = "payAtHotel"
	PaymentCrypto     PaymentMethod = "crypto"
	PaymentStripe     PaymentMethod = "stripe"
)

// ParsePaymentMethod は文字列を支払い方法に変換する
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentPayAtHotel, PaymentCrypto, PaymentStripe:
		return m, nil
	}
	return "", ErrUnknownPaymentMethod
}

// Guest は宿泊者を表す
type Guest struct {
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
}

// Reservation は予約エンティティを表す
type Reservation struct {
	ID             string
	PaymentMethod  PaymentMethod
	HotelCode      string
	HotelName      string
	RatePlanCode   string
	RoomTypeCode   string
	CheckInDate    time.Time
	CheckOutDate   time.Time
	NumberOfRooms  int
	Guests         []Guest
	AgeCodeSummary AgeCodeSummary
	TotalAmount    float64
	CurrencyCode   string
	Email          string
	Status         Status
	// InventoryHeld は在庫を確保済みかどうか（保留中予約の後始末で使用）
	InventoryHeld  bool
	CancelledGuest *Guest
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsPending は予約が保留中かを返す
func (r *Reservation) IsPending() bool {
	return r.Status == StatusPending
}

// IsCancelled は予約がキャンセル済みかを返す
func (r *Reservation) IsCancelled() bool {
	return r.Status == StatusCancelled
}

// PrimaryGuest は代表宿泊者を返す
func (r *Reservation) PrimaryGuest() Guest {
	if len(r.Guests) == 0 {
		return Guest{}
	}
	return r.Guests[0]
}

// Nights は宿泊日の一覧を返す
func (r *Reservation) Nights() []time.Time {
	return stay.Nights(r.CheckInDate, r.CheckOutDate)
}

// CheckModifiable は予約が変更・キャンセル可能かを検証する
// キャンセル済みの予約は他の条件に関わらず拒否する。確定前の予約も対象外
func (r *Reservation) CheckModifiable(today time.Time) error {
	if r.IsCancelled() {
		return ErrReservationAlreadyCancelled
	}
	if r.Status != StatusConfirmed {
		return ErrReservationNotConfirmed
	}
	if !stay.DateOf(r.CheckInDate).After(stay.DateOf(today)) {
		return ErrCheckInPassed
	}
	return nil
}

// Confirm は保留中の予約を確定する
func (r *Reservation) Confirm(now time.Time) error {
	if r.Status != StatusPending {
		return ErrReservationNotPending
	}
	r.Status = StatusConfirmed
	r.UpdatedAt = now
	return nil
}

// Cancel は予約をキャンセルし、代表宿泊者を記録する
func (r *Reservation) Cancel(now time.Time) error {
	if r.IsCancelled() {
		return ErrReservationAlreadyCancelled
	}
	guest := r.PrimaryGuest()
	r.Status = StatusCancelled
	r.CancelledGuest = &guest
	r.CancelledAt = &now
	r.UpdatedAt = now
	return nil
}

// ApplyAmendment は変更内容を反映する
// ID・支払い方法・状態・作成日時は変更しない
func (r *Reservation) ApplyAmendment(updated *Reservation, now time.Time) {
	r.HotelCode = updated.HotelCode
	r.HotelName = updated.HotelName
	r.RatePlanCode = updated.RatePlanCode
	r.RoomTypeCode = updated.RoomTypeCode
	r.CheckInDate = updated.CheckInDate
	r.CheckOutDate = updated.CheckOutDate
	r.NumberOfRooms = updated.NumberOfRooms
	r.Guests = updated.Guests
	r.AgeCodeSummary = updated.AgeCodeSummary
	r.TotalAmount = updated.TotalAmount
	r.CurrencyCode = updated.CurrencyCode
	r.Email = updated.Email
	r.UpdatedAt = now
}
