package reservation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
)

// StayDetails は予約作成・変更で共通の宿泊内容
type StayDetails struct {
	HotelCode     string    `json:"hotel_code"`
	HotelName     string    `json:"hotel_name"`
	RatePlanCode  string    `json:"rate_plan_code"`
	RoomTypeCode  string    `json:"room_type_code"`
	CheckInDate   time.Time `json:"check_in_date"`
	CheckOutDate  time.Time `json:"check_out_date"`
	NumberOfRooms int       `json:"number_of_rooms"`
	Guests        []Guest   `json:"guests"`
	TotalAmount   float64   `json:"total_amount"`
	CurrencyCode  string    `json:"currency_code"`
	Email         string    `json:"email"`
}

// BookingInput は予約作成の入力
type BookingInput struct {
	ReservationID    string `json:"reservation_id"`
	PaymentMethod    string `json:"payment_method"`
	PaymentSucceeded bool   `json:"payment_succeeded"`
	StayDetails
}

// Processor は予約入力を検証し、正規化された予約レコードを生成する
type Processor struct {
	now   func() time.Time
	newID func() string
}

// NewProcessor は Processor を作成する（nil の場合は既定の時計・ID生成を使用）
func NewProcessor(now func() time.Time, newID func() string) *Processor {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Processor{now: now, newID: newID}
}

// Today は本日の日付を返す
func (p *Processor) Today() time.Time {
	return stay.DateOf(p.now())
}

// Process は予約作成の入力から保留中の予約レコードを生成する
func (p *Processor) Process(in BookingInput) (*Reservation, error) {
	method, err := ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if method != PaymentPayAtHotel && !in.PaymentSucceeded {
		return nil, ErrPaymentNotCompleted
	}

	today := p.Today()
	if err := validateStay(in.StayDetails, today); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(in.ReservationID)
	if id == "" {
		id = p.newID()
	}

	now := p.now()
	r := &Reservation{
		ID:            id,
		PaymentMethod: method,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	applyStay(r, in.StayDetails, today)
	return r, nil
}

// ProcessAmendment は既存予約に変更内容を適用した新しいレコードを生成する
// ID・支払い方法・状態・作成日時は既存予約から引き継ぐ
func (p *Processor) ProcessAmendment(existing *Reservation, in StayDetails) (*Reservation, error) {
	today := p.Today()
	if err := validateStay(in, today); err != nil {
		return nil, err
	}

	r := &Reservation{
		ID:            existing.ID,
		PaymentMethod: existing.PaymentMethod,
		Status:        existing.Status,
		InventoryHeld: existing.InventoryHeld,
		CreatedAt:     existing.CreatedAt,
		UpdatedAt:     p.now(),
	}
	applyStay(r, in, today)
	return r, nil
}

func applyStay(r *Reservation, in StayDetails, today time.Time) {
	guests := make([]Guest, len(in.Guests))
	for i, g := range in.Guests {
		guests[i] = Guest{
			FirstName:   strings.TrimSpace(g.FirstName),
			LastName:    strings.TrimSpace(g.LastName),
			DateOfBirth: stay.DateOf(g.DateOfBirth),
		}
	}
	r.HotelCode = in.HotelCode
	r.HotelName = in.HotelName
	r.RatePlanCode = in.RatePlanCode
	r.RoomTypeCode = in.RoomTypeCode
	r.CheckInDate = stay.DateOf(in.CheckInDate)
	r.CheckOutDate = stay.DateOf(in.CheckOutDate)
	r.NumberOfRooms = in.NumberOfRooms
	r.Guests = guests
	r.AgeCodeSummary = SummarizeAges(guests, today)
	r.TotalAmount = in.TotalAmount
	r.CurrencyCode = strings.ToUpper(in.CurrencyCode)
	r.Email = strings.TrimSpace(in.Email)
}

func validateStay(in StayDetails, today time.Time) error {
	switch {
	case in.HotelCode == "":
		return ErrHotelCodeRequired
	case in.RatePlanCode == "":
		return ErrRatePlanCodeRequired
	case in.RoomTypeCode == "":
		return ErrRoomTypeCodeRequired
	case in.CurrencyCode == "":
		return ErrCurrencyCodeRequired
	case in.NumberOfRooms <= 0:
		return ErrInvalidNumberOfRooms
	case in.TotalAmount < 0:
		return ErrInvalidTotalAmount
	case len(in.Guests) == 0:
		return ErrGuestsRequired
	}

	for _, g := range in.Guests {
		if strings.TrimSpace(g.FirstName) == "" || strings.TrimSpace(g.LastName) == "" {
			return ErrGuestNameRequired
		}
		if g.DateOfBirth.IsZero() {
			return ErrGuestDateOfBirthRequired
		}
		if stay.DateOf(g.DateOfBirth).After(today) {
			return ErrGuestDateOfBirthFuture
		}
	}

	checkIn, checkOut := stay.DateOf(in.CheckInDate), stay.DateOf(in.CheckOutDate)
	if in.CheckInDate.IsZero() || in.CheckOutDate.IsZero() || !checkIn.Before(checkOut) {
		return ErrInvalidStayPeriod
	}
	if checkIn.Before(today) {
		return ErrCheckInInPast
	}
	return nil
}
