// Package ota は予約レコードと OTA 形式の XML メッセージを相互変換する
package ota

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
)

const (
	// Namespace は OTA 2003/05 の XML 名前空間
	Namespace = "http://www.opentravel.org/OTA/2003/05"
	// Version はメッセージのバージョン
	Version = "1.0"

	uniqueIDTypeReservation = "14"
	profileTypeCustomer     = "1"
	resIDTypeBroker         = "18"
)

// Operation はチャネルマネージャーへの操作種別
type Operation string

const (
	OperationCreate Operation = "create"
	OperationAmend  Operation = "amend"
	OperationCancel Operation = "cancel"
)

// FormatError は XML を生成できない予約レコードを表す
type FormatError struct {
	Operation Operation
	Field     string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s メッセージを生成できません: %s が未設定です", e.Operation, e.Field)
}

// Formatter は予約レコードから OTA メッセージを生成する
// EchoToken と TimeStamp 以外の出力は入力に対して決定的
type Formatter struct {
	now      func() time.Time
	newToken func() string
}

// NewFormatter は Formatter を作成する（nil の場合は既定の時計・トークン生成を使用）
func NewFormatter(now func() time.Time, newToken func() string) *Formatter {
	if now == nil {
		now = time.Now
	}
	if newToken == nil {
		newToken = uuid.NewString
	}
	return &Formatter{now: now, newToken: newToken}
}

// FormatCreate は予約作成メッセージを生成する
func (f *Formatter) FormatCreate(r *reservation.Reservation) ([]byte, error) {
	if err := checkRequired(OperationCreate, r); err != nil {
		return nil, err
	}
	msg := HotelResNotifRQ{
		Xmlns:     Namespace,
		EchoToken: f.newToken(),
		TimeStamp: f.timestamp(),
		Version:   Version,
		ResStatus: "Commit",
		HotelReservations: HotelReservations{
			HotelReservation: []HotelReservation{f.hotelReservation(r, "Book")},
		},
	}
	return marshal(msg)
}

// FormatAmend は予約変更メッセージを生成する
func (f *Formatter) FormatAmend(r *reservation.Reservation) ([]byte, error) {
	if err := checkRequired(OperationAmend, r); err != nil {
		return nil, err
	}
	msg := HotelResModifyNotifRQ{
		Xmlns:     Namespace,
		EchoToken: f.newToken(),
		TimeStamp: f.timestamp(),
		Version:   Version,
		HotelResModifies: HotelResModifies{
			HotelResModify: []HotelReservation{f.hotelReservation(r, "Modify")},
		},
	}
	return marshal(msg)
}

// FormatCancel は予約キャンセルメッセージを生成する
func (f *Formatter) FormatCancel(r *reservation.Reservation) ([]byte, error) {
	if err := checkRequired(OperationCancel, r); err != nil {
		return nil, err
	}
	guest := r.PrimaryGuest()
	msg := CancelRQ{
		Xmlns:      Namespace,
		EchoToken:  f.newToken(),
		TimeStamp:  f.timestamp(),
		Version:    Version,
		CancelType: "Commit",
		UniqueID:   UniqueID{Type: uniqueIDTypeReservation, ID: r.ID},
		Verification: Verification{
			PersonName:          PersonName{GivenName: guest.FirstName, Surname: guest.LastName},
			ReservationTimeSpan: timeSpan(r),
			BasicPropertyInfo:   BasicPropertyInfo{HotelCode: r.HotelCode, HotelName: r.HotelName},
			TPAExtensions:       TPAExtensions{RoomStay: roomStay(r)},
		},
	}
	return marshal(msg)
}

func (f *Formatter) timestamp() string {
	return f.now().UTC().Format(time.RFC3339)
}

func checkRequired(op Operation, r *reservation.Reservation) error {
	if r == nil {
		return &FormatError{Operation: op, Field: "reservation"}
	}
	required := []struct {
		field string
		value string
	}{
		{"reservation_id", r.ID},
		{"hotel_code", r.HotelCode},
		{"room_type_code", r.RoomTypeCode},
		{"rate_plan_code", r.RatePlanCode},
		{"currency_code", r.CurrencyCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &FormatError{Operation: op, Field: f.field}
		}
	}
	if len(r.Guests) == 0 {
		return &FormatError{Operation: op, Field: "guests"}
	}
	if r.CheckInDate.IsZero() || r.CheckOutDate.IsZero() {
		return &FormatError{Operation: op, Field: "stay_dates"}
	}
	return nil
}

func (f *Formatter) hotelReservation(r *reservation.Reservation, status string) HotelReservation {
	return HotelReservation{
		CreateDateTime: createDateTime(r),
		ResStatus:      status,
		UniqueID:       UniqueID{Type: uniqueIDTypeReservation, ID: r.ID},
		RoomStays:      RoomStays{RoomStay: []RoomStay{roomStay(r)}},
		ResGuests:      f.resGuests(r),
		ResGlobalInfo: ResGlobalInfo{
			HotelReservationIDs: HotelReservationIDs{
				HotelReservationID: []HotelReservationID{{ResIDType: resIDTypeBroker, ResIDValue: r.ID}},
			},
		},
	}
}

func createDateTime(r *reservation.Reservation) string {
	if r.CreatedAt.IsZero() {
		return ""
	}
	return r.CreatedAt.UTC().Format(time.RFC3339)
}

func roomStay(r *reservation.Reservation) RoomStay {
	return RoomStay{
		RoomTypes:   RoomTypes{RoomType: []RoomType{{RoomTypeCode: r.RoomTypeCode, NumberOfUnits: r.NumberOfRooms}}},
		RatePlans:   RatePlans{RatePlan: []RatePlan{{RatePlanCode: r.RatePlanCode}}},
		GuestCounts: guestCounts(r.AgeCodeSummary),
		TimeSpan:    timeSpan(r),
		Total: Total{
			AmountBeforeTax: strconv.FormatFloat(r.TotalAmount, 'f', 2, 64),
			CurrencyCode:    r.CurrencyCode,
		},
		BasicPropertyInfo: BasicPropertyInfo{HotelCode: r.HotelCode, HotelName: r.HotelName},
	}
}

// guestCounts は人数が1以上の年齢区分のみをコードの数値昇順で出力する
func guestCounts(summary reservation.AgeCodeSummary) GuestCounts {
	var counts []GuestCount
	for _, code := range reservation.AgeCodes {
		if n := summary[code]; n > 0 {
			counts = append(counts, GuestCount{AgeQualifyingCode: string(code), Count: n})
		}
	}
	return GuestCounts{GuestCount: counts}
}

func timeSpan(r *reservation.Reservation) TimeSpan {
	return TimeSpan{Start: stay.Format(r.CheckInDate), End: stay.Format(r.CheckOutDate)}
}

// resGuests は予約の更新日時点の年齢で年齢区分を付ける。更新日がなければ現在日時を使う
func (f *Formatter) resGuests(r *reservation.Reservation) ResGuests {
	asOf := r.UpdatedAt
	if asOf.IsZero() {
		asOf = f.now()
	}
	today := stay.DateOf(asOf)
	guests := make([]ResGuest, len(r.Guests))
	for i, g := range r.Guests {
		customer := Customer{
			BirthDate:  stay.Format(g.DateOfBirth),
			PersonName: PersonName{GivenName: g.FirstName, Surname: g.LastName},
		}
		if i == 0 {
			customer.Email = r.Email
		}
		guests[i] = ResGuest{
			ResGuestRPH:       i + 1,
			AgeQualifyingCode: string(reservation.ClassifyAge(reservation.AgeOn(g.DateOfBirth, today))),
			Profiles: Profiles{ProfileInfo: ProfileInfo{Profile: Profile{
				ProfileType: profileTypeCustomer,
				Customer:    customer,
			}}},
		}
	}
	return ResGuests{ResGuest: guests}
}

func marshal(v any) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("XMLの生成に失敗: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
