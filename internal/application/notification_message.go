package application

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/notification"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/stay"
)

var subjects = map[notification.Kind]string{
	notification.KindCreated:   "ご予約を承りました",
	notification.KindAmended:   "ご予約内容を変更しました",
	notification.KindCancelled: "ご予約をキャンセルしました",
}

var messageTemplate = template.Must(template.New("reservation").Parse(`<html><body>
<h1>{{.Subject}}</h1>
<p>{{.GuestName}} 様</p>
<table>
<tr><th>予約番号</th><td>{{.ID}}</td></tr>
<tr><th>ホテル</th><td>{{.Hotel}}</td></tr>
<tr><th>チェックイン</th><td>{{.CheckIn}}</td></tr>
<tr><th>チェックアウト</th><td>{{.CheckOut}}</td></tr>
<tr><th>部屋数</th><td>{{.Rooms}}</td></tr>
<tr><th>合計金額</th><td>{{.Amount}}</td></tr>
</table>
</body></html>`))

type messageData struct {
	Subject   string
	GuestName string
	ID        string
	Hotel     string
	CheckIn   string
	CheckOut  string
	Rooms     int
	Amount    string
}

// buildNotification は予約内容から通知メッセージを組み立てる
func buildNotification(kind notification.Kind, r *reservation.Reservation) (notification.Notification, error) {
	guest := r.PrimaryGuest()
	if r.CancelledGuest != nil {
		guest = *r.CancelledGuest
	}
	hotel := r.HotelName
	if hotel == "" {
		hotel = r.HotelCode
	}
	data := messageData{
		Subject:   subjects[kind],
		GuestName: strings.TrimSpace(guest.LastName + " " + guest.FirstName),
		ID:        r.ID,
		Hotel:     hotel,
		CheckIn:   stay.Format(r.CheckInDate),
		CheckOut:  stay.Format(r.CheckOutDate),
		Rooms:     r.NumberOfRooms,
		Amount:    fmt.Sprintf("%.2f %s", r.TotalAmount, r.CurrencyCode),
	}

	var html bytes.Buffer
	if err := messageTemplate.Execute(&html, data); err != nil {
		return notification.Notification{}, fmt.Errorf("通知本文の生成に失敗: %w", err)
	}
	text := fmt.Sprintf("%s\n\n%s 様\n予約番号: %s\nホテル: %s\nチェックイン: %s\nチェックアウト: %s\n部屋数: %d\n合計金額: %s\n",
		data.Subject, data.GuestName, data.ID, data.Hotel, data.CheckIn, data.CheckOut, data.Rooms, data.Amount)

	return notification.Notification{
		Kind:          kind,
		ReservationID: r.ID,
		To:            r.Email,
		Subject:       fmt.Sprintf("[%s] %s", hotel, data.Subject),
		HTML:          html.String(),
		Text:          text,
	}, nil
}
