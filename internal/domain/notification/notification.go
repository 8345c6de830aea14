// Package notification は予約確定後の通知（メール送信依頼）を表す
package notification

import "context"

// Kind は通知の種類
type Kind string

const (
	KindCreated   Kind = "reservation.created"
	KindAmended   Kind = "reservation.amended"
	KindCancelled Kind = "reservation.cancelled"
)

// Notification は宛先と本文を持つ通知
type Notification struct {
	Kind          Kind   `json:"kind"`
	ReservationID string `json:"reservation_id"`
	To            string `json:"to"`
	Subject       string `json:"subject"`
	HTML          string `json:"html"`
	Text          string `json:"text"`
}

// Notifier は通知を配送するインターフェース
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
