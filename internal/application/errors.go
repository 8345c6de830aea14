package application

import (
	"errors"
	"fmt"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/notification"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
)

// PersistenceError は予約ストアへの読み書きの失敗を表す
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("予約データの保存に失敗 (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotificationError は通知の失敗を表す。予約操作自体は成功している
type NotificationError struct {
	Kind          notification.Kind
	ReservationID string
	Err           error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("通知の送信に失敗 (%s, %s): %v", e.Kind, e.ReservationID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

var domainErrors = []error{
	reservation.ErrReservationNotFound,
	reservation.ErrReservationNotPending,
	reservation.ErrReservationAlreadyCancelled,
	reservation.ErrReservationAlreadyExists,
	reservation.ErrCheckInPassed,
	reservation.ErrValidation,
}

// persistence はドメインエラー以外を PersistenceError で包む
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}
