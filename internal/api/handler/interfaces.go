package handler

import (
	"context"
	"time"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/application"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/auditlog"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
)

// ReservationServiceInterface は予約サービスのインターフェース
type ReservationServiceInterface interface {
	CreateReservation(ctx context.Context, in reservation.BookingInput) (*application.CreateReservationResult, error)
	AmendReservation(ctx context.Context, id string, in reservation.StayDetails) (*application.AmendReservationResult, error)
	CancelReservation(ctx context.Context, id string, in application.CancelInput) (*application.CancelReservationResult, error)
	GetReservation(ctx context.Context, id string) (*reservation.Reservation, error)
	ListReservationLogs(ctx context.Context, id string) ([]*auditlog.Entry, error)
}

// InventoryServiceInterface は在庫参照サービスのインターフェース
type InventoryServiceInterface interface {
	GetAvailability(ctx context.Context, key inventory.Key, from, to time.Time) ([]application.DailyAvailability, error)
}
