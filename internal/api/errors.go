package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/channelmanager"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/ota"
)

const (
	msgChannelManager = "チャネルマネージャーとの連携に失敗しました"
	msgInternal       = "内部サーバーエラー"
)

// ToHTTPError はアプリケーションのエラーを HTTP エラーに変換する
// チャネルマネージャーの応答本文や内部エラーの詳細はレスポンスに含めない
func ToHTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var (
		cmErr     *channelmanager.Error
		formatErr *ota.FormatError
	)
	switch {
	case errors.Is(err, reservation.ErrValidation),
		errors.Is(err, inventory.ErrInvalidAdjustment),
		errors.As(err, &formatErr):
		return httpError(http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, reservation.ErrReservationNotFound):
		return httpError(http.StatusNotFound, err.Error(), err)
	case errors.Is(err, reservation.ErrReservationAlreadyCancelled),
		errors.Is(err, reservation.ErrReservationAlreadyExists),
		errors.Is(err, reservation.ErrReservationNotPending),
		errors.Is(err, reservation.ErrReservationNotConfirmed),
		errors.Is(err, reservation.ErrReservationBusy),
		errors.Is(err, inventory.ErrInsufficientAvailability),
		errors.Is(err, inventory.ErrInventoryNotFound),
		errors.Is(err, inventory.ErrInventoryBusy):
		return httpError(http.StatusConflict, err.Error(), err)
	case errors.Is(err, reservation.ErrCheckInPassed):
		return httpError(http.StatusUnprocessableEntity, err.Error(), err)
	case errors.As(err, &cmErr):
		return httpError(http.StatusBadGateway, msgChannelManager, err)
	default:
		return httpError(http.StatusInternalServerError, msgInternal, err)
	}
}

func httpError(code int, message string, internal error) *echo.HTTPError {
	return echo.NewHTTPError(code, message).SetInternal(internal)
}
