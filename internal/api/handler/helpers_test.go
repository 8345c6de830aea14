package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/api"
)

// newTestEcho は本番と同じバリデーターとエラーハンドラーを設定した Echo を返す
func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}
