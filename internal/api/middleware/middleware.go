package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/api"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/metrics"
)

// SetupMiddleware は共通ミドルウェアを設定する
func SetupMiddleware(e *echo.Echo, m *metrics.Metrics) {
	// リクエストID
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithRequestID(req.Context(), id)))
		},
	}))

	// パニックリカバリー
	e.Use(middleware.Recover())

	// トレース（W3C traceparent を引き継ぐ）
	e.Use(Tracing())

	// 構造化リクエストログ（zap）
	e.Use(RequestLogger())

	if m != nil {
		e.Use(PrometheusMiddleware(m))
	}

	// CORS
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.POST},
	}))
}

// statusOf はハンドラーの戻り値を考慮したレスポンスステータスを返す
func statusOf(c echo.Context, err error) int {
	if err != nil && !c.Response().Committed {
		return api.ToHTTPError(err).Code
	}
	return c.Response().Status
}
