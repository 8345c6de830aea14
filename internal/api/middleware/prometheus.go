package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/metrics"
)

// metricsSkipPaths はスクレイプや死活監視など集計しないパス
var metricsSkipPaths = map[string]bool{
	"/metrics": true,
	"/health":  true,
}

// PrometheusMiddleware はHTTPメトリクスを収集するミドルウェア
func PrometheusMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if metricsSkipPaths[c.Path()] {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			duration := time.Since(start).Seconds()

			// 予約IDごとに系列が増えないようルートパターンで集計する
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			statusCode := strconv.Itoa(statusOf(c, err))

			m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)

			return err
		}
	}
}
