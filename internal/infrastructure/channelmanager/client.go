// Package channelmanager は外部チャネルマネージャーへ OTA メッセージを送信する
package channelmanager

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/config"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/ota"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/metrics"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/tracing"
)

const maxResponseBytes = 1 << 20

// RawResponse はチャネルマネージャーの応答（本文は解釈しない）
type RawResponse struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Client はチャネルマネージャーの HTTP クライアント
// 1回の呼び出しで1回だけ POST し、リトライはしない
type Client struct {
	endpoint   string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewClient は Client を作成する
func NewClient(cfg config.ChannelManagerConfig, m *metrics.Metrics) *Client {
	return &Client{
		endpoint:   cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    m,
	}
}

// Send は XML メッセージを送信し、HTTP 2xx の応答を返す
// エンドポイント未設定・通信失敗・2xx 以外の応答は *Error を返す
func (c *Client) Send(ctx context.Context, op ota.Operation, message []byte) (*RawResponse, error) {
	ctx, span := tracing.Start(ctx, "ChannelManager.Send")
	defer span.End()
	span.SetAttributes(attribute.String("channel_manager.operation", string(op)))

	if c.endpoint == "" {
		err := &Error{Operation: string(op), Cause: ErrEndpointNotConfigured}
		tracing.RecordError(span, err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(message))
	if err != nil {
		return nil, &Error{Operation: string(op), Cause: fmt.Errorf("リクエストの作成に失敗: %w", err)}
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("Accept", "text/xml, application/xml")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		c.metrics.ObserveChannelManager(string(op), "network_error", elapsed)
		logger.Ctx(ctx).Warn("チャネルマネージャーへの送信に失敗",
			zap.String("operation", string(op)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		sendErr := &Error{Operation: string(op), Cause: err}
		tracing.RecordError(span, sendErr)
		return nil, sendErr
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.ObserveChannelManager(string(op), "http_error", elapsed)
		statusErr := &Error{
			Operation:  string(op),
			StatusCode: resp.StatusCode,
			Body:       body,
			Cause:      ErrUnexpectedStatus,
		}
		tracing.RecordError(span, statusErr)
		return &RawResponse{StatusCode: resp.StatusCode, Body: body, Duration: elapsed}, statusErr
	}
	if readErr != nil {
		c.metrics.ObserveChannelManager(string(op), "network_error", elapsed)
		readFailure := &Error{Operation: string(op), StatusCode: resp.StatusCode, Cause: readErr}
		tracing.RecordError(span, readFailure)
		return nil, readFailure
	}

	c.metrics.ObserveChannelManager(string(op), "ok", elapsed)
	logger.Ctx(ctx).Debug("チャネルマネージャーへ送信",
		zap.String("operation", string(op)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
	)
	return &RawResponse{StatusCode: resp.StatusCode, Body: body, Duration: elapsed}, nil
}
