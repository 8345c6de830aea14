// Package rabbitmq は予約通知を RabbitMQ に発行する
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/config"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/notification"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/logger"
)

// bindingKey は通知キューに流す routing key のパターン
const bindingKey = "reservation.#"

// channel は発行に使う amqp.Channel の操作
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// NotificationPublisher は notification.Notifier の RabbitMQ 実装
// 通知は topic exchange に永続メッセージとして発行し、メール送信ワーカーが durable キューから受け取る
type NotificationPublisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	now      func() time.Time
}

// NewNotificationPublisher は接続し、exchange とキューを宣言する
func NewNotificationPublisher(cfg config.RabbitMQConfig) (*NotificationPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQへの接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("チャネルのオープンに失敗: %w", err)
	}
	if err := declare(ch, cfg.Exchange, cfg.Queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	logger.Info("RabbitMQに接続",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue),
	)
	return &NotificationPublisher{conn: conn, ch: ch, exchange: cfg.Exchange, now: time.Now}, nil
}

func declare(ch *amqp.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchangeの宣言に失敗: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("キューの宣言に失敗: %w", err)
	}
	if err := ch.QueueBind(queue, bindingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("キューのバインドに失敗: %w", err)
	}
	return nil
}

// Notify は通知を JSON で発行する。routing key は通知の種類
func (p *NotificationPublisher) Notify(ctx context.Context, n notification.Notification) error {
	msg, err := encode(n, p.now())
	if err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, string(n.Kind), false, false, msg); err != nil {
		return fmt.Errorf("通知の発行に失敗: %w", err)
	}
	logger.Ctx(ctx).Debug("通知を発行",
		zap.String("reservation_id", n.ReservationID),
		zap.String("kind", string(n.Kind)),
	)
	return nil
}

// Close はチャネルと接続を閉じる
func (p *NotificationPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// encode は通知を発行用のメッセージにする
// 同じ予約・種類の通知が再発行されても MessageId は重複しない
func encode(n notification.Notification, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("通知のエンコードに失敗: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%s:%s:%s", n.ReservationID, n.Kind, uuid.NewString()),
		Timestamp:    now.UTC(),
		Type:         string(n.Kind),
		Body:         body,
	}, nil
}

var _ notification.Notifier = (*NotificationPublisher)(nil)
