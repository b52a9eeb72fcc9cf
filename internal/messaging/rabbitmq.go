// Package messaging 订单事件投递到 RabbitMQ
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/KIRA-Technologies/swagchain/pkg/logger"
)

var errNotConfirmed = errors.New("broker did not confirm publish")

// RabbitMQ 持有一个连接与一个开启了 confirm 的 channel，断开后在下一次投递时重连
type RabbitMQ struct {
	url      string
	exchange string

	mu         sync.Mutex
	conn       *amqp.Connection
	ch         *amqp.Channel
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
}

// NewRabbitMQ 连接并声明 topic 交换机
func NewRabbitMQ(url, exchange string) (*RabbitMQ, error) {
	r := &RabbitMQ{url: url, exchange: exchange}
	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

// connect 调用方需持有 mu（构造阶段除外）
func (r *RabbitMQ) connect() error {
	r.reset()

	conn, err := amqp.Dial(r.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := setup(ch, r.exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	r.conn, r.ch = conn, ch
	r.connClosed = conn.NotifyClose(make(chan *amqp.Error, 1))
	r.chanClosed = ch.NotifyClose(make(chan *amqp.Error, 1))
	return nil
}

func setup(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return ch.Confirm(false)
}

// ensureChannel 连接或 channel 已被 broker 关闭时重新建立
func (r *RabbitMQ) ensureChannel() error {
	if r.ch != nil && !closed(r.connClosed) && !closed(r.chanClosed) {
		return nil
	}
	if r.ch != nil {
		logger.Warn("rabbitmq channel closed, reconnecting", zap.String("exchange", r.exchange))
	}
	if err := r.connect(); err != nil {
		return fmt.Errorf("rabbitmq reconnect: %w", err)
	}
	return nil
}

// closed 非阻塞检查 NotifyClose 通道；库在关闭时会写入错误或直接关闭通道
func closed(c <-chan *amqp.Error) bool {
	if c == nil {
		return true
	}
	select {
	case <-c:
		return true
	default:
		return false
	}
}

// Publish 以事件类型为 routing key 投递，并等待 broker 确认
func (r *RabbitMQ) Publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureChannel(); err != nil {
		return err
	}

	confirm, err := r.ch.PublishWithDeferredConfirmWithContext(ctx,
		r.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		newPublishing(messageID, routingKey, body, time.Now()),
	)
	if err != nil {
		r.dropOnError(ctx)
		return err
	}
	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		r.dropOnError(ctx)
		return err
	}
	if !ok {
		return errNotConfirmed
	}
	return nil
}

// dropOnError 非调用方取消导致的失败一律丢弃当前 channel，下次投递重连
func (r *RabbitMQ) dropOnError(ctx context.Context) {
	if ctx.Err() == nil {
		r.reset()
	}
}

func newPublishing(messageID, eventType string, body []byte, now time.Time) amqp.Publishing {
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		ContentType:  "application/json",
		MessageId:    messageID,
		Type:         eventType,
		Body:         body,
	}
}

func (r *RabbitMQ) reset() {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.ch, r.conn = nil, nil
	r.connClosed, r.chanClosed = nil, nil
}

func (r *RabbitMQ) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}
