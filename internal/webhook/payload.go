package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedPayload body 不是合法的回调 JSON
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Kind 归一化后的事件类型
type Kind string

const (
	KindCreated      Kind = "created"
	KindSucceeded    Kind = "succeeded"
	KindFailed       Kind = "failed"
	KindRefunded     Kind = "refunded"
	KindExpired      Kind = "expired"
	KindUnrecognized Kind = "unrecognized"
)

const (
	SchemaTransaction = "transaction"
	SchemaPayment     = "payment"
	SchemaUnknown     = "unknown"
)

// Event 唯一进入订单状态机的回调事件形态
type Event struct {
	Kind          Kind
	Name          string
	Schema        string
	TransactionID string
	LinkCode      string
	CustomOrderID string
	Amount        decimal.Decimal
	Currency      string
	Status        string
	// OccurredAt 事件自带时间，缺失或无法解析时为零值
	OccurredAt time.Time
}

// Payload 各版本回调载荷
type Payload interface {
	Normalize() Event
	isPayload()
}

// TransactionPayload transaction.* 事件
type TransactionPayload struct {
	Event     string
	Timestamp string
	CreatedAt string
	Data      TransactionData
}

type TransactionData struct {
	TransactionID looseString `json:"transactionId"`
	Code          looseString `json:"code"`
	LinkCode      looseString `json:"linkCode"`
	CustomOrderID looseString `json:"customOrderId"`
	Amount        looseString `json:"amount"`
	Currency      string      `json:"currency"`
	Status        string      `json:"status"`
	CreatedAt     looseString `json:"createdAt"`
}

// PaymentPayload payment.* 事件
type PaymentPayload struct {
	Event     string
	Timestamp string
	CreatedAt string
	Data      PaymentData
}

type PaymentData struct {
	ID            looseString `json:"id"`
	PaymentID     looseString `json:"paymentId"`
	TransactionID looseString `json:"transactionId"`
	LinkID        looseString `json:"linkId"`
	Code          looseString `json:"code"`
	LinkCode      looseString `json:"linkCode"`
	OrderID       looseString `json:"orderId"`
	CustomOrderID looseString `json:"customOrderId"`
	Amount        looseString `json:"amount"`
	Currency      string      `json:"currency"`
	Status        string      `json:"status"`
	CreatedAt     looseString `json:"createdAt"`
}

// UnrecognizedPayload 未知事件，只记录不处理
type UnrecognizedPayload struct {
	Event string
}

func (TransactionPayload) isPayload()  {}
func (PaymentPayload) isPayload()      {}
func (UnrecognizedPayload) isPayload() {}

func (p TransactionPayload) Normalize() Event {
	var kind Kind
	switch strings.TrimPrefix(p.Event, "transaction.") {
	case "created":
		kind = KindCreated
	case "succeeded":
		kind = KindSucceeded
	case "failed":
		kind = KindFailed
	case "refund", "refunded":
		kind = KindRefunded
	default:
		kind = KindUnrecognized
	}
	d := p.Data
	return Event{
		Kind:          kind,
		Name:          p.Event,
		Schema:        SchemaTransaction,
		TransactionID: d.TransactionID.String(),
		LinkCode:      first(d.Code.String(), d.LinkCode.String()),
		CustomOrderID: d.CustomOrderID.String(),
		Amount:        parseAmount(d.Amount.String()),
		Currency:      d.Currency,
		Status:        d.Status,
		OccurredAt:    firstTime(p.Timestamp, p.CreatedAt, d.CreatedAt.String()),
	}
}

func (p PaymentPayload) Normalize() Event {
	var kind Kind
	switch strings.TrimPrefix(p.Event, "payment.") {
	case "created", "pending":
		kind = KindCreated
	case "completed", "succeeded", "paid":
		kind = KindSucceeded
	case "failed":
		kind = KindFailed
	case "refund", "refunded":
		kind = KindRefunded
	case "expired":
		kind = KindExpired
	default:
		kind = KindUnrecognized
	}
	d := p.Data
	return Event{
		Kind:          kind,
		Name:          p.Event,
		Schema:        SchemaPayment,
		TransactionID: first(d.TransactionID.String(), d.PaymentID.String(), d.ID.String()),
		LinkCode:      first(d.LinkID.String(), d.Code.String(), d.LinkCode.String()),
		CustomOrderID: first(d.CustomOrderID.String(), d.OrderID.String()),
		Amount:        parseAmount(d.Amount.String()),
		Currency:      d.Currency,
		Status:        d.Status,
		OccurredAt:    firstTime(p.Timestamp, p.CreatedAt, d.CreatedAt.String()),
	}
}

func (p UnrecognizedPayload) Normalize() Event {
	return Event{Kind: KindUnrecognized, Name: p.Event, Schema: SchemaUnknown}
}

type envelope struct {
	Event     string          `json:"event"`
	Type      string          `json:"type"`
	Timestamp looseString     `json:"timestamp"`
	CreatedAt looseString     `json:"createdAt"`
	Data      json.RawMessage `json:"data"`
}

// Parse 把原始 body 解析为对应版本的载荷；调用前必须先完成签名校验
func Parse(body []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	name := strings.TrimSpace(first(env.Event, env.Type))

	switch {
	case strings.HasPrefix(name, "transaction."):
		p := TransactionPayload{Event: name, Timestamp: env.Timestamp.String(), CreatedAt: env.CreatedAt.String()}
		if err := decodeData(env.Data, &p.Data); err != nil {
			return nil, err
		}
		return p, nil
	case strings.HasPrefix(name, "payment."):
		p := PaymentPayload{Event: name, Timestamp: env.Timestamp.String(), CreatedAt: env.CreatedAt.String()}
		if err := decodeData(env.Data, &p.Data); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return UnrecognizedPayload{Event: name}, nil
	}
}

// ParseEvent Parse 后直接归一化
func ParseEvent(body []byte) (Event, error) {
	p, err := Parse(body)
	if err != nil {
		return Event{}, err
	}
	return p.Normalize(), nil
}

// MaxIdempotencyKeyLen 与 webhook_events.transaction_id 列宽一致
const MaxIdempotencyKeyLen = 128

// IdempotencyKey 去重键：优先网关交易ID，缺失时使用 body 摘要；超长的交易ID同样取摘要
func IdempotencyKey(ev Event, body []byte) string {
	if ev.TransactionID != "" {
		if len(ev.TransactionID) <= MaxIdempotencyKeyLen {
			return ev.TransactionID
		}
		return digest([]byte(ev.TransactionID))
	}
	return digest(body)
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func decodeData(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: data: %v", ErrMalformedPayload, err)
	}
	return nil
}

// looseString 兼容字符串与数字两种写法
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

func (s looseString) String() string { return strings.TrimSpace(string(s)) }

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstTime(vals ...string) time.Time {
	for _, v := range vals {
		if v == "" {
			continue
		}
		if t, err := ParseTimestamp(v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
