// Package webhook 校验并解析 Kira-Pay 回调。
//
// 签名方案 v1：HMAC-SHA256(secret, timestamp + "." + body)，没有时间戳头时签名内容
// 为原始 body。签名可以是 hex 或 base64，允许带 "sha256=" 前缀。
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader       = "X-KiraPay-Signature"
	LegacySignatureHeader = "X-Kira-Signature"
	TimestampHeader       = "X-KiraPay-Timestamp"

	DefaultTolerance = 5 * time.Minute
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrStaleTimestamp   = errors.New("timestamp outside tolerance")
)

// Verifier 回调签名校验器，并发安全
type Verifier struct {
	secret      []byte
	tolerance   time.Duration
	allowLegacy bool
	now         func() time.Time
}

type Option func(*Verifier)

func WithTolerance(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.tolerance = d
		}
	}
}

// WithLegacySignatures 有时间戳时是否仍接受只签 body 的旧签名
func WithLegacySignatures(allow bool) Option {
	return func(v *Verifier) { v.allowLegacy = allow }
}

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier secret 为空时 Verify 总是通过
func NewVerifier(secret string, opts ...Option) *Verifier {
	v := &Verifier{
		secret:      []byte(secret),
		tolerance:   DefaultTolerance,
		allowLegacy: true,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Enabled 是否配置了密钥
func (v *Verifier) Enabled() bool { return len(v.secret) > 0 }

// Verify 校验原始 body 的签名；timestamp 为空表示请求未携带时间戳头
func (v *Verifier) Verify(body []byte, signature, timestamp string) error {
	if !v.Enabled() {
		return nil
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	provided, ok := decodeSignature(signature)
	if !ok {
		return ErrInvalidSignature
	}

	timestamp = strings.TrimSpace(timestamp)
	if timestamp == "" {
		if hmac.Equal(provided, v.mac(body)) {
			return nil
		}
		return ErrInvalidSignature
	}

	ts, err := ParseTimestamp(timestamp)
	if err != nil {
		return ErrInvalidTimestamp
	}
	skew := v.now().Sub(ts)
	if skew > v.tolerance || skew < -v.tolerance {
		return ErrStaleTimestamp
	}

	if hmac.Equal(provided, v.mac([]byte(timestamp), []byte("."), body)) {
		return nil
	}
	if v.allowLegacy && hmac.Equal(provided, v.mac(body)) {
		return nil
	}
	return ErrInvalidSignature
}

// Sign 生成 hex 签名，供测试与联调工具使用
func (v *Verifier) Sign(body []byte, timestamp string) string {
	if timestamp == "" {
		return hex.EncodeToString(v.mac(body))
	}
	return hex.EncodeToString(v.mac([]byte(timestamp), []byte("."), body))
}

func (v *Verifier) mac(parts ...[]byte) []byte {
	h := hmac.New(sha256.New, v.secret)
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func decodeSignature(sig string) ([]byte, bool) {
	if i := strings.IndexByte(sig, '='); i > 0 && i < 8 {
		switch strings.ToLower(sig[:i]) {
		case "sha256", "v1":
			sig = sig[i+1:]
		}
	}

	if len(sig) == hex.EncodedLen(sha256.Size) {
		if b, err := hex.DecodeString(sig); err == nil {
			return b, true
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(sig); err == nil && len(b) == sha256.Size {
			return b, true
		}
	}
	return nil, false
}

// ParseTimestamp 支持 unix 秒、unix 毫秒与 RFC3339
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n), nil
		}
		return time.Unix(n, 0), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f > 1e12 {
			return time.UnixMilli(int64(f)), nil
		}
		sec := int64(f)
		return time.Unix(sec, int64((f-float64(sec))*1e9)), nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
