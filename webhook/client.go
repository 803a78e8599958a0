package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ProbeMessage 是设置页“测试”按钮发送的固定消息
const (
	ProbeMessage = "Teste de conexão"
	ProbeUserID  = "test-user"
)

// ISO-8601，毫秒精度，UTC
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrNotConfigured 表示 webhook URL 未配置
var ErrNotConfigured = errors.New("webhook url not configured")

// TransportError 表示请求未能完成（DNS、连接、取消等）
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "webhook transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// StatusError 表示 webhook 返回了非 2xx 状态码
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded %d: %s", e.Code, e.Status)
}

// Payload 是发往 webhook 的请求体
type Payload struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"userId"`
}

// Client 负责向 webhook 发送消息，不重试，不缓存
type Client struct {
	HTTP *http.Client
	Log  *zap.Logger

	now func() time.Time
}

// NewClient timeout 为 0 时沿用底层传输的默认行为
func NewClient(timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		HTTP: &http.Client{Timeout: timeout},
		Log:  log,
		now:  time.Now,
	}
}

// NewPayload 构建一次发送的请求体，userId 由发送时间派生
func NewPayload(message string, at time.Time) Payload {
	return Payload{
		Message:   message,
		Timestamp: at.UTC().Format(timestampLayout),
		UserID:    "user-" + strconv.FormatInt(at.UnixMilli(), 10),
	}
}

// Send 发送消息并返回规范化后的展示文本
func (c *Client) Send(ctx context.Context, endpoint, message string) (string, error) {
	body, err := c.post(ctx, endpoint, NewPayload(message, c.clock()))
	if err != nil {
		return "", err
	}

	text, envelope := Classify(body)
	c.Log.Debug("webhook reply normalized",
		zap.String("envelope", envelope.String()),
		zap.Int("body_bytes", len(body)),
	)
	return text, nil
}

// Probe 发送固定的测试消息，只关心连通性
func (c *Client) Probe(ctx context.Context, endpoint string) error {
	p := NewPayload(ProbeMessage, c.clock())
	p.UserID = ProbeUserID
	_, err := c.post(ctx, endpoint, p)
	return err
}

func (c *Client) post(ctx context.Context, endpoint string, payload Payload) (string, error) {
	if endpoint == "" {
		return "", ErrNotConfigured
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := c.clock()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Log.Warn("webhook request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: err}
	}

	c.Log.Info("webhook responded",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", c.clock().Sub(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	return string(raw), nil
}

func (c *Client) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}
