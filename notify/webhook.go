package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"finproof/config"
)

// WebhookNotifier Webhook 通知器
type WebhookNotifier struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewWebhookNotifier 创建 Webhook 通知器
func NewWebhookNotifier(cfg *config.Config) (*WebhookNotifier, error) {
	if cfg.Notifications.Webhook.URL == "" {
		return nil, fmt.Errorf("Webhook URL 未配置")
	}

	timeout := time.Duration(cfg.Notifications.Webhook.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookNotifier{
		url:     cfg.Notifications.Webhook.URL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name 返回通知器名称
func (wn *WebhookNotifier) Name() string {
	return "Webhook"
}

// webhookPayload 证明完成时 valid/score 位于顶层，失败时带 error 与 exit_code
type webhookPayload struct {
	Event       EventType   `json:"event"`
	Timestamp   string      `json:"timestamp"`
	JobID       string      `json:"job_id,omitempty"`
	FileID      int64       `json:"file_id,omitempty"`
	Valid       *bool       `json:"valid,omitempty"`
	Score       *float64    `json:"score,omitempty"`
	Attestation interface{} `json:"attestation,omitempty"`
	Error       string      `json:"error,omitempty"`
	ExitCode    int         `json:"exit_code,omitempty"`
}

func newWebhookPayload(evt *Event) webhookPayload {
	p := webhookPayload{
		Event:     evt.Type,
		Timestamp: evt.Timestamp.UTC().Format(time.RFC3339),
		JobID:     evt.JobID,
		FileID:    evt.FileID,
	}
	switch evt.Type {
	case EventProofGenerated:
		valid, score := evt.Valid, evt.Score
		p.Valid = &valid
		p.Score = &score
		p.Attestation = evt.Attestation
	case EventProofFailed:
		p.Error = evt.Error
		p.ExitCode = evt.ExitCode
	}
	return p
}

// Send 发送通知
func (wn *WebhookNotifier) Send(ctx context.Context, evt *Event) error {
	jsonData, err := json.Marshal(newWebhookPayload(evt))
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, wn.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Webhook 返回错误状态码: %d", resp.StatusCode)
	}

	return nil
}
