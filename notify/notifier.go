package notify

import (
	"context"
	"sync"
	"time"

	"finproof/config"
	"finproof/logger"
)

// EventType 事件类型
type EventType string

const (
	EventProofGenerated EventType = "proof_generated" // 证明已生成
	EventProofFailed    EventType = "proof_failed"    // 运行以致命错误结束
)

// Event 一次运行的结果通知
type Event struct {
	Type      EventType
	Timestamp time.Time
	JobID     string
	FileID    int64

	Valid bool
	Score float64
	// Attestation 完整证明（results.json 的内容），失败时为 nil
	Attestation interface{}

	Error    string
	ExitCode int
}

// Notifier 通知接口
type Notifier interface {
	Send(ctx context.Context, evt *Event) error
	Name() string
}

// NotificationService 通知服务
type NotificationService struct {
	notifiers []Notifier
}

// NewNotificationService 创建通知服务
func NewNotificationService(cfg *config.Config) *NotificationService {
	ns := &NotificationService{}

	if cfg.Notifications.Webhook.Enabled && cfg.Notifications.Webhook.URL != "" {
		webhookNotifier, err := NewWebhookNotifier(cfg)
		if err != nil {
			logger.Warn("⚠️ 初始化 Webhook 通知失败: %v", err)
		} else {
			ns.notifiers = append(ns.notifiers, webhookNotifier)
			logger.Info("✅ Webhook 通知已启用")
		}
	}

	return ns
}

// Add 添加通知渠道
func (ns *NotificationService) Add(n Notifier) {
	ns.notifiers = append(ns.notifiers, n)
}

// Send 并发发送到所有渠道并等待完成，失败只记录日志
func (ns *NotificationService) Send(ctx context.Context, evt *Event) {
	if evt == nil || len(ns.notifiers) == 0 {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	var wg sync.WaitGroup
	for _, notifier := range ns.notifiers {
		wg.Add(1)
		go func(n Notifier) {
			defer wg.Done()
			if err := n.Send(ctx, evt); err != nil {
				logger.Warn("⚠️ [%s] 通知发送失败: %v", n.Name(), err)
			}
		}(notifier)
	}
	wg.Wait()
}
