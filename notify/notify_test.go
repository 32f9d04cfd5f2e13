package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"finproof/config"
)

func TestWebhookSend(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("期望 POST, 得到 %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("解析请求失败: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Notifications.Webhook.Enabled = true
	cfg.Notifications.Webhook.URL = srv.URL

	wn, err := NewWebhookNotifier(cfg)
	if err != nil {
		t.Fatalf("创建通知器失败: %v", err)
	}
	err = wn.Send(context.Background(), &Event{
		Type:        EventProofGenerated,
		JobID:       "job-1",
		FileID:      42,
		Valid:       false,
		Score:       0,
		Attestation: map[string]interface{}{"dlp_id": 13},
	})
	if err != nil {
		t.Fatalf("发送失败: %v", err)
	}
	if got["event"] != "proof_generated" || got["job_id"] != "job-1" || got["file_id"] != float64(42) {
		t.Errorf("事件字段不正确: %v", got)
	}
	if got["valid"] != false || got["score"] != float64(0) {
		t.Errorf("valid/score 应位于顶层且不被省略: %v", got)
	}
	att, _ := got["attestation"].(map[string]interface{})
	if att["dlp_id"] != float64(13) {
		t.Errorf("证明内容不正确: %v", got["attestation"])
	}
	if _, ok := got["error"]; ok {
		t.Errorf("成功事件不应带 error: %v", got)
	}
}

func TestWebhookFailurePayload(t *testing.T) {
	p := newWebhookPayload(&Event{Type: EventProofFailed, Error: "exchange unavailable", ExitCode: 3})
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	var got map[string]interface{}
	json.Unmarshal(data, &got)
	if got["error"] != "exchange unavailable" || got["exit_code"] != float64(3) {
		t.Errorf("失败事件字段不正确: %s", data)
	}
	if _, ok := got["valid"]; ok {
		t.Errorf("失败事件不应带 valid: %s", data)
	}
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Notifications.Webhook.URL = srv.URL
	wn, _ := NewWebhookNotifier(cfg)
	if err := wn.Send(context.Background(), &Event{Type: EventProofFailed}); err == nil {
		t.Error("非 2xx 状态码应返回错误")
	}
}

type countingNotifier struct{ n int32 }

func (c *countingNotifier) Send(context.Context, *Event) error {
	atomic.AddInt32(&c.n, 1)
	return nil
}
func (c *countingNotifier) Name() string { return "counting" }

func TestServiceSendWaits(t *testing.T) {
	ns := NewNotificationService(&config.Config{})
	c := &countingNotifier{}
	ns.Add(c)
	ns.Add(c)

	ns.Send(context.Background(), &Event{Type: EventProofGenerated})
	if atomic.LoadInt32(&c.n) != 2 {
		t.Errorf("期望发送 2 次, 得到 %d", c.n)
	}
}
