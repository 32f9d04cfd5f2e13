package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3}
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("第三次应成功: %v", err)
	}
	if calls != 3 {
		t.Errorf("期望调用 3 次, 得到 %d", calls)
	}
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	retries := 0
	p := Policy{MaxAttempts: 3, OnRetry: func(int, error) { retries++ }}
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})
	if err == nil || err.Error() != "down" {
		t.Fatalf("应返回最后一次错误, 得到 %v", err)
	}
	if calls != 3 || retries != 2 {
		t.Errorf("调用 %d 次, 重试回调 %d 次", calls, retries)
	}
}

func TestPermanentNotRetried(t *testing.T) {
	sentinel := errors.New("bad key")
	calls := 0
	p := Policy{MaxAttempts: 3}
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("应返回原始错误, 得到 %v", err)
	}
	if IsPermanent(err) {
		t.Error("返回的错误不应再带 Permanent 包装")
	}
	if calls != 1 {
		t.Errorf("不可重试错误只应调用 1 次, 得到 %d", calls)
	}
}

func TestRetryablePredicate(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 5, Retryable: func(err error) bool { return false }}
	_ = p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Errorf("Retryable=false 时只应调用 1 次, 得到 %d", calls)
	}
}

func TestContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, Backoff: Fixed(time.Hour)}
	go cancel()
	err := p.Do(ctx, func(ctx context.Context) error { return errors.New("x") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("期望 context.Canceled, 得到 %v", err)
	}
}

func TestExponentialBackoff(t *testing.T) {
	f := Exponential(100*time.Millisecond, 10*time.Second)
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, w := range want {
		if got := f(i); got != w {
			t.Errorf("attempt %d: 期望 %v, 得到 %v", i, w, got)
		}
	}
	if Fixed(time.Second)(7) != time.Second {
		t.Error("Fixed 退避应恒定")
	}
}
