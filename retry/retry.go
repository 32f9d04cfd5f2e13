// Package retry 提供交易所请求使用的显式重试策略
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
)

// Policy 重试策略：最大尝试次数 + 退避函数
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	// Retryable 判断错误是否可重试，为 nil 时除 Permanent 外全部重试
	Retryable func(err error) bool
	// OnRetry 每次重试前回调（用于日志与指标）
	OnRetry func(attempt int, err error)
}

// Fixed 固定间隔退避
func Fixed(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// Exponential 指数退避：base * 2^attempt，attempt 从 0 开始
func Exponential(base, max time.Duration) func(int) time.Duration {
	b := &backoff.Backoff{Min: base, Max: max, Factor: 2}
	return func(attempt int) time.Duration {
		return b.ForAttempt(float64(attempt))
	}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent 标记错误为不可重试
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent 判断是否为不可重试错误
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do 按策略执行 op，返回最后一次错误（Permanent 包装会被剥离）
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
