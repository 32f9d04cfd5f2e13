package exchange

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable 重试耗尽后交易所仍不可用
	ErrUnavailable = errors.New("exchange unavailable")
	// ErrAuth API Key / Token / 代理密钥无效，不重试
	ErrAuth = errors.New("exchange authentication failed")
	// ErrProxy 转发代理失败（与交易所本身的失败区分）
	ErrProxy = errors.New("proxy request failed")
	// ErrRejected 交易所拒绝了请求参数（例如无效交易对），重试不会改变结果
	ErrRejected = errors.New("request rejected by exchange")
)

// HTTPError 非 2xx 响应
type HTTPError struct {
	Exchange   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("%s HTTP %d: %s", e.Exchange, e.StatusCode, body)
}

// IsRetryable 认证错误永不重试，其余失败（传输错误、非 2xx、代理故障）均可重试
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrAuth)
}

// Unavailable 将最终失败包装为 ErrUnavailable（认证错误保持原样）
func Unavailable(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, name, err)
}

// Observer 请求结果与重试的观察者（指标）
type Observer interface {
	ObserveRequest(exchange, result string)
	ObserveRetry(exchange string)
}

// NopObserver 不记录任何指标
type NopObserver struct{}

func (NopObserver) ObserveRequest(string, string) {}
func (NopObserver) ObserveRetry(string)           {}
