package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"

	"finproof/contribution"
	"finproof/exchange"
	"finproof/logger"
	"finproof/retry"
)

const (
	DefaultBaseURL = "https://api.binance.com" // Binance 现货
	RecvWindow     = 60000
	TradesLimit    = 1000
	name           = "binance"
)

// Client Binance 现货只读客户端，签名与错误解码交给 go-binance
type Client struct {
	api      *gobinance.Client
	policy   retry.Policy
	limiter  *rate.Limiter
	observer exchange.Observer

	baseURL    string
	httpClient *http.Client
	proxy      *proxyTransport
}

// Option 客户端选项
type Option func(*Client)

// WithBaseURL 覆盖 API 地址（测试用）
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithProxy 通过转发代理发送已签名的请求
func WithProxy(proxyURL, proxyAPIKey string, httpClient *http.Client) Option {
	return func(c *Client) {
		if proxyURL == "" {
			return
		}
		if httpClient == nil {
			httpClient = defaultHTTPClient()
		}
		c.proxy = &proxyTransport{url: proxyURL, apiKey: proxyAPIKey, httpClient: httpClient}
	}
}

// WithHTTPClient 自定义直连 HTTP 客户端
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithRetry 覆盖重试策略（测试中使用零退避）
func WithRetry(maxAttempts int, base time.Duration) Option {
	return func(c *Client) {
		c.policy.MaxAttempts = maxAttempts
		c.policy.Backoff = retry.Exponential(base, 10*time.Second)
		if base <= 0 {
			c.policy.Backoff = retry.Fixed(0)
		}
	}
}

// WithRequestDelay 请求之间的固定间隔
func WithRequestDelay(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithObserver 注入指标观察者
func WithObserver(o exchange.Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// NewClient 创建客户端：3 次尝试，指数退避 0.1s·2^attempt
func NewClient(apiKey, secretKey string, opts ...Option) *Client {
	c := &Client{
		policy: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Exponential(100*time.Millisecond, 10*time.Second),
		},
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		observer:   exchange.NopObserver{},
		baseURL:    DefaultBaseURL,
		httpClient: defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.api = gobinance.NewClient(apiKey, secretKey)
	c.api.BaseURL = c.baseURL
	c.api.HTTPClient = &http.Client{
		Timeout:   c.httpClient.Timeout,
		Transport: &directTransport{base: c.httpClient.Transport},
	}
	if c.proxy != nil {
		c.api.HTTPClient = &http.Client{Transport: c.proxy}
	}

	c.policy.Retryable = exchange.IsRetryable
	c.policy.OnRetry = func(attempt int, err error) {
		c.observer.ObserveRetry(name)
		logger.Warn("⚠️ [Binance] 请求失败，第 %d 次重试: %v", attempt, err)
	}
	return c
}

// do 带限速与重试执行一次 go-binance 服务调用
func (c *Client) do(ctx context.Context, endpoint string, call func(ctx context.Context) error) error {
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		return classify(call(ctx))
	})
	switch {
	case err == nil:
		c.observer.ObserveRequest(name, "ok")
		return nil
	case errors.Is(err, exchange.ErrRejected):
		c.observer.ObserveRequest(name, "rejected")
		return err
	default:
		c.observer.ObserveRequest(name, "error")
		return exchange.Unavailable(name+" "+endpoint, err)
	}
}

// classify -2014/-2015（API Key 格式错误 / 无效 Key 或 IP）视为认证错误，
// -11xx 请求参数类错误（例如 -1121 无效交易对）不重试
func classify(err error) error {
	if err == nil || !common.IsAPIError(err) {
		return err
	}
	apiErr := err.(*common.APIError)
	switch {
	case apiErr.Code == -2014 || apiErr.Code == -2015:
		return fmt.Errorf("%w: %s", exchange.ErrAuth, apiErr.Error())
	case apiErr.Code <= -1100 && apiErr.Code > -1200:
		return retry.Permanent(fmt.Errorf("%w: %s", exchange.ErrRejected, apiErr.Error()))
	}
	return err
}

// FetchAccountIdentity 账户 uid 的哈希，缺失时回退 accountType
func (c *Client) FetchAccountIdentity(ctx context.Context) (contribution.Identity, error) {
	var account *gobinance.Account
	err := c.do(ctx, "/api/v3/account", func(ctx context.Context) error {
		var err error
		account, err = c.api.NewGetAccountService().Do(ctx, gobinance.WithRecvWindow(RecvWindow))
		return err
	})
	if err != nil {
		return "", err
	}

	switch {
	case account.UID != 0:
		return contribution.NewIdentity(strconv.FormatInt(account.UID, 10)), nil
	case account.AccountType != "":
		return contribution.NewIdentity(account.AccountType), nil
	default:
		return "", errors.New("binance account response has neither uid nor accountType")
	}
}

// FetchMyTrades 拉取单个交易对的全部成交，页满时按 fromId 继续
func (c *Client) FetchMyTrades(ctx context.Context, symbol string) ([]*gobinance.TradeV3, error) {
	var (
		all    []*gobinance.TradeV3
		fromID int64
		seen   = make(map[int64]struct{})
	)
	for {
		svc := c.api.NewListTradesService().Symbol(symbol).Limit(TradesLimit)
		if fromID > 0 {
			svc = svc.FromID(fromID)
		}

		var page []*gobinance.TradeV3
		err := c.do(ctx, "/api/v3/myTrades", func(ctx context.Context) error {
			var err error
			page, err = svc.Do(ctx, gobinance.WithRecvWindow(RecvWindow))
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, tr := range page {
			if tr == nil {
				continue
			}
			if _, dup := seen[tr.ID]; dup {
				continue
			}
			seen[tr.ID] = struct{}{}
			all = append(all, tr)
		}

		if len(page) < TradesLimit || page[len(page)-1] == nil {
			break
		}
		fromID = page[len(page)-1].ID + 1
	}

	logger.Debug("[Binance] %s 实时成交 %d 笔", symbol, len(all))
	return all, nil
}
