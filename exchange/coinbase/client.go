package coinbase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"finproof/exchange"
	"finproof/logger"
	"finproof/retry"
)

const (
	DefaultBaseURL = "https://api.coinbase.com/v2" // Coinbase v2 REST
	APIVersion     = "2024-01-01"
	name           = "coinbase"
)

// Client Coinbase Bearer Token 客户端
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	limiter    *rate.Limiter
	observer   exchange.Observer
}

// Option 客户端选项
type Option func(*Client)

// WithBaseURL 覆盖 API 地址（测试用）
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient 自定义 HTTP 客户端
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRetry 覆盖重试策略
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.policy.MaxAttempts = maxAttempts
		c.policy.Backoff = retry.Fixed(backoff)
	}
}

// WithPageDelay 分页之间的固定间隔，0 表示不限速
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) { c.limiter = newLimiter(d) }
}

// WithObserver 注入指标观察者
func WithObserver(o exchange.Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

func newLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// NewClient 创建客户端：3 次尝试、固定 1 秒退避、分页间隔 100ms
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Fixed(time.Second),
		},
		limiter:  newLimiter(100 * time.Millisecond),
		observer: exchange.NopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy.Retryable = exchange.IsRetryable
	c.policy.OnRetry = func(attempt int, err error) {
		c.observer.ObserveRetry(name)
		logger.Warn("⚠️ [Coinbase] 请求失败，第 %d 次重试: %v", attempt, err)
	}
	return c
}

// get 带重试的 GET 请求，path 可以是相对路径或带查询串的路径
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	var body []byte
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		b, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		c.observer.ObserveRequest(name, "error")
		return exchange.Unavailable(name+" "+path, err)
	}
	c.observer.ObserveRequest(name, "ok")

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+strings.TrimLeft(path, "/"), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request error: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("CB-VERSION", APIVersion)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response error: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: coinbase token rejected (HTTP %d)", exchange.ErrAuth, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &exchange.HTTPError{Exchange: name, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// FetchUser 获取当前用户
func (c *Client) FetchUser(ctx context.Context) (*User, error) {
	var resp userResponse
	if err := c.get(ctx, "user", &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, errors.New("coinbase user response has no id")
	}
	return &resp.Data, nil
}

// FetchAccounts 获取全部账户（跟随分页）
func (c *Client) FetchAccounts(ctx context.Context) ([]Account, error) {
	var all []Account
	err := c.paginate(ctx, "accounts", func(raw json.RawMessage) error {
		var page []Account
		if err := json.Unmarshal(raw, &page); err != nil {
			return fmt.Errorf("decode accounts: %w", err)
		}
		all = append(all, page...)
		return nil
	})
	return all, err
}

// FetchAccountTransactions 获取单个账户的全部交易
func (c *Client) FetchAccountTransactions(ctx context.Context, accountID string) ([]RawTransaction, error) {
	var all []RawTransaction
	path := "accounts/" + url.PathEscape(accountID) + "/transactions"
	err := c.paginate(ctx, path, func(raw json.RawMessage) error {
		var page []RawTransaction
		if err := json.Unmarshal(raw, &page); err != nil {
			return fmt.Errorf("decode transactions: %w", err)
		}
		all = append(all, page...)
		return nil
	})
	return all, err
}

// FetchAllTransactions 列出账户后逐个拉取交易
func (c *Client) FetchAllTransactions(ctx context.Context) ([]RawTransaction, error) {
	accounts, err := c.FetchAccounts(ctx)
	if err != nil {
		return nil, err
	}

	var all []RawTransaction
	for _, acct := range accounts {
		txs, err := c.FetchAccountTransactions(ctx, acct.ID)
		if err != nil {
			return nil, err
		}
		logger.Debug("[Coinbase] 账户 %s 交易 %d 笔", acct.ID, len(txs))
		all = append(all, txs...)
	}
	logger.Info("✅ [Coinbase] 共 %d 个账户, %d 笔交易", len(accounts), len(all))
	return all, nil
}

// paginate 跟随 pagination.next_uri 中的 starting_after 游标直到耗尽
func (c *Client) paginate(ctx context.Context, path string, handle func(json.RawMessage) error) error {
	cursor := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		p := path
		if cursor != "" {
			p += "?starting_after=" + url.QueryEscape(cursor)
		}

		var page pageResponse
		if err := c.get(ctx, p, &page); err != nil {
			return err
		}
		if len(page.Data) > 0 {
			if err := handle(page.Data); err != nil {
				return err
			}
		}

		next := nextCursor(page.Pagination.NextURI)
		if next == "" || next == cursor {
			return nil
		}
		cursor = next
	}
}

// nextCursor 从 next_uri 提取 starting_after，无法解析视为结束
func nextCursor(nextURI string) string {
	if nextURI == "" {
		return ""
	}
	u, err := url.Parse(nextURI)
	if err != nil {
		return ""
	}
	return u.Query().Get("starting_after")
}
