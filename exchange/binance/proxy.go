package binance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/adshao/go-binance/v2/common"

	"finproof/exchange"
)

// directTransport 直连 Binance，HTTP 401 直接视为认证错误
type directTransport struct {
	base http.RoundTripper
}

func (d *directTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := d.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: binance HTTP 401: %s", exchange.ErrAuth, truncate(body))
	}
	return resp, nil
}

// proxyRequest 转发代理的请求体
type proxyRequest struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Method  string            `json:"method"`
}

// proxyTransport 将 go-binance 已签名的请求交给转发代理（例如固定出口 IP 的 Lambda）
type proxyTransport struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func (p *proxyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	headers := map[string]string{}
	if key := req.Header.Get("X-MBX-APIKEY"); key != "" {
		headers["X-MBX-APIKEY"] = key
	}
	payload, err := json.Marshal(proxyRequest{URL: req.URL.String(), Headers: headers, Method: req.Method})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", exchange.ErrProxy, err)
	}

	preq, err := http.NewRequestWithContext(req.Context(), http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", exchange.ErrProxy, err)
	}
	preq.Header.Set("Content-Type", "application/json")
	preq.Header.Set("x-api-key", p.apiKey)

	resp, err := p.httpClient.Do(preq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", exchange.ErrProxy, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", exchange.ErrProxy, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: invalid proxy API key", exchange.ErrAuth)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", exchange.ErrProxy, resp.StatusCode, truncate(body))
	}

	status, inner, err := unwrapProxyResponse(body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: binance HTTP 401 via proxy: %s", exchange.ErrAuth, truncate(inner))
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         resp.Proto,
		ProtoMajor:    resp.ProtoMajor,
		ProtoMinor:    resp.ProtoMinor,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader(inner)),
		ContentLength: int64(len(inner)),
		Request:       req,
	}, nil
}

// proxyEnvelope 代理可能返回的包装字段
type proxyEnvelope struct {
	Error      json.RawMessage `json:"error"`
	StatusCode *int            `json:"statusCode"`
	Body       *string         `json:"body"`
}

// unwrapProxyResponse 处理 {"error":..}、Lambda 风格 {statusCode, body} 与直接透传三种形态，
// 返回上游状态码与 Binance 原始响应体
func unwrapProxyResponse(body []byte) (int, []byte, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return 0, nil, fmt.Errorf("%w: response is not JSON: %s", exchange.ErrProxy, truncate(trimmed))
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return http.StatusOK, trimmed, nil
	}

	var env proxyEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", exchange.ErrProxy, err)
	}

	if len(env.Error) > 0 && string(env.Error) != "null" && string(env.Error) != `""` && string(env.Error) != "false" {
		return 0, nil, fmt.Errorf("%w: proxy error: %s", exchange.ErrProxy, truncate(env.Error))
	}

	if env.StatusCode != nil && *env.StatusCode != http.StatusOK {
		inner := []byte{}
		if env.Body != nil {
			inner = []byte(*env.Body)
		}
		return *env.StatusCode, inner, nil
	}

	if env.Body != nil {
		inner := []byte(*env.Body)
		if !json.Valid(inner) {
			return 0, nil, fmt.Errorf("%w: invalid JSON in proxy response body: %s", exchange.ErrProxy, truncate(inner))
		}
		return upstreamStatus(inner), inner, nil
	}
	return upstreamStatus(trimmed), trimmed, nil
}

// upstreamStatus 代理以 200 透传的 Binance 错误体还原为 4xx，交给 go-binance 解码
func upstreamStatus(body []byte) int {
	var apiErr common.APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code < 0 {
		return http.StatusBadRequest
	}
	return http.StatusOK
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		return s[:256] + "..."
	}
	return s
}
