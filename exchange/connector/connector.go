// Package connector 根据配置创建交易所连接器
package connector

import (
	"time"

	"finproof/config"
	"finproof/exchange"
	"finproof/exchange/binance"
	"finproof/exchange/coinbase"
)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// NewCoinbase 创建 Coinbase 客户端，缺少 Token 时返回 config.ErrMissingCredential
func NewCoinbase(cfg *config.Config, observer exchange.Observer) (*coinbase.Client, error) {
	if err := cfg.RequireCoinbase(); err != nil {
		return nil, err
	}
	cb := cfg.Coinbase
	return coinbase.NewClient(cb.Token,
		coinbase.WithBaseURL(cb.APIURL),
		coinbase.WithRetry(cb.MaxAttempts, ms(cb.BackoffMs)),
		coinbase.WithPageDelay(ms(cb.PageDelayMs)),
		coinbase.WithObserver(observer),
	), nil
}

// NewBinance 创建 Binance 客户端，配置了代理时经代理转发
func NewBinance(cfg *config.Config, observer exchange.Observer) (*binance.Client, error) {
	if err := cfg.RequireBinance(); err != nil {
		return nil, err
	}
	bn := cfg.Binance
	return binance.NewClient(bn.APIKey, bn.SecretKey,
		binance.WithBaseURL(bn.APIURL),
		binance.WithProxy(bn.ProxyURL, bn.ProxyAPIKey, nil),
		binance.WithRetry(bn.MaxAttempts, ms(bn.BackoffMs)),
		binance.WithRequestDelay(ms(bn.RequestDelayMs)),
		binance.WithObserver(observer),
	), nil
}
