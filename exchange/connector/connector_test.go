package connector

import (
	"errors"
	"testing"

	"finproof/config"
	"finproof/exchange"
)

func TestMissingCredentials(t *testing.T) {
	cfg, err := config.LoadConfigFromBytes([]byte("{}"), nil)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if _, err := NewCoinbase(cfg, exchange.NopObserver{}); !errors.Is(err, config.ErrMissingCredential) {
		t.Errorf("缺少 Token 应返回 ErrMissingCredential, 得到 %v", err)
	}
	if _, err := NewBinance(cfg, exchange.NopObserver{}); !errors.Is(err, config.ErrMissingCredential) {
		t.Errorf("缺少 API Key 应返回 ErrMissingCredential, 得到 %v", err)
	}
}

func TestBuildFromSecrets(t *testing.T) {
	cfg, err := config.LoadConfigFromBytes([]byte("{}"), config.MapProvider{
		"COINBASE_TOKEN":     "tok",
		"BINANCE_API_KEY":    "k",
		"BINANCE_API_SECRET": "s",
	})
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if c, err := NewCoinbase(cfg, nil); err != nil || c == nil {
		t.Errorf("创建 Coinbase 客户端失败: %v", err)
	}
	if c, err := NewBinance(cfg, nil); err != nil || c == nil {
		t.Errorf("创建 Binance 客户端失败: %v", err)
	}
}
