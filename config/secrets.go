package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// SecretProvider 键值形式的密钥/配置来源
type SecretProvider interface {
	Get(key string) (string, bool)
}

// EnvProvider 读取进程环境变量
type EnvProvider struct{}

// Get 空字符串视为未设置
func (EnvProvider) Get(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// MapProvider 内存中的键值（测试用）
type MapProvider map[string]string

// Get 读取键值
func (m MapProvider) Get(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// LoadDotEnv 加载 .env 文件到进程环境（不覆盖已存在的变量），文件不存在时忽略
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("加载 %s 失败: %w", p, err)
		}
	}
	return nil
}

// ApplySecrets 用环境变量覆盖配置文件中的值
func (c *Config) ApplySecrets(p SecretProvider) error {
	str := func(key string, dst *string) {
		if v, ok := p.Get(key); ok {
			*dst = v
		}
	}
	var firstErr error
	num := func(key string, dst *int) {
		v, ok := p.Get(key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("环境变量 %s 不是整数: %q", key, v)
			}
			return
		}
		*dst = n
	}
	flt := func(key string, dst *float64) {
		v, ok := p.Get(key)
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("环境变量 %s 不是数字: %q", key, v)
			}
			return
		}
		*dst = f
	}

	str("INPUT_DIR", &c.App.InputDir)
	str("OUTPUT_DIR", &c.App.OutputDir)
	str("LOG_LEVEL", &c.App.LogLevel)

	num("DLP_ID", &c.Proof.DlpID)
	if v, ok := p.Get("FILE_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("环境变量 FILE_ID 不是整数: %q", v)
		}
		c.Proof.FileID = id
	}
	str("FILE_URL", &c.Proof.FileURL)
	str("JOB_ID", &c.Proof.JobID)
	str("OWNER_ADDRESS", &c.Proof.OwnerAddress)
	num("MAX_POINTS", &c.Proof.MaxPoints)
	flt("REWARD_FACTOR", &c.Proof.RewardFactor)
	flt("MIN_SCORE", &c.Proof.MinScore)

	str("COINBASE_TOKEN", &c.Coinbase.Token)
	str("COINBASE_ENCRYPTED_REFRESH_TOKEN", &c.Coinbase.EncryptedRefreshToken)
	str("COINBASE_API_URL", &c.Coinbase.APIURL)

	str("BINANCE_API_KEY", &c.Binance.APIKey)
	str("BINANCE_API_SECRET", &c.Binance.SecretKey)
	str("BINANCE_API_URL", &c.Binance.APIURL)
	str("BINANCE_PROXY_URL", &c.Binance.ProxyURL)
	str("BINANCE_PROXY_API_KEY", &c.Binance.ProxyAPIKey)

	if v, ok := p.Get("ENCRYPTION_KEY"); ok {
		c.Storage.EncryptionKey = v
		c.Storage.Enabled = true
	}
	str("STORAGE_DIR", &c.Storage.Dir)

	str("DB_TYPE", &c.Database.Type)
	str("POSTGRES_URL", &c.Database.DSN)
	if _, ok := p.Get("POSTGRES_URL"); ok {
		if _, typed := p.Get("DB_TYPE"); !typed {
			c.Database.Type = "postgres"
		}
	}
	str("DB_DSN", &c.Database.DSN)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NETWORK", &c.Database.Network)

	if v, ok := p.Get("REDIS_ADDR"); ok {
		c.DistributedLock.Redis.Addr = v
		c.DistributedLock.Enabled = true
	}
	str("REDIS_PASSWORD", &c.DistributedLock.Redis.Password)

	if v, ok := p.Get("WEBHOOK_URL"); ok {
		c.Notifications.Webhook.URL = v
		c.Notifications.Webhook.Enabled = true
	}

	return firstErr
}
