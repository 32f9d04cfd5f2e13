package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 贡献证明任务配置，进程启动时构建一次并以指针传入各组件
type Config struct {
	// 应用配置
	App struct {
		InputDir  string `yaml:"input_dir"`  // 输入目录，默认 /input
		OutputDir string `yaml:"output_dir"` // 输出目录，默认 /output
		LogLevel  string `yaml:"log_level"`  // 日志级别: debug, info, warn, error，默认 info
	} `yaml:"app"`

	// 奖励池与任务参数
	Proof struct {
		DlpID            int     `yaml:"dlp_id"`             // DLP 编号，默认 13
		FileID           int64   `yaml:"file_id"`            // 文件 ID（由调度方注入）
		FileURL          string  `yaml:"file_url"`           // 文件地址
		JobID            string  `yaml:"job_id"`             // 任务 ID
		OwnerAddress     string  `yaml:"owner_address"`      // 提交者钱包地址
		MaxPoints        int     `yaml:"max_points"`         // 满分点数，默认 630
		RewardFactor     float64 `yaml:"reward_factor"`      // 奖励倍数，默认 630
		MinScore         float64 `yaml:"min_score"`          // 最低分，默认 0.001/reward_factor
		MaxInsightPoints int     `yaml:"max_insight_points"` // 市场洞察满分点数，默认 100
	} `yaml:"proof"`

	// Coinbase 连接配置
	Coinbase struct {
		Token                 string `yaml:"token"`                   // Bearer Token
		EncryptedRefreshToken string `yaml:"encrypted_refresh_token"` // 加密的刷新令牌，获得奖励时写入贡献记录
		APIURL                string `yaml:"api_url"`                 // 默认 https://api.coinbase.com/v2
		MaxAttempts           int    `yaml:"max_attempts"`            // 默认 3
		BackoffMs             int    `yaml:"backoff_ms"`              // 固定退避（毫秒），默认 1000
		PageDelayMs           int    `yaml:"page_delay_ms"`           // 分页间隔（毫秒），默认 100
	} `yaml:"coinbase"`

	// Binance 连接配置
	Binance struct {
		APIKey         string `yaml:"api_key"`
		SecretKey      string `yaml:"secret_key"`
		APIURL         string `yaml:"api_url"`          // 默认 https://api.binance.com
		ProxyURL       string `yaml:"proxy_url"`        // 转发代理地址，为空则直连
		ProxyAPIKey    string `yaml:"proxy_api_key"`    // 转发代理密钥
		MaxAttempts    int    `yaml:"max_attempts"`     // 默认 3
		BackoffMs      int    `yaml:"backoff_ms"`       // 指数退避基数（毫秒），默认 100
		RequestDelayMs int    `yaml:"request_delay_ms"` // 请求间隔（毫秒），默认 100
	} `yaml:"binance"`

	// 加密上传配置
	Storage struct {
		Enabled       bool   `yaml:"enabled"`        // 是否加密保存提交内容
		Dir           string `yaml:"dir"`            // 本地存储目录，默认 ./data/uploads
		EncryptionKey string `yaml:"encryption_key"` // 加密口令
	} `yaml:"storage"`

	// 数据库配置（支持 SQLite、PostgreSQL、MySQL）
	Database struct {
		Type            string `yaml:"type"`              // 数据库类型: sqlite, postgres, mysql，默认 sqlite
		DSN             string `yaml:"dsn"`               // 数据源名称，默认 ./data/finproof.db
		Password        string `yaml:"password"`          // 设置后且 dsn 为空时按网络生成 PostgreSQL 连接串
		Network         string `yaml:"network"`           // mainnet, testnet, local，为空时由 dlp_id 推导
		MaxOpenConns    int    `yaml:"max_open_conns"`    // 最大打开连接数，默认10
		MaxIdleConns    int    `yaml:"max_idle_conns"`    // 最大空闲连接数，默认2
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // 连接最大生命周期（秒），默认3600
		LogLevel        string `yaml:"log_level"`         // 日志级别: silent, error, warn, info，默认 error
	} `yaml:"database"`

	// 分布式锁配置（同一身份的多个任务互斥）
	DistributedLock struct {
		Enabled    bool   `yaml:"enabled"`     // 是否启用分布式锁，默认false
		Type       string `yaml:"type"`        // 锁类型: redis，默认 redis
		Prefix     string `yaml:"prefix"`      // 锁键前缀，默认 "finproof:lock:"
		DefaultTTL int    `yaml:"default_ttl"` // 锁过期时间（秒），默认300

		Redis struct {
			Addr     string `yaml:"addr"`      // Redis 地址
			Password string `yaml:"password"`  // Redis 密码，默认为空
			DB       int    `yaml:"db"`        // Redis 数据库，默认0
			PoolSize int    `yaml:"pool_size"` // 连接池大小，默认4
		} `yaml:"redis"`
	} `yaml:"distributed_lock"`

	// 指标导出
	Metrics struct {
		Enabled      bool   `yaml:"enabled"`       // 是否写出 textfile 指标，默认 true
		TextfilePath string `yaml:"textfile_path"` // 默认 <output_dir>/metrics.prom
	} `yaml:"metrics"`

	// 通知配置
	Notifications struct {
		Webhook struct {
			Enabled    bool   `yaml:"enabled"`
			URL        string `yaml:"url"`
			TimeoutSec int    `yaml:"timeout_sec"` // 默认 10
		} `yaml:"webhook"`
	} `yaml:"notifications"`
}

// Load 默认值 → YAML 文件（可选）→ 环境变量（经 SecretProvider），最后校验
func Load(configPath string, secrets SecretProvider) (*Config, error) {
	cfg := &Config{}
	cfg.Metrics.Enabled = true

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %v", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %v", err)
		}
	}

	if secrets != nil {
		if err := cfg.ApplySecrets(secrets); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}
	return cfg, nil
}

// LoadConfigFromBytes 从字节数组加载配置（用于测试）
func LoadConfigFromBytes(data []byte, secrets SecretProvider) (*Config, error) {
	cfg := &Config{}
	cfg.Metrics.Enabled = true
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}
	if secrets != nil {
		if err := cfg.ApplySecrets(secrets); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}
	return cfg, nil
}

// Validate 填充默认值并检查配置一致性
func (c *Config) Validate() error {
	if c.App.InputDir == "" {
		c.App.InputDir = "/input"
	}
	if c.App.OutputDir == "" {
		c.App.OutputDir = "/output"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	// 奖励参数
	if c.Proof.DlpID == 0 {
		c.Proof.DlpID = 13
	}
	if c.Proof.MaxPoints == 0 {
		c.Proof.MaxPoints = 630
	}
	if c.Proof.MaxPoints < 0 {
		return fmt.Errorf("max_points 必须大于0")
	}
	if c.Proof.RewardFactor == 0 {
		c.Proof.RewardFactor = 630
	}
	if c.Proof.RewardFactor < 0 {
		return fmt.Errorf("reward_factor 不能为负数")
	}
	if c.Proof.MinScore < 0 {
		return fmt.Errorf("min_score 不能为负数")
	}
	if c.Proof.MinScore == 0 {
		// 乘以奖励倍数后对应 0.001 的最低奖励
		c.Proof.MinScore = 0.001 / c.Proof.RewardFactor
	}
	if c.Proof.MinScore > 1 {
		return fmt.Errorf("min_score 不能大于1")
	}
	if c.Proof.MaxInsightPoints <= 0 {
		c.Proof.MaxInsightPoints = 100
	}

	// 交易所
	if c.Coinbase.APIURL == "" {
		c.Coinbase.APIURL = "https://api.coinbase.com/v2"
	}
	if c.Coinbase.MaxAttempts <= 0 {
		c.Coinbase.MaxAttempts = 3
	}
	if c.Coinbase.BackoffMs <= 0 {
		c.Coinbase.BackoffMs = 1000
	}
	if c.Coinbase.PageDelayMs <= 0 {
		c.Coinbase.PageDelayMs = 100
	}
	if c.Binance.APIURL == "" {
		c.Binance.APIURL = "https://api.binance.com"
	}
	if c.Binance.MaxAttempts <= 0 {
		c.Binance.MaxAttempts = 3
	}
	if c.Binance.BackoffMs <= 0 {
		c.Binance.BackoffMs = 100
	}
	if c.Binance.RequestDelayMs <= 0 {
		c.Binance.RequestDelayMs = 100
	}
	if c.Binance.ProxyURL != "" && c.Binance.ProxyAPIKey == "" {
		return fmt.Errorf("配置了 binance.proxy_url 但缺少 proxy_api_key")
	}

	// 加密存储
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./data/uploads"
	}
	if c.Storage.Enabled && c.Storage.EncryptionKey == "" {
		return fmt.Errorf("启用 storage 时必须设置 encryption_key")
	}

	// 只提供密码时按网络选择 PostgreSQL 目标
	if c.Database.DSN == "" && c.Database.Password != "" {
		network := c.Database.Network
		if network == "" {
			n, err := NetworkForDLP(c.Proof.DlpID)
			if err != nil {
				return err
			}
			network = n
		}
		dsn, err := NetworkDSN(network, c.Database.Password)
		if err != nil {
			return err
		}
		c.Database.Type = "postgres"
		c.Database.Network = network
		c.Database.DSN = dsn
	}

	// 设置数据库配置默认值
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("不支持的数据库类型: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		if c.Database.Type != "sqlite" {
			return fmt.Errorf("%s 数据库必须设置 dsn", c.Database.Type)
		}
		c.Database.DSN = "./data/finproof.db"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 2
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 3600
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "error"
	}

	// 分布式锁（默认不启用）
	if c.DistributedLock.Type == "" {
		c.DistributedLock.Type = "redis"
	}
	if c.DistributedLock.Prefix == "" {
		c.DistributedLock.Prefix = "finproof:lock:"
	}
	if c.DistributedLock.DefaultTTL <= 0 {
		c.DistributedLock.DefaultTTL = 300
	}
	if c.DistributedLock.Redis.PoolSize <= 0 {
		c.DistributedLock.Redis.PoolSize = 4
	}
	if c.DistributedLock.Enabled {
		if c.DistributedLock.Type != "redis" {
			return fmt.Errorf("不支持的锁类型: %s", c.DistributedLock.Type)
		}
		if c.DistributedLock.Redis.Addr == "" {
			return fmt.Errorf("启用分布式锁时必须设置 distributed_lock.redis.addr")
		}
	}

	if c.Metrics.TextfilePath == "" {
		c.Metrics.TextfilePath = strings.TrimRight(c.App.OutputDir, "/") + "/metrics.prom"
	}

	if c.Notifications.Webhook.TimeoutSec <= 0 {
		c.Notifications.Webhook.TimeoutSec = 10
	}
	if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
		return fmt.Errorf("启用 webhook 时必须设置 url")
	}

	return nil
}

// ErrMissingCredential 对应提交类型缺少交易所凭证
var ErrMissingCredential = errors.New("missing exchange credential")

// RequireCoinbase 检查 Coinbase 凭证
func (c *Config) RequireCoinbase() error {
	if c.Coinbase.Token == "" {
		return fmt.Errorf("%w: COINBASE_TOKEN", ErrMissingCredential)
	}
	return nil
}

// RequireBinance 检查 Binance 凭证
func (c *Config) RequireBinance() error {
	if c.Binance.APIKey == "" || c.Binance.SecretKey == "" {
		return fmt.Errorf("%w: BINANCE_API_KEY / BINANCE_API_SECRET", ErrMissingCredential)
	}
	return nil
}

const masked = "******"

func mask(s string) string {
	if s == "" {
		return ""
	}
	return masked
}

// Redacted 返回隐藏密钥后的副本（用于日志）
func (c *Config) Redacted() *Config {
	cp := *c
	cp.Coinbase.Token = mask(c.Coinbase.Token)
	cp.Coinbase.EncryptedRefreshToken = mask(c.Coinbase.EncryptedRefreshToken)
	cp.Binance.APIKey = mask(c.Binance.APIKey)
	cp.Binance.SecretKey = mask(c.Binance.SecretKey)
	cp.Binance.ProxyAPIKey = mask(c.Binance.ProxyAPIKey)
	cp.Storage.EncryptionKey = mask(c.Storage.EncryptionKey)
	cp.DistributedLock.Redis.Password = mask(c.DistributedLock.Redis.Password)
	cp.Database.Password = mask(c.Database.Password)
	if c.Database.Type != "sqlite" {
		cp.Database.DSN = mask(c.Database.DSN)
	}
	return &cp
}

// String YAML 形式的脱敏配置
func (c *Config) String() string {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return string(data)
}
