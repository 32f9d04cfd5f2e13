package lock

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"finproof/config"
)

// NewDistributedLock 根据配置创建分布式锁实例
// 如果未启用分布式锁，返回 NopLock
func NewDistributedLock(cfg *config.Config) (DistributedLock, error) {
	lc := cfg.DistributedLock
	if !lc.Enabled {
		return NewNopLock(), nil
	}

	switch lc.Type {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:        lc.Redis.Addr,
			Password:    lc.Redis.Password,
			DB:          lc.Redis.DB,
			PoolSize:    lc.Redis.PoolSize,
			DialTimeout: 5 * time.Second,
		})
		return NewRedisLock(client, lc.Prefix), nil

	default:
		return nil, fmt.Errorf("unsupported lock type: %s", lc.Type)
	}
}

// DefaultTTL 配置的锁过期时间
func DefaultTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.DistributedLock.DefaultTTL) * time.Second
}
