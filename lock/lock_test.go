package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"finproof/config"
	"finproof/contribution"
)

func TestIdentityKey(t *testing.T) {
	id := contribution.NewIdentity("42")
	if got := IdentityKey(id); got != "identity:"+id.String() {
		t.Errorf("IdentityKey = %s", got)
	}
}

func TestFactoryDisabledReturnsNop(t *testing.T) {
	cfg, err := config.LoadConfigFromBytes([]byte("{}"), nil)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	l, err := NewDistributedLock(cfg)
	if err != nil {
		t.Fatalf("创建锁失败: %v", err)
	}
	if _, ok := l.(*NopLock); !ok {
		t.Fatalf("未启用时应返回 NopLock, 得到 %T", l)
	}
	ok, err := l.TryLock(context.Background(), "k", time.Second)
	if !ok || err != nil {
		t.Errorf("NopLock 应总是成功: %v %v", ok, err)
	}
	if DefaultTTL(cfg) != 300*time.Second {
		t.Errorf("默认 TTL 应为 300s, 得到 %s", DefaultTTL(cfg))
	}
}

func TestFactoryRedis(t *testing.T) {
	cfg, err := config.LoadConfigFromBytes([]byte(`
distributed_lock:
  enabled: true
  redis:
    addr: "127.0.0.1:6390"
`), nil)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	l, err := NewDistributedLock(cfg)
	if err != nil {
		t.Fatalf("创建锁失败: %v", err)
	}
	defer l.Close()
	if _, ok := l.(*RedisLock); !ok {
		t.Errorf("启用后应返回 RedisLock, 得到 %T", l)
	}
}

func TestRedisLockUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	l := NewRedisLock(client, "test:")
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if ok, err := l.TryLock(ctx, "k", time.Second); ok || err == nil {
		t.Errorf("连接失败时应返回错误: %v %v", ok, err)
	}
	if err := l.Lock(ctx, "k", time.Second); err == nil {
		t.Error("连接失败时 Lock 应返回错误")
	}
}

func TestRedisUnlockNotHeld(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	l := NewRedisLock(client, "test:")
	defer l.Close()

	if err := l.Unlock(context.Background(), "missing"); !errors.Is(err, ErrNotHeld) {
		t.Errorf("期望 ErrNotHeld, 得到 %v", err)
	}
	if err := l.Extend(context.Background(), "missing", time.Second); !errors.Is(err, ErrNotHeld) {
		t.Errorf("期望 ErrNotHeld, 得到 %v", err)
	}
}
