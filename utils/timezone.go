package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ExchangeTimeLayout 交易所导出的固定时间格式（UTC）
	ExchangeTimeLayout = "2006-01-02T15:04:05Z"
	// StatementTimeLayout Binance 对账单 CSV 的时间格式（UTC）
	StatementTimeLayout = "2006-01-02 15:04:05"
)

// ParseExchangeTime 解析固定格式时间戳，兼容 RFC3339 带时区的写法
func ParseExchangeTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(ExchangeTimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析时间戳 %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ParseStatementTime 解析对账单时间（UTC）
func ParseStatementTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(StatementTimeLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析对账单时间 %q: %w", s, err)
	}
	return t, nil
}

// FormatExchangeTime 按固定格式输出 UTC 时间
func FormatExchangeTime(t time.Time) string {
	return t.UTC().Format(ExchangeTimeLayout)
}

// FromUnixMilli 毫秒时间戳转 UTC 时间
func FromUnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NowUTC 获取当前UTC时间
func NowUTC() time.Time {
	return time.Now().UTC()
}

// DaysBetween 两个时间之间的完整天数（向下取整）
func DaysBetween(from, to time.Time) int {
	if to.Before(from) {
		from, to = to, from
	}
	return int(to.Sub(from).Hours() / 24)
}
