package config

import (
	"fmt"
	"net/url"
)

// dbProfile 各网络的 PostgreSQL 目标（密码单独注入）
type dbProfile struct {
	Host    string
	Port    string
	Name    string
	User    string
	SSLMode string
}

var dbProfiles = map[string]dbProfile{
	"mainnet": {Host: "ep-old-dew-a5puhh9f.us-east-2.aws.neon.tech", Port: "5432", Name: "finquarium", User: "finquarium-admin", SSLMode: "require"},
	"testnet": {Host: "ep-old-dew-a5puhh9f.us-east-2.aws.neon.tech", Port: "5432", Name: "finquarium-dev", User: "finquarium-dev_owner", SSLMode: "require"},
	"local":   {Host: "localhost", Port: "5432", Name: "finquarium", User: "finquarium", SSLMode: "disable"},
}

// NetworkForDLP DLP 13 为主网，25 为测试网
func NetworkForDLP(dlpID int) (string, error) {
	switch dlpID {
	case 13:
		return "mainnet", nil
	case 25:
		return "testnet", nil
	default:
		return "", fmt.Errorf("无法从 dlp_id %d 推导数据库网络 (13 主网, 25 测试网), 请设置 database.network", dlpID)
	}
}

// NetworkDSN 按网络名生成 PostgreSQL 连接串
func NetworkDSN(network, password string) (string, error) {
	p, ok := dbProfiles[network]
	if !ok {
		return "", fmt.Errorf("未知的数据库网络: %s", network)
	}
	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(p.User, password),
		Host:     p.Host + ":" + p.Port,
		Path:     "/" + p.Name,
		RawQuery: "sslmode=" + p.SSLMode,
	}
	return u.String(), nil
}
