package submission

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"finproof/contribution"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrInputMissing) {
		t.Errorf("不存在的目录应返回 ErrInputMissing, 得到 %v", err)
	}
}

func TestLoadEmptyDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "hello")
	_, err := Load(dir)
	if !errors.Is(err, ErrInputMissing) {
		t.Errorf("没有提交文件应返回 ErrInputMissing, 得到 %v", err)
	}
}

func TestLoadZipSelectsBinance(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"account_id_hash":"x"}`)
	writeFile(t, dir, "statement.zip", "PK")
	sub, err := Load(dir)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if sub.Kind != contribution.KindBinance || sub.FileName() != "statement.zip" {
		t.Errorf("存在 zip 时应选择 Binance, 得到 %s %s", sub.Kind, sub.FileName())
	}
}

func TestLoadCoinbaseClaim(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `{"account_id_hash":"other"}`)
	writeFile(t, dir, "a.json", `{
		"account_id_hash": "abc123",
		"transactions": [
			{"type":"buy","asset":"BTC","quantity":"0.5","native_amount":100.25,"timestamp":"2024-01-01T00:00:00Z"}
		],
		"stats": {"totalVolume": 100.25, "transactionCount": 1, "uniqueAssets": ["BTC"]}
	}`)

	sub, err := Load(dir)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if sub.Kind != contribution.KindCoinbase {
		t.Fatalf("应为 Coinbase 提交, 得到 %s", sub.Kind)
	}
	if sub.ClaimErr != nil {
		t.Fatalf("解码不应失败: %v", sub.ClaimErr)
	}
	c := sub.Claim
	if c.Identity != "abc123" {
		t.Errorf("应按字典序选 a.json, 身份为 %s", c.Identity)
	}
	if len(c.Transactions) != 1 || c.Transactions[0].Quantity != 0.5 || c.Transactions[0].NativeAmount != 100.25 {
		t.Errorf("交易解码不正确: %+v", c.Transactions)
	}
	if c.Stats == nil || c.Stats.TransactionCount != 1 || c.Stats.TotalVolume != 100.25 {
		t.Errorf("统计解码不正确: %+v", c.Stats)
	}
	if c.IdentityOnly() {
		t.Error("携带交易的提交不是仅身份验证")
	}
}

func TestSnakeCaseStats(t *testing.T) {
	sub := FromJSON("x.json", []byte(`{"account_id_hash":"h","stats":{"total_volume":5,"transaction_count":2,"unique_assets":["ETH"]}}`))
	if sub.ClaimErr != nil {
		t.Fatalf("解码失败: %v", sub.ClaimErr)
	}
	s := sub.Claim.Stats
	if s.TotalVolume != 5 || s.TransactionCount != 2 || len(s.UniqueAssets) != 1 {
		t.Errorf("snake_case 统计解码不正确: %+v", s)
	}
}

func TestIdentityOnlyAndUserID(t *testing.T) {
	sub := FromJSON("x.json", []byte(`{"user":{"id":"abc"}}`))
	if sub.ClaimErr != nil {
		t.Fatalf("解码失败: %v", sub.ClaimErr)
	}
	if !sub.Claim.IdentityOnly() {
		t.Error("只有用户 ID 的提交应为仅身份验证")
	}
	if sub.Claim.Identity != contribution.NewIdentity("abc") {
		t.Errorf("user.id 应被哈希, 得到 %s", sub.Claim.Identity)
	}
}

func TestInsightsDetected(t *testing.T) {
	sub := FromJSON("x.json", []byte(`{"metadata":{"version":"1"},"expertise":{"background":"x"}}`))
	if sub.Kind != contribution.KindInsights {
		t.Errorf("应识别为市场洞察提交, 得到 %s", sub.Kind)
	}
}

func TestMalformedClaimFailsClosed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"account_id_hash":"h","transactions":[{"type":"buy","asset":"BTC","quantity":"abc","native_amount":1,"timestamp":"2024-01-01T00:00:00Z"}]}`,
		`{"account_id_hash":"h","transactions":[{"type":"buy","asset":"BTC","quantity":1,"native_amount":1,"timestamp":"yesterday"}]}`,
		`{"account_id_hash":"h","transactions":[{"type":"buy","asset":"BTC","native_amount":1,"timestamp":"2024-01-01T00:00:00Z"}]}`,
		`{}`,
	}
	for _, raw := range cases {
		sub := FromJSON("x.json", []byte(raw))
		if sub.Kind != contribution.KindCoinbase {
			t.Errorf("%s: 应保持 Coinbase 类型", raw)
		}
		if sub.ClaimErr == nil {
			t.Errorf("%s: 应记录解码错误", raw)
		}
	}
}
