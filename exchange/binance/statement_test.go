package binance

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const sampleCSV = "\ufeffDate(UTC),Pair,Side,Price,Executed,Amount,Fee\n" +
	"2024-01-02 10:00:00,BTCUSDT,BUY,42000.5,0.00100000BTC,42.0005USDT,0.00100000BNB\n" +
	"2024-01-05 11:30:00,ETHUSDT,SELL,\"2,500.10\",1.5000ETH,\"3,750.15USDT\",3.75015USDT\n" +
	"\n"

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("创建 zip 条目失败: %v", err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("关闭 zip 失败: %v", err)
	}
	return buf.Bytes()
}

func TestSplitAmount(t *testing.T) {
	cases := []struct {
		in   string
		num  string
		unit string
	}{
		{"0.00100000BNB", "0.001", "BNB"},
		{"12.345USDT", "12.345", "USDT"},
		{"3,750.15USDT", "3750.15", "USDT"},
		{"15", "15", ""},
	}
	for _, c := range cases {
		v, unit, err := SplitAmount(c.in)
		if err != nil {
			t.Errorf("SplitAmount(%q) 失败: %v", c.in, err)
			continue
		}
		if !v.Equal(decimal.RequireFromString(c.num)) || unit != c.unit {
			t.Errorf("SplitAmount(%q) = %s %q, 期望 %s %q", c.in, v, unit, c.num, c.unit)
		}
	}
	if _, _, err := SplitAmount("BNB"); err == nil {
		t.Error("没有数字前缀应返回错误")
	}
}

func TestParseCSV(t *testing.T) {
	txs, err := ParseCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("解析 CSV 失败: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("应解析 2 行 (空行跳过), 得到 %d", len(txs))
	}
	first := txs[0]
	if first.Symbol != "BTCUSDT" || !first.IsBuyer() || first.FeeAsset != "BNB" {
		t.Errorf("第一行解析不正确: %+v", first)
	}
	if !first.Fee.Equal(decimal.RequireFromString("0.001")) || !first.Quantity.Equal(decimal.RequireFromString("0.001")) {
		t.Errorf("复合字段拆分不正确: fee=%s qty=%s", first.Fee, first.Quantity)
	}
	second := txs[1]
	if !second.Price.Equal(decimal.RequireFromString("2500.10")) || !second.Amount.Equal(decimal.RequireFromString("3750.15")) {
		t.Errorf("千分位应被去除: price=%s amount=%s", second.Price, second.Amount)
	}
	if second.IsBuyer() {
		t.Error("SELL 行不应是买单")
	}
}

func TestParseCSVMissingColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Date(UTC),Pair,Side,Price\n2024-01-01 00:00:00,BTCUSDT,BUY,1\n"))
	if err == nil || !strings.Contains(err.Error(), "Executed") {
		t.Errorf("缺少列应返回错误, 得到 %v", err)
	}
}

func TestParseStatementZip(t *testing.T) {
	data := buildZip(t, map[string]string{
		"export/part1.csv": sampleCSV,
		"README.txt":       "ignored",
	})
	path := filepath.Join(t.TempDir(), "statement.zip")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("写入 zip 失败: %v", err)
	}

	st, err := ParseStatement(path)
	if err != nil {
		t.Fatalf("解析对账单失败: %v", err)
	}
	if got := st.Symbols(); len(got) != 2 || got[0] != "BTCUSDT" || got[1] != "ETHUSDT" {
		t.Errorf("交易对列表不正确: %v", got)
	}
	if len(st.BySymbol()["ETHUSDT"]) != 1 {
		t.Errorf("分组不正确: %v", st.BySymbol())
	}

	stats := st.Stats()
	if stats.TransactionCount != 2 || stats.AssetCount() != 2 || stats.ActivityPeriodDays != 3 {
		t.Errorf("统计不正确: %+v", stats)
	}
	if stats.TotalVolume != 3792.1505 {
		t.Errorf("总成交额应为 Amount 之和 3792.1505, 得到 %v", stats.TotalVolume)
	}
}

func TestParseStatementEmpty(t *testing.T) {
	data := buildZip(t, map[string]string{"notes.txt": "nothing"})
	_, err := ParseStatementBytes(data)
	if !errors.Is(err, ErrEmptyStatement) {
		t.Errorf("没有 CSV 应返回 ErrEmptyStatement, 得到 %v", err)
	}
	if _, err := ParseStatementBytes([]byte("not a zip")); err == nil {
		t.Error("损坏的压缩包应返回错误")
	}
}
