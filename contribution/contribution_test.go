package contribution

import (
	"testing"
	"time"
)

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04:05Z", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNewIdentity(t *testing.T) {
	id := NewIdentity("abc")
	if id.String() != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("身份哈希不正确: %s", id)
	}
	if len(id.Short()) != 12 {
		t.Errorf("短哈希长度应为 12, 得到 %d", len(id.Short()))
	}
}

func TestTransactionEqual(t *testing.T) {
	a := Transaction{Type: "buy", Asset: "BTC", Quantity: 0.5, NativeAmount: 100, Timestamp: ts("2024-01-01T00:00:00Z")}

	b := a
	b.Quantity += 1e-9
	if !a.Equal(b, Tolerance) {
		t.Error("容差内的数量差异应视为相等")
	}

	c := a
	c.NativeAmount += 1e-7
	if a.Equal(c, Tolerance) {
		t.Error("超出容差的金额差异不应相等")
	}

	d := a
	d.Timestamp = d.Timestamp.Add(time.Second)
	if a.Equal(d, Tolerance) {
		t.Error("时间戳不同不应相等")
	}

	e := a
	e.Asset = "ETH"
	if a.Equal(e, Tolerance) {
		t.Error("资产不同不应相等")
	}
}

func TestComputeStats(t *testing.T) {
	txs := []Transaction{
		{Type: "buy", Asset: "ETH", Quantity: 1, NativeAmount: -200, Timestamp: ts("2024-01-11T12:00:00Z")},
		{Type: "sell", Asset: "BTC", Quantity: 1, NativeAmount: 300, Timestamp: ts("2024-01-01T00:00:00Z")},
		{Type: "buy", Asset: "BTC", Quantity: 1, NativeAmount: 0, Timestamp: ts("2024-01-05T00:00:00Z")},
	}
	stats := ComputeStats(txs)

	if stats.TotalVolume != 500 {
		t.Errorf("总成交额应为 500 (取绝对值), 得到 %f", stats.TotalVolume)
	}
	if stats.TransactionCount != 3 {
		t.Errorf("交易笔数应为 3, 得到 %d", stats.TransactionCount)
	}
	if len(stats.UniqueAssets) != 2 || stats.UniqueAssets[0] != "BTC" || stats.UniqueAssets[1] != "ETH" {
		t.Errorf("资产集合应为排序后的 [BTC ETH], 得到 %v", stats.UniqueAssets)
	}
	if stats.ActivityPeriodDays != 10 {
		t.Errorf("活跃天数应为 10, 得到 %d", stats.ActivityPeriodDays)
	}
	if !stats.FirstTransaction.Equal(ts("2024-01-01T00:00:00Z")) || !stats.LastTransaction.Equal(ts("2024-01-11T12:00:00Z")) {
		t.Errorf("首末交易时间不正确: %v %v", stats.FirstTransaction, stats.LastTransaction)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	if stats.TransactionCount != 0 || stats.ActivityPeriodDays != 0 || stats.FirstTransaction != nil {
		t.Errorf("空交易列表统计不正确: %+v", stats)
	}
	raw := stats.Raw()
	if raw.UniqueAssets == nil {
		t.Error("序列化时资产列表应为空数组而不是 null")
	}
}

func TestStatsEqualIgnoresAssetOrder(t *testing.T) {
	a := TradingStats{TotalVolume: 10, TransactionCount: 2, UniqueAssets: []string{"BTC", "ETH"}}
	b := TradingStats{TotalVolume: 10 + 1e-10, TransactionCount: 2, UniqueAssets: []string{"ETH", "BTC"}}
	if !a.Equal(b, Tolerance) {
		t.Error("资产顺序不同的统计应相等")
	}
	b.TransactionCount = 3
	if a.Equal(b, Tolerance) {
		t.Error("笔数不同的统计不应相等")
	}
}

func TestSnapshotRaw(t *testing.T) {
	snap := NewSnapshot(NewIdentity("user-1"), []Transaction{
		{Type: "buy", Asset: "BTC", Quantity: 0.1, NativeAmount: 50, Timestamp: ts("2024-03-01T08:30:00Z")},
	})
	raw := snap.Raw()
	if len(raw.Transactions) != 1 || raw.Transactions[0].Timestamp != "2024-03-01T08:30:00Z" {
		t.Fatalf("序列化交易不正确: %+v", raw.Transactions)
	}
	if raw.Stats.FirstTransactionDate == nil || *raw.Stats.FirstTransactionDate != "2024-03-01T08:30:00Z" {
		t.Errorf("首笔交易时间序列化不正确: %v", raw.Stats.FirstTransactionDate)
	}
}

func TestSortTransactionsByTimeThenType(t *testing.T) {
	txs := []Transaction{
		{Type: "sell", Timestamp: ts("2024-01-02T00:00:00Z")},
		{Type: "sell", Timestamp: ts("2024-01-01T00:00:00Z")},
		{Type: "buy", Timestamp: ts("2024-01-02T00:00:00Z")},
	}
	sorted := SortTransactions(txs)
	if sorted[0].Type != "sell" || sorted[1].Type != "buy" || sorted[2].Type != "sell" {
		t.Errorf("排序结果不正确: %+v", sorted)
	}
	if txs[0].Type != "sell" || !txs[0].Timestamp.Equal(ts("2024-01-02T00:00:00Z")) {
		t.Error("排序不应修改输入切片")
	}
}

func TestKindString(t *testing.T) {
	if KindBinance.String() != "binance" || KindCoinbase.String() != "coinbase" || KindInsights.String() != "insights" {
		t.Error("Kind 名称不正确")
	}
}
