// Package contribution 贡献数据的领域值对象
package contribution

import (
	"math"
	"sort"
	"time"

	"finproof/utils"
)

// Tolerance 数值比较容差
const Tolerance = utils.Tolerance

// Kind 提交类型（在加载阶段确定一次）
type Kind int

const (
	KindCoinbase Kind = iota // JSON 提交，对照 Coinbase 重新拉取的数据
	KindBinance              // ZIP 对账单，对照 Binance 实时成交
	KindInsights             // 市场洞察问卷
)

// String 返回提交类型名称
func (k Kind) String() string {
	switch k {
	case KindCoinbase:
		return "coinbase"
	case KindBinance:
		return "binance"
	case KindInsights:
		return "insights"
	default:
		return "unknown"
	}
}

// Identity 账户标识的 SHA-256 十六进制串（小写），不可逆
type Identity string

// NewIdentity 从交易所账户原始 ID 计算身份哈希
func NewIdentity(rawAccountID string) Identity {
	return Identity(utils.SHA256Hex(rawAccountID))
}

// String 返回哈希字符串
func (i Identity) String() string { return string(i) }

// Short 日志用的短哈希
func (i Identity) Short() string {
	if len(i) <= 12 {
		return string(i)
	}
	return string(i[:12])
}

// Transaction 匿名化的交易记录
type Transaction struct {
	Type         string
	Asset        string
	Quantity     float64
	NativeAmount float64
	Timestamp    time.Time
}

// Equal 类型/资产完全相同，数量与金额在容差内，时间戳精确相等
func (t Transaction) Equal(other Transaction, tol float64) bool {
	return t.Type == other.Type &&
		t.Asset == other.Asset &&
		utils.FloatEquals(t.Quantity, other.Quantity, tol) &&
		utils.FloatEquals(t.NativeAmount, other.NativeAmount, tol) &&
		t.Timestamp.Equal(other.Timestamp)
}

// Less 按 (timestamp, type) 排序
func (t Transaction) Less(other Transaction) bool {
	if !t.Timestamp.Equal(other.Timestamp) {
		return t.Timestamp.Before(other.Timestamp)
	}
	return t.Type < other.Type
}

// SortTransactions 返回排序后的副本，不修改输入
func SortTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// TradingStats 聚合交易统计，每次运行重新计算
type TradingStats struct {
	TotalVolume        float64
	TransactionCount   int
	UniqueAssets       []string // 已排序
	ActivityPeriodDays int
	FirstTransaction   *time.Time
	LastTransaction    *time.Time
}

// ComputeStats 纯函数：从交易列表计算统计
func ComputeStats(txs []Transaction) TradingStats {
	stats := TradingStats{TransactionCount: len(txs)}
	assets := make(map[string]struct{})

	for _, tx := range txs {
		stats.TotalVolume += math.Abs(tx.NativeAmount)
		assets[tx.Asset] = struct{}{}

		ts := tx.Timestamp
		if stats.FirstTransaction == nil || ts.Before(*stats.FirstTransaction) {
			first := ts
			stats.FirstTransaction = &first
		}
		if stats.LastTransaction == nil || ts.After(*stats.LastTransaction) {
			last := ts
			stats.LastTransaction = &last
		}
	}

	stats.UniqueAssets = SortedAssets(assets)
	if stats.FirstTransaction != nil && stats.LastTransaction != nil {
		stats.ActivityPeriodDays = utils.DaysBetween(*stats.FirstTransaction, *stats.LastTransaction)
	}
	return stats
}

// SortedAssets 集合转为排序后的切片
func SortedAssets(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// AssetCount 不同资产数量
func (s TradingStats) AssetCount() int {
	return len(s.UniqueAssets)
}

// Equal 总成交额在容差内、笔数相等、资产集合相同（与顺序无关）
func (s TradingStats) Equal(other TradingStats, tol float64) bool {
	if !utils.FloatEquals(s.TotalVolume, other.TotalVolume, tol) {
		return false
	}
	if s.TransactionCount != other.TransactionCount {
		return false
	}
	return SameAssetSet(s.UniqueAssets, other.UniqueAssets)
}

// SameAssetSet 集合比较，忽略顺序与重复
func SameAssetSet(a, b []string) bool {
	setA := make(map[string]struct{}, len(a))
	for _, v := range a {
		setA[v] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, v := range b {
		setB[v] = struct{}{}
	}
	if len(setA) != len(setB) {
		return false
	}
	for v := range setA {
		if _, ok := setB[v]; !ok {
			return false
		}
	}
	return true
}

// Snapshot 一次运行中从交易所重新拉取的标准化数据
type Snapshot struct {
	Identity     Identity
	Transactions []Transaction
	Stats        TradingStats
}

// NewSnapshot 由交易列表构建快照
func NewSnapshot(id Identity, txs []Transaction) *Snapshot {
	return &Snapshot{Identity: id, Transactions: txs, Stats: ComputeStats(txs)}
}

// RawTransaction 序列化形式的交易
type RawTransaction struct {
	Type         string  `json:"type"`
	Asset        string  `json:"asset"`
	Quantity     float64 `json:"quantity"`
	NativeAmount float64 `json:"native_amount"`
	Timestamp    string  `json:"timestamp"`
}

// RawStats 序列化形式的统计
type RawStats struct {
	TotalVolume          float64  `json:"total_volume"`
	TransactionCount     int      `json:"transaction_count"`
	UniqueAssets         []string `json:"unique_assets"`
	ActivityPeriodDays   int      `json:"activity_period_days"`
	FirstTransactionDate *string  `json:"first_transaction_date"`
	LastTransactionDate  *string  `json:"last_transaction_date"`
}

// RawSnapshot 写入账本的匿名化快照（不含账户原始 ID）
type RawSnapshot struct {
	Stats        RawStats         `json:"stats"`
	Transactions []RawTransaction `json:"transactions"`
}

// Raw 生成匿名化的可序列化形式
func (s *Snapshot) Raw() RawSnapshot {
	raw := RawSnapshot{
		Stats:        s.Stats.Raw(),
		Transactions: make([]RawTransaction, 0, len(s.Transactions)),
	}
	for _, tx := range s.Transactions {
		raw.Transactions = append(raw.Transactions, RawTransaction{
			Type:         tx.Type,
			Asset:        tx.Asset,
			Quantity:     tx.Quantity,
			NativeAmount: tx.NativeAmount,
			Timestamp:    utils.FormatExchangeTime(tx.Timestamp),
		})
	}
	return raw
}

// Raw 统计的序列化形式
func (s TradingStats) Raw() RawStats {
	raw := RawStats{
		TotalVolume:        s.TotalVolume,
		TransactionCount:   s.TransactionCount,
		UniqueAssets:       s.UniqueAssets,
		ActivityPeriodDays: s.ActivityPeriodDays,
	}
	if raw.UniqueAssets == nil {
		raw.UniqueAssets = []string{}
	}
	if s.FirstTransaction != nil {
		v := utils.FormatExchangeTime(*s.FirstTransaction)
		raw.FirstTransactionDate = &v
	}
	if s.LastTransaction != nil {
		v := utils.FormatExchangeTime(*s.LastTransaction)
		raw.LastTransactionDate = &v
	}
	return raw
}
