package binance

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finproof/contribution"
	"finproof/utils"
)

// StatementTransaction 对账单中的一行成交
type StatementTransaction struct {
	Timestamp time.Time
	Symbol    string // Pair
	Side      string // BUY / SELL
	Price     decimal.Decimal
	Quantity  decimal.Decimal // Executed
	Amount    decimal.Decimal // 成交额（计价币）
	Fee       decimal.Decimal
	FeeAsset  string
}

// IsBuyer 买单
func (t StatementTransaction) IsBuyer() bool {
	return strings.EqualFold(t.Side, "BUY")
}

// Statement 解析后的对账单
type Statement struct {
	Transactions []StatementTransaction
}

var requiredColumns = []string{"Pair", "Side", "Price", "Executed", "Amount", "Fee"}

// ErrEmptyStatement 压缩包中没有任何成交记录
var ErrEmptyStatement = errors.New("statement contains no trades")

// ParseStatement 解析 zip 压缩包中的所有 CSV
func ParseStatement(zipPath string) (*Statement, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open statement %s: %w", zipPath, err)
	}
	defer r.Close()
	return parseZip(&r.Reader)
}

// ParseStatementBytes 从内存中的 zip 解析
func ParseStatementBytes(data []byte) (*Statement, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open statement: %w", err)
	}
	return parseZip(r)
}

func parseZip(r *zip.Reader) (*Statement, error) {
	st := &Statement{}
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		txs, err := ParseCSV(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Name, err)
		}
		st.Transactions = append(st.Transactions, txs...)
	}
	if len(st.Transactions) == 0 {
		return nil, ErrEmptyStatement
	}
	return st, nil
}

// ParseCSV 解析单个 CSV 导出
func ParseCSV(r io.Reader) ([]StatementTransaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	dateCol := -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		cols[h] = i
		if dateCol < 0 && strings.Contains(h, "Date(UTC)") {
			dateCol = i
		}
	}
	if dateCol < 0 {
		return nil, errors.New("missing Date(UTC) column")
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("missing %s column", c)
		}
	}

	var out []StatementTransaction
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blank(rec) {
			continue
		}

		field := func(name string) string {
			i := cols[name]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		if dateCol >= len(rec) {
			return nil, fmt.Errorf("line %d: short record", line)
		}

		tx, err := parseRow(strings.TrimSpace(rec[dateCol]), field)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func parseRow(date string, field func(string) string) (StatementTransaction, error) {
	var tx StatementTransaction
	var err error

	if tx.Timestamp, err = utils.ParseStatementTime(date); err != nil {
		return tx, err
	}
	tx.Symbol = field("Pair")
	tx.Side = strings.ToUpper(field("Side"))
	if tx.Symbol == "" {
		return tx, errors.New("empty Pair")
	}

	if tx.Price, err = decimal.NewFromString(strings.ReplaceAll(field("Price"), ",", "")); err != nil {
		return tx, fmt.Errorf("invalid Price %q", field("Price"))
	}
	if tx.Quantity, _, err = SplitAmount(field("Executed")); err != nil {
		return tx, fmt.Errorf("Executed: %w", err)
	}
	if tx.Amount, _, err = SplitAmount(field("Amount")); err != nil {
		return tx, fmt.Errorf("Amount: %w", err)
	}
	if tx.Fee, tx.FeeAsset, err = SplitAmount(field("Fee")); err != nil {
		return tx, fmt.Errorf("Fee: %w", err)
	}
	return tx, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// SplitAmount 扫描前导数字（数字、小数点，千分位逗号丢弃），其余部分为单位
// "12.345USDT" -> 12.345, "USDT"
func SplitAmount(s string) (decimal.Decimal, string, error) {
	s = strings.TrimSpace(s)
	var num strings.Builder
	end := 0
	for i, ch := range s {
		if (ch >= '0' && ch <= '9') || ch == '.' {
			num.WriteRune(ch)
		} else if ch != ',' {
			break
		}
		end = i + 1
	}
	if num.Len() == 0 {
		return decimal.Zero, "", fmt.Errorf("no numeric prefix in %q", s)
	}
	v, err := decimal.NewFromString(num.String())
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("invalid number in %q", s)
	}
	return v, strings.TrimSpace(s[end:]), nil
}

// BySymbol 按交易对分组
func (s *Statement) BySymbol() map[string][]StatementTransaction {
	groups := make(map[string][]StatementTransaction)
	for _, tx := range s.Transactions {
		groups[tx.Symbol] = append(groups[tx.Symbol], tx)
	}
	return groups
}

// Symbols 排序后的交易对列表
func (s *Statement) Symbols() []string {
	set := make(map[string]struct{})
	for _, tx := range s.Transactions {
		set[tx.Symbol] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// contributionTransactions 映射为通用交易：方向为类型、交易对为资产、成交额为计价金额
func (s *Statement) contributionTransactions() []contribution.Transaction {
	out := make([]contribution.Transaction, 0, len(s.Transactions))
	for _, tx := range s.Transactions {
		out = append(out, contribution.Transaction{
			Type:         tx.Side,
			Asset:        tx.Symbol,
			Quantity:     tx.Quantity.InexactFloat64(),
			NativeAmount: tx.Amount.InexactFloat64(),
			Timestamp:    tx.Timestamp,
		})
	}
	return out
}

// Stats 总成交额为 Amount 之和，资产数按交易对计
func (s *Statement) Stats() contribution.TradingStats {
	stats := contribution.ComputeStats(s.contributionTransactions())
	total := decimal.Zero
	for _, tx := range s.Transactions {
		total = total.Add(tx.Amount.Abs())
	}
	stats.TotalVolume = total.InexactFloat64()
	return stats
}

// Snapshot 对账单转为快照
func (s *Statement) Snapshot(id contribution.Identity) *contribution.Snapshot {
	snap := &contribution.Snapshot{Identity: id, Transactions: s.contributionTransactions()}
	snap.Stats = s.Stats()
	return snap
}
