package binance

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"finproof/exchange"
	"finproof/logger"
	"finproof/utils"
	"finproof/verify"
)

var (
	// MatchWindow 对账单时间与成交时间的最大偏差（不含）
	MatchWindow = 5 * time.Second
	matchTol    = decimal.New(1, -8)
)

// TradeSource 实时成交来源
type TradeSource interface {
	FetchMyTrades(ctx context.Context, symbol string) ([]*gobinance.TradeV3, error)
}

// Matcher 将对账单逐行与实时成交对照，全部匹配才算通过
type Matcher struct {
	source TradeSource
}

// NewMatcher 创建匹配器
func NewMatcher(source TradeSource) *Matcher {
	return &Matcher{source: source}
}

type liveTrade struct {
	id       int64
	time     time.Time
	price    decimal.Decimal
	qty      decimal.Decimal
	fee      decimal.Decimal
	feeAsset string
	isBuyer  bool
	used     bool
}

type tradeKey struct {
	price    string
	qty      string
	fee      string
	feeAsset string
	isBuyer  bool
}

func keyOf(price, qty, fee decimal.Decimal, feeAsset string, isBuyer bool) tradeKey {
	return tradeKey{
		price:    price.Round(8).String(),
		qty:      qty.Round(8).String(),
		fee:      fee.Round(8).String(),
		feeAsset: feeAsset,
		isBuyer:  isBuyer,
	}
}

// Match 按交易对（字典序）依次拉取实时成交并校验；交易所拒绝的交易对判为不匹配，其余拉取失败返回错误
func (m *Matcher) Match(ctx context.Context, st *Statement) (verify.Result, error) {
	if st == nil || len(st.Transactions) == 0 {
		return verify.Mismatch("statement contains no trades"), nil
	}

	groups := st.BySymbol()
	for _, symbol := range st.Symbols() {
		trades, err := m.source.FetchMyTrades(ctx, symbol)
		if errors.Is(err, exchange.ErrRejected) {
			logger.Warn("⚠️ [Binance] %s 被交易所拒绝: %v", symbol, err)
			return verify.Mismatch("Validation failed for %s: %v", symbol, err), nil
		}
		if err != nil {
			return verify.Result{}, fmt.Errorf("fetch trades for %s: %w", symbol, err)
		}
		if len(trades) == 0 {
			logger.Warn("⚠️ [Binance] %s 没有实时成交", symbol)
			return verify.Mismatch("no live trades found for %s", symbol), nil
		}

		live, index, err := buildIndex(trades)
		if err != nil {
			return verify.Mismatch("Validation failed for %s: %v", symbol, err), nil
		}

		rows := groups[symbol]
		logger.Info("[Binance] %s: 对账单 %d 笔, 实时成交 %d 笔", symbol, len(rows), len(live))
		for _, row := range rows {
			if !consume(row, live, index) {
				return verify.Mismatch("Transaction validation failed for %s at %s",
					symbol, row.Timestamp.Format(utils.StatementTimeLayout)), nil
			}
		}
	}
	return verify.Match(), nil
}

func buildIndex(trades []*gobinance.TradeV3) ([]*liveTrade, map[tradeKey][]*liveTrade, error) {
	live := make([]*liveTrade, 0, len(trades))
	index := make(map[tradeKey][]*liveTrade)
	for _, tr := range trades {
		price, err := decimal.NewFromString(tr.Price)
		if err != nil {
			return nil, nil, fmt.Errorf("trade %d: invalid price %q", tr.ID, tr.Price)
		}
		qty, err := decimal.NewFromString(tr.Quantity)
		if err != nil {
			return nil, nil, fmt.Errorf("trade %d: invalid qty %q", tr.ID, tr.Quantity)
		}
		fee, err := decimal.NewFromString(tr.Commission)
		if err != nil {
			return nil, nil, fmt.Errorf("trade %d: invalid commission %q", tr.ID, tr.Commission)
		}
		lt := &liveTrade{
			id:       tr.ID,
			time:     utils.FromUnixMilli(tr.Time),
			price:    price,
			qty:      qty,
			fee:      fee,
			feeAsset: tr.CommissionAsset,
			isBuyer:  tr.IsBuyer,
		}
		live = append(live, lt)
		k := keyOf(price, qty, fee, lt.feeAsset, lt.isBuyer)
		index[k] = append(index[k], lt)
	}
	return live, index, nil
}

// consume 先查索引桶，四舍五入跨桶时回退线性扫描；命中的成交只能用一次
func consume(row StatementTransaction, live []*liveTrade, index map[tradeKey][]*liveTrade) bool {
	for _, lt := range index[keyOf(row.Price, row.Quantity, row.Fee, row.FeeAsset, row.IsBuyer())] {
		if !lt.used && matches(row, lt) {
			lt.used = true
			return true
		}
	}
	for _, lt := range live {
		if !lt.used && matches(row, lt) {
			lt.used = true
			return true
		}
	}
	return false
}

func matches(row StatementTransaction, lt *liveTrade) bool {
	dt := row.Timestamp.Sub(lt.time)
	if dt < 0 {
		dt = -dt
	}
	return dt < MatchWindow &&
		row.Price.Sub(lt.price).Abs().LessThan(matchTol) &&
		row.Quantity.Sub(lt.qty).Abs().LessThan(matchTol) &&
		row.Fee.Sub(lt.fee).Abs().LessThan(matchTol) &&
		row.FeeAsset == lt.feeAsset &&
		row.IsBuyer() == lt.isBuyer
}
