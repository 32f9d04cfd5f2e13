package coinbase

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"finproof/contribution"
	"finproof/utils"
)

// FetchUserIdentity 用户 ID 的 SHA-256
func (c *Client) FetchUserIdentity(ctx context.Context) (contribution.Identity, error) {
	user, err := c.FetchUser(ctx)
	if err != nil {
		return "", err
	}
	return contribution.NewIdentity(user.ID), nil
}

// FetchSnapshot 重新拉取并标准化为快照
func (c *Client) FetchSnapshot(ctx context.Context) (*contribution.Snapshot, error) {
	id, err := c.FetchUserIdentity(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := c.FetchAllTransactions(ctx)
	if err != nil {
		return nil, err
	}

	txs, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	return contribution.NewSnapshot(id, txs), nil
}

// Normalize 金额取绝对值，解析固定格式时间戳
func Normalize(raw []RawTransaction) ([]contribution.Transaction, error) {
	out := make([]contribution.Transaction, 0, len(raw))
	for _, tx := range raw {
		qty, err := strconv.ParseFloat(tx.Amount.Amount, 64)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: invalid amount %q", tx.ID, tx.Amount.Amount)
		}
		native, err := strconv.ParseFloat(tx.NativeAmount.Amount, 64)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: invalid native_amount %q", tx.ID, tx.NativeAmount.Amount)
		}
		when, err := utils.ParseExchangeTime(tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		out = append(out, contribution.Transaction{
			Type:         tx.Type,
			Asset:        tx.Amount.Currency,
			Quantity:     math.Abs(qty),
			NativeAmount: math.Abs(native),
			Timestamp:    when,
		})
	}
	return out, nil
}
