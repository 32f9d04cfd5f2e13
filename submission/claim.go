package submission

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"finproof/contribution"
	"finproof/utils"
)

// Claim Coinbase 提交中声明的数据
type Claim struct {
	Identity     contribution.Identity
	Transactions []contribution.Transaction
	Stats        *ClaimedStats

	hasTransactions bool
}

// ClaimedStats 提交中声明的统计值
type ClaimedStats struct {
	TotalVolume      float64
	TransactionCount int
	UniqueAssets     []string
}

// IdentityOnly 只携带身份哈希的重新验证请求
func (c *Claim) IdentityOnly() bool {
	return !c.hasTransactions && c.Stats == nil
}

// flexFloat 兼容数字和字符串形式的数值
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = flexFloat(v)
	return nil
}

type claimTransaction struct {
	Type         string     `json:"type"`
	Asset        string     `json:"asset"`
	Quantity     *flexFloat `json:"quantity"`
	NativeAmount *flexFloat `json:"native_amount"`
	Timestamp    string     `json:"timestamp"`
}

type claimStats struct {
	TotalVolume      *flexFloat `json:"totalVolume"`
	TransactionCount *flexFloat `json:"transactionCount"`
	UniqueAssets     []string   `json:"uniqueAssets"`

	TotalVolumeSnake      *flexFloat `json:"total_volume"`
	TransactionCountSnake *flexFloat `json:"transaction_count"`
	UniqueAssetsSnake     []string   `json:"unique_assets"`
}

type claimUser struct {
	ID string `json:"id"`
}

func decodeClaim(top map[string]json.RawMessage) (*Claim, error) {
	claim := &Claim{}

	if raw, ok := top["account_id_hash"]; ok {
		var hash string
		if err := json.Unmarshal(raw, &hash); err != nil {
			return nil, fmt.Errorf("decode account_id_hash: %w", err)
		}
		claim.Identity = contribution.Identity(strings.TrimSpace(hash))
	} else if raw, ok := top["user"]; ok {
		var user claimUser
		if err := json.Unmarshal(raw, &user); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		if user.ID != "" {
			claim.Identity = contribution.NewIdentity(user.ID)
		}
	}

	if raw, ok := top["transactions"]; ok {
		claim.hasTransactions = true
		var txs []claimTransaction
		if err := json.Unmarshal(raw, &txs); err != nil {
			return nil, fmt.Errorf("decode transactions: %w", err)
		}
		for i, tx := range txs {
			if tx.Quantity == nil || tx.NativeAmount == nil || tx.Timestamp == "" {
				return nil, fmt.Errorf("transaction %d: missing required field", i)
			}
			when, err := utils.ParseExchangeTime(tx.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("transaction %d: %w", i, err)
			}
			claim.Transactions = append(claim.Transactions, contribution.Transaction{
				Type:         tx.Type,
				Asset:        tx.Asset,
				Quantity:     float64(*tx.Quantity),
				NativeAmount: float64(*tx.NativeAmount),
				Timestamp:    when,
			})
		}
	}

	if raw, ok := top["stats"]; ok && string(raw) != "null" {
		var st claimStats
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
		claim.Stats = st.normalize()
	}

	if claim.Identity == "" && claim.IdentityOnly() {
		return nil, fmt.Errorf("submission carries neither identity nor data")
	}
	return claim, nil
}

// normalize 前端 camelCase 优先，缺失时回退 snake_case
func (s claimStats) normalize() *ClaimedStats {
	out := &ClaimedStats{}

	switch {
	case s.TotalVolume != nil:
		out.TotalVolume = float64(*s.TotalVolume)
	case s.TotalVolumeSnake != nil:
		out.TotalVolume = float64(*s.TotalVolumeSnake)
	}

	switch {
	case s.TransactionCount != nil:
		out.TransactionCount = int(*s.TransactionCount)
	case s.TransactionCountSnake != nil:
		out.TransactionCount = int(*s.TransactionCountSnake)
	}

	if s.UniqueAssets != nil {
		out.UniqueAssets = s.UniqueAssets
	} else {
		out.UniqueAssets = s.UniqueAssetsSnake
	}
	return out
}
