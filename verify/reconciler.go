// Package verify 提交数据与重新拉取数据的对账
package verify

import (
	"fmt"

	"finproof/contribution"
	"finproof/logger"
	"finproof/submission"
	"finproof/utils"
)

// Result 对账结论，失败原因写入 Reason（不是 error）
type Result struct {
	Matches bool
	Reason  string
}

// Match 对账通过
func Match() Result {
	return Result{Matches: true, Reason: "All transactions validated successfully"}
}

// Mismatch 对账失败
func Mismatch(format string, args ...interface{}) Result {
	return Result{Matches: false, Reason: fmt.Sprintf(format, args...)}
}

// Reconciler 对账器：身份、交易集合、聚合统计依次比较
type Reconciler struct {
	tol float64
}

// NewReconciler 使用默认容差 1e-8
func NewReconciler() *Reconciler {
	return &Reconciler{tol: contribution.Tolerance}
}

// Reconcile 任何解码或比较问题都按不匹配处理，不向外返回错误
func (r *Reconciler) Reconcile(sub *submission.Submission, fresh *contribution.Snapshot) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("❌ 对账异常: %v", p)
			res = Mismatch("validation error: %v", p)
		}
		if !res.Matches {
			logger.Warn("⚠️ 对账失败: %s", res.Reason)
		}
	}()

	if sub == nil || fresh == nil {
		return Mismatch("missing submission or fresh data")
	}
	if sub.ClaimErr != nil {
		return Mismatch("invalid submission: %v", sub.ClaimErr)
	}
	claim := sub.Claim
	if claim == nil {
		return Mismatch("submission carries no claim")
	}

	if claim.Identity == "" {
		return Mismatch("submission has no account identity")
	}
	if claim.Identity != fresh.Identity {
		return Mismatch("account identity mismatch")
	}
	if claim.IdentityOnly() {
		return Match()
	}

	if res := r.compareTransactions(claim.Transactions, fresh.Transactions); !res.Matches {
		return res
	}

	claimed := claimedStats(claim)
	return r.compareStats(claimed, fresh.Stats)
}

func (r *Reconciler) compareTransactions(saved, fresh []contribution.Transaction) Result {
	if len(saved) != len(fresh) {
		return Mismatch("transaction count mismatch: saved=%d, fresh=%d", len(saved), len(fresh))
	}

	a := contribution.SortTransactions(saved)
	b := contribution.SortTransactions(fresh)
	for i := range a {
		if !a[i].Equal(b[i], r.tol) {
			logger.Debug("交易不匹配:\n  saved: %+v\n  fresh: %+v", a[i], b[i])
			return Mismatch("transaction mismatch at %s (%s %s)",
				utils.FormatExchangeTime(a[i].Timestamp), a[i].Type, a[i].Asset)
		}
	}
	return Match()
}

func (r *Reconciler) compareStats(saved submission.ClaimedStats, fresh contribution.TradingStats) Result {
	claimed := contribution.TradingStats{
		TotalVolume:      saved.TotalVolume,
		TransactionCount: saved.TransactionCount,
		UniqueAssets:     saved.UniqueAssets,
	}
	if !claimed.Equal(fresh, r.tol) {
		return Mismatch("stats mismatch: volume %v vs %v, count %d vs %d, assets %v vs %v",
			saved.TotalVolume, fresh.TotalVolume, saved.TransactionCount, fresh.TransactionCount,
			saved.UniqueAssets, fresh.UniqueAssets)
	}
	return Match()
}

// claimedStats 提交未带统计时由声明的交易推导
func claimedStats(c *submission.Claim) submission.ClaimedStats {
	if c.Stats != nil {
		return *c.Stats
	}
	st := contribution.ComputeStats(c.Transactions)
	return submission.ClaimedStats{
		TotalVolume:      st.TotalVolume,
		TransactionCount: st.TransactionCount,
		UniqueAssets:     st.UniqueAssets,
	}
}
