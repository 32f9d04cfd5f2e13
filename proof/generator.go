// Package proof 贡献证明流水线：校验、评分、记账、组装证明
package proof

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/google/uuid"

	"finproof/config"
	"finproof/contribution"
	"finproof/exchange/binance"
	"finproof/insights"
	"finproof/ledger"
	"finproof/lock"
	"finproof/logger"
	"finproof/scoring"
	"finproof/storage"
	"finproof/submission"
	"finproof/utils"
	"finproof/verify"
)

// CoinbaseSource 重新拉取 Coinbase 快照
type CoinbaseSource interface {
	FetchSnapshot(ctx context.Context) (*contribution.Snapshot, error)
}

// BinanceSource 账户身份与实时成交
type BinanceSource interface {
	FetchAccountIdentity(ctx context.Context) (contribution.Identity, error)
	FetchMyTrades(ctx context.Context, symbol string) ([]*gobinance.TradeV3, error)
}

// Recorder 运行指标
type Recorder interface {
	RecordRun(kind, outcome string, duration time.Duration)
	RecordProof(score float64, differentialPoints, transactions int)
	RecordLockAcquire(status string, wait time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(string, string, time.Duration) {}
func (nopRecorder) RecordProof(float64, int, int)           {}
func (nopRecorder) RecordLockAcquire(string, time.Duration) {}

// Deps 流水线依赖；交易所客户端按需创建，只有对应类型的提交才要求凭证
type Deps struct {
	Ledger   *ledger.Ledger
	Lock     lock.DistributedLock
	Store    storage.Store
	Insights *insights.Service
	Metrics  Recorder

	Coinbase func() (CoinbaseSource, error)
	Binance  func() (BinanceSource, error)
}

// Generator 证明生成器
type Generator struct {
	cfg        *config.Config
	deps       Deps
	scorer     *scoring.Scorer
	reconciler *verify.Reconciler
	lockTTL    time.Duration
	newRunID   func() string
}

// NewGenerator 创建生成器
func NewGenerator(cfg *config.Config, deps Deps) *Generator {
	if deps.Lock == nil {
		deps.Lock = lock.NewNopLock()
	}
	if deps.Store == nil {
		deps.Store = storage.NopStore{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	return &Generator{
		cfg:        cfg,
		deps:       deps,
		scorer:     scoring.NewScorer(cfg.Proof.MaxPoints, cfg.Proof.MinScore),
		reconciler: verify.NewReconciler(),
		lockTTL:    lock.DefaultTTL(cfg),
		newRunID:   uuid.NewString,
	}
}

func (g *Generator) run(kind contribution.Kind) runInfo {
	return runInfo{
		RunID:        g.newRunID(),
		Kind:         kind,
		DlpID:        g.cfg.Proof.DlpID,
		FileID:       g.cfg.Proof.FileID,
		JobID:        g.cfg.Proof.JobID,
		OwnerAddress: g.cfg.Proof.OwnerAddress,
	}
}

// Generate 按提交类型生成证明；校验失败返回 valid=false 的完整证明，致命错误返回 error
func (g *Generator) Generate(ctx context.Context, sub *submission.Submission) (resp *Response, err error) {
	if sub == nil {
		return nil, fmt.Errorf("%w: nil submission", submission.ErrInputMissing)
	}
	start := time.Now()
	defer func() {
		outcome := "fatal"
		switch {
		case err != nil:
		case resp.Valid:
			outcome = "valid"
		default:
			outcome = "invalid"
		}
		g.deps.Metrics.RecordRun(sub.Kind.String(), outcome, time.Since(start))
	}()

	run := g.run(sub.Kind)
	logger.Info("📥 处理 %s 提交 %s (run %s)", sub.Kind, sub.FileName(), run.RunID)

	switch sub.Kind {
	case contribution.KindCoinbase:
		return g.generateCoinbase(ctx, sub, run)
	case contribution.KindBinance:
		return g.generateBinance(ctx, sub, run)
	case contribution.KindInsights:
		return g.generateInsights(ctx, sub, run)
	default:
		return nil, fmt.Errorf("unsupported contribution kind %d", sub.Kind)
	}
}

func (g *Generator) generateCoinbase(ctx context.Context, sub *submission.Submission, run runInfo) (*Response, error) {
	if g.deps.Coinbase == nil {
		return nil, errors.New("coinbase connector not configured")
	}
	source, err := g.deps.Coinbase()
	if err != nil {
		return nil, err
	}

	fresh, err := source.FetchSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch coinbase snapshot: %w", err)
	}
	logger.Info("[Coinbase] 身份 %s: %d 笔交易, 成交额 %.2f", fresh.Identity.Short(), fresh.Stats.TransactionCount, fresh.Stats.TotalVolume)

	result := g.reconciler.Reconcile(sub, fresh)
	return g.settle(ctx, sub, run, fresh, result)
}

func (g *Generator) generateBinance(ctx context.Context, sub *submission.Submission, run runInfo) (*Response, error) {
	if g.deps.Binance == nil {
		return nil, errors.New("binance connector not configured")
	}
	source, err := g.deps.Binance()
	if err != nil {
		return nil, err
	}

	id, err := source.FetchAccountIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch binance identity: %w", err)
	}

	st, err := binance.ParseStatementBytes(sub.Raw)
	if err != nil {
		// 对账单无法解析视为校验失败
		logger.Warn("⚠️ [Binance] 对账单解析失败: %v", err)
		empty := contribution.NewSnapshot(id, nil)
		return g.settle(ctx, sub, run, empty, verify.Mismatch("invalid statement: %v", err))
	}

	result, err := binance.NewMatcher(source).Match(ctx, st)
	if err != nil {
		return nil, err
	}
	return g.settle(ctx, sub, run, st.Snapshot(id), result)
}

// settle 校验结论之后的共同路径：锁定身份、查询账本、评分、记账
func (g *Generator) settle(ctx context.Context, sub *submission.Submission, run runInfo, snap *contribution.Snapshot, result verify.Result) (*Response, error) {
	key := lock.IdentityKey(snap.Identity)
	waitStart := time.Now()
	if err := g.deps.Lock.Lock(ctx, key, g.lockTTL); err != nil {
		g.deps.Metrics.RecordLockAcquire("error", time.Since(waitStart))
		return nil, fmt.Errorf("%w: %w", ErrLock, err)
	}
	g.deps.Metrics.RecordLockAcquire("acquired", time.Since(waitStart))
	defer func() {
		if err := g.deps.Lock.Unlock(context.WithoutCancel(ctx), key); err != nil {
			logger.Warn("⚠️ 释放身份锁失败: %v", err)
		}
	}()

	sess, err := g.deps.Ledger.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Rollback()

	prior, err := sess.Lookup(ctx, snap.Identity)
	if err != nil {
		return nil, err
	}

	if !result.Matches {
		resp := g.invalid(run, snap, prior, result.Reason)
		g.deps.Metrics.RecordProof(0, 0, snap.Stats.TransactionCount)
		return resp, nil
	}

	breakdown := g.scorer.Score(snap.Stats)
	award := ledger.Differential(breakdown, prior, g.scorer)
	uniqueness := ledger.Uniqueness(prior, award)

	resp := &Response{
		DlpID:        run.DlpID,
		Valid:        true,
		Score:        award.Score,
		Authenticity: 1.0,
		Ownership:    1.0,
		Quality:      quality(snap),
		Uniqueness:   uniqueness,
		Attributes:   tradingAttributes(snap, true, result.Reason, prior, award, breakdown),
	}

	var sums *storage.Checksums
	if award.Rewarded() {
		dest := uploadDest(sub, run, snap.Identity)
		sums, err = g.upload(ctx, sub, dest)
		if err != nil {
			return nil, err
		}

		proof, err := sess.Record(ctx, ledger.RecordInput{
			Kind:         run.Kind,
			Snapshot:     snap,
			Award:        award,
			DlpID:        run.DlpID,
			FileID:       run.FileID,
			FileURL:      g.cfg.Proof.FileURL,
			JobID:        run.JobID,
			OwnerAddress: run.OwnerAddress,
			RunID:        run.RunID,
			Authenticity: resp.Authenticity,
			Ownership:    resp.Ownership,
			Quality:      resp.Quality,
			Uniqueness:   resp.Uniqueness,

			EncryptedRefreshToken: g.refreshToken(run.Kind),
		})
		if err == nil {
			err = sess.Commit()
		}
		if err != nil {
			g.discard(ctx, dest)
			return nil, err
		}
		resp.Score = proof.Score
		logger.Info("✅ 身份 %s 获得 %d 差额积分, 分数 %.6f", snap.Identity.Short(), award.DifferentialPoints, proof.Score)
	} else {
		logger.Info("ℹ️ 身份 %s 没有新增积分 (本次 %d, 已奖励 %d)", snap.Identity.Short(), award.FreshPoints, award.PriorPoints)
	}

	resp.Metadata = g.metadata(run, sums)
	g.deps.Metrics.RecordProof(resp.Score, award.DifferentialPoints, snap.Stats.TransactionCount)
	return resp, nil
}

// invalid 校验失败：valid=false、分数为 0，不写账本
func (g *Generator) invalid(run runInfo, snap *contribution.Snapshot, prior ledger.Prior, reason string) *Response {
	return &Response{
		DlpID:        run.DlpID,
		Valid:        false,
		Score:        0,
		Authenticity: 0,
		Ownership:    1.0,
		Quality:      quality(snap),
		Uniqueness:   0,
		Attributes:   tradingAttributes(snap, false, reason, prior, ledger.Award{}, scoring.Invalid()),
		Metadata:     g.metadata(run, nil),
	}
}

// refreshToken 只有 Coinbase 贡献携带刷新令牌
func (g *Generator) refreshToken(kind contribution.Kind) string {
	if kind != contribution.KindCoinbase {
		return ""
	}
	return g.cfg.Coinbase.EncryptedRefreshToken
}

// uploadDest 密文保存路径 <identity>/<run_id><ext>.enc
func uploadDest(sub *submission.Submission, run runInfo, id contribution.Identity) string {
	return filepath.Join(id.String(), run.RunID+filepath.Ext(sub.Path)+".enc")
}

// upload 加密保存原始提交内容
func (g *Generator) upload(ctx context.Context, sub *submission.Submission, dest string) (*storage.Checksums, error) {
	sums, err := g.deps.Store.Put(ctx, sub.Raw, dest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	return sums, nil
}

// discard 记账失败时删除已上传的密文
func (g *Generator) discard(ctx context.Context, dest string) {
	if err := g.deps.Store.Delete(context.WithoutCancel(ctx), dest); err != nil {
		logger.Warn("⚠️ 删除未记账的上传内容失败: %v", err)
	}
}

func (g *Generator) generateInsights(ctx context.Context, sub *submission.Submission, run runInfo) (*Response, error) {
	if g.deps.Insights == nil {
		return nil, errors.New("insights service not configured")
	}

	m, err := insights.Parse(sub.Raw)
	if err == nil {
		err = m.Validate()
	}
	if err == nil && run.OwnerAddress == "" {
		err = fmt.Errorf("%w: owner address is required", insights.ErrInvalid)
	}
	if err != nil {
		logger.Warn("⚠️ 市场洞察校验失败: %v", err)
		return &Response{
			DlpID: run.DlpID,
			Attributes: map[string]interface{}{
				"data_validated":    false,
				"validation_reason": err.Error(),
				"total_points":      0,
			},
			Metadata: g.metadata(run, nil),
		}, nil
	}

	dest := uploadDest(sub, run, contribution.NewIdentity(run.OwnerAddress))
	sums, err := g.upload(ctx, sub, dest)
	if err != nil {
		return nil, err
	}
	checksum := utils.SHA256HexBytes(sub.Raw)
	if sums != nil {
		checksum = sums.Plaintext
	}

	row, err := g.deps.Insights.Store(ctx, m, insights.StoreInput{
		FileID:       run.FileID,
		OwnerAddress: run.OwnerAddress,
		FileURL:      g.cfg.Proof.FileURL,
		FileChecksum: checksum,
	})
	if err != nil {
		g.discard(ctx, dest)
		return nil, fmt.Errorf("%w: %w", ledger.ErrLedger, err)
	}

	points := m.Points()
	score := 0.0
	if points > 0 {
		score = scoring.Normalize(points, g.cfg.Proof.MaxInsightPoints, g.cfg.Proof.MinScore)
	}
	resp := &Response{
		DlpID:        run.DlpID,
		Valid:        true,
		Score:        score,
		Authenticity: 1.0,
		Ownership:    1.0,
		Quality:      1.0,
		Uniqueness:   1.0,
		Attributes: map[string]interface{}{
			"data_validated":    true,
			"base_points":       row.BasePoints,
			"prediction_points": row.PredictionPoints,
			"total_points":      row.TotalPoints,
			"submission_id":     row.ID,
		},
		Metadata: g.metadata(run, sums),
	}
	if points == 0 {
		resp.Quality = 0
	}
	g.deps.Metrics.RecordProof(score, 0, 0)
	return resp, nil
}
