// Package ledger 贡献账本：查询历史奖励、计算差额积分、原子写入
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"

	"finproof/contribution"
	"finproof/database"
	"finproof/logger"
	"finproof/scoring"
	"finproof/utils"
)

// ErrLedger 持久化失败（事务已回滚）
var ErrLedger = errors.New("ledger failure")

const (
	// MaxCumulativeScore 单个身份的终身分数上限
	MaxCumulativeScore = 1.0

	firstUniqueness  = 1.0
	repeatUniqueness = 0.99
)

// Ledger 账本
type Ledger struct {
	db  database.Database
	now func() time.Time
}

// New 创建账本
func New(db database.Database) *Ledger {
	return &Ledger{db: db, now: utils.NowUTC}
}

// Begin 每次运行开启一个事务，读写都在同一事务内完成
func (l *Ledger) Begin(ctx context.Context) (*Session, error) {
	tx, err := l.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", ErrLedger, err)
	}
	return &Session{tx: tx, now: l.now}, nil
}

// Prior 身份的历史奖励状态
type Prior struct {
	Exists              bool
	CumulativeScore     float64 // 历史证明分数之和
	ProofCount          int64
	TimesRewarded       int
	FirstContributionAt time.Time
	LastStats           *contribution.RawStats
}

// Award 差额奖励
type Award struct {
	FreshPoints        int
	PriorPoints        int
	DifferentialPoints int
	Score              float64
}

// Rewarded 是否产生新的奖励
func (a Award) Rewarded() bool {
	return a.DifferentialPoints > 0
}

// Differential 本次积分减去历史已奖励积分，分数受终身上限约束
func Differential(fresh scoring.PointsBreakdown, prior Prior, scorer *scoring.Scorer) Award {
	a := Award{
		FreshPoints: fresh.TotalPoints,
		PriorPoints: int(math.Round(prior.CumulativeScore * float64(scorer.MaxPoints))),
	}
	if diff := a.FreshPoints - a.PriorPoints; diff > 0 {
		a.DifferentialPoints = diff
		a.Score = capScore(prior.CumulativeScore, scorer.Normalize(diff))
	}
	return a
}

// capScore 截断到终身上限的剩余额度
func capScore(cumulative, score float64) float64 {
	remaining := MaxCumulativeScore - cumulative
	if remaining <= 0 {
		return 0
	}
	return math.Min(score, remaining)
}

// Uniqueness 首次贡献 1.0，重复贡献且仍有差额 0.99，没有差额为 0
func Uniqueness(prior Prior, award Award) float64 {
	if !award.Rewarded() {
		return 0
	}
	if !prior.Exists && prior.ProofCount == 0 {
		return firstUniqueness
	}
	return repeatUniqueness
}

// Session 一次运行内的账本事务
type Session struct {
	tx         database.Tx
	now        func() time.Time
	done       bool
	rolledBack bool
}

// Lookup 查询身份的历史状态
func (s *Session) Lookup(ctx context.Context, id contribution.Identity) (Prior, error) {
	var prior Prior

	sum, count, err := s.tx.SumProofScores(ctx, id.String())
	if err != nil {
		return prior, fmt.Errorf("%w: sum proofs: %w", ErrLedger, err)
	}
	prior.CumulativeScore = sum
	prior.ProofCount = count

	rec, err := s.tx.GetContribution(ctx, id.String())
	if errors.Is(err, database.ErrNotFound) {
		return prior, nil
	}
	if err != nil {
		return prior, fmt.Errorf("%w: get contribution: %w", ErrLedger, err)
	}

	prior.Exists = true
	prior.TimesRewarded = rec.TimesRewarded
	prior.FirstContributionAt = rec.FirstContributionAt
	if len(rec.RawData) > 0 {
		var raw contribution.RawSnapshot
		if err := json.Unmarshal(rec.RawData, &raw); err != nil {
			logger.Warn("⚠️ 身份 %s 的历史快照无法解析: %v", id.Short(), err)
		} else {
			prior.LastStats = &raw.Stats
		}
	}
	return prior, nil
}

// RecordInput 写入账本的一次奖励
type RecordInput struct {
	Kind     contribution.Kind
	Snapshot *contribution.Snapshot
	Award    Award

	DlpID        int
	FileID       int64
	FileURL      string
	JobID        string
	OwnerAddress string
	RunID        string

	Authenticity float64
	Ownership    float64
	Quality      float64
	Uniqueness   float64

	// EncryptedRefreshToken 非空时覆盖贡献记录中保存的令牌
	EncryptedRefreshToken string
}

// Record 更新贡献快照并追加证明记录，任一步失败整个事务回滚
func (s *Session) Record(ctx context.Context, in RecordInput) (*database.ContributionProof, error) {
	proof, err := s.record(ctx, in)
	if err != nil {
		s.Rollback()
		return nil, fmt.Errorf("%w: %w", ErrLedger, err)
	}
	return proof, nil
}

func (s *Session) record(ctx context.Context, in RecordInput) (*database.ContributionProof, error) {
	if in.Snapshot == nil {
		return nil, errors.New("record: nil snapshot")
	}
	id := in.Snapshot.Identity.String()
	now := s.now()

	// 同一事务内重新汇总，保证终身上限
	cumulative, _, err := s.tx.SumProofScores(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sum proofs: %w", err)
	}
	score := capScore(cumulative, in.Award.Score)

	rawData, err := json.Marshal(in.Snapshot.Raw())
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	rec, err := s.tx.GetContribution(ctx, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		rec = &database.UserContribution{AccountIDHash: id, FirstContributionAt: now}
	case err != nil:
		return nil, fmt.Errorf("get contribution: %w", err)
	}

	stats := in.Snapshot.Stats
	rec.ContributionType = in.Kind.String()
	rec.TransactionCount = stats.TransactionCount
	rec.TotalVolume = stats.TotalVolume
	rec.ActivityPeriodDays = stats.ActivityPeriodDays
	rec.UniqueAssets = stats.AssetCount()
	rec.LatestScore = score
	rec.CumulativeScore = cumulative + score
	rec.TimesRewarded++
	rec.LatestContributionAt = now
	rec.RawData = datatypes.JSON(rawData)
	if in.EncryptedRefreshToken != "" {
		token := in.EncryptedRefreshToken
		rec.EncryptedRefreshToken = &token
	}

	if err := s.tx.SaveContribution(ctx, rec); err != nil {
		return nil, fmt.Errorf("save contribution: %w", err)
	}

	proof := &database.ContributionProof{
		AccountIDHash:      id,
		ContributionType:   in.Kind.String(),
		DlpID:              in.DlpID,
		FileID:             in.FileID,
		FileURL:            in.FileURL,
		JobID:              in.JobID,
		OwnerAddress:       in.OwnerAddress,
		RunID:              in.RunID,
		Score:              score,
		Authenticity:       in.Authenticity,
		Ownership:          in.Ownership,
		Quality:            in.Quality,
		Uniqueness:         in.Uniqueness,
		TotalPoints:        in.Award.FreshPoints,
		DifferentialPoints: in.Award.DifferentialPoints,
		CreatedAt:          now,
	}
	if err := s.tx.SaveProof(ctx, proof); err != nil {
		return nil, fmt.Errorf("save proof: %w", err)
	}
	return proof, nil
}

// Commit 提交事务
func (s *Session) Commit() error {
	if s.rolledBack {
		return fmt.Errorf("%w: commit after rollback", ErrLedger)
	}
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrLedger, err)
	}
	return nil
}

// Rollback 回滚事务，已结束的会话再次调用无副作用
func (s *Session) Rollback() {
	if s.done {
		return
	}
	s.done = true
	s.rolledBack = true
	if err := s.tx.Rollback(); err != nil {
		logger.Warn("⚠️ 账本事务回滚失败: %v", err)
	}
}
