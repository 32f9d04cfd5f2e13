// Package scoring 分级积分与归一化
package scoring

import (
	"math"

	"finproof/contribution"
)

// PointsBreakdown 积分明细
type PointsBreakdown struct {
	VolumePoints    int    `json:"volume_points"`
	VolumeReason    string `json:"volume_reason"`
	DiversityPoints int    `json:"diversity_points"`
	DiversityReason string `json:"diversity_reason"`
	HistoryPoints   int    `json:"history_points"`
	HistoryReason   string `json:"history_reason"`
	TotalPoints     int    `json:"total_points"`
}

// Summary attributes.points_breakdown 中展示的三项原因
func (p PointsBreakdown) Summary() map[string]string {
	return map[string]string{
		"volume":    p.VolumeReason,
		"diversity": p.DiversityReason,
		"history":   p.HistoryReason,
	}
}

// VolumePoints 按总成交额分级
func VolumePoints(volume float64) (int, string) {
	switch {
	case volume >= 1_000_000:
		return 500, "500 (1M+ volume)"
	case volume >= 100_000:
		return 150, "150 (100k+ volume)"
	case volume >= 10_000:
		return 50, "50 (10k+ volume)"
	case volume >= 1_000:
		return 25, "25 (1k+ volume)"
	case volume >= 100:
		return 5, "5 (100+ volume)"
	default:
		return 1, "1 (minimum reward)"
	}
}

// DiversityPoints 按不同资产数量分级
func DiversityPoints(uniqueAssets int) (int, string) {
	switch {
	case uniqueAssets >= 5:
		return 30, "30 (5+ assets)"
	case uniqueAssets >= 3:
		return 10, "10 (3-4 assets)"
	default:
		return 0, "0 (< 3 assets)"
	}
}

// HistoryPoints 按活跃天数分级
func HistoryPoints(days int) (int, string) {
	switch {
	case days >= 1095: // 3 年
		return 100, "100 (3+ years)"
	case days >= 365: // 1 年
		return 50, "50 (1+ year)"
	default:
		return 0, "0 (< 1 year)"
	}
}

// Score 纯函数：统计 → 积分明细，总分至少 1
func Score(stats contribution.TradingStats) PointsBreakdown {
	var p PointsBreakdown
	p.VolumePoints, p.VolumeReason = VolumePoints(stats.TotalVolume)
	p.DiversityPoints, p.DiversityReason = DiversityPoints(stats.AssetCount())
	p.HistoryPoints, p.HistoryReason = HistoryPoints(stats.ActivityPeriodDays)

	p.TotalPoints = p.VolumePoints + p.DiversityPoints + p.HistoryPoints
	if p.TotalPoints < 1 {
		p.TotalPoints = 1
	}
	return p
}

const invalidReason = "0 (invalid contribution)"

// Invalid 被拒绝的贡献使用的明细
func Invalid() PointsBreakdown {
	return PointsBreakdown{
		VolumeReason:    invalidReason,
		DiversityReason: invalidReason,
		HistoryReason:   invalidReason,
	}
}

// Normalize max(points/maxPoints, minScore)，结果不超过 1
func Normalize(points, maxPoints int, minScore float64) float64 {
	if maxPoints <= 0 {
		return 0
	}
	score := math.Max(float64(points)/float64(maxPoints), minScore)
	return math.Min(score, 1)
}

// Scorer 携带奖励池参数
type Scorer struct {
	MaxPoints int
	MinScore  float64
}

// NewScorer 创建评分器
func NewScorer(maxPoints int, minScore float64) *Scorer {
	return &Scorer{MaxPoints: maxPoints, MinScore: minScore}
}

// Score 计算积分明细
func (s *Scorer) Score(stats contribution.TradingStats) PointsBreakdown {
	return Score(stats)
}

// Normalize 归一化到 [0,1]
func (s *Scorer) Normalize(points int) float64 {
	return Normalize(points, s.MaxPoints, s.MinScore)
}
