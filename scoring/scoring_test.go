package scoring

import (
	"math"
	"testing"

	"finproof/contribution"
)

const minScore = 0.001 / 630

func stats(volume float64, assets, days int) contribution.TradingStats {
	s := contribution.TradingStats{TotalVolume: volume, ActivityPeriodDays: days}
	for i := 0; i < assets; i++ {
		s.UniqueAssets = append(s.UniqueAssets, string(rune('A'+i)))
	}
	return s
}

func TestMaxTierIs630(t *testing.T) {
	for _, s := range []contribution.TradingStats{
		stats(1_000_000, 5, 1095),
		stats(25_000_000, 12, 4000),
	} {
		if got := Score(s).TotalPoints; got != 630 {
			t.Errorf("最高档应为 630 点, 得到 %d", got)
		}
	}
}

func TestTierBoundaries(t *testing.T) {
	volume := []struct {
		v      float64
		points int
		reason string
	}{
		{1_000_000, 500, "500 (1M+ volume)"},
		{999_999.99, 150, "150 (100k+ volume)"},
		{100_000, 150, "150 (100k+ volume)"},
		{10_000, 50, "50 (10k+ volume)"},
		{1_000, 25, "25 (1k+ volume)"},
		{100, 5, "5 (100+ volume)"},
		{99.99, 1, "1 (minimum reward)"},
		{0, 1, "1 (minimum reward)"},
	}
	for _, c := range volume {
		p, r := VolumePoints(c.v)
		if p != c.points || r != c.reason {
			t.Errorf("VolumePoints(%v) = %d %q, 期望 %d %q", c.v, p, r, c.points, c.reason)
		}
	}

	for n, want := range map[int]string{0: "0 (< 3 assets)", 2: "0 (< 3 assets)", 3: "10 (3-4 assets)", 4: "10 (3-4 assets)", 5: "30 (5+ assets)"} {
		if _, r := DiversityPoints(n); r != want {
			t.Errorf("DiversityPoints(%d) = %q, 期望 %q", n, r, want)
		}
	}
	for d, want := range map[int]string{364: "0 (< 1 year)", 365: "50 (1+ year)", 1094: "50 (1+ year)", 1095: "100 (3+ years)"} {
		if _, r := HistoryPoints(d); r != want {
			t.Errorf("HistoryPoints(%d) = %q, 期望 %q", d, r, want)
		}
	}
}

func TestScenarioA(t *testing.T) {
	b := Score(stats(500, 1, 10))
	if b.VolumePoints != 5 || b.VolumeReason != "5 (100+ volume)" || b.DiversityPoints != 0 || b.HistoryPoints != 0 {
		t.Errorf("明细不正确: %+v", b)
	}
	if b.TotalPoints != 5 {
		t.Fatalf("总分应为 5, 得到 %d", b.TotalPoints)
	}
	score := NewScorer(630, minScore).Normalize(b.TotalPoints)
	if math.Abs(score-5.0/630) > 1e-12 {
		t.Errorf("归一化分数应为 5/630, 得到 %v", score)
	}
}

func TestNormalizeMonotonicWithFloor(t *testing.T) {
	prev := -1.0
	for p := 0; p <= 700; p++ {
		s := Normalize(p, 630, minScore)
		if s < prev {
			t.Fatalf("Normalize 非单调: %d -> %v < %v", p, s, prev)
		}
		if p >= 1 && s < minScore {
			t.Fatalf("points=%d 时分数 %v 低于最低分", p, s)
		}
		if s > 1 {
			t.Fatalf("分数不应超过 1: %v", s)
		}
		prev = s
	}
	if Normalize(0, 630, minScore) != minScore {
		t.Error("0 点时应返回最低分")
	}
}

func TestInvalidBreakdown(t *testing.T) {
	b := Invalid()
	if b.TotalPoints != 0 || b.Summary()["volume"] != "0 (invalid contribution)" {
		t.Errorf("无效明细不正确: %+v", b)
	}
}
