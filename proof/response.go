package proof

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"finproof/contribution"
	"finproof/ledger"
	"finproof/scoring"
	"finproof/storage"
)

// Version 证明格式版本
const Version = "1.0.0"

// ResultsFile 输出文件名
const ResultsFile = "results.json"

// Response 证明结果（score 与 metadata 上链，其余留在链下）
type Response struct {
	DlpID        int                    `json:"dlp_id"`
	Valid        bool                   `json:"valid"`
	Score        float64                `json:"score"`
	Authenticity float64                `json:"authenticity"`
	Ownership    float64                `json:"ownership"`
	Quality      float64                `json:"quality"`
	Uniqueness   float64                `json:"uniqueness"`
	Attributes   map[string]interface{} `json:"attributes"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// runInfo 一次运行的标识信息
type runInfo struct {
	RunID        string
	Kind         contribution.Kind
	DlpID        int
	FileID       int64
	JobID        string
	OwnerAddress string
}

func (g *Generator) metadata(run runInfo, sums *storage.Checksums) map[string]interface{} {
	md := map[string]interface{}{
		"dlp_id":            run.DlpID,
		"version":           Version,
		"file_id":           run.FileID,
		"job_id":            run.JobID,
		"owner_address":     run.OwnerAddress,
		"run_id":            run.RunID,
		"contribution_type": run.Kind.String(),
	}
	if sums != nil {
		md["checksums"] = map[string]string{
			"plaintext_sha256":  sums.Plaintext,
			"ciphertext_sha256": sums.Ciphertext,
		}
	}
	return md
}

// tradingAttributes 交易类贡献的属性
func tradingAttributes(snap *contribution.Snapshot, validated bool, reason string, prior ledger.Prior, award ledger.Award, breakdown scoring.PointsBreakdown) map[string]interface{} {
	return map[string]interface{}{
		"account_id_hash":        snap.Identity.String(),
		"transaction_count":      snap.Stats.TransactionCount,
		"total_volume":           snap.Stats.TotalVolume,
		"data_validated":         validated,
		"validation_reason":      reason,
		"activity_period_days":   snap.Stats.ActivityPeriodDays,
		"unique_assets":          snap.Stats.AssetCount(),
		"previously_contributed": prior.Exists,
		"times_rewarded":         prior.TimesRewarded,
		"total_points":           award.FreshPoints,
		"differential_points":    award.DifferentialPoints,
		"points_breakdown":       breakdown.Summary(),
	}
}

// quality 有交易记录为 1
func quality(snap *contribution.Snapshot) float64 {
	if snap != nil && snap.Stats.TransactionCount > 0 {
		return 1.0
	}
	return 0
}

// WriteResults 写出缩进格式的 results.json
func WriteResults(dir string, resp *Response) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	path := filepath.Join(dir, ResultsFile)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return path, nil
}
