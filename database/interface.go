package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Store 事务内外都可用的数据操作
type Store interface {
	// 贡献记录（每个身份一行，原地更新）
	GetContribution(ctx context.Context, accountIDHash string) (*UserContribution, error)
	SaveContribution(ctx context.Context, c *UserContribution) error

	// 证明记录（只追加）
	SaveProof(ctx context.Context, proof *ContributionProof) error
	SumProofScores(ctx context.Context, accountIDHash string) (sum float64, count int64, err error)
	GetProofs(ctx context.Context, filter *ProofFilter) ([]*ContributionProof, error)

	// 市场洞察提交
	SaveInsightSubmission(ctx context.Context, s *MarketInsightSubmission) error
	GetInsightSubmissions(ctx context.Context, filter *InsightFilter) ([]*MarketInsightSubmission, error)
}

// Database 数据库接口
type Database interface {
	Store

	// 事务支持
	BeginTx(ctx context.Context) (Tx, error)

	// 健康检查
	Ping(ctx context.Context) error

	// 关闭连接
	Close() error
}

// Tx 事务接口
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// 数据模型

// UserContribution 每个身份最新的贡献快照
type UserContribution struct {
	ID                    int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountIDHash         string         `gorm:"uniqueIndex;size:64;not null" json:"account_id_hash"`
	ContributionType      string         `gorm:"size:20" json:"contribution_type"`
	TransactionCount      int            `gorm:"not null" json:"transaction_count"`
	TotalVolume           float64        `gorm:"not null" json:"total_volume"`
	ActivityPeriodDays    int            `gorm:"not null" json:"activity_period_days"`
	UniqueAssets          int            `gorm:"not null" json:"unique_assets"`
	LatestScore           float64        `gorm:"not null" json:"latest_score"`     // 最近一次证明的分数
	CumulativeScore       float64        `gorm:"not null" json:"cumulative_score"` // 历史证明分数之和
	TimesRewarded         int            `gorm:"default:0" json:"times_rewarded"`
	FirstContributionAt   time.Time      `json:"first_contribution_at"`
	LatestContributionAt  time.Time      `json:"latest_contribution_at"`
	RawData               datatypes.JSON `json:"raw_data"` // 匿名化快照
	EncryptedRefreshToken *string        `json:"-"`        // 加密的 Coinbase 刷新令牌
}

// TableName 表名
func (UserContribution) TableName() string { return "user_contributions" }

// ContributionProof 每次产生奖励的运行追加一行
type ContributionProof struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountIDHash      string    `gorm:"index;size:64;not null" json:"account_id_hash"`
	ContributionType   string    `gorm:"size:20" json:"contribution_type"`
	DlpID              int       `gorm:"not null" json:"dlp_id"`
	FileID             int64     `gorm:"index" json:"file_id"`
	FileURL            string    `gorm:"size:1024" json:"file_url"`
	JobID              string    `gorm:"size:128" json:"job_id"`
	OwnerAddress       string    `gorm:"index;size:128" json:"owner_address"`
	RunID              string    `gorm:"size:36" json:"run_id"`
	Score              float64   `gorm:"not null" json:"score"`
	Authenticity       float64   `gorm:"not null" json:"authenticity"`
	Ownership          float64   `gorm:"not null" json:"ownership"`
	Quality            float64   `gorm:"not null" json:"quality"`
	Uniqueness         float64   `gorm:"not null" json:"uniqueness"`
	TotalPoints        int       `json:"total_points"`
	DifferentialPoints int       `json:"differential_points"`
	CreatedAt          time.Time `gorm:"index" json:"created_at"`
}

// TableName 表名
func (ContributionProof) TableName() string { return "contribution_proofs" }

// MarketInsightSubmission 市场洞察问卷
type MarketInsightSubmission struct {
	ID               int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID           int64          `gorm:"index" json:"file_id"`
	OwnerAddress     string         `gorm:"index;size:128;not null" json:"owner_address"`
	BasePoints       int            `json:"base_points"`
	PredictionPoints int            `json:"prediction_points"`
	TotalPoints      int            `json:"total_points"`
	Expertise        datatypes.JSON `json:"expertise"`
	Strategy         datatypes.JSON `json:"strategy"`
	Psychology       datatypes.JSON `json:"psychology"`
	ContactMethod    *string        `gorm:"size:50" json:"contact_method"`
	ContactValue     *string        `gorm:"size:255" json:"contact_value"`
	AllowUpdates     bool           `json:"allow_updates"`
	FileURL          string         `gorm:"size:1024" json:"file_url"`
	FileChecksum     string         `gorm:"size:64" json:"file_checksum"`
	SubmittedAt      time.Time      `json:"submitted_at"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
}

// TableName 表名
func (MarketInsightSubmission) TableName() string { return "market_insight_submissions" }

// 过滤器

// ProofFilter 证明记录过滤器
type ProofFilter struct {
	AccountIDHash string
	OwnerAddress  string
	StartTime     *time.Time
	EndTime       *time.Time
	Limit         int
	Offset        int
}

// InsightFilter 市场洞察过滤器
type InsightFilter struct {
	OwnerAddress string
	FileID       int64
	Limit        int
	Offset       int
}
