// Package insights 市场洞察问卷提交
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"finproof/database"
	"finproof/logger"
	"finproof/utils"
)

// ErrInvalid 问卷内容不完整
var ErrInvalid = errors.New("invalid market insights")

// Metadata 提交元数据（积分由前端计算）
type Metadata struct {
	Version          string `json:"version"`
	Timestamp        int64  `json:"timestamp"` // 毫秒
	BasePoints       int    `json:"basePoints"`
	PredictionPoints int    `json:"predictionPoints"`
}

// Expertise 市场经验
type Expertise struct {
	MarketExperience map[string]string `json:"marketExperience"`
	Background       string            `json:"background"`
	Methodologies    []string          `json:"methodologies"`
}

// Strategy 交易策略
type Strategy struct {
	RiskManagement      string   `json:"riskManagement"`
	PositionSizing      string   `json:"positionSizing"`
	TechnicalIndicators []string `json:"technicalIndicators"`
	EntryExitStrategy   string   `json:"entryExitStrategy"`
}

// Psychology 交易心理
type Psychology struct {
	LossTolerance       int      `json:"lossTolerance"`
	DecisionProcess     string   `json:"decisionProcess"`
	EmotionalManagement []string `json:"emotionalManagement"`
}

// Contact 联系方式（可选）
type Contact struct {
	Method       string `json:"method"`
	Value        string `json:"value"`
	AllowUpdates bool   `json:"allowUpdates"`
}

// MarketInsights 完整的问卷提交
type MarketInsights struct {
	Metadata   *Metadata   `json:"metadata"`
	Expertise  *Expertise  `json:"expertise"`
	Strategy   *Strategy   `json:"strategy"`
	Psychology *Psychology `json:"psychology"`
	Contact    *Contact    `json:"contact,omitempty"`
}

// Parse 解析问卷 JSON
func Parse(raw []byte) (*MarketInsights, error) {
	var m MarketInsights
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &m, nil
}

// Validate 元数据与三个问卷部分都必须存在
func (m *MarketInsights) Validate() error {
	switch {
	case m.Metadata == nil:
		return fmt.Errorf("%w: missing metadata", ErrInvalid)
	case m.Expertise == nil:
		return fmt.Errorf("%w: missing expertise", ErrInvalid)
	case m.Strategy == nil:
		return fmt.Errorf("%w: missing strategy", ErrInvalid)
	case m.Psychology == nil:
		return fmt.Errorf("%w: missing psychology", ErrInvalid)
	case m.Metadata.BasePoints < 0 || m.Metadata.PredictionPoints < 0:
		return fmt.Errorf("%w: negative points", ErrInvalid)
	}
	return nil
}

// Points 基础积分 + 预测积分
func (m *MarketInsights) Points() int {
	if m.Metadata == nil {
		return 0
	}
	return m.Metadata.BasePoints + m.Metadata.PredictionPoints
}

// SubmittedAt 前端提交时间，缺失时为当前时间
func (m *MarketInsights) SubmittedAt() time.Time {
	if m.Metadata == nil || m.Metadata.Timestamp <= 0 {
		return utils.NowUTC()
	}
	return utils.FromUnixMilli(m.Metadata.Timestamp)
}

// StoreInput 文件与提交者信息
type StoreInput struct {
	FileID       int64
	OwnerAddress string
	FileURL      string
	FileChecksum string
}

// Service 问卷持久化
type Service struct {
	db database.Store
}

// NewService 创建服务
func NewService(db database.Store) *Service {
	return &Service{db: db}
}

// Store 保存提交
func (s *Service) Store(ctx context.Context, m *MarketInsights, in StoreInput) (*database.MarketInsightSubmission, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: market insights data is required", ErrInvalid)
	}
	if in.OwnerAddress == "" {
		return nil, fmt.Errorf("%w: owner address is required", ErrInvalid)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	expertise, err := json.Marshal(m.Expertise)
	if err != nil {
		return nil, err
	}
	strategy, err := json.Marshal(m.Strategy)
	if err != nil {
		return nil, err
	}
	psychology, err := json.Marshal(m.Psychology)
	if err != nil {
		return nil, err
	}

	row := &database.MarketInsightSubmission{
		FileID:           in.FileID,
		OwnerAddress:     in.OwnerAddress,
		BasePoints:       m.Metadata.BasePoints,
		PredictionPoints: m.Metadata.PredictionPoints,
		TotalPoints:      m.Points(),
		Expertise:        datatypes.JSON(expertise),
		Strategy:         datatypes.JSON(strategy),
		Psychology:       datatypes.JSON(psychology),
		FileURL:          in.FileURL,
		FileChecksum:     in.FileChecksum,
		SubmittedAt:      m.SubmittedAt(),
		CreatedAt:        utils.NowUTC(),
	}
	if m.Contact != nil {
		row.ContactMethod = &m.Contact.Method
		row.ContactValue = &m.Contact.Value
		row.AllowUpdates = m.Contact.AllowUpdates
	}

	if err := s.db.SaveInsightSubmission(ctx, row); err != nil {
		logger.Error("❌ 保存市场洞察失败: %v", err)
		return nil, fmt.Errorf("store market insights: %w", err)
	}
	logger.Info("✅ 已保存 %s 的市场洞察 (%d 积分)", in.OwnerAddress, row.TotalPoints)
	return row, nil
}
