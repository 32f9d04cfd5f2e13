package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormDatabase GORM 数据库实现
type GormDatabase struct {
	gormStore
}

// DBConfig 数据库配置
type DBConfig struct {
	Type            string        // sqlite, postgres, mysql
	DSN             string        // 数据源名称
	MaxOpenConns    int           // 最大打开连接数
	MaxIdleConns    int           // 最大空闲连接数
	ConnMaxLifetime time.Duration // 连接最大生命周期
	LogLevel        string        // 日志级别: silent, error, warn, info
}

// NewGormDatabase 创建 GORM 数据库实例
func NewGormDatabase(config *DBConfig) (*GormDatabase, error) {
	var dialector gorm.Dialector

	switch config.Type {
	case "sqlite":
		if dir := filepath.Dir(config.DSN); dir != "." && dir != "" && config.DSN != ":memory:" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database dir: %w", err)
			}
		}
		dialector = sqlite.Open(config.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	// 日志级别
	logLevel := logger.Silent
	switch config.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	// 打开数据库
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 获取底层 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	// 自动迁移
	if err := db.AutoMigrate(
		&UserContribution{},
		&ContributionProof{},
		&MarketInsightSubmission{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &GormDatabase{gormStore{db: db}}, nil
}

// BeginTx 开启事务
func (g *GormDatabase) BeginTx(ctx context.Context) (Tx, error) {
	tx := g.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	return &GormTx{gormStore{db: tx}}, nil
}

// Ping 健康检查
func (g *GormDatabase) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接
func (g *GormDatabase) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormTx GORM 事务实现，读写操作与 GormDatabase 共用
type GormTx struct {
	gormStore
}

func (t *GormTx) Commit() error {
	return t.db.Commit().Error
}

func (t *GormTx) Rollback() error {
	return t.db.Rollback().Error
}

// gormStore 基于 *gorm.DB（普通连接或事务）的数据操作
type gormStore struct {
	db *gorm.DB
}

// GetContribution 按身份哈希查询，不存在返回 ErrNotFound
func (s gormStore) GetContribution(ctx context.Context, accountIDHash string) (*UserContribution, error) {
	var c UserContribution
	err := s.db.WithContext(ctx).Where("account_id_hash = ?", accountIDHash).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveContribution ID 为 0 时插入，否则整行更新
func (s gormStore) SaveContribution(ctx context.Context, c *UserContribution) error {
	if c.ID == 0 {
		return s.db.WithContext(ctx).Create(c).Error
	}
	return s.db.WithContext(ctx).Save(c).Error
}

// SaveProof 追加证明记录
func (s gormStore) SaveProof(ctx context.Context, proof *ContributionProof) error {
	return s.db.WithContext(ctx).Create(proof).Error
}

// SumProofScores 身份的历史分数之和与记录数
func (s gormStore) SumProofScores(ctx context.Context, accountIDHash string) (float64, int64, error) {
	var row struct {
		Total float64
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&ContributionProof{}).
		Select("COALESCE(SUM(score), 0) AS total, COUNT(*) AS count").
		Where("account_id_hash = ?", accountIDHash).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Count, nil
}

// GetProofs 获取证明记录（按时间升序）
func (s gormStore) GetProofs(ctx context.Context, filter *ProofFilter) ([]*ContributionProof, error) {
	query := s.db.WithContext(ctx).Model(&ContributionProof{})

	if filter == nil {
		filter = &ProofFilter{}
	}
	if filter.AccountIDHash != "" {
		query = query.Where("account_id_hash = ?", filter.AccountIDHash)
	}
	if filter.OwnerAddress != "" {
		query = query.Where("owner_address = ?", filter.OwnerAddress)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", filter.EndTime)
	}

	query = query.Order("created_at ASC, id ASC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var proofs []*ContributionProof
	if err := query.Find(&proofs).Error; err != nil {
		return nil, err
	}
	return proofs, nil
}

// SaveInsightSubmission 保存市场洞察提交
func (s gormStore) SaveInsightSubmission(ctx context.Context, sub *MarketInsightSubmission) error {
	return s.db.WithContext(ctx).Create(sub).Error
}

// GetInsightSubmissions 获取市场洞察提交
func (s gormStore) GetInsightSubmissions(ctx context.Context, filter *InsightFilter) ([]*MarketInsightSubmission, error) {
	query := s.db.WithContext(ctx).Model(&MarketInsightSubmission{})

	if filter == nil {
		filter = &InsightFilter{}
	}
	if filter.OwnerAddress != "" {
		query = query.Where("owner_address = ?", filter.OwnerAddress)
	}
	if filter.FileID != 0 {
		query = query.Where("file_id = ?", filter.FileID)
	}

	query = query.Order("created_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var subs []*MarketInsightSubmission
	if err := query.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
