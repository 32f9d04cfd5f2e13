// Package storage 校验通过的提交内容加密后保存
package storage

import (
	"context"
	"fmt"

	"finproof/config"
)

// Checksums 上传内容的校验和
type Checksums struct {
	Plaintext  string `json:"plaintext_sha256"`  // 原始内容 SHA-256
	Ciphertext string `json:"ciphertext_sha256"` // 加密后内容 SHA-256
	Location   string `json:"location"`          // 保存位置
}

// Store 加密并上传
type Store interface {
	Put(ctx context.Context, data []byte, dest string) (*Checksums, error)
	// Delete 删除已保存的内容，不存在时不报错
	Delete(ctx context.Context, dest string) error
}

// NopStore 未启用存储时使用，不保存任何内容
type NopStore struct{}

// Put 空操作
func (NopStore) Put(context.Context, []byte, string) (*Checksums, error) {
	return nil, nil
}

// Delete 空操作
func (NopStore) Delete(context.Context, string) error {
	return nil
}

// NewStore 根据配置创建存储
func NewStore(cfg *config.Config) (Store, error) {
	if !cfg.Storage.Enabled {
		return NopStore{}, nil
	}
	backend, err := NewFileBackend(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("初始化存储目录失败: %w", err)
	}
	return NewEncryptingStore(cfg.Storage.EncryptionKey, backend)
}
