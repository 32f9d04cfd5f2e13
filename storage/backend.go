package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend 密文的落地位置
type Backend interface {
	Write(ctx context.Context, dest string, data []byte) (location string, err error)
	Read(ctx context.Context, dest string) ([]byte, error)
	Delete(ctx context.Context, dest string) error
}

// FileBackend 本地目录
type FileBackend struct {
	root string
}

// NewFileBackend 创建目录（如不存在）
func NewFileBackend(root string) (*FileBackend, error) {
	if root == "" {
		return nil, errors.New("empty storage dir")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &FileBackend{root: root}, nil
}

// path dest 被限制在 root 之内
func (b *FileBackend) path(dest string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(dest))
	if clean == "/" {
		return "", fmt.Errorf("invalid destination %q", dest)
	}
	return filepath.Join(b.root, clean), nil
}

// Write 先写临时文件再重命名
func (b *FileBackend) Write(ctx context.Context, dest string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := b.path(dest)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return p, nil
}

// Read 读取已保存的内容
func (b *FileBackend) Read(ctx context.Context, dest string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.path(dest)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// Delete 删除文件，不存在时忽略
func (b *FileBackend) Delete(ctx context.Context, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := b.path(dest)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
