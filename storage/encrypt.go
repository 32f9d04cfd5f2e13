package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"finproof/logger"
	"finproof/utils"
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	// argon2id 参数
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// ErrDecrypt 密文损坏或口令错误
var ErrDecrypt = errors.New("decryption failed")

// EncryptingStore 口令派生密钥，secretbox 加密后写入 Backend
// 输出格式: salt(16) | nonce(24) | secretbox 密文
type EncryptingStore struct {
	passphrase []byte
	backend    Backend
	rand       io.Reader
}

// NewEncryptingStore 创建加密存储
func NewEncryptingStore(passphrase string, backend Backend) (*EncryptingStore, error) {
	if passphrase == "" {
		return nil, errors.New("empty encryption key")
	}
	if backend == nil {
		return nil, errors.New("nil storage backend")
	}
	return &EncryptingStore{passphrase: []byte(passphrase), backend: backend, rand: rand.Reader}, nil
}

func deriveKey(passphrase, salt []byte) *[keySize]byte {
	var key [keySize]byte
	copy(key[:], argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, keySize))
	return &key
}

// Seal 加密
func (s *EncryptingStore) Seal(plaintext []byte) ([]byte, error) {
	header := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(s.rand, header); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], header[saltSize:])

	key := deriveKey(s.passphrase, header[:saltSize])
	return secretbox.Seal(header, plaintext, &nonce, key), nil
}

// Open 解密
func (s *EncryptingStore) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < saltSize+nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[saltSize:saltSize+nonceSize])

	key := deriveKey(s.passphrase, sealed[:saltSize])
	plain, ok := secretbox.Open(nil, sealed[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// Put 加密后保存，返回明文与密文的校验和
func (s *EncryptingStore) Put(ctx context.Context, data []byte, dest string) (*Checksums, error) {
	sealed, err := s.Seal(data)
	if err != nil {
		return nil, err
	}
	location, err := s.backend.Write(ctx, dest, sealed)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", dest, err)
	}

	sums := &Checksums{
		Plaintext:  utils.SHA256HexBytes(data),
		Ciphertext: utils.SHA256HexBytes(sealed),
		Location:   location,
	}
	logger.Info("🔐 已加密保存 %d 字节到 %s", len(data), location)
	return sums, nil
}

// Get 读取并解密
func (s *EncryptingStore) Get(ctx context.Context, dest string) ([]byte, error) {
	sealed, err := s.backend.Read(ctx, dest)
	if err != nil {
		return nil, err
	}
	return s.Open(sealed)
}

// Delete 删除已保存的密文
func (s *EncryptingStore) Delete(ctx context.Context, dest string) error {
	if err := s.backend.Delete(ctx, dest); err != nil {
		return fmt.Errorf("delete %s: %w", dest, err)
	}
	logger.Info("🗑️ 已删除 %s", dest)
	return nil
}
