package crypto

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/go-jose/go-jose/v4"
	"golang.org/x/crypto/hkdf"

	"github.com/turtacn/tenantjwt/internal/domain/service"
)

const sealedEngineInfo = "tenantjwt/cache-seal"

var _ service.CacheEngine = (*SealedEngine)(nil)

// SealedEngine encrypts values before they reach a shared engine such as Redis.
// Values are compact JWEs (dir, A256GCM) under a key derived from the master secret.
// Entries that do not open are removed and reported as a miss.
// SealedEngine 在写入共享缓存前加密值，无法解密的条目按未命中处理。
type SealedEngine struct {
	service.CacheEngine
	key []byte
}

// NewSealedEngine wraps inner. The master secret must be at least 32 bytes.
func NewSealedEngine(inner service.CacheEngine, master string) (*SealedEngine, error) {
	if len(master) < EncryptionKeySize {
		return nil, fmt.Errorf("cache seal secret must be at least %d bytes, got %d", EncryptionKeySize, len(master))
	}
	key := make([]byte, EncryptionKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(master), nil, []byte(sealedEngineInfo)), key); err != nil {
		return nil, err
	}
	return &SealedEngine{CacheEngine: inner, key: key}, nil
}

// Get opens the stored value.
func (e *SealedEngine) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := e.CacheEngine.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	obj, err := jose.ParseEncrypted(string(raw), []jose.KeyAlgorithm{jose.DIRECT}, []jose.ContentEncryption{jose.A256GCM})
	if err == nil {
		var plain []byte
		if plain, err = obj.Decrypt(e.key); err == nil {
			return plain, true, nil
		}
	}
	_, _ = e.CacheEngine.Remove(ctx, key)
	return nil, false, nil
}

// Put seals value and stores it.
func (e *SealedEngine) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	enc, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{Algorithm: jose.DIRECT, Key: e.key}, nil)
	if err != nil {
		return fmt.Errorf("create encrypter: %w", err)
	}
	obj, err := enc.Encrypt(value)
	if err != nil {
		return fmt.Errorf("seal cache value: %w", err)
	}
	sealed, err := obj.CompactSerialize()
	if err != nil {
		return err
	}
	return e.CacheEngine.Put(ctx, key, []byte(sealed), ttl)
}
