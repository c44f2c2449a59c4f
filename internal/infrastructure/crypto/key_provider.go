package crypto

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"path"
	"sync"

	vault "github.com/hashicorp/vault/api"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/tenantjwt/internal/config"
	"github.com/turtacn/tenantjwt/internal/domain/service"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// EncryptionKeySize is the key length required by A256GCM with direct key agreement.
const EncryptionKeySize = 32

const hkdfInfoPrefix = "tenantjwt/jwe/"

var (
	_ service.EncryptionKeyProvider = (*StaticKeyProvider)(nil)
	_ service.EncryptionKeyProvider = (*VaultKeyProvider)(nil)
)

// StaticKeyProvider derives a distinct key per tenant from one master secret with HKDF-SHA256,
// so a JWE minted for one tenant never decrypts under another.
// StaticKeyProvider 使用 HKDF 从主密钥为每个租户派生独立密钥。
type StaticKeyProvider struct {
	master []byte
}

// NewStaticKeyProvider creates the provider. The master secret must be at least 32 bytes.
func NewStaticKeyProvider(master string) (*StaticKeyProvider, error) {
	if len(master) < EncryptionKeySize {
		return nil, fmt.Errorf("encryption secret must be at least %d bytes, got %d", EncryptionKeySize, len(master))
	}
	return &StaticKeyProvider{master: []byte(master)}, nil
}

// EncryptionKey implements service.EncryptionKeyProvider.
func (p *StaticKeyProvider) EncryptionKey(_ context.Context, clientID string) ([]byte, error) {
	key := make([]byte, EncryptionKeySize)
	r := hkdf.New(sha256.New, p.master, nil, []byte(hkdfInfoPrefix+clientID))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// KVReader is the part of the Vault KVv2 client the provider needs.
type KVReader interface {
	Get(ctx context.Context, secretPath string) (*vault.KVSecret, error)
}

// VaultKeyProvider reads per-tenant keys from a Vault KVv2 mount.
// Each tenant's secret lives at <key_path>/<client_id> and holds a "key" field,
// either base64 encoded or 32 raw bytes. Keys are cached for the process lifetime;
// concurrent misses for one tenant share a single Vault read.
// VaultKeyProvider 从 Vault KVv2 读取租户密钥，并在进程内缓存。
type VaultKeyProvider struct {
	kv      KVReader
	keyPath string
	log     logger.Logger

	keys  sync.Map
	group singleflight.Group
}

// NewVaultKeyProvider connects to Vault using cfg.
//
// Parameters:
//   - cfg: Vault connection settings
//   - log: logger instance
//
// Returns:
//   - *VaultKeyProvider: the provider
//   - error: client construction error
func NewVaultKeyProvider(cfg config.VaultConfig, log logger.Logger) (*VaultKeyProvider, error) {
	vc := vault.DefaultConfig()
	vc.Address = cfg.Address
	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	return NewVaultKeyProviderFromKV(client.KVv2(cfg.MountPath), cfg.KeyPath, log), nil
}

// NewVaultKeyProviderFromKV builds the provider over an existing KV reader.
func NewVaultKeyProviderFromKV(kv KVReader, keyPath string, log logger.Logger) *VaultKeyProvider {
	return &VaultKeyProvider{
		kv:      kv,
		keyPath: keyPath,
		log:     log.WithComponent("vault_key_provider"),
	}
}

// EncryptionKey implements service.EncryptionKeyProvider.
func (p *VaultKeyProvider) EncryptionKey(ctx context.Context, clientID string) ([]byte, error) {
	if v, ok := p.keys.Load(clientID); ok {
		return v.([]byte), nil
	}
	v, err, _ := p.group.Do(clientID, func() (interface{}, error) {
		if v, ok := p.keys.Load(clientID); ok {
			return v, nil
		}
		key, err := p.fetch(ctx, clientID)
		if err != nil {
			return nil, err
		}
		p.keys.Store(clientID, key)
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Forget drops the cached key of clientID so the next call reads Vault again.
func (p *VaultKeyProvider) Forget(clientID string) {
	p.keys.Delete(clientID)
}

func (p *VaultKeyProvider) fetch(ctx context.Context, clientID string) ([]byte, error) {
	secretPath := path.Join(p.keyPath, clientID)
	secret, err := p.kv.Get(ctx, secretPath)
	if err != nil {
		p.log.Error(ctx, "vault read failed", err, logger.String("path", secretPath))
		return nil, errors.FromContext(err, "vault")
	}
	if secret == nil || secret.Data == nil {
		return nil, errors.ErrInternal("no encryption key for client " + clientID)
	}
	raw, ok := secret.Data["key"].(string)
	if !ok {
		return nil, errors.ErrInternal("encryption key for client " + clientID + " is not a string")
	}
	return decodeKey(raw)
}

func decodeKey(raw string) ([]byte, error) {
	if len(raw) == EncryptionKeySize {
		return []byte(raw), nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(raw); err == nil && len(b) == EncryptionKeySize {
			return b, nil
		}
	}
	return nil, errors.ErrInternal(fmt.Sprintf("encryption key must be %d bytes", EncryptionKeySize))
}
