package crypto

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	vault "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/tenantjwt/internal/config"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

func TestStaticKeyProvider(t *testing.T) {
	_, err := NewStaticKeyProvider("short")
	require.Error(t, err)

	p, err := NewStaticKeyProvider(strings.Repeat("s", 32))
	require.NoError(t, err)

	a1, err := p.EncryptionKey(context.Background(), "acme")
	require.NoError(t, err)
	a2, err := p.EncryptionKey(context.Background(), "acme")
	require.NoError(t, err)
	g, err := p.EncryptionKey(context.Background(), "globex")
	require.NoError(t, err)

	assert.Len(t, a1, EncryptionKeySize)
	assert.Equal(t, a1, a2)
	assert.False(t, bytes.Equal(a1, g))
}

type fakeKV struct {
	mu    sync.Mutex
	data  map[string]map[string]interface{}
	reads atomic.Int32
	err   error
}

func (f *fakeKV) Get(_ context.Context, secretPath string) (*vault.KVSecret, error) {
	f.reads.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.data[secretPath]
	if !ok {
		return nil, vault.ErrSecretNotFound
	}
	return &vault.KVSecret{Data: d}, nil
}

func TestVaultKeyProvider_CachesKeys(t *testing.T) {
	key := bytes.Repeat([]byte{7}, EncryptionKeySize)
	kv := &fakeKV{data: map[string]map[string]interface{}{
		"tenantjwt/jwe/acme":   {"key": base64.StdEncoding.EncodeToString(key)},
		"tenantjwt/jwe/raw":    {"key": strings.Repeat("r", EncryptionKeySize)},
		"tenantjwt/jwe/short":  {"key": "c2hvcnQ="},
		"tenantjwt/jwe/number": {"key": 42},
	}}
	p := NewVaultKeyProviderFromKV(kv, "tenantjwt/jwe", logger.NewNoopLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.EncryptionKey(ctx, "acme")
			assert.NoError(t, err)
			assert.Equal(t, key, got)
		}()
	}
	wg.Wait()
	reads := kv.reads.Load()
	assert.LessOrEqual(t, reads, int32(16))

	_, err := p.EncryptionKey(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, reads, kv.reads.Load(), "cached key must not hit vault")

	p.Forget("acme")
	_, err = p.EncryptionKey(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, reads+1, kv.reads.Load())

	raw, err := p.EncryptionKey(ctx, "raw")
	require.NoError(t, err)
	assert.Equal(t, []byte(strings.Repeat("r", EncryptionKeySize)), raw)

	_, err = p.EncryptionKey(ctx, "short")
	assert.True(t, errors.IsKind(err, errors.KindInternal))
	_, err = p.EncryptionKey(ctx, "number")
	assert.True(t, errors.IsKind(err, errors.KindInternal))
	_, err = p.EncryptionKey(ctx, "missing")
	assert.True(t, errors.IsKind(err, errors.KindInternal))
}

func TestVaultKeyProvider_Timeout(t *testing.T) {
	kv := &fakeKV{err: context.DeadlineExceeded}
	p := NewVaultKeyProviderFromKV(kv, "tenantjwt/jwe", logger.NewNoopLogger())
	_, err := p.EncryptionKey(context.Background(), "acme")
	assert.True(t, errors.IsKind(err, errors.KindUpstreamTimeout))
}

func TestVaultKeyProvider_HTTP(t *testing.T) {
	key := bytes.Repeat([]byte{9}, EncryptionKeySize)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/tenantjwt/jwe/acme" || r.Header.Get("X-Vault-Token") != "dev-token" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data": map[string]interface{}{"key": base64.StdEncoding.EncodeToString(key)},
				"metadata": map[string]interface{}{
					"created_time":  "2026-01-01T00:00:00Z",
					"deletion_time": "",
					"destroyed":     false,
					"version":       1,
				},
			},
		})
	}))
	defer srv.Close()

	p, err := NewVaultKeyProvider(config.VaultConfig{
		Enabled:   true,
		Address:   srv.URL,
		Token:     "dev-token",
		MountPath: "secret",
		KeyPath:   "tenantjwt/jwe",
	}, logger.NewNoopLogger())
	require.NoError(t, err)

	got, err := p.EncryptionKey(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = p.EncryptionKey(context.Background(), "globex")
	assert.Error(t, err)
}
