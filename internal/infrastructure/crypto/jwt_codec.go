package crypto

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/service"
	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

var _ service.TokenCodec = (*JWTCodec)(nil)

// JWTCodec signs tenant claims as HMAC JWTs and optionally wraps them in a
// compact JWE (dir + A256GCM).
// JWTCodec 使用 HMAC 对租户声明签名，并可选地封装为 JWE。
type JWTCodec struct {
	keys service.EncryptionKeyProvider
	log  logger.Logger
	now  func() time.Time
}

// JWTCodecOption customizes a JWTCodec.
type JWTCodecOption func(*JWTCodec)

// WithClock replaces the wall clock used for iat, exp and expiry checks.
func WithClock(now func() time.Time) JWTCodecOption {
	return func(c *JWTCodec) { c.now = now }
}

// NewJWTCodec creates a codec. keys may be nil when no tenant uses encryption.
//
// Parameters:
//   - keys: source of per-tenant JWE keys
//   - log: logger instance
//
// Returns:
//   - *JWTCodec: the codec
func NewJWTCodec(keys service.EncryptionKeyProvider, log logger.Logger, opts ...JWTCodecOption) *JWTCodec {
	c := &JWTCodec{
		keys: keys,
		log:  log.WithComponent("jwt_codec"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *JWTCodec) clock() time.Time {
	return c.now().UTC().Truncate(time.Second)
}

func ceilSecond(t time.Time) time.Time {
	if floor := t.Truncate(time.Second); floor.Before(t) {
		return floor.Add(time.Second)
	}
	return t
}

func signingMethod(alg constants.SignatureAlgorithm) (jwt.SigningMethod, error) {
	switch alg {
	case constants.AlgorithmHS256:
		return jwt.SigningMethodHS256, nil
	case constants.AlgorithmHS384:
		return jwt.SigningMethodHS384, nil
	case constants.AlgorithmHS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported signature algorithm %q", alg)
	}
}

// Encode implements service.TokenCodec.
func (c *JWTCodec) Encode(ctx context.Context, claims models.Claims, cfg *models.ClientConfiguration, tokenType constants.TokenType) (*models.IssuedToken, error) {
	if cfg == nil {
		return nil, stderrors.New("nil client configuration")
	}
	method, err := signingMethod(cfg.SignatureAlgorithm)
	if err != nil {
		return nil, err
	}

	// exp is rounded up so the token lives at least the configured validity
	issuedAt := c.now().UTC()
	expiresAt := ceilSecond(issuedAt.Add(cfg.ValidityFor(tokenType)))
	jti := uuid.NewString()

	mc := make(jwt.MapClaims, len(claims)+3)
	for k, v := range claims {
		mc[k] = v
	}
	mc[constants.ClaimJWTID] = jti
	mc[constants.ClaimIssuedAt] = issuedAt.Unix()
	mc[constants.ClaimExpiresAt] = expiresAt.Unix()

	token := jwt.NewWithClaims(method, mc)
	signed, err := token.SignedString([]byte(cfg.SigningSecret))
	if err != nil {
		return nil, fmt.Errorf("sign %s token: %w", tokenType, err)
	}

	if cfg.UseEncryption {
		signed, err = c.encrypt(ctx, cfg.ClientID, signed)
		if err != nil {
			return nil, err
		}
	}

	return &models.IssuedToken{
		Raw:       signed,
		JWTID:     jti,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Type:      tokenType,
	}, nil
}

func (c *JWTCodec) encryptionKey(ctx context.Context, clientID string) ([]byte, error) {
	if c.keys == nil {
		return nil, fmt.Errorf("client %s requires encryption but no key provider is configured", clientID)
	}
	return c.keys.EncryptionKey(ctx, clientID)
}

func (c *JWTCodec) encrypt(ctx context.Context, clientID, signed string) (string, error) {
	key, err := c.encryptionKey(ctx, clientID)
	if err != nil {
		return "", fmt.Errorf("encryption key: %w", err)
	}
	opts := (&jose.EncrypterOptions{}).WithContentType("JWT").WithType("JWT")
	enc, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{Algorithm: jose.DIRECT, Key: key}, opts)
	if err != nil {
		return "", fmt.Errorf("create encrypter: %w", err)
	}
	obj, err := enc.Encrypt([]byte(signed))
	if err != nil {
		return "", fmt.Errorf("encrypt token: %w", err)
	}
	return obj.CompactSerialize()
}

// Decode implements service.TokenCodec. Signature problems are reported before
// expiry, so a tampered expired token is INVALID_SECRET.
func (c *JWTCodec) Decode(ctx context.Context, token string, cfg *models.ClientConfiguration) (res models.DecodeResult) {
	defer func() {
		if r := recover(); r != nil {
			res = models.DecodeResult{Outcome: models.OutcomeUnknownError, Err: fmt.Errorf("decode panic: %v", r)}
		}
	}()

	if cfg == nil {
		return models.DecodeResult{Outcome: models.OutcomeUnknownError, Err: stderrors.New("nil client configuration")}
	}
	if token == "" {
		return models.DecodeResult{Outcome: models.OutcomeInvalidFormat, Err: stderrors.New("empty token")}
	}

	if cfg.UseEncryption {
		plain, res, ok := c.decrypt(ctx, token, cfg.ClientID)
		if !ok {
			return res
		}
		token = plain
	}

	if strings.Count(token, ".") != 2 {
		return models.DecodeResult{Outcome: models.OutcomeInvalidFormat, Err: jwt.ErrTokenMalformed}
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{string(cfg.SignatureAlgorithm)}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.clock),
	)

	// header and payload must parse before the signature is considered
	if _, _, err := parser.ParseUnverified(token, jwt.MapClaims{}); err != nil {
		return models.DecodeResult{Outcome: models.OutcomeInvalidFormat, Err: err}
	}

	mc := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(token, mc, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.SigningSecret), nil
	})
	if err != nil {
		return models.DecodeResult{Outcome: classify(err), Err: err}
	}

	return models.DecodeResult{Outcome: models.OutcomeCorrect, Claims: normalize(mc)}
}

func (c *JWTCodec) decrypt(ctx context.Context, token, clientID string) (string, models.DecodeResult, bool) {
	if strings.Count(token, ".") != 4 {
		return "", models.DecodeResult{Outcome: models.OutcomeInvalidFormat, Err: stderrors.New("expected a compact JWE")}, false
	}
	obj, err := jose.ParseEncrypted(token, []jose.KeyAlgorithm{jose.DIRECT}, []jose.ContentEncryption{jose.A256GCM})
	if err != nil {
		return "", models.DecodeResult{Outcome: models.OutcomeInvalidFormat, Err: err}, false
	}
	key, err := c.encryptionKey(ctx, clientID)
	if err != nil {
		c.log.Warn(ctx, "encryption key unavailable", logger.String("client_id", clientID), logger.Err(err))
		return "", models.DecodeResult{Outcome: models.OutcomeUnknownError, Err: err}, false
	}
	plain, err := obj.Decrypt(key)
	if err != nil {
		return "", models.DecodeResult{Outcome: models.OutcomeInvalidSecret, Err: err}, false
	}
	return string(plain), models.DecodeResult{}, true
}

// classify maps parser errors that remain after the structure check.
// A malformed error at this point can only come from the signature segment.
func classify(err error) models.VerificationOutcome {
	switch {
	case stderrors.Is(err, jwt.ErrTokenSignatureInvalid),
		stderrors.Is(err, jwt.ErrTokenMalformed):
		return models.OutcomeInvalidSecret
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return models.OutcomeExpired
	default:
		return models.OutcomeUnknownError
	}
}

// normalize turns JSON-decoded values back into the shapes claims generators produce:
// whole numbers become int64 and string arrays become []string.
func normalize(mc jwt.MapClaims) models.Claims {
	out := make(models.Claims, len(mc))
	for k, v := range mc {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case []interface{}:
		strs := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				mixed := make([]interface{}, len(x))
				for i, e := range x {
					mixed[i] = normalizeValue(e)
				}
				return mixed
			}
			strs = append(strs, s)
		}
		return strs
	default:
		return v
	}
}
