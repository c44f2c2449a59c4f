package service

import (
	"context"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// TokenService is the token lifecycle: issue, verify and refresh.
// TokenService 定义令牌生命周期：颁发、验证和刷新。
type TokenService interface {
	// Issue authenticates username/password against the tenant and signs a token pair.
	Issue(ctx context.Context, clientID, username, password string) (*models.TokenBundle, error)

	// Verify checks an access token and returns its claims.
	Verify(ctx context.Context, clientID, token string) (models.Claims, error)

	// Refresh exchanges a refresh token for a new token pair.
	Refresh(ctx context.Context, clientID, refreshToken string) (*models.TokenBundle, error)
}

var _ TokenService = (*tokenDomainService)(nil)

type tokenDomainService struct {
	registry  *StrategyRegistry
	configs   *ClientConfigurationCache
	blacklist *UserBlacklistCache
	codec     TokenCodec
	passwords PasswordVerifier
	log       logger.Logger
}

// NewTokenDomainService wires the lifecycle service.
func NewTokenDomainService(
	registry *StrategyRegistry,
	configs *ClientConfigurationCache,
	blacklist *UserBlacklistCache,
	codec TokenCodec,
	passwords PasswordVerifier,
	log logger.Logger,
) TokenService {
	return &tokenDomainService{
		registry:  registry,
		configs:   configs,
		blacklist: blacklist,
		codec:     codec,
		passwords: passwords,
		log:       log.WithComponent("token_service"),
	}
}

func (s *tokenDomainService) Issue(ctx context.Context, clientID, username, password string) (*models.TokenBundle, error) {
	// 1. Resolve the tenant's strategy
	strategy, err := s.registry.Resolve(clientID)
	if err != nil {
		return nil, err
	}

	// 2. Check credentials through the tenant's user lookup
	user, err := s.authenticate(ctx, strategy, username, password)
	if err != nil {
		return nil, err
	}

	// 3. Take one claims snapshot for both tokens
	raw, err := rawClaims(ctx, strategy, user)
	if err != nil {
		return nil, err
	}

	// 4. Load the signing configuration
	cfg, err := s.signingConfig(ctx, clientID)
	if err != nil {
		return nil, err
	}

	// 5. Sign
	return EncodeBundle(ctx, s.codec, raw, cfg)
}

func (s *tokenDomainService) authenticate(ctx context.Context, strategy AuthenticationStrategy, username, password string) (*models.UserRecord, error) {
	user, err := strategy.UserLookup.FindByUsername(ctx, username)
	if errors.Is(err, errors.ErrRecordNotFound) || (err == nil && user == nil) {
		return nil, errors.ErrUserNotFound(strategy.ClientID, username)
	}
	if err != nil {
		return nil, errors.FromContext(err, "user")
	}
	if !user.Enabled {
		return nil, errors.ErrInvalidCredentials("account disabled")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, errors.ErrInvalidCredentials("password mismatch").WithCause(err)
	}

	blocked, err := s.blacklist.Contains(ctx, strategy.ClientID, username)
	if err != nil {
		return nil, errors.FromContext(err, "blacklist")
	}
	if blocked {
		return nil, errors.ErrInvalidCredentials("account blocked")
	}
	return user, nil
}

func (s *tokenDomainService) signingConfig(ctx context.Context, clientID string) (*models.ClientConfiguration, error) {
	if clientID == "" {
		return nil, errors.ErrClientNotFound(clientID)
	}
	cfg, found, err := s.configs.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.ErrClientNotFound(clientID)
	}
	return cfg, nil
}

func (s *tokenDomainService) Verify(ctx context.Context, clientID, token string) (models.Claims, error) {
	claims, err := s.decode(ctx, clientID, token)
	if err != nil {
		return nil, err
	}
	if _, isRefresh := claims[constants.ClaimAccessTokenID]; isRefresh {
		return nil, errors.ErrUnauthorized(errors.ReasonWrongTokenUse)
	}
	if err := s.checkBlacklist(ctx, clientID, claims.Username()); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *tokenDomainService) Refresh(ctx context.Context, clientID, refreshToken string) (*models.TokenBundle, error) {
	claims, err := s.decode(ctx, clientID, refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.String(constants.ClaimAccessTokenID) == "" {
		return nil, errors.ErrUnauthorized(errors.ReasonWrongTokenUse)
	}
	username := claims.Username()
	if err := s.checkBlacklist(ctx, clientID, username); err != nil {
		return nil, err
	}

	strategy, err := s.registry.Resolve(clientID)
	if err != nil {
		return nil, err
	}
	user, err := strategy.UserLookup.FindByUsername(ctx, username)
	if errors.Is(err, errors.ErrRecordNotFound) || (err == nil && user == nil) {
		return nil, errors.ErrUserNotFound(clientID, username)
	}
	if err != nil {
		return nil, errors.FromContext(err, "user")
	}
	if !user.Enabled {
		return nil, errors.ErrInvalidCredentials("account disabled")
	}

	raw, err := rawClaims(ctx, strategy, user)
	if err != nil {
		return nil, err
	}
	cfg, err := s.signingConfig(ctx, clientID)
	if err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "refreshing session",
		logger.String("client_id", clientID),
		logger.String("previous_access_jti", claims.String(constants.ClaimAccessTokenID)))
	return EncodeBundle(ctx, s.codec, raw, cfg)
}

// rawClaims hands the loaded user to generators that accept it.
func rawClaims(ctx context.Context, strategy AuthenticationStrategy, user *models.UserRecord) (*models.RawClaims, error) {
	var (
		raw *models.RawClaims
		err error
	)
	if gen, ok := strategy.ClaimsGenerator.(UserClaimsGenerator); ok {
		raw, err = gen.RawClaimsFor(ctx, user)
	} else {
		raw, err = strategy.ClaimsGenerator.GetRawClaims(ctx, user.Username)
	}
	if err != nil {
		return nil, errors.FromContext(err, "claims generator")
	}
	return raw, nil
}

// decode verifies token and applies the verification policy. The blacklist is not consulted here.
func (s *tokenDomainService) decode(ctx context.Context, clientID, token string) (models.Claims, error) {
	cfg, err := s.signingConfig(ctx, clientID)
	if err != nil {
		return nil, err
	}
	res := s.codec.Decode(ctx, token, cfg)
	claims, err := ApplyVerificationPolicy(res)
	if err != nil {
		if res.Outcome != models.OutcomeExpired {
			s.log.Debug(ctx, "token rejected",
				logger.String("client_id", clientID),
				logger.String("outcome", res.Outcome.String()),
				logger.Err(res.Err))
		}
		return nil, err
	}
	return claims, nil
}

func (s *tokenDomainService) checkBlacklist(ctx context.Context, clientID, username string) error {
	blocked, err := s.blacklist.Contains(ctx, clientID, username)
	if err != nil {
		return errors.FromContext(err, "blacklist")
	}
	if blocked {
		return errors.ErrUnauthorized(errors.ReasonBlacklisted)
	}
	return nil
}

// EncodeBundle signs the access and refresh tokens from one claims snapshot.
// The refresh token carries the access token id so a refresh can be traced to its session.
func EncodeBundle(ctx context.Context, codec TokenCodec, raw *models.RawClaims, cfg *models.ClientConfiguration) (*models.TokenBundle, error) {
	access, err := codec.Encode(ctx, raw.Access, cfg, constants.TokenTypeAccess)
	if err != nil {
		return nil, errors.ErrInternal("failed to sign access token").WithCause(err)
	}

	refreshClaims := raw.Refresh.Clone()
	refreshClaims[constants.ClaimAccessTokenID] = access.JWTID
	refresh, err := codec.Encode(ctx, refreshClaims, cfg, constants.TokenTypeRefresh)
	if err != nil {
		return nil, errors.ErrInternal("failed to sign refresh token").WithCause(err)
	}

	return &models.TokenBundle{
		Username:   raw.Access.Username(),
		Access:     *access,
		Refresh:    *refresh,
		TokenType:  cfg.TokenType,
		Additional: raw.Additional.Clone(),
	}, nil
}
