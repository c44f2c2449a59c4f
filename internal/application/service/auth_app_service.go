// Package service provides application-level services that orchestrate domain services and repositories
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/tenantjwt/internal/application/dto"
	"github.com/turtacn/tenantjwt/internal/domain/models"
	domainService "github.com/turtacn/tenantjwt/internal/domain/service"
	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
	"github.com/turtacn/tenantjwt/pkg/utils"
)

const tracerName = "github.com/turtacn/tenantjwt/internal/application/service"

// AuthAppService defines the interface for the token engine's public operations
type AuthAppService interface {
	// IssueToken authenticates a user of a tenant and returns a signed token pair
	IssueToken(ctx context.Context, req *dto.IssueTokenRequest) (*dto.TokenResponse, error)

	// VerifyToken checks an access token and returns its claims
	VerifyToken(ctx context.Context, req *dto.VerifyTokenRequest) (*dto.VerifyTokenResponse, error)

	// RefreshToken exchanges a refresh token for a new token pair
	RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)

	// BlockUser adds a user to the tenant's blacklist
	BlockUser(ctx context.Context, req *dto.BlacklistRequest) (*dto.BlacklistResponse, error)

	// UnblockUser removes a user from the tenant's blacklist
	UnblockUser(ctx context.Context, req *dto.BlacklistRequest) (*dto.BlacklistResponse, error)

	// InvalidateClient drops the cached configuration of a tenant
	InvalidateClient(ctx context.Context, clientID string) (*dto.InvalidateClientResponse, error)
}

// AuthAppServiceDeps groups the collaborators of the application service.
// Publisher may be nil when blacklist replication is disabled.
type AuthAppServiceDeps struct {
	Tokens        domainService.TokenService
	Configs       *domainService.ClientConfigurationCache
	Blacklist     *domainService.UserBlacklistCache
	Audit         domainService.AuditService
	Publisher     domainService.BlacklistPublisher
	Metrics       domainService.Metrics
	LookupTimeout time.Duration
	InstanceID    string
}

// authAppServiceImpl is the concrete implementation of AuthAppService
type authAppServiceImpl struct {
	tokens        domainService.TokenService
	configs       *domainService.ClientConfigurationCache
	blacklist     *domainService.UserBlacklistCache
	audit         domainService.AuditService
	publisher     domainService.BlacklistPublisher
	metrics       domainService.Metrics
	tracer        trace.Tracer
	lookupTimeout time.Duration
	instanceID    string
	logger        logger.Logger
}

// NewAuthAppService creates a new instance of AuthAppService
func NewAuthAppService(deps AuthAppServiceDeps, log logger.Logger) AuthAppService {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = domainService.NoopMetrics{}
	}
	timeout := deps.LookupTimeout
	if timeout <= 0 {
		timeout = constants.DefaultLookupTimeout
	}
	return &authAppServiceImpl{
		tokens:        deps.Tokens,
		configs:       deps.Configs,
		blacklist:     deps.Blacklist,
		audit:         deps.Audit,
		publisher:     deps.Publisher,
		metrics:       metrics,
		tracer:        otel.Tracer(tracerName),
		lookupTimeout: timeout,
		instanceID:    deps.InstanceID,
		logger:        log.WithComponent("AuthAppService"),
	}
}

// IssueToken implements token issuance
func (s *authAppServiceImpl) IssueToken(ctx context.Context, req *dto.IssueTokenRequest) (resp *dto.TokenResponse, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "AuthAppService.IssueToken", req.ClientID)
	defer func() {
		s.endSpan(span, err)
		s.metrics.RecordTokenIssue(req.ClientID, err == nil, time.Since(start), errorKind(err))
	}()

	// 1. Validate request payload
	if verr := utils.ValidateStruct(req); verr != nil {
		return nil, verr
	}

	// 2. Bound every collaborator call
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	// 3. Authenticate and sign
	bundle, err := s.tokens.Issue(ctx, req.ClientID, req.Username, req.Password)
	if err != nil {
		s.logger.Warn(ctx, "Token issuance failed",
			logger.String("client_id", req.ClientID),
			logger.String("username", req.Username),
			logger.String("kind", errorKind(err)))
		s.recordAudit(ctx, models.NewAuditEvent(constants.AuditEventLoginFailed, req.ClientID, req.Username, false).
			WithReason(errorKind(err)))
		return nil, err
	}

	// 4. Audit and respond
	s.recordAudit(ctx, models.NewAuditEvent(constants.AuditEventTokenIssued, req.ClientID, req.Username, true).
		WithJWTID(bundle.Access.JWTID))
	s.logger.Info(ctx, "Token issued",
		logger.String("client_id", req.ClientID),
		logger.String("username", req.Username),
		logger.String("jti", bundle.Access.JWTID))

	return toTokenResponse(bundle), nil
}

// VerifyToken implements access token verification
func (s *authAppServiceImpl) VerifyToken(ctx context.Context, req *dto.VerifyTokenRequest) (resp *dto.VerifyTokenResponse, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "AuthAppService.VerifyToken", req.ClientID)
	defer func() {
		s.endSpan(span, err)
		s.metrics.RecordTokenVerify(req.ClientID, verifyOutcome(err), time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	claims, err := s.tokens.Verify(ctx, req.ClientID, req.Token)
	if err != nil {
		if !errors.IsKind(err, errors.KindTokenExpired) {
			s.recordAudit(ctx, models.NewAuditEvent(constants.AuditEventTokenRejected, req.ClientID, "", false).
				WithReason(verifyOutcome(err)))
		}
		return nil, err
	}
	return &dto.VerifyTokenResponse{Valid: true, Claims: claims}, nil
}

// RefreshToken implements the refresh flow
func (s *authAppServiceImpl) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (resp *dto.TokenResponse, err error) {
	ctx, span := s.startSpan(ctx, "AuthAppService.RefreshToken", req.ClientID)
	defer func() {
		s.endSpan(span, err)
		s.metrics.RecordTokenRefresh(req.ClientID, err == nil, errorKind(err))
	}()

	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	bundle, err := s.tokens.Refresh(ctx, req.ClientID, req.RefreshToken)
	if err != nil {
		s.logger.Debug(ctx, "Token refresh failed",
			logger.String("client_id", req.ClientID),
			logger.String("kind", errorKind(err)))
		return nil, err
	}

	s.recordAudit(ctx, models.NewAuditEvent(constants.AuditEventTokenRefreshed, req.ClientID, bundle.Username, true).
		WithJWTID(bundle.Access.JWTID))

	return toTokenResponse(bundle), nil
}

// BlockUser implements blacklist insertion
func (s *authAppServiceImpl) BlockUser(ctx context.Context, req *dto.BlacklistRequest) (*dto.BlacklistResponse, error) {
	return s.changeBlacklist(ctx, req, true)
}

// UnblockUser implements blacklist removal
func (s *authAppServiceImpl) UnblockUser(ctx context.Context, req *dto.BlacklistRequest) (*dto.BlacklistResponse, error) {
	return s.changeBlacklist(ctx, req, false)
}

func (s *authAppServiceImpl) changeBlacklist(ctx context.Context, req *dto.BlacklistRequest, block bool) (resp *dto.BlacklistResponse, err error) {
	ctx, span := s.startSpan(ctx, "AuthAppService.ChangeBlacklist", req.ClientID)
	defer func() { s.endSpan(span, err) }()

	// 1. Validate request payload
	if verr := utils.ValidateStruct(req); verr != nil {
		return nil, verr
	}

	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	// 2. Apply locally
	var changed bool
	if block {
		present, cerr := s.blacklist.Contains(ctx, req.ClientID, req.Username)
		if cerr != nil {
			return nil, errors.FromContext(cerr, "blacklist")
		}
		if err = s.blacklist.Put(ctx, req.ClientID, req.Username); err != nil {
			return nil, errors.FromContext(err, "blacklist")
		}
		changed = !present
	} else {
		changed, err = s.blacklist.Remove(ctx, req.ClientID, req.Username)
		if err != nil {
			return nil, errors.FromContext(err, "blacklist")
		}
	}
	s.metrics.RecordBlacklistChange(req.ClientID, block)

	// 3. Replicate to peers; the local change stands even if publishing fails
	if s.publisher != nil {
		change := domainService.BlacklistChange{
			ClientID: req.ClientID,
			Username: req.Username,
			Blocked:  block,
			Origin:   s.instanceID,
			At:       time.Now().UTC(),
		}
		if perr := s.publisher.PublishBlacklistChange(ctx, change); perr != nil {
			s.logger.Warn(ctx, "Failed to publish blacklist change",
				logger.String("client_id", req.ClientID),
				logger.Err(perr))
		}
	}

	// 4. Audit
	eventType := constants.AuditEventUserUnblocked
	if block {
		eventType = constants.AuditEventUserBlocked
	}
	s.recordAudit(ctx, models.NewAuditEvent(eventType, req.ClientID, req.Username, true).WithReason(req.Reason))
	s.logger.Info(ctx, "Blacklist updated",
		logger.String("client_id", req.ClientID),
		logger.String("username", req.Username),
		logger.Bool("blocked", block),
		logger.Bool("changed", changed))

	return &dto.BlacklistResponse{
		ClientID: req.ClientID,
		Username: req.Username,
		Blocked:  block,
		Changed:  changed,
	}, nil
}

// InvalidateClient implements client configuration cache invalidation
func (s *authAppServiceImpl) InvalidateClient(ctx context.Context, clientID string) (*dto.InvalidateClientResponse, error) {
	if !utils.ValidClientID(clientID) {
		return nil, errors.ErrClientNotFound(clientID)
	}
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	removed, err := s.configs.Invalidate(ctx, clientID)
	if err != nil {
		return nil, errors.FromContext(err, "client configuration cache")
	}
	s.recordAudit(ctx, models.NewAuditEvent(constants.AuditEventClientInvalidate, clientID, "", true))
	return &dto.InvalidateClientResponse{ClientID: clientID, Invalidated: removed}, nil
}

// recordAudit never fails the calling operation.
func (s *authAppServiceImpl) recordAudit(ctx context.Context, event *models.AuditEvent) {
	if s.audit == nil {
		return
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		event.WithTraceID(sc.TraceID().String())
	}
	if err := s.audit.LogEvent(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn(ctx, "Failed to record audit event",
			logger.String("event_type", string(event.EventType)),
			logger.Err(err))
	}
}

func (s *authAppServiceImpl) startSpan(ctx context.Context, name, clientID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("client_id", clientID)))
}

func (s *authAppServiceImpl) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorKind(err))
	}
	span.End()
}

func toTokenResponse(b *models.TokenBundle) *dto.TokenResponse {
	additional := map[string]interface{}(b.Additional)
	if additional == nil {
		additional = map[string]interface{}{}
	}
	return &dto.TokenResponse{
		AccessToken:      b.Access.Raw,
		RefreshToken:     b.Refresh.Raw,
		TokenType:        b.TokenType,
		ExpiresInSeconds: b.ExpiresInSeconds(),
		JWTID:            b.Access.JWTID,
		AdditionalInfo:   additional,
	}
}

func errorKind(err error) string {
	if err == nil {
		return ""
	}
	return string(errors.KindOf(err))
}

// verifyOutcome labels a verification result with its decode outcome where one is known.
func verifyOutcome(err error) string {
	if err == nil {
		return models.OutcomeCorrect.String()
	}
	ae, ok := errors.AsAuthError(err)
	if !ok {
		return models.OutcomeUnknownError.String()
	}
	switch ae.Kind() {
	case errors.KindTokenExpired:
		return models.OutcomeExpired.String()
	case errors.KindUnauthorized:
		switch ae.Metadata()[errors.MetaReason] {
		case errors.ReasonInvalidSecret:
			return models.OutcomeInvalidSecret.String()
		case errors.ReasonInvalidFormat:
			return models.OutcomeInvalidFormat.String()
		case errors.ReasonBlacklisted:
			return "BLACKLISTED"
		case errors.ReasonWrongTokenUse:
			return "WRONG_TOKEN_USE"
		}
		return models.OutcomeUnknownError.String()
	}
	return string(ae.Kind())
}
