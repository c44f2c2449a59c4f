// Package errors defines the error taxonomy of the token engine.
// Every failure surfaced by Issue, Verify or Refresh resolves to exactly one Kind,
// which in turn maps to an OAuth 2.0 error code and an HTTP status.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ================================================================================
// Error Kinds
// ================================================================================

// Kind classifies an error into the engine's taxonomy
type Kind string

const (
	// KindClientNotFound means the client identifier is empty or not registered
	KindClientNotFound Kind = "client_not_found"

	// KindUserNotFound means the tenant's user lookup has no such username
	KindUserNotFound Kind = "user_not_found"

	// KindInvalidCredentials means the password did not verify or the account is disabled
	KindInvalidCredentials Kind = "invalid_credentials"

	// KindTokenExpired means the token verified but is past its expiry
	KindTokenExpired Kind = "token_expired"

	// KindUnauthorized covers bad signatures, malformed tokens, blacklisted users and unknown failures
	KindUnauthorized Kind = "unauthorized"

	// KindUpstreamTimeout means a store or lookup collaborator did not answer in time
	KindUpstreamTimeout Kind = "upstream_timeout"

	// KindInvalidRequest means the request failed input validation
	KindInvalidRequest Kind = "invalid_request"

	// KindRateLimited means the caller exceeded the request budget of the token endpoint
	KindRateLimited Kind = "rate_limited"

	// KindInternal is a configuration or programming fault
	KindInternal Kind = "internal_error"
)

// OAuth 2.0 error codes returned on the wire
const (
	OAuthInvalidRequest         = "invalid_request"
	OAuthInvalidClient          = "invalid_client"
	OAuthInvalidGrant           = "invalid_grant"
	OAuthInvalidToken           = "invalid_token"
	OAuthServerError            = "server_error"
	OAuthTemporarilyUnavailable = "temporarily_unavailable"
	OAuthSlowDown               = "slow_down"
)

// Unauthorized sub-cases. Kept in metadata for diagnostics only.
const (
	ReasonInvalidSecret = "invalid_secret"
	ReasonInvalidFormat = "invalid_format"
	ReasonUnknownError  = "unknown_error"
	ReasonBlacklisted   = "blacklisted"
	ReasonWrongTokenUse = "wrong_token_use"
)

// MetaReason is the metadata key holding the Unauthorized sub-case
const MetaReason = "reason"

// ErrRecordNotFound is returned by stores and user lookups when no record exists.
var ErrRecordNotFound = stderrors.New("record not found")

// ================================================================================
// Base Error Interface
// ================================================================================

// AuthError represents a structured error with additional metadata
type AuthError interface {
	error

	// Kind returns the taxonomy classification
	Kind() Kind

	// OAuthCode returns the OAuth 2.0 error code
	OAuthCode() string

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Description returns the public, caller-safe description
	Description() string

	// Retryable reports whether the caller may retry the same request
	Retryable() bool

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause returns a copy carrying cause in its chain
	WithCause(cause error) AuthError

	// WithMetadata returns a copy carrying an extra diagnostic key
	WithMetadata(key string, value interface{}) AuthError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

type baseError struct {
	kind        Kind
	oauthCode   string
	httpStatus  int
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface. The message may include internal detail and
// is meant for logs; use Description for anything returned to a caller.
func (e *baseError) Error() string {
	msg := e.message
	if msg == "" {
		msg = e.description
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *baseError) Kind() Kind { return e.kind }
func (e *baseError) OAuthCode() string { return e.oauthCode }
func (e *baseError) HTTPStatus() int { return e.httpStatus }
func (e *baseError) Description() string { return e.description }
func (e *baseError) Retryable() bool {
	return e.kind == KindUpstreamTimeout || e.kind == KindRateLimited
}
func (e *baseError) Unwrap() error { return e.cause }

// Is matches any AuthError of the same kind, so errors.Is(err, ErrTokenExpired()) works.
func (e *baseError) Is(target error) bool {
	t, ok := target.(*baseError)
	return ok && t.kind == e.kind
}

func (e *baseError) clone() *baseError {
	c := *e
	if e.metadata != nil {
		c.metadata = make(map[string]interface{}, len(e.metadata)+1)
		for k, v := range e.metadata {
			c.metadata[k] = v
		}
	}
	return &c
}

func (e *baseError) WithCause(cause error) AuthError {
	c := e.clone()
	c.cause = cause
	return c
}

func (e *baseError) WithMetadata(key string, value interface{}) AuthError {
	c := e.clone()
	if c.metadata == nil {
		c.metadata = make(map[string]interface{})
	}
	c.metadata[key] = value
	return c
}

func (e *baseError) Metadata() map[string]interface{} {
	if e.metadata == nil {
		return map[string]interface{}{}
	}
	return e.metadata
}

// NewError creates a new AuthError
func NewError(kind Kind, message string) AuthError {
	oauth, status, desc := classify(kind)
	return &baseError{
		kind:        kind,
		oauthCode:   oauth,
		httpStatus:  status,
		description: desc,
		message:     message,
	}
}

func classify(kind Kind) (oauthCode string, status int, description string) {
	switch kind {
	case KindClientNotFound:
		return OAuthInvalidClient, http.StatusUnauthorized, "client authentication failed"
	case KindUserNotFound, KindInvalidCredentials:
		// same code, status and description; only the kind field tells them apart
		return OAuthInvalidGrant, http.StatusBadRequest, "invalid username or password"
	case KindTokenExpired:
		return OAuthInvalidToken, http.StatusUnauthorized, "token has expired"
	case KindUnauthorized:
		return OAuthInvalidToken, http.StatusUnauthorized, "token is not valid"
	case KindUpstreamTimeout:
		return OAuthTemporarilyUnavailable, http.StatusServiceUnavailable, "upstream did not respond in time"
	case KindInvalidRequest:
		return OAuthInvalidRequest, http.StatusBadRequest, "the request is invalid"
	case KindRateLimited:
		return OAuthSlowDown, http.StatusTooManyRequests, "too many requests"
	default:
		return OAuthServerError, http.StatusInternalServerError, "internal server error"
	}
}

// ================================================================================
// Constructors
// ================================================================================

// ErrClientNotFound creates a client-not-found error
func ErrClientNotFound(clientID string) AuthError {
	return NewError(KindClientNotFound, fmt.Sprintf("client %q is not registered", clientID)).
		WithMetadata("client_id", clientID)
}

// ErrUserNotFound creates a user-not-found error
func ErrUserNotFound(clientID, username string) AuthError {
	return NewError(KindUserNotFound, fmt.Sprintf("user %q not found for client %q", username, clientID)).
		WithMetadata("client_id", clientID)
}

// ErrInvalidCredentials creates an invalid-credentials error
func ErrInvalidCredentials(reason string) AuthError {
	return NewError(KindInvalidCredentials, "invalid credentials: "+reason)
}

// ErrTokenExpired creates a token-expired error
func ErrTokenExpired() AuthError {
	return NewError(KindTokenExpired, "token has expired")
}

// ErrUnauthorized creates an unauthorized error carrying its sub-case in metadata
func ErrUnauthorized(reason string) AuthError {
	return NewError(KindUnauthorized, "unauthorized: "+reason).WithMetadata(MetaReason, reason)
}

// ErrUpstreamTimeout creates an upstream-timeout error for the named collaborator
func ErrUpstreamTimeout(upstream string) AuthError {
	return NewError(KindUpstreamTimeout, upstream+" lookup timed out").WithMetadata("upstream", upstream)
}

// ErrInvalidRequest creates a validation error
func ErrInvalidRequest(message string) AuthError {
	return NewError(KindInvalidRequest, message)
}

// ErrRateLimited creates a rate limited error; retryAfter is kept in metadata
func ErrRateLimited(retryAfter time.Duration) AuthError {
	return NewError(KindRateLimited, "rate limit exceeded").WithMetadata("retry_after", retryAfter.String())
}

// ErrInternal creates an internal error
func ErrInternal(message string) AuthError {
	return NewError(KindInternal, message)
}

// ================================================================================
// Helper Functions
// ================================================================================

// AsAuthError extracts an AuthError from err's chain
func AsAuthError(err error) (AuthError, bool) {
	var ae AuthError
	if stderrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	ae, ok := AsAuthError(err)
	return ok && ae.Kind() == kind
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	if ae, ok := AsAuthError(err); ok {
		return ae.Kind()
	}
	return KindInternal
}

// FromContext converts a collaborator failure into the taxonomy: deadline and
// cancellation become UpstreamTimeout, AuthErrors pass through, anything else is Internal.
func FromContext(err error, upstream string) AuthError {
	if err == nil {
		return nil
	}
	if ae, ok := AsAuthError(err); ok {
		return ae
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return ErrUpstreamTimeout(upstream).WithCause(err)
	}
	return ErrInternal(upstream + " lookup failed").WithCause(err)
}

// Is and As re-export the standard library helpers so callers need one import
func Is(err, target error) bool     { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }

// Wrap annotates err with a message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ================================================================================
// Error Response
// ================================================================================

// ErrorResponse is the OAuth 2.0 style error body
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Kind             string `json:"kind"`
	Retryable        bool   `json:"retryable,omitempty"`
}

// ToErrorResponse renders err for a caller. Metadata and causes are never included.
func ToErrorResponse(err error) ErrorResponse {
	ae, ok := AsAuthError(err)
	if !ok {
		ae = ErrInternal("unexpected error")
	}
	return ErrorResponse{
		Error:            ae.OAuthCode(),
		ErrorDescription: ae.Description(),
		Kind:             string(ae.Kind()),
		Retryable:        ae.Retryable(),
	}
}

// HTTPStatusOf returns the HTTP status for err
func HTTPStatusOf(err error) int {
	if ae, ok := AsAuthError(err); ok {
		return ae.HTTPStatus()
	}
	return http.StatusInternalServerError
}
