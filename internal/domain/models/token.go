package models

import (
	"time"

	"github.com/turtacn/tenantjwt/pkg/constants"
)

// IssuedToken is a signed (and optionally encrypted) token produced by the codec.
// IssuedToken 是编解码器生成的已签名（可选加密）令牌。
type IssuedToken struct {
	Raw       string
	JWTID     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Type      constants.TokenType
}

// IsExpiredAt reports whether the token is expired at now.
// A token is valid only while now is strictly before ExpiresAt, compared in whole seconds.
func (t *IssuedToken) IsExpiredAt(now time.Time) bool {
	return !now.UTC().Truncate(time.Second).Before(t.ExpiresAt.UTC().Truncate(time.Second))
}

// TimeUntilExpiry returns the remaining lifetime, zero once expired.
func (t *IssuedToken) TimeUntilExpiry(now time.Time) time.Duration {
	if t.IsExpiredAt(now) {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}

// TokenBundle is the result of one issuance.
type TokenBundle struct {
	Username   string
	Access     IssuedToken
	Refresh    IssuedToken
	TokenType  string
	Additional Claims
}

// ExpiresInSeconds is the access token lifetime as seen by the caller.
func (b *TokenBundle) ExpiresInSeconds() int64 {
	return int64(b.Access.ExpiresAt.Sub(b.Access.IssuedAt) / time.Second)
}

// VerificationOutcome classifies the result of decoding a token.
type VerificationOutcome int

const (
	OutcomeCorrect VerificationOutcome = iota
	OutcomeExpired
	OutcomeInvalidSecret
	OutcomeInvalidFormat
	OutcomeUnknownError
)

func (o VerificationOutcome) String() string {
	switch o {
	case OutcomeCorrect:
		return "CORRECT"
	case OutcomeExpired:
		return "EXPIRED"
	case OutcomeInvalidSecret:
		return "INVALID_SECRET"
	case OutcomeInvalidFormat:
		return "INVALID_FORMAT"
	default:
		return "UNKNOWN_ERROR"
	}
}

// DecodeResult carries the outcome of a decode. Claims are set only for OutcomeCorrect;
// Err holds the underlying failure for diagnostics.
type DecodeResult struct {
	Outcome VerificationOutcome
	Claims  Claims
	Err     error
}
