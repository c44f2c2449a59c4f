package errors

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToErrorResponse_LoginFailures(t *testing.T) {
	missing := ToErrorResponse(ErrUserNotFound("acme", "mallory"))
	wrong := ToErrorResponse(ErrInvalidCredentials("password mismatch"))

	assert.Equal(t, missing.Error, wrong.Error)
	assert.Equal(t, missing.ErrorDescription, wrong.ErrorDescription)
	assert.Equal(t, HTTPStatusOf(ErrUserNotFound("acme", "mallory")), HTTPStatusOf(ErrInvalidCredentials("x")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatusOf(ErrInvalidCredentials("x")))

	assert.Equal(t, string(KindUserNotFound), missing.Kind)
	assert.Equal(t, string(KindInvalidCredentials), wrong.Kind)
	assert.NotContains(t, missing.ErrorDescription, "mallory")
}

func TestToErrorResponse_HidesUnauthorizedSubCase(t *testing.T) {
	for _, reason := range []string{ReasonInvalidSecret, ReasonInvalidFormat, ReasonUnknownError, ReasonBlacklisted} {
		resp := ToErrorResponse(ErrUnauthorized(reason).WithCause(context.Canceled))
		assert.Equal(t, OAuthInvalidToken, resp.Error, reason)
		assert.Equal(t, "token is not valid", resp.ErrorDescription, reason)
		assert.Equal(t, string(KindUnauthorized), resp.Kind, reason)
		assert.False(t, resp.Retryable, reason)
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, ErrUpstreamTimeout("store").Retryable())
	assert.True(t, ErrRateLimited(0).Retryable())
	assert.False(t, ErrTokenExpired().Retryable())
	assert.False(t, ErrClientNotFound("acme").Retryable())
	assert.True(t, IsKind(FromContext(context.DeadlineExceeded, "store"), KindUpstreamTimeout))
}
