package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/service"
	"github.com/turtacn/tenantjwt/pkg/errors"
)

func TestApplyVerificationPolicy(t *testing.T) {
	tests := []struct {
		name       string
		result     models.DecodeResult
		wantKind   errors.Kind
		wantReason string
	}{
		{"expired", models.DecodeResult{Outcome: models.OutcomeExpired}, errors.KindTokenExpired, ""},
		{"invalid secret", models.DecodeResult{Outcome: models.OutcomeInvalidSecret, Err: assert.AnError}, errors.KindUnauthorized, errors.ReasonInvalidSecret},
		{"invalid format", models.DecodeResult{Outcome: models.OutcomeInvalidFormat}, errors.KindUnauthorized, errors.ReasonInvalidFormat},
		{"unknown", models.DecodeResult{Outcome: models.OutcomeUnknownError, Err: assert.AnError}, errors.KindUnauthorized, errors.ReasonUnknownError},
		{"correct without claims", models.DecodeResult{Outcome: models.OutcomeCorrect}, errors.KindUnauthorized, errors.ReasonUnknownError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ApplyVerificationPolicy(tt.result)
			assert.Nil(t, claims)
			ae, ok := errors.AsAuthError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, ae.Kind())
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, ae.Metadata()[errors.MetaReason])
			}

			// the public rendering never names the sub-case
			resp := errors.ToErrorResponse(err)
			assert.NotContains(t, resp.ErrorDescription, "secret")
			assert.NotContains(t, resp.ErrorDescription, "format")
		})
	}
}

func TestApplyVerificationPolicy_Correct(t *testing.T) {
	claims, err := service.ApplyVerificationPolicy(models.DecodeResult{
		Outcome: models.OutcomeCorrect,
		Claims:  models.Claims{"username": "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username())
}

func TestApplyVerificationPolicy_UnauthorizedSubcasesLookAlike(t *testing.T) {
	_, errSecret := service.ApplyVerificationPolicy(models.DecodeResult{Outcome: models.OutcomeInvalidSecret})
	_, errFormat := service.ApplyVerificationPolicy(models.DecodeResult{Outcome: models.OutcomeInvalidFormat})
	assert.Equal(t, errors.ToErrorResponse(errSecret), errors.ToErrorResponse(errFormat))
}
