package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/tenantjwt/internal/application/dto"
	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// ClaimsKey is the gin context key holding verified claims.
const ClaimsKey = "claims"

// TokenVerifier is the part of the application service the guard needs.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, req *dto.VerifyTokenRequest) (*dto.VerifyTokenResponse, error)
}

// extractBearer extracts the token from the Authorization header.
func extractBearer(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuthority protects routes with an access token issued to clientID that
// grants authority. Blacklisted users are rejected by the verification itself.
func RequireAuthority(verifier TokenVerifier, clientID, authority string, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractBearer(c.GetHeader("Authorization"))
		if tokenStr == "" {
			abort(c, errors.ErrUnauthorized(errors.ReasonInvalidFormat))
			return
		}

		resp, err := verifier.VerifyToken(c.Request.Context(), &dto.VerifyTokenRequest{ClientID: clientID, Token: tokenStr})
		if err != nil {
			log.Warn(c.Request.Context(), "Admin token rejected", logger.String("kind", string(errors.KindOf(err))))
			abort(c, err)
			return
		}

		if !hasAuthority(resp.Claims[constants.ClaimAuthorities], authority) {
			log.Warn(c.Request.Context(), "Admin token lacks authority",
				logger.String("username", stringClaim(resp.Claims, constants.ClaimUsername)),
				logger.String("authority", authority))
			abort(c, errors.ErrUnauthorized("missing authority"))
			return
		}

		c.Set(ClaimsKey, resp.Claims)
		c.Next()
	}
}

func hasAuthority(v interface{}, want string) bool {
	switch list := v.(type) {
	case []string:
		for _, a := range list {
			if a == want {
				return true
			}
		}
	case []interface{}:
		for _, a := range list {
			if s, ok := a.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func stringClaim(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errors.HTTPStatusOf(err), errors.ToErrorResponse(err))
}
