package models

import "github.com/turtacn/tenantjwt/pkg/constants"

// Claims is a set of token claims. Values are JSON scalars or arrays of scalars.
type Claims map[string]interface{}

// Clone returns a shallow copy so callers can add keys without touching the source.
func (c Claims) Clone() Claims {
	out := make(Claims, len(c)+4)
	for k, v := range c {
		out[k] = v
	}
	return out
}

// String returns the string value of key, or "" when absent or not a string.
func (c Claims) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Username returns the reserved username claim.
func (c Claims) Username() string {
	return c.String(constants.ClaimUsername)
}

// RawClaims is what a tenant's claims generator produces for one user.
// It is request-scoped and never shared between issuances.
// RawClaims 是租户的声明生成器为单个用户生成的声明，仅在单次请求内有效。
type RawClaims struct {
	// Access is embedded in the access token.
	Access Claims
	// Refresh is embedded in the refresh token.
	Refresh Claims
	// Additional is returned to the caller but never signed.
	Additional Claims
}
