// Package dto holds the request and response shapes of the token engine's operations.
package dto

// IssueTokenRequest 令牌颁发请求 DTO
// ClientID is not validated here: an empty or unknown client resolves to ClientNotFound.
type IssueTokenRequest struct {
	ClientID string `json:"clientId"`
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=1024"`
}

// VerifyTokenRequest 令牌验证请求 DTO
// An empty token is rejected by the codec as malformed, not by validation.
type VerifyTokenRequest struct {
	ClientID string `json:"clientId"`
	Token    string `json:"token"`
}

// RefreshTokenRequest 令牌刷新请求 DTO
type RefreshTokenRequest struct {
	ClientID     string `json:"clientId"`
	RefreshToken string `json:"refreshToken"`
}

// BlacklistRequest 黑名单变更请求 DTO
type BlacklistRequest struct {
	ClientID string `json:"clientId" validate:"required,clientid"`
	Username string `json:"username" validate:"required,max=255"`
	Reason   string `json:"reason" validate:"omitempty,max=256"`
}

// TokenResponse 令牌响应 DTO
type TokenResponse struct {
	AccessToken      string                 `json:"accessToken"`
	RefreshToken     string                 `json:"refreshToken"`
	TokenType        string                 `json:"tokenType"`
	ExpiresInSeconds int64                  `json:"expiresInSeconds"`
	JWTID            string                 `json:"jwtId"`
	AdditionalInfo   map[string]interface{} `json:"additionalInfo"`
}

// VerifyTokenResponse 令牌验证响应 DTO
type VerifyTokenResponse struct {
	Valid  bool                   `json:"valid"`
	Claims map[string]interface{} `json:"claims"`
}

// BlacklistResponse 黑名单变更响应 DTO
type BlacklistResponse struct {
	ClientID string `json:"clientId"`
	Username string `json:"username"`
	Blocked  bool   `json:"blocked"`
	Changed  bool   `json:"changed"`
}

// InvalidateClientResponse 客户端缓存失效响应 DTO
type InvalidateClientResponse struct {
	ClientID    string `json:"clientId"`
	Invalidated bool   `json:"invalidated"`
}
