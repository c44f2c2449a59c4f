package tenantjwt

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// TokenSource hands out a valid access token, refreshing it shortly before it
// expires and logging in again when the refresh token is rejected.
// It is safe for concurrent use.
type TokenSource struct {
	client   *Client
	username string
	password string
	skew     time.Duration

	mu    sync.Mutex
	token *Token
}

// NewTokenSource creates a source for one user. skew is how early before
// expiry the access token is renewed.
func NewTokenSource(client *Client, username, password string, skew time.Duration) *TokenSource {
	return &TokenSource{client: client, username: username, password: password, skew: skew}
}

// Token returns a usable token pair.
func (s *TokenSource) Token(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && !s.token.Expired(s.client.now(), s.skew) {
		return s.token, nil
	}

	if s.token != nil {
		tok, err := s.client.Refresh(ctx, s.token.RefreshToken)
		if err == nil {
			s.token = tok
			return tok, nil
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
			return nil, err
		}
	}

	tok, err := s.client.Issue(ctx, s.username, s.password)
	if err != nil {
		return nil, err
	}
	s.token = tok
	return tok, nil
}

// AccessToken returns just the bearer value.
func (s *TokenSource) AccessToken(ctx context.Context) (string, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
