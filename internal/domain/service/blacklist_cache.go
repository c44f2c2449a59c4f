package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

var clientIDPattern = regexp.MustCompile(constants.ClientIDPattern)

// blacklistMarker is the stored value; only key presence matters.
var blacklistMarker = []byte{1}

// UserBlacklistCache tracks blocked users per tenant.
// Absence of an entry means the user is not blocked.
// UserBlacklistCache 按租户记录被封禁的用户，条目不存在即表示未封禁。
type UserBlacklistCache struct {
	engine CacheEngine
	ttl    time.Duration
	log    logger.Logger
}

// NewUserBlacklistCache creates the cache. A zero ttl means entries only leave
// through Remove or capacity pressure in the engine.
func NewUserBlacklistCache(engine CacheEngine, ttl time.Duration, log logger.Logger) *UserBlacklistCache {
	return &UserBlacklistCache{
		engine: engine,
		ttl:    ttl,
		log:    log.WithComponent("blacklist_cache"),
	}
}

// BlacklistKey builds the composite key for a user of a tenant.
// Client ids cannot contain the separator, so the first separator after the
// prefix always splits the key back into the original pair.
func BlacklistKey(clientID, username string) (string, error) {
	if !clientIDPattern.MatchString(clientID) {
		return "", errors.ErrInvalidRequest(fmt.Sprintf("client id %q is not valid", clientID))
	}
	if username == "" {
		return "", errors.ErrInvalidRequest("username is required")
	}
	return constants.CacheKeyPrefixBlacklist + clientID + constants.BlacklistKeySeparator + username, nil
}

// SplitBlacklistKey is the inverse of BlacklistKey.
func SplitBlacklistKey(key string) (clientID, username string, ok bool) {
	rest, found := strings.CutPrefix(key, constants.CacheKeyPrefixBlacklist)
	if !found {
		return "", "", false
	}
	clientID, username, ok = strings.Cut(rest, constants.BlacklistKeySeparator)
	if !ok || !clientIDPattern.MatchString(clientID) || username == "" {
		return "", "", false
	}
	return clientID, username, true
}

// Contains reports whether username is blocked for clientID.
func (b *UserBlacklistCache) Contains(ctx context.Context, clientID, username string) (bool, error) {
	key, err := BlacklistKey(clientID, username)
	if err != nil {
		// a pair that can never be stored can never be blocked
		return false, nil
	}
	return b.engine.Contains(ctx, key)
}

// Put blocks username for clientID.
func (b *UserBlacklistCache) Put(ctx context.Context, clientID, username string) error {
	key, err := BlacklistKey(clientID, username)
	if err != nil {
		return err
	}
	if err := b.engine.Put(ctx, key, blacklistMarker, b.ttl); err != nil {
		return err
	}
	b.log.Info(ctx, "user blocked", logger.String("client_id", clientID), logger.String("username", username))
	return nil
}

// Remove unblocks username for clientID and reports whether it was blocked.
func (b *UserBlacklistCache) Remove(ctx context.Context, clientID, username string) (bool, error) {
	key, err := BlacklistKey(clientID, username)
	if err != nil {
		return false, err
	}
	removed, err := b.engine.Remove(ctx, key)
	if err != nil {
		return false, err
	}
	if removed {
		b.log.Info(ctx, "user unblocked", logger.String("client_id", clientID), logger.String("username", username))
	}
	return removed, nil
}
