package utils

import (
	"context"
	"sync"
	"time"
)

const blacklistKeyPrefix = "aiblog:jwt:blacklist:"

var (
	blacklist   = map[string]time.Time{}
	blacklistMu sync.RWMutex
)

// BlacklistToken revokes a token ID until its natural expiration.
func BlacklistToken(tokenID string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if tokenID == "" || ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, blacklistKeyPrefix+tokenID, "1", ttl).Err(); err == nil {
			return
		}
		// keep the revocation locally when Redis is unreachable
	}
	blacklistMu.Lock()
	blacklist[tokenID] = expiresAt
	sweepBlacklistLocked(time.Now())
	blacklistMu.Unlock()
}

// IsTokenBlacklisted checks if a token ID was revoked before natural expiration.
func IsTokenBlacklisted(tokenID string) bool {
	if tokenID == "" {
		return false
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, blacklistKeyPrefix+tokenID).Result()
		if err == nil && n > 0 {
			return true
		}
		// fail open on Redis errors, then consult the local fallback
	}
	blacklistMu.RLock()
	expiresAt, ok := blacklist[tokenID]
	blacklistMu.RUnlock()
	return ok && time.Now().Before(expiresAt)
}

func sweepBlacklistLocked(now time.Time) {
	for id, exp := range blacklist {
		if now.After(exp) {
			delete(blacklist, id)
		}
	}
}
