package utils

import "time"

func blacklistKey(token string) string {
	return "jwt:blacklist:" + token
}

// BlacklistToken revokes a token until its natural expiration.
func BlacklistToken(token string, expiresAt time.Time) {
	ttl := expiresAt.Sub(nowFunc())
	if ttl <= 0 {
		return
	}
	kvSet(blacklistKey(token), "1", ttl)
}

// IsTokenBlacklisted checks if a token was revoked before natural expiration.
func IsTokenBlacklisted(token string) bool {
	return kvExists(blacklistKey(token))
}
