package utils

import (
	"encoding/json"
	"time"
)

// SessionUser is the slice of a user the auth middleware needs on every request.
type SessionUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

const sessionUserTTL = 30 * time.Second

func sessionUserKey(id string) string { return "session:user:" + id }

// CachedSessionUser returns a recently loaded user, if any.
func CachedSessionUser(id string) (SessionUser, bool) {
	var su SessionUser
	raw, ok := kvGet(sessionUserKey(id))
	if !ok || json.Unmarshal([]byte(raw), &su) != nil {
		return SessionUser{}, false
	}
	return su, true
}

func CacheSessionUser(su SessionUser) {
	b, _ := json.Marshal(su)
	kvSet(sessionUserKey(su.ID), string(b), sessionUserTTL)
}

// InvalidateSessionUser forces the next request to reload role and status.
func InvalidateSessionUser(id string) {
	kvDel(sessionUserKey(id))
}
