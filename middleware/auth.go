package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUserKey stores the utils.SessionUser of the caller.
	ContextUserKey = "session_user"
	// ContextTokenKey stores the raw bearer token, used by logout.
	ContextTokenKey = "bearer_token"
)

// BearerToken extracts the token from the Authorization header.
func BearerToken(ctx *gin.Context) (string, bool) {
	parts := strings.SplitN(ctx.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// AuthRequired ensures the request carries a valid JWT of an existing, active user.
// The user's status is re-read on every request (cached briefly), so a block takes
// effect on the next request: the token is revoked and the request rejected.
func AuthRequired(users store.UserStore) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader("Authorization") == "" {
			utils.Abort(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			return
		}
		tokenString, ok := BearerToken(ctx)
		if !ok {
			utils.Abort(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			return
		}

		if utils.IsTokenBlacklisted(tokenString) {
			utils.Abort(ctx, http.StatusUnauthorized, 40104, "token revoked")
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Abort(ctx, http.StatusUnauthorized, 40105, "invalid token")
			return
		}

		su, ok := utils.CachedSessionUser(claims.UserID)
		if !ok {
			u, err := users.GetUser(ctx.Request.Context(), claims.UserID)
			if errors.Is(err, store.ErrNotFound) {
				utils.Abort(ctx, http.StatusUnauthorized, 40106, "account no longer exists")
				return
			}
			if err != nil {
				utils.Sugar.Errorw("auth: load user failed", "user_id", claims.UserID, "err", err)
				utils.Abort(ctx, http.StatusInternalServerError, 50001, utils.Message(""))
				return
			}
			su = SessionUserOf(u)
			utils.CacheSessionUser(su)
		}

		if su.Status == models.StatusBlocked {
			var exp time.Time
			if claims.ExpiresAt != nil {
				exp = claims.ExpiresAt.Time
			}
			utils.BlacklistToken(tokenString, exp)
			utils.Sugar.Infow("revoked session of blocked user", "user_id", su.ID)
			utils.AbortReason(ctx, http.StatusForbidden, 40301, utils.ReasonUserBlocked)
			return
		}

		ctx.Set(ContextUserIDKey, su.ID)
		ctx.Set(ContextUserKey, su)
		ctx.Set(ContextTokenKey, tokenString)
		ctx.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if su, ok := CurrentUser(ctx); !ok || su.Role != models.RoleAdmin {
			utils.Abort(ctx, http.StatusForbidden, 40302, "admin privileges required")
			return
		}
		ctx.Next()
	}
}

// CurrentUser returns the authenticated caller.
func CurrentUser(ctx *gin.Context) (utils.SessionUser, bool) {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return utils.SessionUser{}, false
	}
	su, ok := v.(utils.SessionUser)
	return su, ok
}

func SessionUserOf(u *models.User) utils.SessionUser {
	return utils.SessionUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Status: u.Status}
}
