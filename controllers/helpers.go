package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/objstore"
	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/utils"
)

// authorView is the public face of a post or comment author.
type authorView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// resolveAuthors loads the given users in one query. Missing ids are simply absent.
func resolveAuthors(ctx context.Context, users store.UserStore, ids []string) map[string]authorView {
	out := make(map[string]authorView, len(ids))
	ids = utils.UniqueStrings(ids)
	if len(ids) == 0 {
		return out
	}
	found, err := users.GetUsersByIDs(ctx, ids)
	if err != nil {
		utils.Sugar.Warnw("resolve authors failed", "err", err)
		return out
	}
	for _, u := range found {
		out[u.ID] = authorView{ID: u.ID, Name: u.Name, Email: utils.MaskEmail(u.Email)}
	}
	return out
}

// authorOf falls back to a placeholder when the author no longer exists.
func authorOf(authors map[string]authorView, id string) authorView {
	if a, ok := authors[id]; ok {
		return a
	}
	return authorView{ID: id, Name: models.UnknownAuthorName}
}

// userResponse is what a user sees about their own account, or an admin about anyone.
func userResponse(u *models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"phone":      u.Phone,
		"provider":   u.Provider,
		"avatar_url": u.AvatarURL,
		"role":       u.Role,
		"status":     u.Status,
		"is_admin":   u.IsAdmin(),
		"created_at": u.CreatedAt,
	}
}

// fileURL is the stable service URL for an object; it redirects to a presigned link.
func fileURL(key string) string {
	return strings.TrimRight(config.Get().PublicBaseURL, "/") + "/api/v1/files/" + key
}

// removeObjects deletes objects best-effort, detached from the request.
func removeObjects(objects objstore.Interface, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := objects.Delete(ctx, key); err != nil {
			utils.Sugar.Warnw("delete object failed", "key", key, "err", err)
		}
	}
}

// storeError answers a failed store call: 404 for missing records, 500 otherwise.
func storeError(ctx *gin.Context, err error, code int, op string) {
	if errors.Is(err, store.ErrNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40400+code%100, "not found")
		return
	}
	utils.Sugar.Errorw(op+" failed", "err", err)
	utils.Error(ctx, http.StatusInternalServerError, 50000+code%100, utils.Message(""))
}

func isAdmin(su utils.SessionUser) bool { return su.Role == models.RoleAdmin }
