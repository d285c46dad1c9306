package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/eduboard/middleware"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/utils"
)

// AdminController exposes member management. Routes are behind AdminRequired.
type AdminController struct {
	users store.UserStore
}

func NewAdminController(users store.UserStore) *AdminController {
	return &AdminController{users: users}
}

// ListUsers returns paginated users, newest first.
func (a *AdminController) ListUsers(ctx *gin.Context) {
	page, pageSize := utils.ParsePagination(ctx)
	users, total, err := a.users.ListUsers(ctx.Request.Context(), page, pageSize)
	if err != nil {
		utils.Sugar.Errorw("list users failed", "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to retrieve users")
		return
	}
	items := make([]gin.H, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	utils.Success(ctx, utils.NewPageResult(items, page, pageSize, total))
}

// UpdateUser changes role, status, name or phone of a member.
func (a *AdminController) UpdateUser(ctx *gin.Context) {
	su, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		Role   *string `json:"role" binding:"omitempty,oneof=admin user"`
		Status *string `json:"status" binding:"omitempty,oneof=active blocked"`
		Name   *string `json:"name" binding:"omitempty,max=64"`
		Phone  *string `json:"phone" binding:"omitempty,e164"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid request payload")
		return
	}

	id := ctx.Param("id")
	if id == su.ID {
		if (req.Role != nil && *req.Role != models.RoleAdmin) || (req.Status != nil && *req.Status == models.StatusBlocked) {
			utils.Error(ctx, http.StatusBadRequest, 40061, "administrators cannot demote or block themselves")
			return
		}
	}

	c := ctx.Request.Context()
	user, err := a.users.GetUser(c, id)
	if err != nil {
		storeError(ctx, err, 60, "load user")
		return
	}

	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Status != nil {
		user.Status = *req.Status
	}
	if req.Name != nil {
		name := utils.StripTags(*req.Name)
		if name == "" {
			utils.Error(ctx, http.StatusBadRequest, 40062, "name cannot be empty")
			return
		}
		user.Name = name
	}
	if req.Phone != nil && *req.Phone != user.Phone {
		phone := strings.TrimSpace(*req.Phone)
		if other, err := a.users.GetUserByPhone(c, phone); err == nil && other.ID != user.ID {
			utils.Fail(ctx, http.StatusConflict, 40902, utils.ReasonPhoneInUse)
			return
		}
		user.Phone = phone
	}

	if err := a.users.UpdateUser(c, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.Fail(ctx, http.StatusConflict, 40902, utils.ReasonPhoneInUse)
			return
		}
		storeError(ctx, err, 61, "update user")
		return
	}

	// role and status are re-read on the member's next request
	utils.InvalidateSessionUser(user.ID)
	utils.InvalidatePostLists("")
	utils.Sugar.Infow("admin updated user", "admin_id", su.ID, "user_id", user.ID, "role", user.Role, "status", user.Status)

	utils.Success(ctx, userResponse(user))
}
