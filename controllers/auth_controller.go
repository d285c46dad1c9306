package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/middleware"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/utils"
)

// phoneTokenTTL bounds the gap between verifying the phone and submitting the form.
const phoneTokenTTL = 30 * time.Minute

// AuthController handles registration, sessions and third-party sign-in.
type AuthController struct {
	users store.UserStore
	sms   utils.SMSSender
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(users store.UserStore, sms utils.SMSSender) *AuthController {
	return &AuthController{users: users, sms: sms}
}

// Captcha returns a fresh captcha id and base64 image (data URI)
func (a *AuthController) Captcha(ctx *gin.Context) {
	id, b64, err := utils.GenerateCaptcha()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to generate captcha")
		return
	}
	utils.Success(ctx, gin.H{"captcha_id": id, "image": b64})
}

// SendPhoneCode starts a phone challenge: bot-check, send limits, then the SMS itself.
func (a *AuthController) SendPhoneCode(ctx *gin.Context) {
	var req struct {
		Phone         string `json:"phone" binding:"required,e164"`
		CaptchaID     string `json:"captcha_id"`
		CaptchaAnswer string `json:"captcha_answer"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "a valid phone number in international format is required")
		return
	}

	cfg := config.Get()
	if cfg.RegisterCaptchaEnabled && !utils.VerifyCaptcha(req.CaptchaID, strings.TrimSpace(req.CaptchaAnswer)) {
		utils.Fail(ctx, http.StatusBadRequest, 40011, utils.ReasonCaptchaInvalid)
		return
	}

	if _, err := a.users.GetUserByPhone(ctx.Request.Context(), req.Phone); err == nil {
		utils.Fail(ctx, http.StatusConflict, 40902, utils.ReasonPhoneInUse)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		storeError(ctx, err, 11, "lookup phone")
		return
	}

	cooldown := time.Duration(cfg.PhoneCodeCooldownSec) * time.Second
	if !utils.PhoneSendAllowed(req.Phone, cooldown, cfg.PhoneCodeMaxPerDay) {
		utils.Fail(ctx, http.StatusTooManyRequests, 42910, utils.ReasonTooManyRequests)
		return
	}

	code := utils.GenerateVerificationCode(6)
	if err := a.sms.SendCode(ctx.Request.Context(), req.Phone, code); err != nil {
		switch {
		case errors.Is(err, utils.ErrSMSRateLimited):
			utils.Fail(ctx, http.StatusTooManyRequests, 42911, utils.ReasonTooManyRequests)
		case errors.Is(err, utils.ErrSMSQuotaExceeded):
			utils.Fail(ctx, http.StatusServiceUnavailable, 50310, utils.ReasonQuotaExceeded)
		default:
			utils.Sugar.Errorw("send sms failed", "phone", utils.MaskPhone(req.Phone), "err", err)
			utils.Error(ctx, http.StatusBadGateway, 50210, utils.Message(""))
		}
		return
	}

	ttl := time.Duration(cfg.PhoneCodeTTLSeconds) * time.Second
	id := utils.StartPhoneChallenge(req.Phone, code, ttl)
	utils.Success(ctx, gin.H{
		"verification_id": id,
		"expires_in":      int(ttl.Seconds()),
	})
}

// VerifyPhoneCode checks the typed code and hands out a single-use phone token.
func (a *AuthController) VerifyPhoneCode(ctx *gin.Context) {
	var req struct {
		VerificationID string `json:"verification_id" binding:"required"`
		Code           string `json:"code" binding:"required,numeric,len=6"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, http.StatusBadRequest, 40012, utils.ReasonInvalidCode)
		return
	}

	phone, err := utils.CheckPhoneChallenge(req.VerificationID, req.Code, config.Get().PhoneCodeMaxAttempts)
	switch {
	case errors.Is(err, utils.ErrCodeInvalid):
		utils.Fail(ctx, http.StatusBadRequest, 40013, utils.ReasonInvalidCode)
		return
	case errors.Is(err, utils.ErrCodeExpired):
		utils.Fail(ctx, http.StatusBadRequest, 40014, utils.ReasonCodeExpired)
		return
	case errors.Is(err, utils.ErrTooManyRequests):
		utils.Fail(ctx, http.StatusTooManyRequests, 42912, utils.ReasonTooManyRequests)
		return
	case err != nil:
		utils.Error(ctx, http.StatusInternalServerError, 50011, utils.Message(""))
		return
	}

	utils.Success(ctx, gin.H{
		"phone":       phone,
		"phone_token": utils.IssuePhoneToken(phone, phoneTokenTTL),
	})
}

// Register creates the account once the phone has been verified.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Name       string `json:"name" binding:"required,max=64"`
		Email      string `json:"email" binding:"required,email,max=255"`
		Password   string `json:"password" binding:"required,password"`
		Confirm    string `json:"confirm" binding:"required"`
		Phone      string `json:"phone" binding:"required,e164"`
		PhoneToken string `json:"phone_token" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	if req.Password != req.Confirm {
		utils.Fail(ctx, http.StatusBadRequest, 40002, utils.ReasonPasswordMismatch)
		return
	}
	name := utils.StripTags(req.Name)
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40003, "name cannot be empty")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Anti-abuse: cooldown, per-IP daily limit, ban check
	ip := ctx.ClientIP()
	if utils.RegistrationIsBanned(ip) {
		utils.Fail(ctx, http.StatusTooManyRequests, 42920, utils.ReasonTooManyRequests)
		return
	}
	if !utils.RegistrationCooldownTry(ip) {
		utils.Fail(ctx, http.StatusTooManyRequests, 42921, utils.ReasonTooManyRequests)
		return
	}
	if !utils.RegistrationDailyLimitCheck(ip) {
		utils.Fail(ctx, http.StatusTooManyRequests, 42922, utils.ReasonTooManyRequests)
		return
	}

	c := ctx.Request.Context()
	// report conflicts before the phone token is spent, so the user can fix the email
	if _, err := a.users.GetUserByEmail(c, email); err == nil {
		utils.Fail(ctx, http.StatusConflict, 40901, utils.ReasonEmailInUse)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		storeError(ctx, err, 12, "lookup email")
		return
	}
	if _, err := a.users.GetUserByPhone(c, req.Phone); err == nil {
		utils.Fail(ctx, http.StatusConflict, 40902, utils.ReasonPhoneInUse)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		storeError(ctx, err, 13, "lookup phone")
		return
	}

	if !utils.ConsumePhoneToken(req.PhoneToken, req.Phone) {
		utils.RegistrationFailRecord(ip)
		utils.Fail(ctx, http.StatusBadRequest, 40004, utils.ReasonPhoneUnverified)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		Name:         name,
		Email:        email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Status:       models.StatusActive,
		RegisterIP:   ip,
	}
	if config.IsAdminEmail(email) {
		user.Role = models.RoleAdmin
	}

	if err := a.users.CreateUser(c, &user); err != nil {
		utils.RegistrationFailRecord(ip)
		if errors.Is(err, store.ErrDuplicate) {
			utils.Fail(ctx, http.StatusConflict, 40901, utils.ReasonEmailInUse)
			return
		}
		utils.Sugar.Errorw("create user failed", "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	// record success for per-day limit
	utils.RegistrationDailyIncrement(ip)
	utils.Sugar.Infow("user registered", "user_id", user.ID, "role", user.Role, "ip", ip)

	a.issueSession(ctx, &user)
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid request payload")
		return
	}

	user, err := a.users.GetUserByEmail(ctx.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		storeError(ctx, err, 3, "login lookup")
		return
	}
	// unknown email and wrong password look the same from outside
	if err != nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Fail(ctx, http.StatusUnauthorized, 40110, utils.ReasonWrongPassword)
		return
	}

	if user.IsBlocked() {
		if token, ok := middleware.BearerToken(ctx); ok {
			revoke(token)
		}
		utils.InvalidateSessionUser(user.ID)
		utils.Fail(ctx, http.StatusForbidden, 40301, utils.ReasonUserBlocked)
		return
	}

	a.issueSession(ctx, user)
}

func (a *AuthController) issueSession(ctx *gin.Context, user *models.User) {
	token, err := utils.GenerateToken(user.ID, user.Role, utils.TokenTTL())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{
		"token": token,
		"user":  userResponse(user),
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	if token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}
	revoke(token)
	if su, ok := middleware.CurrentUser(ctx); ok {
		utils.InvalidateSessionUser(su.ID)
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

func revoke(token string) {
	expiresAt := time.Now().Add(utils.TokenTTL())
	if claims, err := utils.ParseToken(token); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)
}

// Me restores the session: the current user with role and status.
func (a *AuthController) Me(ctx *gin.Context) {
	su, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	user, err := a.users.GetUser(ctx.Request.Context(), su.ID)
	if err != nil {
		storeError(ctx, err, 1, "load current user")
		return
	}

	utils.Success(ctx, userResponse(user))
}

// UpdateProfile allows the authenticated user to update basic profile fields.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	su, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req struct {
		Name      *string `json:"name" binding:"omitempty,max=64"`
		AvatarURL *string `json:"avatar_url" binding:"omitempty,max=512"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	c := ctx.Request.Context()
	user, err := a.users.GetUser(c, su.ID)
	if err != nil {
		storeError(ctx, err, 1, "load current user")
		return
	}

	renamed := false
	if req.Name != nil {
		name := utils.StripTags(*req.Name)
		if name == "" {
			utils.Error(ctx, http.StatusBadRequest, 40031, "name cannot be empty")
			return
		}
		renamed = name != user.Name
		user.Name = name
	}
	if req.AvatarURL != nil {
		avatar := strings.TrimSpace(*req.AvatarURL)
		if avatar != "" && !strings.HasPrefix(avatar, "https://") && !strings.HasPrefix(avatar, "/") {
			utils.Error(ctx, http.StatusBadRequest, 40032, "avatar must be an https or site-relative url")
			return
		}
		user.AvatarURL = avatar
	}

	if err := a.users.UpdateUser(c, user); err != nil {
		utils.Sugar.Errorw("update profile failed", "user_id", user.ID, "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
		return
	}
	utils.InvalidateSessionUser(user.ID)
	if renamed {
		// author names are rendered into cached list pages
		utils.InvalidatePostLists("")
	}

	utils.Success(ctx, userResponse(user))
}
