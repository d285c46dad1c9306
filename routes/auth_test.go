package routes

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/utils"
)

type sessionResponse struct {
	Token string `json:"token"`
	User  struct {
		ID     string `json:"id"`
		Email  string `json:"email"`
		Phone  string `json:"phone"`
		Role   string `json:"role"`
		Status string `json:"status"`
	} `json:"user"`
}

// verifyPhone runs send + verify for phone and returns the phone token.
func (e *testEnv) verifyPhone(t *testing.T, phone string) string {
	t.Helper()
	var code string
	e.sms.On("SendCode", mock.Anything, phone, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { code = args.String(2) }).
		Return(nil).Once()

	w := e.do(t, http.MethodPost, "/api/v1/auth/phone/send", gin.H{"phone": phone}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sent struct {
		VerificationID string `json:"verification_id"`
		ExpiresIn      int    `json:"expires_in"`
	}
	decode(t, w, &sent)
	require.NotEmpty(t, sent.VerificationID)
	require.Len(t, code, 6)

	w = e.do(t, http.MethodPost, "/api/v1/auth/phone/verify", gin.H{
		"verification_id": sent.VerificationID,
		"code":            code,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var verified struct {
		Phone      string `json:"phone"`
		PhoneToken string `json:"phone_token"`
	}
	decode(t, w, &verified)
	require.Equal(t, phone, verified.Phone)
	return verified.PhoneToken
}

func registerBody(name, email, phone, phoneToken string) gin.H {
	return gin.H{
		"name":        name,
		"email":       email,
		"password":    testPassword,
		"confirm":     testPassword,
		"phone":       phone,
		"phone_token": phoneToken,
	}
}

func TestRegister_FullPhoneFlow(t *testing.T) {
	e := newTestEnv(t)
	phone := "+821055500001"
	token := e.verifyPhone(t, phone)

	w := e.do(t, http.MethodPost, "/api/v1/auth/register",
		registerBody("Kim Teacher", "Kim@School.example.org", phone, token), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var session sessionResponse
	decode(t, w, &session)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "kim@school.example.org", session.User.Email)
	assert.Equal(t, phone, session.User.Phone)
	assert.Equal(t, models.RoleUser, session.User.Role)
	assert.Equal(t, models.StatusActive, session.User.Status)
	assert.EqualValues(t, 1, e.store.createUserCalls.Load())

	// the session restores on /me
	w = e.do(t, http.MethodGet, "/api/v1/auth/me", nil, session.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the phone token was spent by the registration
	w = e.do(t, http.MethodPost, "/api/v1/auth/register",
		registerBody("Kim Again", "kim2@school.example.org", phone, token), "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, utils.ReasonPhoneInUse, reasonOf(t, w))
	e.sms.AssertExpectations(t)
}

func TestRegister_AdminAllowListGrantsAdmin(t *testing.T) {
	e := newTestEnv(t)
	phone := "+821055500002"
	token := e.verifyPhone(t, phone)

	w := e.do(t, http.MethodPost, "/api/v1/auth/register",
		registerBody("Office", "admin@teachers.example.org", phone, token), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var session sessionResponse
	decode(t, w, &session)
	assert.Equal(t, models.RoleAdmin, session.User.Role)
}

func TestRegister_WithoutVerifiedPhoneCreatesNothing(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/v1/auth/register",
		registerBody("Lee", "lee@school.example.org", "+821055500003", "made-up-token"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.ReasonPhoneUnverified, reasonOf(t, w))

	// a token verified for a different phone does not count either
	other := e.verifyPhone(t, "+821055500004")
	w = e.do(t, http.MethodPost, "/api/v1/auth/register",
		registerBody("Lee", "lee@school.example.org", "+821055500003", other), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.ReasonPhoneUnverified, reasonOf(t, w))

	assert.EqualValues(t, 0, e.store.createUserCalls.Load())
}

func TestRegister_Conflicts(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "Existing", "taken@school.example.org", models.RoleUser)

	w := e.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"name":        "Park",
		"email":       "park@school.example.org",
		"password":    testPassword,
		"confirm":     "lesson2025",
		"phone":       "+821055500005",
		"phone_token": "x",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.ReasonPasswordMismatch, reasonOf(t, w))

	phone := "+821055500006"
	token := e.verifyPhone(t, phone)
	w = e.do(t, http.MethodPost, "/api/v1/auth/register",
		registerBody("Park", "taken@school.example.org", phone, token), "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, utils.ReasonEmailInUse, reasonOf(t, w))

	// the conflict did not spend the phone token
	w = e.do(t, http.MethodPost, "/api/v1/auth/register",
		registerBody("Park", "park@school.example.org", phone, token), "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, e.store.createUserCalls.Load())
}

func TestRegister_LookupFailureKeepsPhoneToken(t *testing.T) {
	e := newTestEnv(t)
	phone := "+821055500008"
	token := e.verifyPhone(t, phone)

	e.store.failEmailLookup.Store(true)
	w := e.do(t, http.MethodPost, "/api/v1/auth/register",
		registerBody("Seo", "seo@school.example.org", phone, token), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.EqualValues(t, 0, e.store.createUserCalls.Load())

	e.store.failEmailLookup.Store(false)
	w = e.do(t, http.MethodPost, "/api/v1/auth/register",
		registerBody("Seo", "seo@school.example.org", phone, token), "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRegister_WeakPasswordRejected(t *testing.T) {
	e := newTestEnv(t)
	body := registerBody("Choi", "choi@school.example.org", "+821055500007", "x")
	body["password"], body["confirm"] = "short", "short"

	w := e.do(t, http.MethodPost, "/api/v1/auth/register", body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40001, decode(t, w, nil).Code)
}

func TestSendPhoneCode_Failures(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/v1/auth/phone/send", gin.H{"phone": "010-1234"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.sms.On("SendCode", mock.Anything, "+821055500010", mock.Anything).Return(utils.ErrSMSQuotaExceeded).Once()
	w = e.do(t, http.MethodPost, "/api/v1/auth/phone/send", gin.H{"phone": "+821055500010"}, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, utils.ReasonQuotaExceeded, reasonOf(t, w))

	e.sms.On("SendCode", mock.Anything, "+821055500011", mock.Anything).Return(utils.ErrSMSRateLimited).Once()
	w = e.do(t, http.MethodPost, "/api/v1/auth/phone/send", gin.H{"phone": "+821055500011"}, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, utils.ReasonTooManyRequests, reasonOf(t, w))

	// a second request inside the cooldown never reaches the gateway
	e.verifyPhone(t, "+821055500012")
	w = e.do(t, http.MethodPost, "/api/v1/auth/phone/send", gin.H{"phone": "+821055500012"}, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, utils.ReasonTooManyRequests, reasonOf(t, w))

	u, _ := e.seedUser(t, "Has Phone", "hasphone@school.example.org", models.RoleUser)
	u.Phone = "+821055500013"
	require.NoError(t, e.store.UpdateUser(context.Background(), u))
	w = e.do(t, http.MethodPost, "/api/v1/auth/phone/send", gin.H{"phone": "+821055500013"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, utils.ReasonPhoneInUse, reasonOf(t, w))

	e.sms.AssertExpectations(t)
	e.sms.AssertNumberOfCalls(t, "SendCode", 3)
}

func TestVerifyPhoneCode_DistinguishesFailures(t *testing.T) {
	e := newTestEnv(t)
	phone := "+821055500020"
	var code string
	e.sms.On("SendCode", mock.Anything, phone, mock.Anything).
		Run(func(args mock.Arguments) { code = args.String(2) }).
		Return(nil).Once()

	w := e.do(t, http.MethodPost, "/api/v1/auth/phone/send", gin.H{"phone": phone}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sent struct {
		VerificationID string `json:"verification_id"`
	}
	decode(t, w, &sent)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	w = e.do(t, http.MethodPost, "/api/v1/auth/phone/verify", gin.H{"verification_id": sent.VerificationID, "code": wrong}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.ReasonInvalidCode, reasonOf(t, w))

	w = e.do(t, http.MethodPost, "/api/v1/auth/phone/verify", gin.H{"verification_id": "no-such-challenge", "code": code}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.ReasonCodeExpired, reasonOf(t, w))

	w = e.do(t, http.MethodPost, "/api/v1/auth/phone/verify", gin.H{"verification_id": sent.VerificationID, "code": "12ab"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.ReasonInvalidCode, reasonOf(t, w))

	// a wrong guess does not burn the challenge
	w = e.do(t, http.MethodPost, "/api/v1/auth/phone/verify", gin.H{"verification_id": sent.VerificationID, "code": code}, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// but a used code cannot be replayed
	w = e.do(t, http.MethodPost, "/api/v1/auth/phone/verify", gin.H{"verification_id": sent.VerificationID, "code": code}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.ReasonCodeExpired, reasonOf(t, w))
}

func TestSendPhoneCode_CaptchaRequired(t *testing.T) {
	e := newTestEnv(t, func(c *config.AppConfig) { c.RegisterCaptchaEnabled = true })
	phone := "+821055500030"

	w := e.do(t, http.MethodPost, "/api/v1/auth/phone/send", gin.H{"phone": phone}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.ReasonCaptchaInvalid, reasonOf(t, w))

	w = e.do(t, http.MethodGet, "/api/v1/auth/captcha", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var captcha struct {
		CaptchaID string `json:"captcha_id"`
		Image     string `json:"image"`
	}
	decode(t, w, &captcha)
	require.NotEmpty(t, captcha.CaptchaID)
	assert.Contains(t, captcha.Image, "data:image/")

	// five digits are drawn, so six letters never match
	w = e.do(t, http.MethodPost, "/api/v1/auth/phone/send", gin.H{
		"phone":          phone,
		"captcha_id":     captcha.CaptchaID,
		"captcha_answer": "abcdef",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.ReasonCaptchaInvalid, reasonOf(t, w))
	e.sms.AssertNotCalled(t, "SendCode", mock.Anything, phone, mock.Anything)
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "Yoon", "yoon@school.example.org", models.RoleUser)

	w := e.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "yoon@school.example.org", "password": "not-it-123"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, utils.ReasonWrongPassword, reasonOf(t, w))

	w = e.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "nobody@school.example.org", "password": testPassword}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, utils.ReasonWrongPassword, reasonOf(t, w))

	w = e.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "YOON@school.example.org", "password": testPassword}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session sessionResponse
	decode(t, w, &session)
	assert.NotEmpty(t, session.Token)
}

func TestLogout_RevokesToken(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.seedUser(t, "Jang", "jang@school.example.org", models.RoleUser)

	w := e.do(t, http.MethodPost, "/api/v1/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/v1/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40104, decode(t, w, nil).Code)
}

func TestBlockedUser_SessionEndsOnNextRequest(t *testing.T) {
	e := newTestEnv(t)
	_, adminToken := e.seedUser(t, "Admin", "office@school.example.org", models.RoleAdmin)
	user, token := e.seedUser(t, "Han", "han@school.example.org", models.RoleUser)

	w := e.do(t, http.MethodGet, "/api/v1/auth/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPatch, "/api/v1/admin/users/"+user.ID, gin.H{"status": models.StatusBlocked}, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/v1/auth/me", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, utils.ReasonUserBlocked, reasonOf(t, w))

	// the token itself is gone now
	w = e.do(t, http.MethodGet, "/api/v1/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40104, decode(t, w, nil).Code)

	w = e.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": user.Email, "password": testPassword}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, utils.ReasonUserBlocked, reasonOf(t, w))
}

func TestAdmin_CannotBlockOrDemoteSelf(t *testing.T) {
	e := newTestEnv(t)
	admin, adminToken := e.seedUser(t, "Admin", "office2@school.example.org", models.RoleAdmin)
	_, userToken := e.seedUser(t, "Seo", "seo@school.example.org", models.RoleUser)

	w := e.do(t, http.MethodPatch, "/api/v1/admin/users/"+admin.ID, gin.H{"status": models.StatusBlocked}, adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPatch, "/api/v1/admin/users/"+admin.ID, gin.H{"role": models.RoleUser}, adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/admin/users", nil, userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/admin/users", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Pagination utils.Pagination `json:"pagination"`
	}
	decode(t, w, &page)
	assert.Len(t, page.Items, 2)
	assert.EqualValues(t, 2, page.Pagination.Total)
}

func TestUpdateProfile(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.seedUser(t, "Old Name", "profile@school.example.org", models.RoleUser)

	w := e.do(t, http.MethodPatch, "/api/v1/auth/profile", gin.H{"avatar_url": "javascript:alert(1)"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPatch, "/api/v1/auth/profile", gin.H{"name": "<b>New Name</b>"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var user struct {
		Name string `json:"name"`
	}
	decode(t, w, &user)
	assert.Equal(t, "New Name", user.Name)
}
