package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store/memstore"
	"github.com/cppla/eduboard/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{
		JWTSecret:   "test-secret",
		AdminEmails: []string{"admin@teachers.example.org"},
	})
	utils.SetRedis(nil)
	os.Exit(m.Run())
}

func newOAuthTestController(t *testing.T) (*AuthController, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return NewAuthController(st, utils.LogSMSSender{}), st
}

func seedAccount(t *testing.T, st *memstore.Store, u models.User) *models.User {
	t.Helper()
	require.NoError(t, st.CreateUser(context.Background(), &u))
	return &u
}

func TestFindOrCreateOAuthUser_ProviderIDWinsOverEmail(t *testing.T) {
	a, st := newOAuthTestController(t)
	ctx := context.Background()
	linked := seedAccount(t, st, models.User{Name: "Linked", Email: "linked@school.example.org", Provider: "github", ProviderID: "42"})
	seedAccount(t, st, models.User{Name: "Other", Email: "other@school.example.org"})

	got, err := a.findOrCreateOAuthUser(ctx, "github", &oauthUser{
		ID:        "42",
		Email:     "other@school.example.org",
		AvatarURL: "https://avatars.example/42.png",
	})
	require.NoError(t, err)
	assert.Equal(t, linked.ID, got.ID)

	stored, err := st.GetUser(ctx, linked.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://avatars.example/42.png", stored.AvatarURL)

	// the same provider id from another provider is a different identity
	got, err = a.findOrCreateOAuthUser(ctx, "google", &oauthUser{ID: "42"})
	require.NoError(t, err)
	assert.NotEqual(t, linked.ID, got.ID)
}

func TestFindOrCreateOAuthUser_LinksByVerifiedEmail(t *testing.T) {
	a, st := newOAuthTestController(t)
	ctx := context.Background()
	member := seedAccount(t, st, models.User{Name: "Member", Email: "member@school.example.org", Phone: "+821055500100"})

	got, err := a.findOrCreateOAuthUser(ctx, "github", &oauthUser{ID: "77", Name: "gh-member", Email: " Member@School.example.org "})
	require.NoError(t, err)
	assert.Equal(t, member.ID, got.ID)
	assert.Equal(t, "Member", got.Name)

	stored, err := st.GetUserByProvider(ctx, "github", "77")
	require.NoError(t, err)
	assert.Equal(t, member.ID, stored.ID)

	// an account already bound to another provider keeps that binding
	google := seedAccount(t, st, models.User{Name: "G", Email: "g@school.example.org", Provider: "google", ProviderID: "g-1"})
	got, err = a.findOrCreateOAuthUser(ctx, "github", &oauthUser{ID: "78", Email: "g@school.example.org"})
	require.NoError(t, err)
	assert.Equal(t, google.ID, got.ID)
	assert.Equal(t, "google", got.Provider)
	assert.Equal(t, "g-1", got.ProviderID)

	n, err := st.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestFindOrCreateOAuthUser_NewAccounts(t *testing.T) {
	a, st := newOAuthTestController(t)
	ctx := context.Background()
	seedAccount(t, st, models.User{Name: "Member", Email: "member@school.example.org"})

	// no verified email: a fresh account, never linked to an existing one
	got, err := a.findOrCreateOAuthUser(ctx, "google", &oauthUser{ID: "g-9", Name: "<b>Park</b>"})
	require.NoError(t, err)
	assert.Empty(t, got.Email)
	assert.Equal(t, "Park", got.Name)
	assert.Equal(t, models.RoleUser, got.Role)
	assert.Equal(t, models.StatusActive, got.Status)

	got, err = a.findOrCreateOAuthUser(ctx, "github", &oauthUser{ID: "1", Email: "Admin@Teachers.example.org"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, "admin@teachers.example.org", got.Email)

	got, err = a.findOrCreateOAuthUser(ctx, "github", &oauthUser{ID: "2", Email: "new@school.example.org"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, got.Role)
	assert.Equal(t, "member", got.Name)
}

func TestSignInOAuth(t *testing.T) {
	a, st := newOAuthTestController(t)
	blocked := seedAccount(t, st, models.User{Name: "Blocked", Email: "blocked@school.example.org", Status: models.StatusBlocked})

	signIn := func(info *oauthUser) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		ctx.Request = httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/github/callback", nil)
		a.signInOAuth(ctx, "github", info)
		return w
	}

	w := signIn(&oauthUser{ID: "b-1", Email: "blocked@school.example.org"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	var body struct {
		Data struct {
			Reason string `json:"reason"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, utils.ReasonUserBlocked, body.Data.Reason)

	// the link is still recorded, so unblocking restores the provider login
	stored, err := st.GetUser(context.Background(), blocked.ID)
	require.NoError(t, err)
	assert.Equal(t, "b-1", stored.ProviderID)

	w = signIn(&oauthUser{ID: "a-1", Name: "Active", Email: "active@school.example.org"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session struct {
		Data struct {
			Token string `json:"token"`
			User  struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	claims, err := utils.ParseToken(session.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Data.User.ID, claims.UserID)
}

// redirectTransport sends every provider API call to a local server.
type redirectTransport struct{ target *url.URL }

func (rt redirectTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

func fakeProviders(t *testing.T, githubEmails, googleProfile string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/user":
			_, _ = w.Write([]byte(`{"id": 42, "login": "kim", "name": "", "avatar_url": "https://avatars.example/42.png"}`))
		case "/user/emails":
			_, _ = w.Write([]byte(githubEmails))
		case "/oauth2/v2/userinfo":
			_, _ = w.Write([]byte(googleProfile))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	prev := oauthHTTPClient
	oauthHTTPClient = &http.Client{Transport: redirectTransport{target: target}}
	t.Cleanup(func() { oauthHTTPClient = prev })
}

func TestFetchOAuthUser_OnlyVerifiedEmails(t *testing.T) {
	token := &oauth2.Token{AccessToken: "access"}
	ctx := context.Background()

	fakeProviders(t,
		`[{"email": "old@school.example.org", "primary": false, "verified": true},
		  {"email": "kim@school.example.org", "primary": true, "verified": false}]`,
		`{"id": "g-1", "email": "kim@school.example.org", "verified_email": false, "name": "Kim"}`)

	gh, err := fetchOAuthUser(ctx, "github", token)
	require.NoError(t, err)
	assert.Equal(t, "42", gh.ID)
	assert.Equal(t, "kim", gh.Name)
	assert.Empty(t, gh.Email)

	g, err := fetchOAuthUser(ctx, "google", token)
	require.NoError(t, err)
	assert.Empty(t, g.Email)

	fakeProviders(t,
		`[{"email": "kim@school.example.org", "primary": true, "verified": true}]`,
		`{"id": "g-1", "email": "kim@school.example.org", "verified_email": true, "name": "Kim"}`)

	gh, err = fetchOAuthUser(ctx, "github", token)
	require.NoError(t, err)
	assert.Equal(t, "kim@school.example.org", gh.Email)

	g, err = fetchOAuthUser(ctx, "google", token)
	require.NoError(t, err)
	assert.Equal(t, "kim@school.example.org", g.Email)

	_, err = fetchOAuthUser(ctx, "telegram", token)
	assert.Error(t, err)
}
