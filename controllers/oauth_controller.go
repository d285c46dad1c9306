package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/utils"
)

var oauthHTTPClient = &http.Client{Timeout: 10 * time.Second}

// OAuthRedirect generates a provider-specific authorization URL.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	provider := strings.ToLower(ctx.Param("provider"))
	cfg, err := oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, err.Error())
		return
	}

	state := utils.NewOAuthState(provider)

	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
	utils.Success(ctx, gin.H{"authorization_url": url, "state": state})
}

// OAuthCallback exchanges the authorization code for a user identity and issues a JWT.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := strings.ToLower(ctx.Param("provider"))
	code := ctx.Query("code")
	state := ctx.Query("state")

	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "missing code or state")
		return
	}
	if !utils.ConsumeOAuthState(provider, state) {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid or expired state")
		return
	}

	cfg, err := oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, err.Error())
		return
	}

	c, cancel := context.WithTimeout(ctx.Request.Context(), 15*time.Second)
	defer cancel()

	token, err := cfg.Exchange(c, code)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, "failed to exchange code")
		return
	}

	info, err := fetchOAuthUser(c, provider, token)
	if err != nil {
		utils.Sugar.Warnw("oauth user info failed", "provider", provider, "err", err)
		utils.Error(ctx, http.StatusBadGateway, 50220, "failed to load provider profile")
		return
	}

	a.signInOAuth(ctx, provider, info)
}

// signInOAuth issues a session for the account behind a provider profile.
// Blocked accounts are refused even when the provider vouches for them.
func (a *AuthController) signInOAuth(ctx *gin.Context, provider string, info *oauthUser) {
	user, err := a.findOrCreateOAuthUser(ctx.Request.Context(), provider, info)
	if err != nil {
		utils.Sugar.Errorw("persist oauth user failed", "provider", provider, "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to persist user")
		return
	}
	if user.IsBlocked() {
		utils.Fail(ctx, http.StatusForbidden, 40301, utils.ReasonUserBlocked)
		return
	}

	a.issueSession(ctx, user)
}

func oauthConfig(provider string) (*oauth2.Config, error) {
	cfg := config.Get()
	switch strings.ToLower(provider) {
	case "github":
		if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
			return nil, fmt.Errorf("github oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/github/callback", cfg.OAuthRedirectBase),
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}, nil
	case "google":
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("google oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/google/callback", cfg.OAuthRedirectBase),
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

type oauthUser struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

func fetchOAuthUser(ctx context.Context, provider string, token *oauth2.Token) (*oauthUser, error) {
	switch provider {
	case "github":
		return fetchGitHubUser(ctx, token)
	case "google":
		return fetchGoogleUser(ctx, token)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// findOrCreateOAuthUser links by provider id first, then by verified email.
func (a *AuthController) findOrCreateOAuthUser(ctx context.Context, provider string, data *oauthUser) (*models.User, error) {
	user, err := a.users.GetUserByProvider(ctx, provider, data.ID)
	if err == nil {
		if data.AvatarURL != "" && data.AvatarURL != user.AvatarURL {
			user.AvatarURL = data.AvatarURL
			_ = a.users.UpdateUser(ctx, user)
		}
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(data.Email))
	if email != "" {
		existing, err := a.users.GetUserByEmail(ctx, email)
		if err == nil {
			if existing.Provider == "" {
				existing.Provider = provider
				existing.ProviderID = data.ID
				if err := a.users.UpdateUser(ctx, existing); err != nil {
					return nil, err
				}
			}
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	user = &models.User{
		Name:       fallback(utils.StripTags(data.Name), "member"),
		Email:      email,
		Provider:   provider,
		ProviderID: data.ID,
		AvatarURL:  data.AvatarURL,
		Role:       models.RoleUser,
		Status:     models.StatusActive,
		RegisterIP: "oauth",
	}
	if config.IsAdminEmail(email) {
		user.Role = models.RoleAdmin
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	utils.Sugar.Infow("oauth user created", "user_id", user.ID, "provider", provider)
	return user, nil
}

func providerGet(ctx context.Context, url, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := oauthHTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fetchGitHubUser(ctx context.Context, token *oauth2.Token) (*oauthUser, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := providerGet(ctx, "https://api.github.com/user", token.AccessToken, &payload); err != nil {
		return nil, err
	}

	email, _ := fetchGitHubEmail(ctx, token.AccessToken)

	return &oauthUser{
		ID:        fmt.Sprintf("%d", payload.ID),
		Name:      fallback(payload.Name, payload.Login),
		Email:     email,
		AvatarURL: payload.AvatarURL,
	}, nil
}

// fetchGitHubEmail returns the primary verified address, or "" when there is none.
func fetchGitHubEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := providerGet(ctx, "https://api.github.com/user/emails", accessToken, &emails); err != nil {
		return "", err
	}
	for _, email := range emails {
		if email.Primary && email.Verified {
			return email.Email, nil
		}
	}
	return "", nil
}

func fetchGoogleUser(ctx context.Context, token *oauth2.Token) (*oauthUser, error) {
	var payload struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := providerGet(ctx, "https://www.googleapis.com/oauth2/v2/userinfo", token.AccessToken, &payload); err != nil {
		return nil, err
	}

	u := &oauthUser{
		ID:        payload.ID,
		Name:      payload.Name,
		AvatarURL: payload.Picture,
	}
	if payload.VerifiedEmail {
		u.Email = payload.Email
	}
	return u, nil
}

func fallback(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
