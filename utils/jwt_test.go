package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/eduboard/config"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("u-1", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestParseToken_Rejects(t *testing.T) {
	expired, err := GenerateToken("u-1", "user", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	_, err = ParseToken("not-a-jwt")
	assert.Error(t, err)

	cfg := config.Get()
	other := cfg
	other.JWTSecret = "another-secret"
	config.Set(other)
	forged, err := GenerateToken("u-1", "admin", time.Hour)
	config.Set(cfg)
	require.NoError(t, err)
	_, err = ParseToken(forged)
	assert.Error(t, err)
}

func TestBlacklistToken(t *testing.T) {
	BlacklistToken("tok-a", time.Now().Add(time.Minute))
	assert.True(t, IsTokenBlacklisted("tok-a"))

	// already expired tokens need no entry
	BlacklistToken("tok-b", time.Now().Add(-time.Minute))
	assert.False(t, IsTokenBlacklisted("tok-b"))
}

func TestPasswords(t *testing.T) {
	assert.True(t, ValidPassword("lesson2024"))
	assert.False(t, ValidPassword("short1"))
	assert.False(t, ValidPassword("onlyletters"))
	assert.False(t, ValidPassword("1234567890"))

	hash, err := HashPassword("lesson2024")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "lesson2024"))
	assert.False(t, CheckPassword(hash, "lesson2025"))
	assert.False(t, CheckPassword("", "lesson2024"))
}

func TestParseToken_RejectsForeignIssuer(t *testing.T) {
	claims := Claims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.Get().JWTSecret))
	require.NoError(t, err)

	_, err = ParseToken(signed)
	assert.Error(t, err)
}

func TestGenerateToken_UniquePerIssue(t *testing.T) {
	a, err := GenerateToken("u-1", "user", time.Hour)
	require.NoError(t, err)
	b, err := GenerateToken("u-1", "user", time.Hour)
	require.NoError(t, err)
	// logout blacklists by token, so two sessions must never share one
	assert.NotEqual(t, a, b)
}
