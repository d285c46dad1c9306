package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cppla/eduboard/config"
)

const tokenIssuer = "eduboard"

var errInvalidClaims = errors.New("invalid token claims")

// Claims carry the member id and role. Role is informational only: permissions
// are checked against the stored user on every request.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenTTL is the configured session lifetime.
func TokenTTL() time.Duration {
	return time.Duration(config.Get().TokenTTLHours) * time.Hour
}

// GenerateToken signs an HS256 session token for userID valid for duration.
func GenerateToken(userID, role string, duration time.Duration) (string, error) {
	now := nowFunc()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.Get().JWTSecret))
	return signed, errors.Wrap(err, "sign token")
}

// ParseToken verifies signature, issuer and expiry and returns the claims.
func ParseToken(tokenStr string) (*Claims, error) {
	secret := []byte(config.Get().JWTSecret)
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(nowFunc),
	)
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, errInvalidClaims
	}
	return claims, nil
}
