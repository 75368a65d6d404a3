package stubserver

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// tokenManager issues and validates the stub's HS256 bearer tokens.
type tokenManager struct {
	secret []byte
	ttl    time.Duration
}

func newTokenManager(secret string, ttlMinutes int) *tokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &tokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute}
}

type claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

func (tm *tokenManager) generate(userID string, role domain.Role) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return token.SignedString(tm.secret)
}

func (tm *tokenManager) parse(tokenStr string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}
	parsedClaims, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return parsedClaims, nil
}
