package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid access token")

// Claims identify the storefront or back office calling checkout endpoints.
type Claims struct {
	StoreID string `json:"store_id,omitempty"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func ExtractAccessToken(r *http.Request) string {
	// 1️⃣ Cookie (preferred)
	if cookie, err := r.Cookie("access_token"); err == nil {
		if cookie.Value != "" {
			return cookie.Value
		}
	}

	// 2️⃣ Authorization header (fallback)
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

// ParseToken validates an HS256 token signed with secret. Expiry is enforced
// when the token carries one.
func ParseToken(raw string, secret []byte) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type ctxKey string

const claimsKey ctxKey = "jwt_claims"

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}
