package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ownerKey = "loanbook.owner"

// Authenticator resolves the acting owner from an HS256 bearer token.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns an Authenticator that verifies tokens signed with secret.
func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

// Middleware rejects the request with 401 unless it carries a valid token
// naming an owner. The owner is stored on the gin context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "authorization token not provided")
			return
		}
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || raw == "" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		owner, err := a.Owner(raw)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ownerKey, owner)
		c.Next()
	}
}

// Owner validates token and returns its owner: the "sub" claim, or
// "owner_id" when sub is absent.
func (a *Authenticator) Owner(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	if sub, _ := claims["sub"].(string); sub != "" {
		return sub, nil
	}
	if owner, _ := claims["owner_id"].(string); owner != "" {
		return owner, nil
	}
	return "", errors.New("token names no owner")
}

// IssueToken signs a token for owner that expires after ttl.
// A non-positive ttl issues a token without expiry.
func (a *Authenticator) IssueToken(owner string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  owner,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func ownerFrom(c *gin.Context) string {
	return c.GetString(ownerKey)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
