package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"shielder/internal/shielder"
)

const (
	adminIssuer = "poold"
	callerKey   = "caller"
)

// AdminClaims identify the account an admin request acts for. Subject is the caller scalar.
type AdminClaims struct {
	jwt.RegisteredClaims
}

// IssueAdminToken signs an HS256 token for caller valid for ttl.
func IssueAdminToken(secret []byte, caller shielder.Scalar, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    adminIssuer,
			Subject:   caller.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing admin token: %w", err)
	}
	return signed, nil
}

// parseAdminToken validates the token and returns the caller it names.
func parseAdminToken(secret []byte, tokenString string) (shielder.Scalar, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(adminIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return shielder.Scalar{}, err
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return shielder.Scalar{}, errors.New("invalid token")
	}
	return shielder.ParseScalar(claims.Subject)
}

// adminAuth requires a valid Bearer admin token and stores the caller in the context.
func adminAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || len(secret) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "missing or malformed bearer token",
				Code:  codeUnauthorized,
			})
			return
		}
		caller, err := parseAdminToken(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: err.Error(),
				Code:  codeUnauthorized,
			})
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}
