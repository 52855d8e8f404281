// Package auth issues and validates service tokens for the admin endpoints.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/moneihq/monei-voice/domain"
)

// ServiceClaims are the claims carried by an admin service token.
type ServiceClaims struct {
	Service string `json:"service"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies service tokens with a shared secret.
type Authenticator struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewAuthenticator requires a non-empty secret so a missing AUTH_SECRET
// fails startup instead of silently accepting unsigned tokens.
func NewAuthenticator(secret string, tokenTTL time.Duration) (*Authenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth secret is required")
	}
	return &Authenticator{secret: []byte(secret), tokenTTL: tokenTTL}, nil
}

// GenerateServiceToken issues an admin token for the named service.
func (a *Authenticator) GenerateServiceToken(service string) (string, error) {
	claims := &ServiceClaims{
		Service: service,
		Role:    "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and verifies a token, returning its claims.
func (a *Authenticator) ValidateToken(tokenString string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, domain.E(domain.KindAuthenticationFailed, "invalid service token", err)
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, domain.Ef(domain.KindAuthenticationFailed, "invalid service token")
	}
	if claims.Role != "admin" {
		return nil, domain.Ef(domain.KindAuthenticationFailed, "token lacks admin role")
	}
	return claims, nil
}

// Middleware guards admin routes with a bearer service token.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenString == "" {
				return echo.NewHTTPError(401, "missing bearer token")
			}
			claims, err := a.ValidateToken(tokenString)
			if err != nil {
				return echo.NewHTTPError(401, "invalid service token")
			}
			c.Set("service", claims.Service)
			return next(c)
		}
	}
}
