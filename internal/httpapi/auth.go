package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

const claimsKey = "claims"

// Claims are the custom payload of an access token.
type Claims struct {
	UserID string     `json:"uid"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  compliance.Clock
}

// NewTokenIssuer creates a TokenIssuer. A nil clock uses the real time.
func NewTokenIssuer(secret string, ttl time.Duration, clock compliance.Clock) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	if clock == nil {
		clock = compliance.RealClock{}
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

// Issue creates a signed token for p.
func (t *TokenIssuer) Issue(p *model.Profile) (string, error) {
	now := t.clock.Now()
	claims := Claims{
		UserID: p.ID,
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims.
func (t *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// requireAuth validates the Bearer token and stores its claims on the context.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		if auth == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization token")
		}
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format, expected Bearer token")
		}

		claims, err := s.tokens.Parse(parts[1])
		if err != nil {
			s.logger.Debug("rejected token", "error", err)
			if errors.Is(err, jwt.ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		c.Set(claimsKey, claims)
		return next(c)
	}
}

// caller returns the authenticated claims of the request.
func caller(c echo.Context) *Claims {
	claims, _ := c.Get(claimsKey).(*Claims)
	return claims
}

// requireRole rejects callers whose token carries another role.
func requireRole(role model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cl := caller(c); cl == nil || cl.Role != role {
				return errForbidden(fmt.Sprintf("only a %s can do this", role))
			}
			return next(c)
		}
	}
}
