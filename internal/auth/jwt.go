package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DefaultTokenTTL is the lifetime of tokens issued without an explicit ttl
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrMissingToken is returned when the Authorization header carries no bearer token
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for tokens that fail signature or claim checks
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims represents the claims in a chat client token
type Claims struct {
	Client string `json:"client,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates HS256 tokens
type Authenticator struct {
	secret []byte
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthenticator returns nil when secret is empty, which disables authentication
func NewAuthenticator(secret string, logger *zap.Logger) *Authenticator {
	if secret == "" {
		logger.Info("JWT secret not set, authentication disabled")
		return nil
	}
	return &Authenticator{
		secret: []byte(secret),
		logger: logger.With(zap.String("component", "auth")),
		now:    time.Now,
	}
}

// GenerateToken signs a token for subject. A zero ttl uses DefaultTokenTTL.
func (a *Authenticator) GenerateToken(subject, client string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := a.now()
	claims := &Claims{
		Client: client,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a token and returns its claims
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// Middleware rejects requests without a valid bearer token
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c.Request().Header.Get("Authorization"))
			if err != nil {
				a.logger.Warn("Request rejected: missing token", zap.String("path", c.Path()))
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "JWT token is required in Authorization header"})
			}

			claims, err := a.ValidateToken(token)
			if err != nil {
				a.logger.Warn("Request rejected: invalid token", zap.String("path", c.Path()), zap.Error(err))
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired JWT token"})
			}

			c.Set("claims", claims)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
