package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"

	goerrors "github.com/kbukum/kalikit/errors"
)

// Claims are the bearer token claims. Subject names the caller.
type Claims struct {
	gojwt.RegisteredClaims
}

// Tokens issues and verifies HMAC-signed bearer tokens.
type Tokens struct {
	cfg    AuthConfig
	method gojwt.SigningMethod
}

// NewTokens creates a token service from cfg.
func NewTokens(cfg AuthConfig) (*Tokens, error) {
	if cfg.Secret == "" {
		return nil, errors.New("httpapi: token secret is required")
	}
	method := gojwt.GetSigningMethod(cfg.Method)
	if _, ok := method.(*gojwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("httpapi: unsupported signing method %q", cfg.Method)
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 15 * time.Minute
	}
	return &Tokens{cfg: cfg, method: method}, nil
}

// Issue signs a token for subject. A ttl of 0 uses the configured TokenTTL.
func (t *Tokens) Issue(subject string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = t.cfg.TokenTTL
	}
	now := time.Now()
	claims := &Claims{RegisteredClaims: gojwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    t.cfg.Issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	}}
	if t.cfg.Audience != "" {
		claims.Audience = gojwt.ClaimStrings{t.cfg.Audience}
	}
	signed, err := gojwt.NewWithClaims(t.method, claims).SignedString([]byte(t.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("httpapi: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims.
func (t *Tokens) Parse(token string) (*Claims, error) {
	opts := []gojwt.ParserOption{gojwt.WithValidMethods([]string{t.method.Alg()})}
	if t.cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(t.cfg.Issuer))
	}
	if t.cfg.Audience != "" {
		opts = append(opts, gojwt.WithAudience(t.cfg.Audience))
	}

	claims := &Claims{}
	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return []byte(t.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

const ctxSubject = "auth.subject"

// requireToken rejects requests without a valid bearer token.
func requireToken(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if header == "" || !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abortWithError(c, goerrors.Unauthorized("A bearer token is required."))
			return
		}

		claims, err := tokens.Parse(token)
		switch {
		case errors.Is(err, gojwt.ErrTokenExpired):
			abortWithError(c, goerrors.TokenExpired())
			return
		case err != nil:
			abortWithError(c, goerrors.InvalidToken().WithCause(err))
			return
		}
		c.Set(ctxSubject, claims.Subject)
		c.Next()
	}
}
