// Package auth issues and verifies the HS256 tokens terminals use. Access
// tokens carry the role; refresh tokens only name the user and can be
// exchanged for a new pair.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour

	Issuer = "kopibar-pos"

	useAccess  = "access"
	useRefresh = "refresh"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrWrongTokenUse    = errors.New("token used for the wrong purpose")
	ErrMissingToken     = errors.New("missing authorization header")
	ErrMalformedBearer  = errors.New("invalid authorization format")
	validSigningMethods = []string{jwt.SigningMethodHS256.Alg()}
)

type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role,omitempty"`
	Use    string    `json:"use"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	Access  string
	Refresh string
}

func GenerateToken(secret string, userID uuid.UUID, role string) (string, error) {
	return sign(secret, Claims{UserID: userID, Role: role, Use: useAccess}, AccessTokenTTL)
}

func GenerateRefreshToken(secret string, userID uuid.UUID) (string, error) {
	return sign(secret, Claims{UserID: userID, Use: useRefresh}, RefreshTokenTTL)
}

// IssuePair signs a fresh access and refresh token for the user.
func IssuePair(secret string, userID uuid.UUID, role string) (TokenPair, error) {
	access, err := GenerateToken(secret, userID, role)
	if err != nil {
		return TokenPair{}, fmt.Errorf("access token: %w", err)
	}
	refresh, err := GenerateRefreshToken(secret, userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("refresh token: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func sign(secret string, c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   c.UserID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// ValidateToken accepts only access tokens.
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	return parse(secret, tokenStr, useAccess)
}

// ValidateRefreshToken returns the user a refresh token was issued to.
func ValidateRefreshToken(secret, tokenStr string) (uuid.UUID, error) {
	c, err := parse(secret, tokenStr, useRefresh)
	if err != nil {
		return uuid.Nil, err
	}
	return c.UserID, nil
}

func parse(secret, tokenStr, use string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods(validSigningMethods),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	if c.Use != use {
		return nil, ErrWrongTokenUse
	}
	return c, nil
}

// TokenFromRequest reads a bearer token from the Authorization header. With
// allowQuery a ?token= parameter is accepted when no header is sent, which is
// how websocket clients authenticate.
func TokenFromRequest(r *http.Request, allowQuery bool) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if allowQuery {
			if tok := r.URL.Query().Get("token"); tok != "" {
				return tok, nil
			}
		}
		return "", ErrMissingToken
	}

	scheme, tok, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tok) == "" {
		return "", ErrMalformedBearer
	}
	return strings.TrimSpace(tok), nil
}
