package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token purposes
const (
	PurposeSession = "session"
	PurposeFile    = "file"
)

var ErrWrongPurpose = errors.New("token not valid for this purpose")

// Claims is the payload of every token the portal issues. Sessions carry an Area,
// file links carry the storage Key.
type Claims struct {
	Purpose string `json:"pur"`
	Area    string `json:"area,omitempty"`
	Key     string `json:"key,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates HS256 tokens
type TokenManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenManager(secret, issuer string) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "portal"
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (tm *TokenManager) sign(claims Claims, expiresIn time.Duration) (string, error) {
	now := tm.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		Issuer:    tm.issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// IssueSession signs a session token for area
func (tm *TokenManager) IssueSession(area string, expiresIn time.Duration) (string, error) {
	if area == "" {
		return "", fmt.Errorf("area required")
	}
	return tm.sign(Claims{Purpose: PurposeSession, Area: area}, expiresIn)
}

// IssueFileToken signs a download capability for a storage key
func (tm *TokenManager) IssueFileToken(key string, expiresIn time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key required")
	}
	return tm.sign(Claims{Purpose: PurposeFile, Key: key}, expiresIn)
}

// ValidateToken parses tokenString and checks it was issued for purpose
func (tm *TokenManager) ValidateToken(tokenString, purpose string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithIssuer(tm.issuer), jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

// ValidateSession checks a session token belongs to area
func (tm *TokenManager) ValidateSession(tokenString, area string) (*Claims, error) {
	claims, err := tm.ValidateToken(tokenString, PurposeSession)
	if err != nil {
		return nil, err
	}
	if claims.Area != area {
		return nil, fmt.Errorf("session is for area %q", claims.Area)
	}
	return claims, nil
}
