package service

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/internal/security/auth"
)

// Admin areas
const (
	AreaHQ   = "hq"
	AreaSide = "side"
)

// SessionService checks area passwords and issues area-scoped session tokens
type SessionService struct {
	hashes map[string][]byte
	tokens *auth.TokenManager
	maxAge time.Duration
	logger *slog.Logger
}

// Session is an issued area session
type Session struct {
	Area      string    `json:"area"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewSessionService hashes each area password once. Areas with an empty password cannot log in.
func NewSessionService(passwords map[string]string, tokens *auth.TokenManager, maxAge time.Duration, logger *slog.Logger) (*SessionService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	hashes := make(map[string][]byte, len(passwords))
	for area, password := range passwords {
		if password == "" {
			logger.Warn("area has no password configured; login disabled", slog.String("area", area))
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s password: %w", area, err)
		}
		hashes[area] = hash
	}

	return &SessionService{
		hashes: hashes,
		tokens: tokens,
		maxAge: maxAge,
		logger: logger,
	}, nil
}

// Login returns a session for area when password matches
func (s *SessionService) Login(area, password string) (*Session, error) {
	hash, ok := s.hashes[area]
	if !ok || password == "" {
		return nil, domain.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		s.logger.Info("login failed with wrong password", slog.String("area", area))
		return nil, domain.ErrUnauthorized
	}

	token, err := s.tokens.IssueSession(area, s.maxAge)
	if err != nil {
		s.logger.Error("failed to sign session", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.Info("area login", slog.String("area", area))
	return &Session{Area: area, Token: token, ExpiresAt: time.Now().Add(s.maxAge)}, nil
}

// Verify reports whether token is a live session for area
func (s *SessionService) Verify(area, token string) bool {
	if token == "" {
		return false
	}
	_, err := s.tokens.ValidateSession(token, area)
	return err == nil
}

// MaxAge is the session lifetime used for cookies
func (s *SessionService) MaxAge() time.Duration {
	return s.maxAge
}
