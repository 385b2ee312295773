package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/ncecere/open_voice_gateway/internal/config"
)

const tokenIssuer = "open-voice-gateway-admin"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminDisabled      = errors.New("admin authentication disabled")
)

// AdminAuthService exchanges the configured admin password for JWTs and
// validates them on admin routes.
type AdminAuthService struct {
	passwordHash string
	tokens       *TokenManager
}

// NewAdminAuthService returns a disabled service when no password hash is
// configured.
func NewAdminAuthService(cfg config.AdminAuthConfig) (*AdminAuthService, error) {
	hash := strings.TrimSpace(cfg.PasswordHash)
	if hash == "" {
		return &AdminAuthService{}, nil
	}
	if !IsPasswordHash(hash) {
		return nil, errors.New("auth.admin.password_hash must be an argon2id hash")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	tokens, err := NewTokenManager(cfg.JWTSecret, ttl, tokenIssuer)
	if err != nil {
		return nil, err
	}
	return &AdminAuthService{passwordHash: hash, tokens: tokens}, nil
}

func (s *AdminAuthService) Enabled() bool {
	return s != nil && s.tokens != nil
}

// Login verifies the password and mints a token.
func (s *AdminAuthService) Login(password string) (*Token, error) {
	if !s.Enabled() {
		return nil, ErrAdminDisabled
	}
	ok, err := VerifyPassword(password, s.passwordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return s.tokens.Generate(adminSubject)
}

// Authorize validates a bearer token minted by Login.
func (s *AdminAuthService) Authorize(raw string) error {
	if !s.Enabled() {
		return ErrAdminDisabled
	}
	subject, err := s.tokens.Parse(raw)
	if err != nil {
		return err
	}
	if subject != adminSubject {
		return ErrInvalidToken
	}
	return nil
}
