package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/octobees/provider-directory/internal/auth"
	"github.com/octobees/provider-directory/internal/logging"
)

var (
	// ErrInvalidCredentials is returned for any login mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingCredentials is returned when email or password is blank.
	ErrMissingCredentials = errors.New("email and password must not be empty")
	// ErrAdminDisabled means no admin account is configured.
	ErrAdminDisabled = errors.New("admin login is not configured")
)

// AuthService validates the configured admin account and issues tokens.
type AuthService struct {
	adminEmail string
	adminHash  []byte
	jwt        *auth.JWTManager
}

// NewAuthService constructs a new AuthService.
func NewAuthService(adminEmail, adminPasswordHash string, jwtManager *auth.JWTManager) *AuthService {
	return &AuthService{
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		adminHash:  []byte(strings.TrimSpace(adminPasswordHash)),
		jwt:        jwtManager,
	}
}

// Login validates credentials and returns a JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", ErrMissingCredentials
	}
	if s.adminEmail == "" || len(s.adminHash) == 0 {
		return "", ErrAdminDisabled
	}

	// Compare the hash even on an email mismatch so timing does not leak which part failed.
	hashErr := bcrypt.CompareHashAndPassword(s.adminHash, []byte(password))
	if email != s.adminEmail || hashErr != nil {
		logging.FromContext(ctx).Info().Str("email", email).Msg("rejected admin login")
		return "", ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(auth.RoleAdmin, s.adminEmail, auth.RoleAdmin)
	if err != nil {
		return "", err
	}
	return token, nil
}
