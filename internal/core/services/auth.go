package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	"github.com/melih/lighthouse-notebooks/internal/core/ports"
	"github.com/melih/lighthouse-notebooks/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const otpDigits = 6

// AuthConfig configures token signing and password reset.
type AuthConfig struct {
	SecretKey     string
	TokenLifetime time.Duration
	OTPLifetime   time.Duration
}

// AuthService issues and verifies session tokens for stored users.
type AuthService struct {
	users  ports.UserStore
	mailer ports.Mailer
	cfg    AuthConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewAuthService creates an auth service. mailer may be nil, in which case
// reset codes are only logged at debug level.
func NewAuthService(users ports.UserStore, mailer ports.Mailer, cfg AuthConfig) *AuthService {
	if cfg.OTPLifetime == 0 {
		cfg.OTPLifetime = 10 * time.Minute
	}
	return &AuthService{
		users:  users,
		mailer: mailer,
		cfg:    cfg,
		logger: log.WithComponent("auth"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a user and returns its id.
func (s *AuthService) Register(ctx context.Context, reg domain.Registration) (string, error) {
	email := normalizeEmail(reg.Email)
	if email == "" || !strings.Contains(email, "@") {
		return "", &domain.ValidationError{Field: "email", Reason: "must be a valid address"}
	}
	if reg.Username == "" {
		return "", &domain.ValidationError{Field: "username", Reason: "is required"}
	}
	if reg.Password == "" {
		return "", &domain.ValidationError{Field: "password", Reason: "is required"}
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return "", domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	roles := reg.Roles
	if len(roles) == 0 {
		roles = []string{"user"}
	}
	user := &domain.User{
		ID:             uuid.NewString(),
		Username:       reg.Username,
		Email:          email,
		Fullname:       reg.Fullname,
		HashedPassword: string(hash),
		Roles:          roles,
		IsActive:       true,
		CreatedAt:      s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return "", err
	}
	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return user.ID, nil
}

// Login verifies credentials and returns a signed session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", domain.ErrInvalidCredentials
	}
	return s.issueToken(user.ID)
}

func (s *AuthService) issueToken(userID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenLifetime)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a session token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.SecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.Subject == "" {
		return nil, domain.ErrUnauthorized
	}

	user, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}

// RequestPasswordReset stores a one-time code for the user and mails it.
// Mail delivery failures are logged, not returned.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	otp, err := newOTP()
	if err != nil {
		return err
	}
	user.OTP = otp
	user.OTPExpiresAt = s.now().Add(s.cfg.OTPLifetime)
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return err
	}

	logger := s.logger.With().Str("user_id", user.ID).Logger()
	if s.mailer == nil {
		logger.Debug().Msg("no mailer configured, reset code not delivered")
		return nil
	}
	body := fmt.Sprintf("Your password reset code: %s", otp)
	if err := s.mailer.Send(ctx, user.Email, "Password reset code", body); err != nil {
		logger.Error().Err(err).Msg("sending reset code failed")
	}
	return nil
}

// VerifyPasswordReset checks the one-time code and replaces the password.
func (s *AuthService) VerifyPasswordReset(ctx context.Context, email, otp, newPassword string) error {
	if newPassword == "" {
		return &domain.ValidationError{Field: "new_password", Reason: "is required"}
	}
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user.OTP == "" || user.OTP != otp {
		return domain.ErrInvalidOTP
	}
	if s.now().After(user.OTPExpiresAt) {
		return domain.ErrOTPExpired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.HashedPassword = string(hash)
	user.OTP = ""
	user.OTPExpiresAt = time.Time{}
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
