package ports

import (
	"context"

	"github.com/melih/lighthouse-notebooks/internal/core/domain"
)

// Authenticator resolves an opaque session token into a verified user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// AccountService covers registration, login and password reset.
type AccountService interface {
	Authenticator
	Register(ctx context.Context, reg domain.Registration) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyPasswordReset(ctx context.Context, email, otp, newPassword string) error
}

// Mailer delivers outbound email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
