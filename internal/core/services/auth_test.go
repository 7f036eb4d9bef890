package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(store *memStore, mailer *fakeMailer) *AuthService {
	cfg := AuthConfig{
		SecretKey:     "test-secret",
		TokenLifetime: time.Hour,
	}
	if mailer == nil {
		return NewAuthService(store, nil, cfg)
	}
	return NewAuthService(store, mailer, cfg)
}

func register(t *testing.T, svc *AuthService) string {
	t.Helper()
	id, err := svc.Register(context.Background(), domain.Registration{
		Username: "bat",
		Email:    "Bat@Example.com",
		Password: "hunter2",
	})
	require.NoError(t, err)
	return id
}

func TestRegisterAndLogin(t *testing.T) {
	store := newMemStore()
	svc := newTestAuth(store, nil)
	id := register(t, svc)

	user, err := store.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "bat@example.com", user.Email)
	assert.Equal(t, []string{"user"}, user.Roles)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "hunter2", user.HashedPassword)

	token, err := svc.Login(context.Background(), "bat@example.com", "hunter2")
	require.NoError(t, err)

	authed, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, id, authed.ID)
}

func TestRegisterErrors(t *testing.T) {
	store := newMemStore()
	svc := newTestAuth(store, nil)
	register(t, svc)

	_, err := svc.Register(context.Background(), domain.Registration{Username: "x", Email: "bat@example.com", Password: "p"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	_, err = svc.Register(context.Background(), domain.Registration{Username: "x", Email: "not-an-email", Password: "p"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Register(context.Background(), domain.Registration{Username: "x", Email: "new@example.com"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLoginErrors(t *testing.T) {
	svc := newTestAuth(newMemStore(), nil)
	register(t, svc)

	_, err := svc.Login(context.Background(), "nobody@example.com", "hunter2")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.Login(context.Background(), "bat@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthenticateRejects(t *testing.T) {
	store := newMemStore()
	svc := newTestAuth(store, nil)
	id := register(t, svc)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   id,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	expiredToken, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   id,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	forgedToken, err := forged.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	ghost := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ghost",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	ghostToken, err := ghost.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":   "",
		"garbage": "not.a.token",
		"expired": expiredToken,
		"forged":  forgedToken,
		"ghost":   ghostToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), token)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestPasswordReset(t *testing.T) {
	store := newMemStore()
	mailer := &fakeMailer{}
	svc := newTestAuth(store, mailer)
	id := register(t, svc)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "bat@example.com"))
	require.Len(t, mailer.sent, 1)

	user, err := store.GetUser(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, user.OTP, 6)
	assert.Contains(t, mailer.sent[0], user.OTP)

	err = svc.VerifyPasswordReset(context.Background(), "bat@example.com", "xxxxxx", "newpass")
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)

	require.NoError(t, svc.VerifyPasswordReset(context.Background(), "bat@example.com", user.OTP, "newpass"))

	_, err = svc.Login(context.Background(), "bat@example.com", "hunter2")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), "bat@example.com", "newpass")
	assert.NoError(t, err)

	// the code is single use
	err = svc.VerifyPasswordReset(context.Background(), "bat@example.com", user.OTP, "again")
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
}

func TestPasswordResetExpired(t *testing.T) {
	store := newMemStore()
	svc := newTestAuth(store, &fakeMailer{})
	id := register(t, svc)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "bat@example.com"))
	user, err := store.GetUser(context.Background(), id)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(11 * time.Minute) }
	err = svc.VerifyPasswordReset(context.Background(), "bat@example.com", user.OTP, "newpass")
	assert.ErrorIs(t, err, domain.ErrOTPExpired)
}

func TestPasswordResetMailFailureIsSwallowed(t *testing.T) {
	svc := newTestAuth(newMemStore(), &fakeMailer{err: errBoom})
	register(t, svc)

	assert.NoError(t, svc.RequestPasswordReset(context.Background(), "bat@example.com"))
	assert.ErrorIs(t, svc.RequestPasswordReset(context.Background(), "nobody@example.com"), domain.ErrUserNotFound)
}
