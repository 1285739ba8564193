package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-registration-portal/internal/models"
	"github.com/noah-isme/sma-registration-portal/internal/repository"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
)

type mockAdminAuth struct {
	token string
	err   error
	calls int
}

func (m *mockAdminAuth) Login(ctx context.Context, creds models.LoginRequest) (*models.AdminSession, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &models.AdminSession{Message: "Login successful", Token: m.token, Username: creds.Username}, nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	raw, err := token.SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return raw
}

func TestAuthServiceLoginStoresToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	raw := signedToken(t, now.Add(time.Hour))
	repo := &mockAdminAuth{token: raw}
	svc := NewAuthService(repo, repository.NewMemoryTokenRepository(), nil, zap.NewNop(), AuthConfig{TokenKey: "token"})
	svc.now = func() time.Time { return now }

	session, err := svc.Login(context.Background(), "sid-1", models.LoginRequest{Username: "admin", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "admin", session.Username)

	status, err := svc.Status(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.True(t, status.Authenticated())
	assert.Equal(t, "admin", status.Subject)
	require.NotNil(t, status.ExpiresAt)
	assert.True(t, status.ExpiresAt.Equal(now.Add(time.Hour)))

	other, err := svc.Status(context.Background(), "sid-2")
	require.NoError(t, err)
	assert.False(t, other.Present)

	token, _, err := svc.ForSession("sid-1").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, raw, token)
}

func TestAuthServiceLoginValidation(t *testing.T) {
	repo := &mockAdminAuth{token: "x"}
	svc := NewAuthService(repo, repository.NewMemoryTokenRepository(), nil, nil, AuthConfig{})

	_, err := svc.Login(context.Background(), "sid", models.LoginRequest{Username: "admin"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Zero(t, repo.calls)
}

func TestAuthServiceLoginRejected(t *testing.T) {
	repo := &mockAdminAuth{err: appErrors.Upstream(401, "Invalid credentials")}
	store := repository.NewMemoryTokenRepository()
	svc := NewAuthService(repo, store, nil, nil, AuthConfig{})

	_, err := svc.Login(context.Background(), "sid", models.LoginRequest{Username: "admin", Password: "bad"})
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", appErrors.FromError(err).Message)

	status, err := svc.Status(context.Background(), "sid")
	require.NoError(t, err)
	assert.False(t, status.Present)
}

func TestAuthServiceExpiredToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := repository.NewMemoryTokenRepository()
	require.NoError(t, store.Set(context.Background(), "sid", "token", signedToken(t, now.Add(-time.Minute)), 0))

	svc := NewAuthService(&mockAdminAuth{}, store, nil, nil, AuthConfig{})
	svc.now = func() time.Time { return now }

	status, err := svc.Status(context.Background(), "sid")
	require.NoError(t, err)
	assert.True(t, status.Present)
	assert.True(t, status.Expired)
	assert.False(t, status.Authenticated())
}

func TestAuthServiceOpaqueTokenIsAccepted(t *testing.T) {
	store := repository.NewMemoryTokenRepository()
	require.NoError(t, store.Set(context.Background(), "sid", "token", "not-a-jwt", 0))
	svc := NewAuthService(&mockAdminAuth{}, store, nil, nil, AuthConfig{})

	status, err := svc.Status(context.Background(), "sid")
	require.NoError(t, err)
	assert.True(t, status.Authenticated())
	assert.Nil(t, status.ExpiresAt)
}

func TestAuthServiceLogout(t *testing.T) {
	svc := NewAuthService(&mockAdminAuth{token: "opaque"}, repository.NewMemoryTokenRepository(), nil, nil, AuthConfig{})
	_, err := svc.Login(context.Background(), "sid", models.LoginRequest{Username: "a", Password: "b"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), "sid"))
	status, err := svc.Status(context.Background(), "sid")
	require.NoError(t, err)
	assert.False(t, status.Present)
}
