package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-registration-portal/internal/models"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
)

type adminAuthenticator interface {
	Login(ctx context.Context, creds models.LoginRequest) (*models.AdminSession, error)
}

type tokenStore interface {
	Get(ctx context.Context, sessionID, key string) (string, error)
	Set(ctx context.Context, sessionID, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, sessionID, key string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// AuthConfig defines where and for how long admin tokens are kept.
type AuthConfig struct {
	TokenKey string
	TokenTTL time.Duration
}

// AuthService obtains admin bearer tokens from the registration server and keeps them per
// portal session.
type AuthService struct {
	repo      adminAuthenticator
	store     tokenStore
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	parser    *jwt.Parser
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo adminAuthenticator, store tokenStore, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TokenKey == "" {
		config.TokenKey = "token"
	}
	return &AuthService{
		repo:      repo,
		store:     store,
		validator: validate,
		logger:    logger,
		config:    config,
		parser:    jwt.NewParser(),
		now:       time.Now,
	}
}

// Login forwards credentials to the registration server and stores the issued token
// for the session.
func (s *AuthService) Login(ctx context.Context, sessionID string, req models.LoginRequest) (*models.AdminSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "username and password are required")
	}

	session, err := s.repo.Login(ctx, req)
	if err != nil {
		s.logger.Info("admin login failed", zap.String("username", req.Username), zap.Error(err))
		return nil, err
	}
	if err := s.store.Set(ctx, sessionID, s.config.TokenKey, session.Token, s.config.TokenTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store token")
	}
	s.logger.Info("admin logged in", zap.String("username", session.Username))
	return session, nil
}

// Logout drops the session's token.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID, s.config.TokenKey); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear token")
	}
	return nil
}

// Forget removes everything stored for the session.
func (s *AuthService) Forget(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}

// Status describes the token held for the session.
func (s *AuthService) Status(ctx context.Context, sessionID string) (models.TokenStatus, error) {
	_, status, err := s.Token(ctx, sessionID)
	return status, err
}

// Token returns the stored token and its status. A missing token is not an error.
func (s *AuthService) Token(ctx context.Context, sessionID string) (string, models.TokenStatus, error) {
	token, err := s.store.Get(ctx, sessionID, s.config.TokenKey)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return "", models.TokenStatus{}, nil
		}
		return "", models.TokenStatus{}, err
	}
	if token == "" {
		return "", models.TokenStatus{}, nil
	}
	return token, s.inspect(token), nil
}

// ForSession binds the token lookup to one session.
func (s *AuthService) ForSession(sessionID string) *SessionToken {
	return &SessionToken{auth: s, sessionID: sessionID}
}

// inspect reads exp and sub without verifying the signature. The registration server
// remains the authority; tokens that are not JWTs are treated as non-expiring.
func (s *AuthService) inspect(token string) models.TokenStatus {
	status := models.TokenStatus{Present: true}
	claims := jwt.MapClaims{}
	if _, _, err := s.parser.ParseUnverified(token, claims); err != nil {
		s.logger.Debug("token is not a parseable jwt", zap.Error(err))
		return status
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		at := exp.Time
		status.ExpiresAt = &at
		status.Expired = !s.now().Before(at)
	}
	if sub, err := claims.GetSubject(); err == nil {
		status.Subject = sub
	}
	return status
}

// SessionToken resolves the admin token of a single session.
type SessionToken struct {
	auth      *AuthService
	sessionID string
}

// Token implements the roster viewer's token lookup.
func (t *SessionToken) Token(ctx context.Context) (string, models.TokenStatus, error) {
	return t.auth.Token(ctx, t.sessionID)
}
