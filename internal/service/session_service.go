package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type registryClient interface {
	registrar
	rosterSource
}

// SessionConfig tunes session lifetime.
type SessionConfig struct {
	TTL time.Duration
}

// Session is the server-side state of one browser: its forms and roster viewers.
type Session struct {
	ID     string
	Wizard *RegistrationForm
	Flat   *RegistrationForm
	Roster *RosterViewer
	Admin  *RosterViewer

	lastSeen time.Time
}

// Form returns the form with the given name, or nil.
func (s *Session) Form(name string) *RegistrationForm {
	switch name {
	case s.Wizard.Name():
		return s.Wizard
	case s.Flat.Name():
		return s.Flat
	}
	return nil
}

func (s *Session) busy() bool {
	return s.Wizard.Submitting() || s.Flat.Submitting()
}

// SessionService owns every live session. Sessions idle longer than the TTL are swept
// when a new session is created.
type SessionService struct {
	mu       sync.Mutex
	sessions map[string]*Session

	registry  registryClient
	files     fileReleaser
	auth      *AuthService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    SessionConfig
	now       func() time.Time
}

// NewSessionService constructs an empty session table.
func NewSessionService(registry registryClient, files fileReleaser, auth *AuthService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{
		sessions:  make(map[string]*Session),
		registry:  registry,
		files:     files,
		auth:      auth,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Resolve returns the live session for id, creating a fresh one when id is unknown or
// expired. The second result reports whether a session was created.
func (s *SessionService) Resolve(ctx context.Context, id string) (*Session, bool) {
	if sess, ok := s.Get(ctx, id); ok {
		return sess, false
	}
	return s.Create(ctx), true
}

// Get returns a live session and refreshes its idle timer. A session with a submission
// in flight is kept alive past its TTL.
func (s *SessionService) Get(ctx context.Context, id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	now := s.now()
	if s.expiredLocked(sess, now) && !sess.busy() {
		delete(s.sessions, id)
		n := len(s.sessions)
		s.mu.Unlock()
		s.metrics.SetActiveSessions(n)
		s.close(ctx, sess)
		return nil, false
	}
	sess.lastSeen = now
	s.mu.Unlock()
	return sess, true
}

// Create starts a new session after sweeping expired ones.
func (s *SessionService) Create(ctx context.Context) *Session {
	s.Sweep(ctx)

	id := uuid.NewString()
	logger := s.logger.With(zap.String("session_id", id))
	sess := &Session{
		ID:     id,
		Wizard: NewRegistrationForm(WizardConfig(), s.registry, s.files, s.metrics, s.validator, logger),
		Flat:   NewRegistrationForm(FlatConfig(), s.registry, s.files, s.metrics, s.validator, logger),
		Roster: NewOpenRoster(s.registry, logger),
	}
	var tokens tokenSource
	if s.auth != nil {
		tokens = s.auth.ForSession(id)
	}
	sess.Admin = NewAdminRoster(s.registry, tokens, logger)

	s.mu.Lock()
	sess.lastSeen = s.now()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	logger.Debug("session created")
	return sess
}

// Sweep closes idle sessions and returns how many were removed. Sessions with a
// submission in flight are kept until it settles.
func (s *SessionService) Sweep(ctx context.Context) int {
	if s.config.TTL <= 0 {
		return 0
	}
	now := s.now()
	var expired []*Session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if s.expiredLocked(sess, now) && !sess.busy() {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		s.close(ctx, sess)
	}
	if len(expired) > 0 {
		s.metrics.SetActiveSessions(n)
		s.logger.Info("expired sessions swept", zap.Int("count", len(expired)), zap.Int("active", n))
	}
	return len(expired)
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionService) expiredLocked(sess *Session, now time.Time) bool {
	return s.config.TTL > 0 && now.Sub(sess.lastSeen) >= s.config.TTL
}

func (s *SessionService) close(ctx context.Context, sess *Session) {
	sess.Wizard.Reset()
	sess.Flat.Reset()
	if s.auth == nil {
		return
	}
	if err := s.auth.Forget(ctx, sess.ID); err != nil {
		s.logger.Warn("forget session tokens", zap.String("session_id", sess.ID), zap.Error(err))
	}
}
