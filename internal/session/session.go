package session

import (
	"context"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/authority"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/pkg/apperrors"
)

// State describes the session lifecycle.
type State int

const (
	// StateUninitialized means CheckAuth has not run yet.
	StateUninitialized State = iota
	// StateUnauthenticated means no usable credential exists.
	StateUnauthenticated
	// StateAuthenticated means a credential was verified against the
	// authority and has not yet expired.
	StateAuthenticated
	// StateExpired means the held credential's expiry has passed since
	// it was verified; it is treated identically to absence on the next
	// CheckAuth.
	StateExpired
)

// Session holds the current credential and identity and gates every
// other operation. It is safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	client    *authority.Client
	store     TokenStore
	logger    *zap.Logger
	token     string
	user      *domain.User
	expiresAt time.Time
	checked   bool
	lastError string
}

// New builds a session backed by the given credential store. The session
// owns the authority client so every remote call carries its token.
func New(authorityURL string, timeout time.Duration, store TokenStore, logger *zap.Logger) *Session {
	s := &Session{store: store, logger: logger}
	s.client = authority.NewClient(authorityURL, timeout, s.Token)
	return s
}

// Client returns the authority client bound to this session.
func (s *Session) Client() *authority.Client {
	return s.client
}

// Token returns the current bearer token, or an empty string.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// User returns the authenticated account, or nil.
func (s *Session) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Role returns the active role and whether one is present.
func (s *Session) Role() (domain.Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return "", false
	}
	return s.user.Role, true
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.checked:
		return StateUninitialized
	case s.user == nil:
		return StateUnauthenticated
	case !s.expiresAt.IsZero() && time.Now().After(s.expiresAt):
		return StateExpired
	default:
		return StateAuthenticated
	}
}

// IsAuthenticated reports whether a valid identity is active.
func (s *Session) IsAuthenticated() bool {
	return s.State() == StateAuthenticated
}

// LastError returns the human-readable message of the most recent
// failure, or an empty string.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// CheckAuth attempts silent session restoration from the stored
// credential. A missing, expired or rejected token falls back to the
// unauthenticated state without error; the stored token is cleared so the
// user is forced to re-authenticate. Only credential-store failures are
// returned.
func (s *Session) CheckAuth(ctx context.Context) error {
	token, err := s.store.Read(ctx)
	if err != nil {
		return apperrors.NewInternal(err)
	}
	if token == "" {
		s.reset("")
		return nil
	}

	expiresAt, err := tokenExpiry(token)
	if err != nil || !expiresAt.After(time.Now()) {
		s.logger.Info("stored credential expired or unreadable; discarding")
		_ = s.store.Clear(ctx)
		s.reset("")
		return nil
	}

	s.setToken(token, expiresAt)
	user, err := s.client.Me(ctx)
	if err != nil {
		s.logger.Warn("silent session restoration failed", zap.Error(err))
		_ = s.store.Clear(ctx)
		s.reset(apperrors.From(err).Message)
		return nil
	}

	s.setUser(user)
	return nil
}

// Login authenticates explicitly. Failures are surfaced to the caller
// for retry; no automatic retry exists anywhere in this core.
func (s *Session) Login(ctx context.Context, email, password string) error {
	result, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.recordError(err)
		return err
	}
	return s.adopt(ctx, result)
}

// Register creates an account and adopts the returned session.
func (s *Session) Register(ctx context.Context, input authority.RegisterInput) error {
	result, err := s.client.Register(ctx, input)
	if err != nil {
		s.recordError(err)
		return err
	}
	return s.adopt(ctx, result)
}

// Logout clears the credential unconditionally.
func (s *Session) Logout(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear stored credential", zap.Error(err))
	}
	s.reset("")
	s.markChecked()
}

func (s *Session) adopt(ctx context.Context, result *authority.AuthResult) error {
	expiresAt, err := tokenExpiry(result.Token)
	if err != nil {
		// Without a decodable expiry the client cannot expire the session
		// itself; the authority's own rejection is the only backstop.
		s.logger.Warn("issued credential has no decodable expiry", zap.Error(err))
		expiresAt = time.Time{}
	}
	if err := s.store.Write(ctx, result.Token); err != nil {
		s.logger.Warn("failed to persist credential", zap.Error(err))
	}
	s.setToken(result.Token, expiresAt)
	user := result.User
	s.setUser(&user)
	return nil
}

func (s *Session) setToken(token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
}

func (s *Session) setUser(user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.checked = true
	s.lastError = ""
}

func (s *Session) reset(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	s.expiresAt = time.Time{}
	s.checked = true
	s.lastError = message
}

func (s *Session) markChecked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = true
}

func (s *Session) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = apperrors.From(err).Message
}

// tokenExpiry decodes the exp claim without verifying the signature; the
// client holds no signing key, and the authority re-verifies every call.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, apperrors.NewAuthenticationFailed("token has no expiry")
	}
	return exp.Time, nil
}
