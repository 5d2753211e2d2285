package authxero

import (
	"context"
	"sync"
	"time"
)

// TerminationReasonTimeout is passed to the termination handler when the
// refresh scheduler exhausted its attempts. The UI layer carries it as a
// query parameter to the sign-in entry point.
const (
	TerminationReasonTimeout = "session_timeout"
	TerminationReasonInvalid = "session_invalid"
)

// TerminationHandler is invoked after a forced termination so the embedding
// layer can redirect to a re-authentication entry point with a reason code.
type TerminationHandler func(reason string, err error)

// SessionManager owns the session record and orchestrates the token store,
// the remote client, and the background refresh scheduler. All state is
// guarded by a mutex; token writes are atomic by replacement, so a logout
// racing an in-flight refresh always wins.
type SessionManager struct {
	mu sync.Mutex

	client AuthClient
	tokens TokenStore
	cfg    Config

	status    SessionStatus
	user      *User
	lastError error

	scheduler   *refreshScheduler
	logger      Logger
	sink        ActivitySink
	now         func() time.Time
	onTerminate TerminationHandler
}

// SessionManagerOption customizes manager construction.
type SessionManagerOption func(*SessionManager)

// WithSessionLogger overrides the fallback logger.
func WithSessionLogger(logger Logger) SessionManagerOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSessionActivitySink sets the ActivitySink used to publish session events.
func WithSessionActivitySink(sink ActivitySink) SessionManagerOption {
	return func(m *SessionManager) {
		m.sink = normalizeActivitySink(sink)
	}
}

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithTerminationHandler registers the forced-termination callback.
func WithTerminationHandler(handler TerminationHandler) SessionManagerOption {
	return func(m *SessionManager) {
		if handler != nil {
			m.onTerminate = handler
		}
	}
}

// NewSessionManager builds a manager in the Initializing state. Call Start
// to run the startup verification.
func NewSessionManager(client AuthClient, tokens TokenStore, cfg Config, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		client:      client,
		tokens:      tokens,
		cfg:         cfg,
		status:      StatusInitializing,
		logger:      defLogger{},
		sink:        noopActivitySink{},
		now:         time.Now,
		onTerminate: func(string, error) {},
	}

	m.scheduler = newRefreshScheduler(m)

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Snapshot returns a read-only copy of the current session record.
func (m *SessionManager) Snapshot() SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var user *User
	if m.user != nil {
		copied := *m.user
		user = &copied
	}

	return SessionSnapshot{
		User:      user,
		Status:    m.status,
		LastError: m.lastError,
	}
}

// Start runs the startup check: with no stored access token the session is
// simply unauthenticated; otherwise the token is verified remotely and a
// failure tears the session down.
func (m *SessionManager) Start(ctx context.Context) error {
	pair, err := m.tokens.Tokens(ctx)
	if err != nil {
		m.logger.Error("Start token read error: %v", err)
		return m.transition(ctx, StatusUnauthenticated, false)
	}

	if pair.AccessToken == "" {
		return m.transition(ctx, StatusUnauthenticated, false)
	}

	user, err := m.client.VerifySession(ctx, pair.AccessToken)
	if err != nil {
		m.logger.Info("Startup session verification failed: %v", err)
		m.forceTerminate(ctx, TerminationReasonInvalid, err)
		return err
	}

	m.setUser(user)
	if user.EmailVerified {
		return m.transition(ctx, StatusAuthenticated, false)
	}
	return m.transition(ctx, StatusUnverified, false)
}

// Login authenticates against the remote service and stores the returned
// token pair. An unverified account lands in Unverified and the result is
// flagged so the caller can route to the verification flow.
func (m *SessionManager) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	result, err := m.client.Login(ctx, creds)
	if err != nil {
		m.setError(err)
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata:  map[string]any{"email": creds.Email, "error": err.Error()},
		})
		return nil, err
	}

	return m.adoptResult(ctx, result, ActivityEventLoginSuccess)
}

// Signup registers a new account. The remote service issues tokens even
// when email verification is still pending; those tokens are stored but the
// session stays Unverified until the code is confirmed.
func (m *SessionManager) Signup(ctx context.Context, payload SignupPayload) (*AuthResult, error) {
	result, err := m.client.Signup(ctx, payload)
	if err != nil {
		m.setError(err)
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSignupFailure,
			Metadata:  map[string]any{"email": payload.Email, "error": err.Error()},
		})
		return nil, err
	}

	return m.adoptResult(ctx, result, ActivityEventSignupSuccess)
}

func (m *SessionManager) adoptResult(ctx context.Context, result *AuthResult, event ActivityEventType) (*AuthResult, error) {
	if err := m.tokens.SetTokens(ctx, result.Token, result.RefreshToken); err != nil {
		m.setError(err)
		return nil, err
	}

	m.setUser(result.User)

	target := StatusAuthenticated
	if result.RequiresVerification {
		target = StatusUnverified
	}
	if err := m.transition(ctx, target, false); err != nil {
		return nil, err
	}

	userID := ""
	if result.User != nil {
		userID = result.User.ID
	}
	m.recordActivity(ctx, ActivityEvent{
		EventType: event,
		UserID:    userID,
		Metadata:  map[string]any{"requires_verification": result.RequiresVerification},
	})

	return result, nil
}

// VerifyEmail confirms the pending address. On success an Unverified
// session is promoted to Authenticated.
func (m *SessionManager) VerifyEmail(ctx context.Context, code string) (*VerifyEmailResult, error) {
	access, err := m.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	result, err := m.client.VerifyEmail(ctx, code, access)
	if err != nil {
		m.setError(err)
		return nil, err
	}

	m.mu.Lock()
	if m.user != nil {
		updated := *m.user
		updated.EmailVerified = true
		m.user = &updated
	}
	promote := m.status == StatusUnverified
	m.mu.Unlock()

	if promote {
		if err := m.transition(ctx, StatusAuthenticated, false); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// ResendVerification asks the remote service for a fresh verification code.
func (m *SessionManager) ResendVerification(ctx context.Context) error {
	access, err := m.accessToken(ctx)
	if err != nil {
		return err
	}

	if err := m.client.ResendVerification(ctx, access); err != nil {
		m.setError(err)
		return err
	}

	return nil
}

// Refresh renews the token pair on demand with the same retry and
// escalation policy the background scheduler applies.
func (m *SessionManager) Refresh(ctx context.Context) error {
	return m.refreshWithRetry(ctx, nil)
}

// Logout tears the local session down. The remote call is best-effort: a
// failure is logged and reported through the activity sink, but local
// tokens are always cleared and the session always ends.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusUnauthenticated {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.transition(ctx, StatusTerminating, false); err != nil {
		return err
	}

	pair, err := m.tokens.Tokens(ctx)
	if err == nil && pair.AccessToken != "" {
		if err := m.client.Logout(ctx, pair.AccessToken); err != nil {
			m.logger.Info("Remote logout failed, clearing local session anyway: %v", err)
		}
	}

	if err := m.tokens.ClearTokens(ctx); err != nil {
		m.logger.Error("Logout token clear error: %v", err)
	}

	m.setUser(nil)
	return m.transition(ctx, StatusUnauthenticated, false)
}

// forceTerminate clears all session state in response to an unrecoverable
// failure, bypassing transition validation.
func (m *SessionManager) forceTerminate(ctx context.Context, reason string, cause error) {
	if err := m.tokens.ClearTokens(ctx); err != nil {
		m.logger.Error("forced termination token clear error: %v", err)
	}

	m.mu.Lock()
	m.user = nil
	m.lastError = cause
	m.mu.Unlock()

	if err := m.transition(ctx, StatusUnauthenticated, true); err != nil {
		m.logger.Error("forced termination transition error: %v", err)
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventForcedTermination,
		Metadata:  map[string]any{"reason": reason, "error": errString(cause)},
	})

	m.onTerminate(reason, cause)
}

// transition moves the session to the target status, arming or cancelling
// the refresh scheduler as the session enters or leaves Authenticated.
func (m *SessionManager) transition(ctx context.Context, target SessionStatus, force bool) error {
	m.mu.Lock()
	from := m.status

	if from == target {
		m.mu.Unlock()
		return nil
	}

	if !force && !canTransitionSession(from, target) {
		m.mu.Unlock()
		clone := ErrInvalidSessionTransition.Clone()
		if clone == nil {
			clone = ErrInvalidSessionTransition
		}
		return clone.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	m.status = target
	m.mu.Unlock()

	if target == StatusAuthenticated {
		m.scheduler.arm(m.nextRefreshInterval(ctx))
	} else if from == StatusAuthenticated {
		// a dangling timer firing against a torn-down session is a
		// correctness bug, not just a leak
		m.scheduler.cancel()
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventSessionStatusChanged,
		FromStatus: from,
		ToStatus:   target,
	})

	return nil
}

func (m *SessionManager) setUser(user *User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user
	m.lastError = nil
}

func (m *SessionManager) setError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastError = err
}

func (m *SessionManager) accessToken(ctx context.Context) (string, error) {
	pair, err := m.tokens.Tokens(ctx)
	if err != nil {
		return "", err
	}
	if pair.AccessToken == "" {
		return "", ErrSessionExpired
	}
	return pair.AccessToken, nil
}

func (m *SessionManager) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}

	if event.UserID == "" {
		m.mu.Lock()
		if m.user != nil {
			event.UserID = m.user.ID
		}
		m.mu.Unlock()
	}

	sink := normalizeActivitySink(m.sink)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Info("session activity sink error: %v", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
