package authxero

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// refreshScheduler renews the token pair shortly before the access token
// expires. It is owned by the SessionManager: armed on every entry into
// Authenticated and cancelled on every exit, so a stale timer can never act
// on a torn-down session.
type refreshScheduler struct {
	manager *SessionManager

	mu   sync.Mutex
	stop chan struct{}
}

func newRefreshScheduler(m *SessionManager) *refreshScheduler {
	return &refreshScheduler{manager: m}
}

// arm replaces any pending schedule with a new one firing after interval.
func (s *refreshScheduler) arm(interval time.Duration) {
	s.mu.Lock()
	if s.stop != nil {
		close(s.stop)
	}
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	go s.run(stop, interval)
}

// cancel invalidates the pending schedule. Safe to call repeatedly.
func (s *refreshScheduler) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *refreshScheduler) run(stop <-chan struct{}, interval time.Duration) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			ctx := context.Background()
			if err := s.manager.refreshWithRetry(ctx, stop); err != nil {
				// the manager already escalated; this schedule is done
				return
			}
			timer.Reset(s.manager.nextRefreshInterval(ctx))
		}
	}
}

// refreshWithRetry renews the pair with bounded retries. A missing refresh
// token escalates immediately. After maxAttempts failures the session is
// forcibly terminated with a session-timeout reason.
func (m *SessionManager) refreshWithRetry(ctx context.Context, cancel <-chan struct{}) error {
	maxAttempts := m.cfg.GetMaxRefreshAttempts()
	baseDelay := m.cfg.GetRetryBaseDelay()

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pair, err := m.tokens.Tokens(ctx)
		if err == nil && pair.RefreshToken == "" {
			err = ErrInvalidRefreshToken
			m.logger.Info("refresh aborted: no refresh token held")
			m.forceTerminate(ctx, TerminationReasonTimeout, err)
			return err
		}

		if err == nil {
			var renewed *TokenPair
			renewed, err = m.client.Refresh(ctx, pair.RefreshToken)
			if err == nil {
				if err := m.tokens.SetTokens(ctx, renewed.AccessToken, renewed.RefreshToken); err != nil {
					return err
				}
				m.setError(nil)
				m.recordActivity(ctx, ActivityEvent{
					EventType: ActivityEventRefreshSuccess,
					Metadata:  map[string]any{"attempt": attempt},
				})
				return nil
			}
		}

		lastErr = err
		m.logger.Info("token refresh attempt %d/%d failed: %v", attempt, maxAttempts, err)

		if attempt < maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * baseDelay):
			case <-cancel:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRefreshFailure,
		Metadata:  map[string]any{"attempts": maxAttempts, "error": errString(lastErr)},
	})
	m.forceTerminate(ctx, TerminationReasonTimeout, lastErr)
	return lastErr
}

// nextRefreshInterval computes when the scheduler should fire: the access
// token's real exp claim when it is a JWT, the configured lifetime
// otherwise, minus the refresh buffer.
func (m *SessionManager) nextRefreshInterval(ctx context.Context) time.Duration {
	lifetime := m.cfg.GetAccessTokenTTL()
	buffer := m.cfg.GetRefreshBuffer()

	if pair, err := m.tokens.Tokens(ctx); err == nil && pair.AccessToken != "" {
		if exp, ok := tokenExpiry(pair.AccessToken); ok {
			lifetime = exp.Sub(m.now())
		}
	}

	interval := lifetime - buffer
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// tokenExpiry extracts the exp claim without verifying the signature; the
// value only drives local scheduling, never authorization.
func tokenExpiry(raw string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
