package authxero

import (
	"context"
	"sync"
	"time"
)

// TokenPair bundles the access and refresh credentials. The pair is always
// written and cleared together; a read never observes exactly one of the two.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// IsZero reports whether neither token is present.
func (p TokenPair) IsZero() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// TokenStore persists the credential pair with independent expirations.
// It is the only component allowed to hold credential material; reads of
// missing or expired entries return zero values, never an error.
type TokenStore interface {
	SetTokens(ctx context.Context, access, refresh string) error
	Tokens(ctx context.Context) (TokenPair, error)
	ClearTokens(ctx context.Context) error
}

// MemoryTokenStore keeps the pair in process memory behind a mutex. It is
// the default store and the direct substitute for an http-only cookie jar.
type MemoryTokenStore struct {
	mu sync.RWMutex

	access           string
	refresh          string
	accessExpiresAt  time.Time
	refreshExpiresAt time.Time

	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewMemoryTokenStore creates a store with the configured TTLs.
func NewMemoryTokenStore(cfg Config) *MemoryTokenStore {
	return &MemoryTokenStore{
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		now:        time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (s *MemoryTokenStore) WithClock(clock func() time.Time) *MemoryTokenStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

// SetTokens replaces the whole pair in one operation.
func (s *MemoryTokenStore) SetTokens(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.access = access
	s.refresh = refresh
	s.accessExpiresAt = now.Add(s.accessTTL)
	s.refreshExpiresAt = now.Add(s.refreshTTL)

	return nil
}

// Tokens returns the current pair, dropping any entry past its horizon.
func (s *MemoryTokenStore) Tokens(ctx context.Context) (TokenPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	pair := TokenPair{}

	if s.access != "" && now.Before(s.accessExpiresAt) {
		pair.AccessToken = s.access
	}
	if s.refresh != "" && now.Before(s.refreshExpiresAt) {
		pair.RefreshToken = s.refresh
	}

	return pair, nil
}

// ClearTokens drops both entries together.
func (s *MemoryTokenStore) ClearTokens(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
	s.refresh = ""
	s.accessExpiresAt = time.Time{}
	s.refreshExpiresAt = time.Time{}

	return nil
}
