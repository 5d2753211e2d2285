package authxero

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/nacl/secretbox"
)

// credentialRecord is the single-row model backing the SQLite token store.
// Token material is sealed with secretbox before it touches disk.
type credentialRecord struct {
	bun.BaseModel `bun:"table:authxero_credentials,alias:axc"`

	Scope            string    `bun:"scope,pk"`
	AccessToken      []byte    `bun:"access_token"`
	RefreshToken     []byte    `bun:"refresh_token"`
	AccessExpiresAt  time.Time `bun:"access_expires_at"`
	RefreshExpiresAt time.Time `bun:"refresh_expires_at"`
	UpdatedAt        time.Time `bun:"updated_at"`
}

// SQLiteTokenStore persists the token pair across process restarts, sealed
// at rest. It fills the same role the browser's http-only cookie jar does
// for the hosted dashboard: credentials survive a restart but still honor
// their expiry horizons.
type SQLiteTokenStore struct {
	db    *bun.DB
	key   [32]byte
	scope string

	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	logger     Logger
}

// OpenSQLite opens (or creates) the backing database for a token store.
func OpenSQLite(path string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open token database")
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// NewSQLiteTokenStore creates a persistent store scoped under the given
// name. The sealing key must be exactly 32 bytes.
func NewSQLiteTokenStore(ctx context.Context, db *bun.DB, scope string, sealKey []byte, cfg Config) (*SQLiteTokenStore, error) {
	if len(sealKey) != 32 {
		return nil, goerrors.New("sealing key must be 32 bytes", goerrors.CategoryValidation).
			WithTextCode("INVALID_SEAL_KEY")
	}
	if scope == "" {
		scope = "default"
	}

	s := &SQLiteTokenStore{
		db:         db,
		scope:      scope,
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		now:        time.Now,
		logger:     defLogger{},
	}
	copy(s.key[:], sealKey)

	if _, err := db.NewCreateTable().
		Model((*credentialRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create credential table")
	}

	return s, nil
}

// WithLogger overrides the fallback logger.
func (s *SQLiteTokenStore) WithLogger(logger Logger) *SQLiteTokenStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *SQLiteTokenStore) WithClock(clock func() time.Time) *SQLiteTokenStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

// SetTokens seals and upserts the whole pair in a single statement.
func (s *SQLiteTokenStore) SetTokens(ctx context.Context, access, refresh string) error {
	sealedAccess, err := s.seal(access)
	if err != nil {
		return err
	}
	sealedRefresh, err := s.seal(refresh)
	if err != nil {
		return err
	}

	now := s.now()
	rec := &credentialRecord{
		Scope:            s.scope,
		AccessToken:      sealedAccess,
		RefreshToken:     sealedRefresh,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
		UpdatedAt:        now,
	}

	if _, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (scope) DO UPDATE").
		Set("access_token = EXCLUDED.access_token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("access_expires_at = EXCLUDED.access_expires_at").
		Set("refresh_expires_at = EXCLUDED.refresh_expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist credentials")
	}

	return nil
}

// Tokens unseals the stored pair, dropping entries past their horizon.
// A missing row is a plain empty pair, not an error.
func (s *SQLiteTokenStore) Tokens(ctx context.Context) (TokenPair, error) {
	rec := new(credentialRecord)
	err := s.db.NewSelect().
		Model(rec).
		Where("scope = ?", s.scope).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return TokenPair{}, nil
		}
		return TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read credentials")
	}

	now := s.now()
	pair := TokenPair{}

	if len(rec.AccessToken) > 0 && now.Before(rec.AccessExpiresAt) {
		if token, ok := s.open(rec.AccessToken); ok {
			pair.AccessToken = token
		}
	}
	if len(rec.RefreshToken) > 0 && now.Before(rec.RefreshExpiresAt) {
		if token, ok := s.open(rec.RefreshToken); ok {
			pair.RefreshToken = token
		}
	}

	return pair, nil
}

// ClearTokens removes the scoped row entirely.
func (s *SQLiteTokenStore) ClearTokens(ctx context.Context) error {
	if _, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("scope = ?", s.scope).
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear credentials")
	}
	return nil
}

func (s *SQLiteTokenStore) seal(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate seal nonce")
	}

	return secretbox.Seal(nonce[:], []byte(token), &nonce, &s.key), nil
}

func (s *SQLiteTokenStore) open(sealed []byte) (string, bool) {
	if len(sealed) < 24 {
		return "", false
	}

	var nonce [24]byte
	copy(nonce[:], sealed[:24])

	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		s.logger.Error("credential unseal failed, treating entry as absent")
		return "", false
	}

	return string(plain), true
}
