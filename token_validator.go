package authxero

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TextCodeTokenMalformed identifies a token that could not be parsed at all.
const TextCodeTokenMalformed = "TOKEN_MALFORMED"

// ErrTokenMalformed is returned when a bearer token fails to parse.
var ErrTokenMalformed = goerrors.New("Malformed token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// SessionClaims are the claims the service embeds in its access tokens.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID           string `json:"uid,omitempty"`
	Role          string `json:"role,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (*SessionClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (*SessionClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (*SessionClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}

// RemoteTokenValidator verifies tokens offline against the service's
// published JWK Set. The key set refreshes in the background so key
// rotations on the service side do not require a restart.
type RemoteTokenValidator struct {
	jwks   *keyfunc.JWKS
	issuer string
	logger Logger
}

// RemoteTokenValidatorOption customizes validator construction.
type RemoteTokenValidatorOption func(*RemoteTokenValidator) *RemoteTokenValidator

// WithValidatorLogger overrides the fallback logger.
func WithValidatorLogger(logger Logger) RemoteTokenValidatorOption {
	return func(v *RemoteTokenValidator) *RemoteTokenValidator {
		if logger != nil {
			v.logger = logger
		}
		return v
	}
}

// WithValidatorIssuer enforces an expected iss claim.
func WithValidatorIssuer(issuer string) RemoteTokenValidatorOption {
	return func(v *RemoteTokenValidator) *RemoteTokenValidator {
		v.issuer = issuer
		return v
	}
}

// NewRemoteTokenValidator fetches the JWK Set published under the service
// base URL and keeps it fresh.
func NewRemoteTokenValidator(cfg Config, opts ...RemoteTokenValidatorOption) (*RemoteTokenValidator, error) {
	v := &RemoteTokenValidator{logger: defLogger{}}

	for _, opt := range opts {
		v = opt(v)
	}

	jwksURL := strings.TrimSuffix(cfg.GetBaseURL(), "/") + "/.well-known/jwks.json"

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			v.logger.Error("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to fetch JWK Set").
			WithCode(http.StatusBadGateway).
			WithMetadata(map[string]any{"jwks_url": jwksURL})
	}

	v.jwks = jwks

	return v, nil
}

// Validate satisfies the TokenValidator interface. Expired tokens map to the
// session-expired taxonomy error; anything else unparseable is malformed.
func (v *RemoteTokenValidator) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	parserOpts := []jwt.ParserOption{}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrTokenMalformed
	}

	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// Close stops the background key refresh.
func (v *RemoteTokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
