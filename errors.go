package authxero

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Stable machine codes surfaced to API consumers and logged alongside errors.
const (
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	TextCodeSessionExpired     = "SESSION_EXPIRED"
	TextCodeInvalidRefresh     = "INVALID_REFRESH_TOKEN"
	TextCodeEmailExists        = "EMAIL_EXISTS"
	TextCodeValidation         = "VALIDATION_ERROR"
	TextCodeInvalidCode        = "INVALID_VERIFICATION_CODE"
	TextCodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	TextCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	TextCodeServerError        = "SERVER_ERROR"
)

// metadata key under which RateLimited errors carry the server's Retry-After hint
const retryAfterKey = "retry_after"

// ErrInvalidCredentials is returned when the remote service rejects a login.
var ErrInvalidCredentials = goerrors.New("Invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotVerified is returned when an operation requires a verified email.
var ErrEmailNotVerified = goerrors.New("email address has not been verified", goerrors.CategoryAuthz).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(goerrors.CodeForbidden)

// ErrSessionExpired is returned when the access token no longer identifies a session.
var ErrSessionExpired = goerrors.New("session has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidRefreshToken is returned when the remote service rejects a refresh token.
var ErrInvalidRefreshToken = goerrors.New("refresh token is invalid or revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidRefresh).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailExists is returned when signup hits an already registered address.
var ErrEmailExists = goerrors.New("Email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailExists).
	WithCode(goerrors.CodeConflict)

// ErrValidation is returned when the remote service rejects a malformed payload.
var ErrValidation = goerrors.New("invalid request payload", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidCode is returned when an email verification code is wrong or stale.
var ErrInvalidCode = goerrors.New("verification code is invalid or expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidCode).
	WithCode(goerrors.CodeBadRequest)

// ErrTooManyAttempts is returned when verification attempts are throttled remotely.
var ErrTooManyAttempts = goerrors.New("too many verification attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

// ErrRateLimitExceeded is returned by the provisioning rate limiter and by the
// remote service on throttled requests.
var ErrRateLimitExceeded = goerrors.New("rate limit exceeded", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited).
	WithCode(http.StatusTooManyRequests)

// ErrServer is the catch-all for remote 5xx responses and transport failures.
// Raw transport errors never cross the client boundary.
var ErrServer = goerrors.New("authentication service is unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeServerError).
	WithCode(goerrors.CodeInternal)

// serviceError normalizes a remote status + optional service error code into
// the taxonomy. The original HTTP status is preserved on the error Code so
// callers can branch without string matching. The taxonomy sentinel is cloned
// before metadata is attached; WithMetadata mutates its receiver.
func serviceError(op string, status int, code, message string) *goerrors.Error {
	base := taxonomyFor(status)

	meta := map[string]any{"operation": op, "status": status}
	if code != "" {
		meta["service_code"] = code
	}
	if message != "" && status >= http.StatusInternalServerError {
		// keep the generic message for 5xx, remote details go to metadata only
		meta["details"] = message
	}

	clone := base.Clone()
	if clone == nil {
		clone = base
	}

	return clone.WithMetadata(meta)
}

func taxonomyFor(status int) *goerrors.Error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrSessionExpired
	case status == http.StatusForbidden:
		return ErrEmailNotVerified
	case status == http.StatusNotFound:
		return goerrors.New("resource not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound)
	case status == http.StatusConflict:
		return ErrEmailExists
	case status == http.StatusBadRequest:
		return ErrValidation
	case status == http.StatusTooManyRequests:
		return ErrRateLimitExceeded
	default:
		return ErrServer
	}
}

// transportError wraps a network level failure into the ServerError bucket.
func transportError(op string, err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, "authentication service is unavailable").
		WithTextCode(TextCodeServerError).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{"operation": op})
}

// withRetryAfter attaches the server's Retry-After hint to a rate limit
// error. The input may be a shared sentinel, so it is cloned first.
func withRetryAfter(err *goerrors.Error, retryAfter time.Duration) *goerrors.Error {
	if retryAfter <= 0 {
		return err
	}

	clone := err.Clone()
	if clone == nil {
		clone = err
	}

	return clone.WithMetadata(map[string]any{retryAfterKey: retryAfter})
}

// IsRateLimited reports whether err is a throttling error from either the
// remote service or the local provisioning limiter.
func IsRateLimited(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryRateLimit
}

// IsUnauthorized reports whether err means the current credentials are no
// longer valid (expired session, rejected refresh token, bad login).
func IsUnauthorized(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Code == goerrors.CodeUnauthorized
}

// RetryAfter extracts the Retry-After hint from a rate limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return 0, false
	}
	raw, ok := richErr.Metadata[retryAfterKey]
	if !ok {
		return 0, false
	}
	d, ok := raw.(time.Duration)
	return d, ok
}

// TextCodeOf returns the stable machine code of a taxonomy error, or empty
// string for foreign errors.
func TextCodeOf(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ""
	}
	return richErr.TextCode
}
