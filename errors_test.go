package authxero_test

import (
	"errors"
	"net/http"
	"testing"

	authxero "github.com/PhillipGimmi/go-authxero"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyErrorProperties(t *testing.T) {
	tests := []struct {
		name     string
		err      *goerrors.Error
		textCode string
		code     int
		category goerrors.Category
	}{
		{
			name:     "invalid credentials",
			err:      authxero.ErrInvalidCredentials,
			textCode: authxero.TextCodeInvalidCredentials,
			code:     goerrors.CodeUnauthorized,
			category: goerrors.CategoryAuth,
		},
		{
			name:     "email not verified",
			err:      authxero.ErrEmailNotVerified,
			textCode: authxero.TextCodeEmailNotVerified,
			code:     goerrors.CodeForbidden,
			category: goerrors.CategoryAuthz,
		},
		{
			name:     "session expired",
			err:      authxero.ErrSessionExpired,
			textCode: authxero.TextCodeSessionExpired,
			code:     goerrors.CodeUnauthorized,
			category: goerrors.CategoryAuth,
		},
		{
			name:     "invalid refresh token",
			err:      authxero.ErrInvalidRefreshToken,
			textCode: authxero.TextCodeInvalidRefresh,
			code:     goerrors.CodeUnauthorized,
			category: goerrors.CategoryAuth,
		},
		{
			name:     "email exists",
			err:      authxero.ErrEmailExists,
			textCode: authxero.TextCodeEmailExists,
			code:     goerrors.CodeConflict,
			category: goerrors.CategoryConflict,
		},
		{
			name:     "invalid verification code",
			err:      authxero.ErrInvalidCode,
			textCode: authxero.TextCodeInvalidCode,
			code:     goerrors.CodeBadRequest,
			category: goerrors.CategoryBadInput,
		},
		{
			name:     "too many attempts",
			err:      authxero.ErrTooManyAttempts,
			textCode: authxero.TextCodeTooManyAttempts,
			code:     http.StatusTooManyRequests,
			category: goerrors.CategoryRateLimit,
		},
		{
			name:     "rate limit exceeded",
			err:      authxero.ErrRateLimitExceeded,
			textCode: authxero.TextCodeRateLimited,
			code:     http.StatusTooManyRequests,
			category: goerrors.CategoryRateLimit,
		},
		{
			name:     "server error",
			err:      authxero.ErrServer,
			textCode: authxero.TextCodeServerError,
			code:     goerrors.CodeInternal,
			category: goerrors.CategoryInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.textCode, tt.err.TextCode)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.category, tt.err.Category)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, authxero.IsRateLimited(authxero.ErrRateLimitExceeded))
	assert.True(t, authxero.IsRateLimited(authxero.ErrTooManyAttempts))
	assert.False(t, authxero.IsRateLimited(authxero.ErrInvalidCredentials))
	assert.False(t, authxero.IsRateLimited(errors.New("plain error")))
	assert.False(t, authxero.IsRateLimited(nil))
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, authxero.IsUnauthorized(authxero.ErrInvalidCredentials))
	assert.True(t, authxero.IsUnauthorized(authxero.ErrSessionExpired))
	assert.True(t, authxero.IsUnauthorized(authxero.ErrInvalidRefreshToken))
	assert.False(t, authxero.IsUnauthorized(authxero.ErrEmailExists))
	assert.False(t, authxero.IsUnauthorized(errors.New("plain error")))
}

func TestTextCodeOf(t *testing.T) {
	assert.Equal(t, authxero.TextCodeEmailExists, authxero.TextCodeOf(authxero.ErrEmailExists))
	assert.Empty(t, authxero.TextCodeOf(errors.New("plain error")))
	assert.Empty(t, authxero.TextCodeOf(nil))
}

func TestRetryAfterAbsentByDefault(t *testing.T) {
	_, ok := authxero.RetryAfter(authxero.ErrRateLimitExceeded)
	assert.False(t, ok)

	_, ok = authxero.RetryAfter(errors.New("plain error"))
	assert.False(t, ok)
}

func TestInvalidSessionTransitionError(t *testing.T) {
	err := authxero.ErrInvalidSessionTransition
	require.NotNil(t, err)
	assert.Equal(t, goerrors.CategoryValidation, err.Category)
	assert.Equal(t, goerrors.CodeBadRequest, err.Code)
}
