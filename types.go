package authxero

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// User is the immutable snapshot of the authenticated principal. It is
// replaced wholesale on every successful login, signup, verify, or refresh.
type User struct {
	ID            string     `json:"id,omitempty"`
	Email         string     `json:"email,omitempty"`
	Name          string     `json:"name,omitempty"`
	Role          string     `json:"role,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	IsConfigured  bool       `json:"is_configured"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Credentials is the login payload sent to the remote service.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupPayload is the registration payload sent to the remote service.
type SignupPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// AuthResult is what the remote service returns from login and signup.
// RequiresVerification is set locally when the returned user has an
// unverified email, so callers can route to the verification flow instead
// of the dashboard.
type AuthResult struct {
	Token                string `json:"token"`
	RefreshToken         string `json:"refresh_token"`
	User                 *User  `json:"user"`
	RequiresVerification bool   `json:"-"`
}

// VerifyEmailResult carries the remote response of a verification attempt.
type VerifyEmailResult struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// AuthClient is the outbound surface towards the remote authentication
// service. Every method is a single round trip and every failure is
// normalized into the package error taxonomy before it returns.
type AuthClient interface {
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)
	Signup(ctx context.Context, payload SignupPayload) (*AuthResult, error)
	VerifySession(ctx context.Context, accessToken string) (*User, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	VerifyEmail(ctx context.Context, code, accessToken string) (*VerifyEmailResult, error)
	ResendVerification(ctx context.Context, accessToken string) error
	Logout(ctx context.Context, accessToken string) error
}

// Config holds session and provisioning options
type Config interface {
	GetBaseURL() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetRefreshBuffer() time.Duration
	GetMaxRefreshAttempts() int
	GetRetryBaseDelay() time.Duration
	GetRateLimitWindow() time.Duration
	GetRateLimitMax() int
	GetConfigCacheTTL() time.Duration
	GetProbeTimeout() time.Duration
}

// SimpleConfig implements Config with plain fields. Zero values fall back
// to the library defaults at read time so an empty struct is usable.
type SimpleConfig struct {
	BaseURL            string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RefreshBuffer      time.Duration
	MaxRefreshAttempts int
	RetryBaseDelay     time.Duration
	RateLimitWindow    time.Duration
	RateLimitMax       int
	ConfigCacheTTL     time.Duration
	ProbeTimeout       time.Duration
}

func (c SimpleConfig) GetBaseURL() string {
	return c.BaseURL
}

func (c SimpleConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL <= 0 {
		return 24 * time.Hour
	}
	return c.AccessTokenTTL
}

func (c SimpleConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.RefreshTokenTTL
}

func (c SimpleConfig) GetRefreshBuffer() time.Duration {
	if c.RefreshBuffer <= 0 {
		return 5 * time.Minute
	}
	return c.RefreshBuffer
}

func (c SimpleConfig) GetMaxRefreshAttempts() int {
	if c.MaxRefreshAttempts <= 0 {
		return 3
	}
	return c.MaxRefreshAttempts
}

func (c SimpleConfig) GetRetryBaseDelay() time.Duration {
	if c.RetryBaseDelay <= 0 {
		return time.Second
	}
	return c.RetryBaseDelay
}

func (c SimpleConfig) GetRateLimitWindow() time.Duration {
	if c.RateLimitWindow <= 0 {
		return time.Hour
	}
	return c.RateLimitWindow
}

func (c SimpleConfig) GetRateLimitMax() int {
	if c.RateLimitMax <= 0 {
		return 100
	}
	return c.RateLimitMax
}

func (c SimpleConfig) GetConfigCacheTTL() time.Duration {
	if c.ConfigCacheTTL <= 0 {
		return 5 * time.Minute
	}
	return c.ConfigCacheTTL
}

func (c SimpleConfig) GetProbeTimeout() time.Duration {
	if c.ProbeTimeout <= 0 {
		return 5 * time.Second
	}
	return c.ProbeTimeout
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHXERO "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHXERO "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHXERO "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
