package authxero

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	headerRequestID    = "X-Request-ID"
	headerRefreshToken = "X-Refresh-Token"
)

// Client talks to the remote AuthXero service. It implements AuthClient and
// never lets a raw transport error or status code escape untranslated.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     Logger
}

// NewClient returns a Client for the configured base URL.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.GetBaseURL(), "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     defLogger{},
	}
}

// WithLogger overrides the fallback logger.
func (c *Client) WithLogger(logger Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithHTTPClient overrides the underlying transport (useful for tests).
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.httpClient = client
	}
	return c
}

// Login implements AuthClient.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	result := new(AuthResult)
	if err := c.do(ctx, http.MethodPost, "/login", creds, "", nil, result); err != nil {
		return nil, c.translate("login", err, map[int]error{
			http.StatusUnauthorized: ErrInvalidCredentials,
			http.StatusForbidden:    ErrEmailNotVerified,
		})
	}

	result.RequiresVerification = result.User != nil && !result.User.EmailVerified
	return result, nil
}

// Signup implements AuthClient.
func (c *Client) Signup(ctx context.Context, payload SignupPayload) (*AuthResult, error) {
	result := new(AuthResult)
	if err := c.do(ctx, http.MethodPost, "/register", payload, "", nil, result); err != nil {
		return nil, c.translate("signup", err, map[int]error{
			http.StatusConflict:   ErrEmailExists,
			http.StatusBadRequest: ErrValidation,
		})
	}

	result.RequiresVerification = result.User != nil && !result.User.EmailVerified
	return result, nil
}

// VerifySession implements AuthClient.
func (c *Client) VerifySession(ctx context.Context, accessToken string) (*User, error) {
	user := new(User)
	if err := c.do(ctx, http.MethodGet, "/me", nil, accessToken, nil, user); err != nil {
		return nil, c.translate("verify_session", err, map[int]error{
			http.StatusUnauthorized: ErrSessionExpired,
		})
	}
	return user, nil
}

// Refresh implements AuthClient. The refresh token travels in a dedicated
// header, never in the body.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair := new(TokenPair)
	headers := map[string]string{headerRefreshToken: refreshToken}
	if err := c.do(ctx, http.MethodPost, "/refresh-token", nil, "", headers, pair); err != nil {
		return nil, c.translate("refresh", err, map[int]error{
			http.StatusUnauthorized: ErrInvalidRefreshToken,
		})
	}
	return pair, nil
}

// VerifyEmail implements AuthClient.
func (c *Client) VerifyEmail(ctx context.Context, code, accessToken string) (*VerifyEmailResult, error) {
	body := map[string]string{"code": code}
	result := new(VerifyEmailResult)
	if err := c.do(ctx, http.MethodPost, "/verify-email", body, accessToken, nil, result); err != nil {
		return nil, c.translate("verify_email", err, map[int]error{
			http.StatusBadRequest:      ErrInvalidCode,
			http.StatusTooManyRequests: ErrTooManyAttempts,
		})
	}
	return result, nil
}

// ResendVerification implements AuthClient.
func (c *Client) ResendVerification(ctx context.Context, accessToken string) error {
	if err := c.do(ctx, http.MethodPost, "/resend-verification", nil, accessToken, nil, nil); err != nil {
		return c.translate("resend_verification", err, nil)
	}
	return nil
}

// Logout implements AuthClient. Failures are reported to the caller but the
// session manager treats them as best-effort.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	if err := c.do(ctx, http.MethodPost, "/logout", nil, accessToken, nil, nil); err != nil {
		return c.translate("logout", err, nil)
	}
	return nil
}

// httpError is the untranslated intermediate failure produced by do. It
// stays inside the client; translate maps it into the taxonomy.
type httpError struct {
	status     int
	code       string
	message    string
	retryAfter time.Duration
	transport  error
}

func (e *httpError) Error() string {
	if e.transport != nil {
		return e.transport.Error()
	}
	return e.message
}

// serviceErrorBody is the error envelope the remote service returns.
type serviceErrorBody struct {
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, bearer string, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &httpError{transport: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &httpError{transport: err}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &httpError{transport: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &httpError{transport: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var envelope serviceErrorBody
		_ = json.Unmarshal(raw, &envelope)

		message := envelope.Message
		if message == "" {
			message = envelope.Error
		}

		return &httpError{
			status:     resp.StatusCode,
			code:       envelope.Code,
			message:    message,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &httpError{status: resp.StatusCode, transport: err}
	}

	return nil
}

// translate maps the intermediate failure onto the taxonomy, applying the
// per-operation overrides first.
func (c *Client) translate(op string, err error, overrides map[int]error) error {
	httpErr, ok := err.(*httpError)
	if !ok {
		return transportError(op, err)
	}

	if httpErr.transport != nil {
		c.logger.Error("%s transport failure: %v", op, httpErr.transport)
		return transportError(op, httpErr.transport)
	}

	if override, exists := overrides[httpErr.status]; exists {
		c.logger.Debug("%s rejected with status %d", op, httpErr.status)
		if rich, isRich := override.(*goerrors.Error); isRich && httpErr.status == http.StatusTooManyRequests {
			return withRetryAfter(rich, httpErr.retryAfter)
		}
		return override
	}

	if httpErr.status == http.StatusTooManyRequests {
		rich := serviceError(op, httpErr.status, httpErr.code, httpErr.message)
		return withRetryAfter(rich, httpErr.retryAfter)
	}

	return serviceError(op, httpErr.status, httpErr.code, httpErr.message)
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
