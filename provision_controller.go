package authxero

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/hashid/pkg/hashid"
)

// PlatformTypes enumerates the integration targets the setup wizard offers.
var PlatformTypes = []any{"nextjs", "react", "vue", "vanilla"}

// ProvisionControllerRoutes holds the route paths for the provisioning API.
type ProvisionControllerRoutes struct {
	Validate string
	Complete string
}

// ProvisionController backs the client-registration setup endpoints. It is
// a thin collaborator over the rate limiter, the domain prober, and the
// config cache; it owns no state of its own.
type ProvisionController struct {
	Debug        bool
	Logger       Logger
	Routes       *ProvisionControllerRoutes
	Limiter      RateLimiter
	Prober       *DomainProber
	Cache        ConfigCache
	Validator    TokenValidator
	Sink         ActivitySink
	ErrorHandler func(ctx router.Context, err error) error
}

// ProvisionControllerOption customizes controller construction.
type ProvisionControllerOption func(*ProvisionController) *ProvisionController

// WithProvisionLogger overrides the fallback logger.
func WithProvisionLogger(logger Logger) ProvisionControllerOption {
	return func(c *ProvisionController) *ProvisionController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithProvisionLimiter sets the rate limiter guarding both endpoints.
func WithProvisionLimiter(limiter RateLimiter) ProvisionControllerOption {
	return func(c *ProvisionController) *ProvisionController {
		c.Limiter = limiter
		return c
	}
}

// WithProvisionProber sets the domain prober.
func WithProvisionProber(prober *DomainProber) ProvisionControllerOption {
	return func(c *ProvisionController) *ProvisionController {
		c.Prober = prober
		return c
	}
}

// WithProvisionCache sets the config cache.
func WithProvisionCache(cache ConfigCache) ProvisionControllerOption {
	return func(c *ProvisionController) *ProvisionController {
		c.Cache = cache
		return c
	}
}

// WithProvisionValidator enables offline bearer validation on the
// setup-completion endpoint.
func WithProvisionValidator(validator TokenValidator) ProvisionControllerOption {
	return func(c *ProvisionController) *ProvisionController {
		c.Validator = validator
		return c
	}
}

// WithProvisionActivitySink sets the audit sink for allow/deny decisions.
func WithProvisionActivitySink(sink ActivitySink) ProvisionControllerOption {
	return func(c *ProvisionController) *ProvisionController {
		c.Sink = normalizeActivitySink(sink)
		return c
	}
}

// NewProvisionController builds a controller with default routes.
func NewProvisionController(opts ...ProvisionControllerOption) *ProvisionController {
	c := &ProvisionController{
		Logger: defLogger{},
		Sink:   noopActivitySink{},
		Routes: &ProvisionControllerRoutes{
			Validate: "/api/setup/validate",
			Complete: "/api/setup/complete",
		},
	}
	c.ErrorHandler = c.defaultErrHandler

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Limiter == nil {
		panic("Missing RateLimiter in provision controller...")
	}

	if c.Prober == nil {
		panic("Missing DomainProber in provision controller...")
	}

	if c.Cache == nil {
		panic("Missing ConfigCache in provision controller...")
	}

	return c
}

// RegisterProvisionRoutes wires the provisioning endpoints into the app.
func RegisterProvisionRoutes[T any](app router.Router[T], opts ...ProvisionControllerOption) {
	controller := NewProvisionController(opts...)

	app.
		Post(controller.Routes.Validate, controller.SetupValidate).
		SetName("setup-validate.post")

	app.
		Post(controller.Routes.Complete, controller.SetupComplete).
		SetName("setup-complete.post")
}

// SetupValidateRequest payload
type SetupValidateRequest struct {
	Domain       string `form:"domain" json:"domain"`
	PlatformType string `form:"platform_type" json:"platform_type"`
	Timestamp    int64  `form:"timestamp" json:"timestamp"`
}

// Validate will run validation rules
func (r SetupValidateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Domain, validation.Required, is.Host),
		validation.Field(&r.PlatformType, validation.Required, validation.In(PlatformTypes...)),
	)
}

// SetupCompleteRequest payload
type SetupCompleteRequest struct {
	ClientID     string `form:"client_id" json:"client_id"`
	Domain       string `form:"domain" json:"domain"`
	PlatformType string `form:"platform_type" json:"platform_type"`
}

// Validate will run validation rules
func (r SetupCompleteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Domain, validation.Required, is.Host),
		validation.Field(&r.PlatformType, validation.Required, validation.In(PlatformTypes...)),
	)
}

// SetupValidate checks that a setup request is within the caller's rate
// budget and that the supplied domain answers at all.
func (c *ProvisionController) SetupValidate(ctx router.Context) error {
	callerID := c.callerID(ctx)

	if ok, err := c.allow(ctx, callerID); err != nil {
		return c.ErrorHandler(ctx, err)
	} else if !ok {
		return c.reject(ctx, callerID)
	}

	payload := new(SetupValidateRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, fiber.Map{
			"error": err.Error(),
			"code":  TextCodeValidation,
		})
	}

	if c.Debug {
		fmt.Println("======= SETUP VALIDATE ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=============================")
	}

	reachable := c.Prober.IsReachable(ctx.Context(), payload.Domain)

	c.record(ctx, ActivityEventProvisionAllowed, map[string]any{
		"caller":    callerID,
		"domain":    payload.Domain,
		"reachable": reachable,
	})

	return ctx.JSON(router.StatusOK, fiber.Map{
		"domain":    payload.Domain,
		"reachable": reachable,
	})
}

// SetupComplete returns the integration configuration for a registered
// client, re-using the cached copy when the registration was verified
// inside the TTL window.
func (c *ProvisionController) SetupComplete(ctx router.Context) error {
	callerID := c.callerID(ctx)

	if ok, err := c.allow(ctx, callerID); err != nil {
		return c.ErrorHandler(ctx, err)
	} else if !ok {
		return c.reject(ctx, callerID)
	}

	if err := c.authorize(ctx); err != nil {
		return ctx.JSON(router.StatusUnauthorized, fiber.Map{
			"error": "invalid bearer token",
			"code":  TextCodeOf(err),
		})
	}

	payload := new(SetupCompleteRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, fiber.Map{
			"error": err.Error(),
			"code":  TextCodeValidation,
		})
	}

	clientID := payload.ClientID
	if clientID == "" {
		if id, err := hashid.NewUUID(payload.Domain); err == nil {
			clientID = id.String()
		}
	}

	if cached, err := c.Cache.Get(ctx.Context(), clientID); err != nil {
		return c.ErrorHandler(ctx, err)
	} else if cached != nil {
		return ctx.JSON(router.StatusOK, fiber.Map{
			"config": cached,
			"cached": true,
		})
	}

	if !c.Prober.IsReachable(ctx.Context(), payload.Domain) {
		c.record(ctx, ActivityEventProvisionRejected, map[string]any{
			"caller": callerID,
			"domain": payload.Domain,
			"reason": "domain unreachable",
		})
		return ctx.JSON(router.StatusBadRequest, fiber.Map{
			"error": "domain is not reachable",
			"code":  "DOMAIN_UNREACHABLE",
		})
	}

	cfg := &ClientConfig{
		ClientID:     clientID,
		Domain:       payload.Domain,
		PlatformType: payload.PlatformType,
		IssuedAt:     time.Now(),
	}

	if err := c.Cache.Put(ctx.Context(), clientID, cfg); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	c.record(ctx, ActivityEventProvisionAllowed, map[string]any{
		"caller":    callerID,
		"client_id": clientID,
		"domain":    payload.Domain,
	})

	return ctx.JSON(router.StatusOK, fiber.Map{
		"config": cfg,
		"cached": false,
	})
}

func (c *ProvisionController) allow(ctx router.Context, callerID string) (bool, error) {
	ok, err := c.Limiter.Allow(ctx.Context(), callerID)
	if err != nil {
		c.Logger.Error("rate limiter error for %s: %v", callerID, err)
		return false, err
	}
	return ok, nil
}

func (c *ProvisionController) reject(ctx router.Context, callerID string) error {
	c.record(ctx, ActivityEventProvisionRejected, map[string]any{
		"caller": callerID,
		"reason": "rate limited",
	})

	return ctx.JSON(router.StatusTooManyRequests, fiber.Map{
		"error": ErrRateLimitExceeded.Message,
		"code":  TextCodeRateLimited,
	})
}

// authorize validates the optional bearer token on setup completion when a
// validator is configured.
func (c *ProvisionController) authorize(ctx router.Context) error {
	if c.Validator == nil {
		return nil
	}

	raw := ctx.Header(router.HeaderAuthorization)
	if raw == "" {
		return nil
	}

	token := strings.TrimPrefix(raw, "Bearer ")
	if _, err := c.Validator.Validate(token); err != nil {
		return err
	}
	return nil
}

// callerID identifies the requester for rate limiting, preferring proxy
// headers over nothing at all.
func (c *ProvisionController) callerID(ctx router.Context) string {
	if ip := ctx.Header("X-Forwarded-For"); ip != "" {
		if idx := strings.IndexByte(ip, ','); idx > 0 {
			return strings.TrimSpace(ip[:idx])
		}
		return ip
	}
	if ip := ctx.Header("X-Real-IP"); ip != "" {
		return ip
	}
	return "unknown"
}

func (c *ProvisionController) record(ctx router.Context, event ActivityEventType, meta map[string]any) {
	sink := normalizeActivitySink(c.Sink)
	if err := sink.Record(ctx.Context(), ActivityEvent{
		EventType:  event,
		Metadata:   meta,
		OccurredAt: time.Now(),
	}); err != nil {
		c.Logger.Info("provision activity sink error: %v", err)
	}
}

func (c *ProvisionController) defaultErrHandler(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	c.Logger.Info(
		"Provisioning error handler: %s category=%s details=%s",
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	if richErr.Code == 0 {
		clone := richErr.Clone()
		if clone == nil {
			clone = richErr
		}
		richErr = clone.WithCode(goerrors.CodeInternal)
	}

	return ctx.JSON(richErr.Code, fiber.Map{
		"error": richErr.Message,
		"code":  richErr.TextCode,
	})
}
