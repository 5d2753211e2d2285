package authxero

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// DomainProber performs a best-effort liveness check against a registered
// domain. It is bounded by the configured timeout through cooperative
// cancellation and resolves to false rather than hanging or failing: this
// is a reachability hint, not a security control.
type DomainProber struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     Logger
}

// NewDomainProber creates a prober with the configured timeout.
func NewDomainProber(cfg Config) *DomainProber {
	timeout := cfg.GetProbeTimeout()
	return &DomainProber{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     defLogger{},
	}
}

// WithLogger overrides the fallback logger.
func (p *DomainProber) WithLogger(logger Logger) *DomainProber {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithHTTPClient overrides the underlying transport (useful for tests).
func (p *DomainProber) WithHTTPClient(client *http.Client) *DomainProber {
	if client != nil {
		p.httpClient = client
	}
	return p
}

// IsReachable probes the domain, aborting the request once the deadline
// passes. Only a successful, non-error HTTP response counts as reachable;
// every transport failure collapses to false.
func (p *DomainProber) IsReachable(ctx context.Context, domain string) bool {
	target := domain
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("domain probe failed for %s: %v", domain, err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusBadRequest
}
