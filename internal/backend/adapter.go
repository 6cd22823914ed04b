package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sunat-tools/ruc-resolver/internal/model"
)

const userAgent = "ruc-resolver/1.0"

// maxBodyBytes caps how much of a registry response is read; the payloads
// are small JSON objects.
const maxBodyBytes = 1 << 20

// Adapter performs lookups against one configured backend.
type Adapter struct {
	cfg  Config
	http *http.Client
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Adapter) {
		a.http = hc
	}
}

// New creates an adapter for one backend config.
func New(cfg Config, opts ...Option) *Adapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	a := &Adapter{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the backend name for logging and the rate gate.
func (a *Adapter) Name() string { return a.cfg.Name }

// Config returns the backend's static configuration.
func (a *Adapter) Config() Config { return a.cfg }

// Usable reports whether the backend's credential prerequisite is met.
func (a *Adapter) Usable() bool { return a.cfg.Usable() }

// Lookup issues one request for the identifier and classifies the response.
// Expected registry outcomes (404, 422, 429, empty payload) are values, not
// errors; only the classification itself can never fail.
func (a *Adapter) Lookup(ctx context.Context, ruc model.RUC) model.LookupResult {
	// A malformed identifier never reaches the wire.
	if _, err := model.ParseRUC(ruc.String()); err != nil {
		return model.LookupResult{Status: model.StatusInvalidInput, Detail: err.Error()}
	}

	req, err := a.buildRequest(ctx, ruc)
	if err != nil {
		return model.LookupResult{Status: model.StatusPermanent, Detail: err.Error()}
	}

	resp, err := a.http.Do(req)
	if err != nil {
		// Transport faults (timeout, reset, DNS) advance the chain. A
		// request that never produced a status line carries no permanent
		// evidence.
		return model.LookupResult{Status: model.StatusTransient, Detail: err.Error()}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.LookupResult{Status: model.StatusNotFound}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return model.LookupResult{Status: model.StatusInvalidInput}
	case resp.StatusCode == http.StatusTooManyRequests:
		return model.LookupResult{Status: model.StatusRateLimited}
	case resp.StatusCode >= 500:
		return model.LookupResult{Status: model.StatusTransient, Detail: fmt.Sprintf("http %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return model.LookupResult{Status: model.StatusPermanent, Detail: fmt.Sprintf("http %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return model.LookupResult{Status: model.StatusTransient, Detail: err.Error()}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.LookupResult{Status: model.StatusPermanent, Detail: "undecodable payload"}
	}

	name := extractName(payload, a.cfg.ResponseField)
	if name == "" {
		// A 2xx with no usable name field is an authoritative miss, not an
		// error.
		zap.L().Debug("backend: empty payload",
			zap.String("backend", a.cfg.Name),
			zap.String("ruc", ruc.String()),
		)
		return model.LookupResult{Status: model.StatusNotFound}
	}

	return model.Resolved(name)
}

// buildRequest expands the URL template and query params for the identifier.
func (a *Adapter) buildRequest(ctx context.Context, ruc model.RUC) (*http.Request, error) {
	target := strings.ReplaceAll(a.cfg.URL, "{ruc}", ruc.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	if len(a.cfg.Params) > 0 {
		q := url.Values{}
		for k, v := range a.cfg.Params {
			q.Set(k, strings.ReplaceAll(v, "{ruc}", ruc.String()))
		}
		req.URL.RawQuery = q.Encode()
	}

	req.Header.Set("User-Agent", userAgent)
	for k, v := range a.cfg.Headers {
		req.Header.Set(k, v)
	}
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}
	return req, nil
}
