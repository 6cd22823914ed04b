// Package backend implements HTTP adapters for the external RUC registries.
// Each adapter turns one (identifier, backend) attempt into a typed
// LookupResult; failures are values the chain interprets, never errors.
package backend

import (
	"time"
)

// Config describes one external lookup source. Built once at startup from
// configuration and immutable thereafter.
type Config struct {
	// Name identifies the backend in logs, progress output, and the shared
	// rate gate.
	Name string `yaml:"name" mapstructure:"name"`

	// Priority ranks the backend in the chain; lower is tried first.
	Priority int `yaml:"priority" mapstructure:"priority"`

	// URL is the request template. The literal "{ruc}" is replaced with the
	// identifier.
	URL string `yaml:"url" mapstructure:"url"`

	// Params are query parameters; values may contain "{ruc}".
	Params map[string]string `yaml:"params" mapstructure:"params"`

	// Headers are sent verbatim on every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// ResponseField is the JSON field holding the legal name. When it is
	// missing or empty, fallbackFields are probed in order.
	ResponseField string `yaml:"response_field" mapstructure:"response_field"`

	// MinSpacing is the minimum interval between any two requests to this
	// backend, across all workers. Enforced by the engine, not the adapter.
	MinSpacing time.Duration `yaml:"min_spacing" mapstructure:"min_spacing"`

	// Timeout bounds a single lookup attempt.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// RequiresKey marks backends that must not be attempted without APIKey.
	RequiresKey bool   `yaml:"requires_key" mapstructure:"requires_key"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
}

// Usable reports whether the backend may be attempted: a keyed backend
// without a key is skipped by the chain without counting as an attempt.
func (c Config) Usable() bool {
	return !c.RequiresKey || c.APIKey != ""
}

// Defaults returns the known registries in priority order: the two free
// APIs first, the keyed one last.
func Defaults() []Config {
	return []Config{
		{
			Name:          "apis.net.pe",
			Priority:      1,
			URL:           "https://api.apis.net.pe/v1/ruc",
			Params:        map[string]string{"numero": "{ruc}"},
			Headers:       map[string]string{"Accept": "application/json"},
			ResponseField: "razonSocial",
			MinSpacing:    500 * time.Millisecond,
			Timeout:       15 * time.Second,
		},
		{
			Name:          "ruc.pe",
			Priority:      2,
			URL:           "https://ruc.pe/api/v1/ruc/{ruc}",
			Headers:       map[string]string{"Accept": "application/json"},
			ResponseField: "razon_social",
			MinSpacing:    500 * time.Millisecond,
			Timeout:       10 * time.Second,
		},
		{
			Name:          "facturapi",
			Priority:      3,
			URL:           "https://api.facturapi.io/v1/organizations/lookup",
			Params:        map[string]string{"q": "{ruc}"},
			Headers:       map[string]string{"Accept": "application/json"},
			ResponseField: "legal_name",
			MinSpacing:    time.Second,
			Timeout:       10 * time.Second,
			RequiresKey:   true,
		},
	}
}
