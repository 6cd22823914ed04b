package model

// LookupStatus classifies the result of one (identifier, backend) attempt.
type LookupStatus string

const (
	// StatusResolved means the backend returned a usable legal name.
	StatusResolved LookupStatus = "resolved"
	// StatusNotFound means the backend authoritatively reported absence
	// (HTTP 404, or a 2xx payload with no usable name field).
	StatusNotFound LookupStatus = "not_found"
	// StatusInvalidInput means the backend rejected the identifier format (422).
	StatusInvalidInput LookupStatus = "invalid_input"
	// StatusRateLimited means the backend refused the request (429).
	StatusRateLimited LookupStatus = "rate_limited"
	// StatusTransient covers timeouts, connection faults, and 5xx responses.
	StatusTransient LookupStatus = "transient"
	// StatusPermanent covers unexpected non-retryable responses (other 4xx,
	// undecodable payloads).
	StatusPermanent LookupStatus = "permanent"
)

// LookupResult is the typed outcome of a single backend attempt. Failures
// are values, never errors: only the chain interprets them.
type LookupResult struct {
	Status LookupStatus
	Value  string // resolved legal name, set only when Status == StatusResolved
	Detail string // diagnostic detail for transient/permanent failures
}

// Resolved constructs a successful lookup result.
func Resolved(value string) LookupResult {
	return LookupResult{Status: StatusResolved, Value: value}
}

// Outcome is the final per-identifier result after the chain is exhausted
// or short-circuited by a success.
type Outcome struct {
	RUC           RUC
	Resolved      bool
	Value         string // legal name when Resolved
	SourceBackend string // backend that produced the value

	// Exhaustion evidence: whether any backend authoritatively reported
	// absence or invalidity. Drives the sentinel write.
	SawNotFound bool
	SawInvalid  bool

	Attempts int // backends actually attempted (credential-skipped excluded)
}

// Sentinel returns the terminal marker to persist for an exhausted outcome,
// or "" when the identifier should stay pending. Invalidity wins over
// absence: a backend that rejects the format is stronger evidence than one
// that merely has no record.
func (o Outcome) Sentinel() string {
	if o.Resolved {
		return ""
	}
	if o.SawInvalid {
		return SentinelInvalid
	}
	if o.SawNotFound {
		return SentinelNotFound
	}
	return ""
}
