// Package model defines the core domain types for the RUC resolver:
// identifiers, per-backend lookup results, and per-identifier outcomes.
package model

import (
	"github.com/rotisserie/eris"
)

// RUCLength is the fixed length of a Peruvian taxpayer identifier.
const RUCLength = 11

// RUC is a validated Peruvian taxpayer identifier. Immutable once parsed;
// passed by value through the pipeline.
type RUC string

// ParseRUC validates the fixed 11-digit numeric format. It does not verify
// the check digit: the external registries are authoritative on that, and a
// structurally valid but unassigned RUC is simply "not found" downstream.
func ParseRUC(s string) (RUC, error) {
	if len(s) != RUCLength {
		return "", eris.Errorf("ruc: expected %d digits, got %d", RUCLength, len(s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", eris.Errorf("ruc: non-numeric character at position %d", i)
		}
	}
	return RUC(s), nil
}

func (r RUC) String() string { return string(r) }

// Sentinel values persisted in place of a legal name when the chain
// determined the identifier is authoritatively absent or malformed.
// Distinct from NULL, which means "not yet attempted".
const (
	SentinelNotFound = "NO_ENCONTRADO"
	SentinelInvalid  = "INVALIDO"
)

// IsSentinel reports whether a persisted razon_social value is one of the
// terminal markers rather than a real company name.
func IsSentinel(v string) bool {
	return v == SentinelNotFound || v == SentinelInvalid
}
