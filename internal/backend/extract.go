package backend

import (
	"strings"
)

// fallbackFields lists the name fields observed across registry payloads,
// probed in order when the declared field is absent. The set matters:
// different registries spell the same concept differently.
var fallbackFields = []string{"razonSocial", "razon_social", "nombre", "name", "legal_name"}

// minNameLen rejects junk payloads ("-", "N/A"); anything this short is
// treated as no name at all.
const minNameLen = 3

// extractName pulls the legal name out of a decoded JSON object. It tries
// the declared field first, then the fallbacks in order. Returns "" when no
// usable name is present; the adapter maps that to NotFound, not an error.
func extractName(payload map[string]any, declared string) string {
	if v := stringField(payload, declared); v != "" {
		return v
	}
	for _, f := range fallbackFields {
		if f == declared {
			continue
		}
		if v := stringField(payload, f); v != "" {
			return v
		}
	}
	return ""
}

// stringField returns the trimmed string value of a field, or "" when the
// field is missing, non-string, or too short to be a real name.
func stringField(payload map[string]any, key string) string {
	if key == "" {
		return ""
	}
	raw, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	if len(s) <= minNameLen {
		return ""
	}
	return s
}
