package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractName_DeclaredField(t *testing.T) {
	payload := map[string]any{"razonSocial": "TELEFONICA DEL PERU SAA"}
	assert.Equal(t, "TELEFONICA DEL PERU SAA", extractName(payload, "razonSocial"))
}

func TestExtractName_FallbackOrder(t *testing.T) {
	// Declared field absent; falls through the known spellings in order.
	payload := map[string]any{
		"nombre":       "BANCO DE CREDITO DEL PERU",
		"legal_name":   "SHOULD NOT WIN",
	}
	assert.Equal(t, "BANCO DE CREDITO DEL PERU", extractName(payload, "razonSocial"))
}

func TestExtractName_TrimsWhitespace(t *testing.T) {
	payload := map[string]any{"razon_social": "  ACME SAC  "}
	assert.Equal(t, "ACME SAC", extractName(payload, "razon_social"))
}

func TestExtractName_RejectsShortValues(t *testing.T) {
	// Values of three characters or fewer are junk placeholders.
	payload := map[string]any{"razonSocial": "N/A"}
	assert.Empty(t, extractName(payload, "razonSocial"))
}

func TestExtractName_NonStringField(t *testing.T) {
	payload := map[string]any{"razonSocial": 12345, "nombre": "EMPRESA DEL SUR SA"}
	assert.Equal(t, "EMPRESA DEL SUR SA", extractName(payload, "razonSocial"))
}

func TestExtractName_Empty(t *testing.T) {
	assert.Empty(t, extractName(map[string]any{}, "razonSocial"))
	assert.Empty(t, extractName(map[string]any{"estado": "ACTIVO"}, "razonSocial"))
}
