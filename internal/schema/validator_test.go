package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "supplier_name": {"type": "string", "minLength": 1},
    "invoice_number": {"type": "string"},
    "invoice_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "currency_code": {"type": "string", "default": "EUR"},
    "grand_total": {"type": "number"},
    "line_items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "description": {"type": "string"},
          "quantity": {"type": "number"}
        },
        "required": ["description"]
      }
    }
  },
  "required": ["supplier_name", "invoice_number", "invoice_date", "grand_total"],
  "additionalProperties": true
}`

func compileTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := Compile([]byte(testSchema), nil)
	require.NoError(t, err)
	return v
}

func TestValidatePasses(t *testing.T) {
	v := compileTestValidator(t)
	doc := map[string]any{
		"supplier_name":  "Acme GmbH",
		"invoice_number": "INV-42",
		"invoice_date":   "2026-02-01",
		"grand_total":    119.0,
	}
	outcome := v.Validate(doc)
	assert.True(t, outcome.Passed())
	assert.Empty(t, outcome.ErrorsList)
	assert.Empty(t, outcome.ErrorsSummary)
}

func TestValidateFillsDefaults(t *testing.T) {
	v := compileTestValidator(t)
	doc := map[string]any{
		"supplier_name":  "Acme",
		"invoice_number": "1",
		"invoice_date":   "2026-02-01",
		"grand_total":    10.0,
	}
	outcome := v.Validate(doc)
	assert.True(t, outcome.Passed())
	assert.Equal(t, "EUR", doc["currency_code"], "default filled into the document")
}

func TestValidateCoercesTypes(t *testing.T) {
	v := compileTestValidator(t)
	doc := map[string]any{
		"supplier_name":  "Acme",
		"invoice_number": 42.0,      // model emitted a number for a string field
		"invoice_date":   "2026-02-01",
		"grand_total":    "119.50", // and a string for a number field
		"line_items": []any{
			map[string]any{"description": "Widget", "quantity": "3"},
		},
	}
	outcome := v.Validate(doc)
	assert.True(t, outcome.Passed(), "summary: %s", outcome.ErrorsSummary)
	assert.Equal(t, "42", doc["invoice_number"])
	assert.Equal(t, 119.5, doc["grand_total"])
	items := doc["line_items"].([]any)
	assert.Equal(t, 3.0, items[0].(map[string]any)["quantity"])
}

func TestValidateCollectsAllViolations(t *testing.T) {
	v := compileTestValidator(t)
	doc := map[string]any{
		"supplier_name": "",                // minLength violation
		"invoice_date":  "31/01/2026",      // pattern violation
		"grand_total":   map[string]any{},  // type violation, uncoercible
		// invoice_number missing entirely
	}
	outcome := v.Validate(doc)
	require.False(t, outcome.Passed())
	assert.GreaterOrEqual(t, len(outcome.ErrorsList), 3, "all violations reported, not just the first")
	assert.NotEmpty(t, outcome.ErrorsSummary)

	m := outcome.AsMap()
	assert.Equal(t, "failed", m["status"])
	assert.NotEmpty(t, m["errors_list"])
}

func TestValidateNeverRemovesParsedData(t *testing.T) {
	v := compileTestValidator(t)
	doc := map[string]any{"unexpected": "field"}
	outcome := v.Validate(doc)
	assert.False(t, outcome.Passed())
	assert.Equal(t, "field", doc["unexpected"], "failed validation does not discard data")
}

func TestRegistryCompilesOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(testSchema), 0o644))

	r := NewRegistry(path, nil)
	v1, err := r.Get()
	require.NoError(t, err)

	// Replacing the file after first use changes nothing: the handle is
	// compiled once per process lifetime.
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"array"}`), 0o644))
	v2, err := r.Get()
	require.NoError(t, err)
	assert.Same(t, v1, v2)
}

func TestRegistryMissingFile(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "missing.json"), nil)
	_, err := r.Get()
	require.Error(t, err)

	// The failure is sticky, matching the once-only contract.
	_, err2 := r.Get()
	assert.Equal(t, err, err2)
}
