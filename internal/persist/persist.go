// Package persist writes enriched, validated invoice records under a
// deterministic name derived from the extracted fields.
package persist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// Fallback tokens used when the corresponding extracted field is absent or
// not a string.
const (
	FallbackSupplier      = "UnknownSupplier"
	FallbackInvoiceNumber = "NoInvoiceNumber"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Persister writes one JSON artifact per successfully processed document.
type Persister struct {
	OutputDir string
	Logger    *slog.Logger

	// now is swappable for tests; it feeds the date fallback only.
	now func() time.Time
}

func New(outputDir string, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{OutputDir: outputDir, Logger: logger, now: time.Now}
}

// Filename computes the deterministic output name
// {supplier}_{date}_{invoiceNumber}.json. It is a pure function of the
// supplier_name, invoice_date and invoice_number fields (after sanitization);
// collisions between distinct documents are not deduplicated.
func (p *Persister) Filename(doc map[string]any) string {
	supplier := FallbackSupplier
	if s, ok := doc["supplier_name"].(string); ok {
		supplier = nonAlphanumeric.ReplaceAllString(s, "_")
	}

	date := p.now().UTC().Format("2006-01-02")
	if s, ok := doc["invoice_date"].(string); ok {
		date = s
	}

	number := FallbackInvoiceNumber
	if s, ok := doc["invoice_number"].(string); ok {
		number = nonAlphanumeric.ReplaceAllString(s, "_")
	}

	return fmt.Sprintf("%s_%s_%s.json", supplier, date, number)
}

// Save writes doc as indented JSON under the computed name. The write is
// all-or-nothing: content lands in a temp file first and is renamed into
// place, so a failure leaves no partial artifact.
func (p *Persister) Save(doc map[string]any) (string, error) {
	name := p.Filename(doc)

	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode output: %w", err)
	}

	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure output dir: %w", err)
	}

	tmp, err := os.CreateTemp(p.OutputDir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp output: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close output: %w", err)
	}

	target := filepath.Join(p.OutputDir, name)
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("finalize output: %w", err)
	}

	p.Logger.Info("persist.saved", "output", name, "bytes", len(content))
	return name, nil
}
