// Package schema wraps the fixed invoice JSON Schema: compiled once per
// process, then shared read-only across requests.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/qb-bastiaan/invoice-processor-app/internal/common"
)

// Violation is one field-level schema violation.
type Violation struct {
	InstanceLocation string `json:"instanceLocation"`
	KeywordLocation  string `json:"keywordLocation"`
	Message          string `json:"message"`
}

// Outcome is the recorded result of checking extracted data against the
// schema. It is attached to the parsed document under a reserved key and is a
// normal, representable result either way.
type Outcome struct {
	Status        string      `json:"status"` // passed | failed
	ErrorsSummary string      `json:"errors_summary,omitempty"`
	ErrorsList    []Violation `json:"errors_list,omitempty"`
}

func (o Outcome) Passed() bool { return o.Status == "passed" }

// AsMap renders the outcome for embedding into the persisted document.
func (o Outcome) AsMap() map[string]any {
	m := map[string]any{"status": o.Status}
	if o.ErrorsSummary != "" {
		m["errors_summary"] = o.ErrorsSummary
	}
	if len(o.ErrorsList) > 0 {
		list := make([]any, 0, len(o.ErrorsList))
		for _, v := range o.ErrorsList {
			list = append(list, map[string]any{
				"instanceLocation": v.InstanceLocation,
				"keywordLocation":  v.KeywordLocation,
				"message":          v.Message,
			})
		}
		m["errors_list"] = list
	}
	return m
}

// Validator holds a compiled schema plus the raw schema document used for
// type coercion and default filling. Immutable after construction.
type Validator struct {
	compiled *jsonschema.Schema
	raw      map[string]any
	logger   *slog.Logger
}

// Compile builds a Validator from raw schema bytes.
func Compile(schemaBytes []byte, logger *slog.Logger) (*Validator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var raw map[string]any
	if err := json.Unmarshal(schemaBytes, &raw); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("invoice_output_schema.json", bytes.NewReader(schemaBytes)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("invoice_output_schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{compiled: compiled, raw: raw, logger: logger}, nil
}

// Validate coerces types and fills defaults per the schema (mutating doc, the
// way the original validator did), then checks the document and collects ALL
// violations. It never returns an error: a structurally-invalid-but-parseable
// document is a failed Outcome, nothing more.
func (v *Validator) Validate(doc map[string]any) Outcome {
	coerceAndDefault(doc, v.raw)

	err := v.compiled.Validate(anyify(doc))
	if err == nil {
		return Outcome{Status: "passed"}
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		// Validate only returns *ValidationError for invalid instances, but
		// keep the failure representable regardless.
		return Outcome{
			Status:        "failed",
			ErrorsSummary: err.Error(),
			ErrorsList:    []Violation{{Message: err.Error()}},
		}
	}

	violations := flatten(ve)
	summary := make([]string, 0, len(violations))
	for _, viol := range violations {
		loc := viol.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		summary = append(summary, loc+" "+viol.Message)
	}
	return Outcome{
		Status:        "failed",
		ErrorsSummary: strings.Join(summary, "; "),
		ErrorsList:    violations,
	}
}

// flatten walks the validation error tree and keeps the leaf causes, so the
// outcome reports every violation rather than just the first.
func flatten(ve *jsonschema.ValidationError) []Violation {
	basic := ve.BasicOutput()
	out := make([]Violation, 0, len(basic.Errors))
	for _, e := range basic.Errors {
		// Skip aggregate nodes; the leaves carry the actionable messages.
		if strings.HasPrefix(e.Error, "doesn't validate with") {
			continue
		}
		out = append(out, Violation{
			InstanceLocation: e.InstanceLocation,
			KeywordLocation:  e.KeywordLocation,
			Message:          e.Error,
		})
	}
	if len(out) == 0 {
		out = append(out, Violation{
			InstanceLocation: ve.InstanceLocation,
			Message:          ve.Message,
		})
	}
	return out
}

// anyify re-normalizes the document through encoding/json semantics so the
// compiled schema sees canonical types after in-place coercion.
func anyify(doc map[string]any) any {
	b, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return doc
	}
	return out
}

// Registry provides the process-wide validator handle with lazy, idempotent
// initialization: the first caller compiles, all later callers reuse.
type Registry struct {
	path   string
	logger *slog.Logger

	once sync.Once
	v    *Validator
	err  error
}

func NewRegistry(path string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{path: path, logger: logger}
}

// Get returns the compiled validator, compiling it on first use. A failure to
// load or compile the schema file is stream-fatal for callers.
func (r *Registry) Get() (*Validator, error) {
	r.once.Do(func() {
		raw, err := os.ReadFile(r.path)
		if err != nil {
			r.err = common.NewAppError("SCHEMA_LOAD_ERROR",
				fmt.Sprintf("read schema file %s", r.path), err)
			return
		}
		r.v, r.err = Compile(raw, r.logger)
		if r.err == nil {
			r.logger.Info("schema.compiled", "path", r.path)
		}
	})
	return r.v, r.err
}
