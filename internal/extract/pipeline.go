package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/qb-bastiaan/invoice-processor-app/constants"
	"github.com/qb-bastiaan/invoice-processor-app/internal/common"
	"github.com/qb-bastiaan/invoice-processor-app/internal/schema"
)

const (
	responsePreviewLen = 100
	parsedSnippetLen   = 250
)

// Validator checks a parsed document against the invoice schema. A failed
// validation is a normal outcome, never an error.
type Validator interface {
	Validate(doc map[string]any) schema.Outcome
}

// Persister writes the enriched document and returns the deterministic output
// filename. The write is all-or-nothing.
type Persister interface {
	Save(doc map[string]any) (string, error)
}

// Pipeline drives one document through the three model passes, JSON
// extraction, enrichment, validation and persistence. One Pipeline serves one
// request at a time; it holds no per-document state between calls.
type Pipeline struct {
	Logger       *slog.Logger
	Model        ModelCaller
	Validator    Validator
	Persister    Persister
	SystemPrompt string

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

func NewPipeline(logger *slog.Logger, model ModelCaller, validator Validator, persister Persister, systemPrompt string) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Logger:       logger,
		Model:        model,
		Validator:    validator,
		Persister:    persister,
		SystemPrompt: systemPrompt,
		now:          time.Now,
	}
}

// Process runs the full state machine for one document, emitting a snapshot to
// sink on every transition. Any failure inside per-document processing is
// captured into the returned record; Process itself never returns an error.
// The final emission, and only the final one, has IsLastUpdateForFile set.
func (p *Pipeline) Process(ctx context.Context, doc Document, progress Progress, sink Sink) Record {
	rec := &Record{
		FileName: doc.Name,
		Status:   constants.StatusProcessingStarted,
	}
	emit := func() { sink.FileUpdate(progress, rec.Snapshot()) }
	emit()

	start := p.now()
	if err := p.run(ctx, doc, rec, emit); err != nil {
		p.Logger.Error("pipeline.document_failed",
			"file", doc.Name, "status", rec.Status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		detail := err.Error()
		rec.ErrorDetail = &detail
		if !rec.Status.IsError() {
			rec.Status = constants.StatusErrorProcessingFile
		}
		rec.ParsedData = map[string]any{
			"error":   "Processing failed for this file",
			"details": detail,
		}
		snippet := "Error in processing."
		rec.ParsedDataSnippet = &snippet
	} else {
		p.Logger.Info("pipeline.document_ok",
			"file", doc.Name, "output", rec.OutputFilename, "status", rec.Status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}

	rec.IsLastUpdateForFile = true
	emit()
	return rec.Snapshot()
}

// run executes the happy path; every returned error is per-document.
func (p *Pipeline) run(ctx context.Context, doc Document, rec *Record, emit func()) error {
	// Prepare: read, encode, detect media type. The preview payload rides on
	// exactly one emission and is cleared right after.
	prepared, err := PrepareDocument(doc, p.Logger)
	if err != nil {
		return err
	}
	rec.Status = constants.StatusPreparedForGemini
	rec.PreviewMediaType = prepared.Inline.MediaType
	rec.PreviewData = prepared.Base64Data
	rec.PageCount = prepared.PageCount
	emit()
	rec.PreviewMediaType = ""
	rec.PreviewData = ""

	// Pass 1: structural analysis, free text.
	rec.Status = constants.StatusPass1Calling
	emit()
	pass1Text, err := p.call(ctx, prepared.Inline, []string{BuildPass1Prompt()})
	if err != nil {
		return err
	}
	if pass1Text == "" {
		return fmt.Errorf("gemini (pass 1: structural analysis) returned no text: %w", common.ErrDocument)
	}
	rec.Status = constants.StatusPass1Complete
	emit()

	// Pass 2: region identification, seeded with a bounded pass-1 summary.
	rec.Status = constants.StatusPass2Calling
	emit()
	pass2Text, err := p.call(ctx, prepared.Inline, []string{
		ContextPart(1, pass1Text),
		BuildPass2Prompt(pass1Text),
	})
	if err != nil {
		return err
	}
	if pass2Text == "" {
		return fmt.Errorf("gemini (pass 2: region identification) returned no text: %w", common.ErrDocument)
	}
	rec.Status = constants.StatusPass2Complete
	emit()

	// Pass 3: field extraction into a single JSON object.
	rec.Status = constants.StatusPass3Calling
	emit()
	pass3Text, err := p.call(ctx, prepared.Inline, []string{
		ContextPart(1, pass1Text),
		ContextPart(2, pass2Text),
		BuildPass3Prompt(pass1Text, pass2Text),
	})
	if err != nil {
		return err
	}
	if pass3Text == "" {
		return fmt.Errorf("gemini (pass 3: json extraction) returned no text: %w", common.ErrDocument)
	}
	preview := truncate(pass3Text, responsePreviewLen) + "..."
	rec.GeminiResponsePreview = &preview
	rec.Status = constants.StatusPass3Complete
	emit()

	// JSON extraction across the untrusted boundary.
	parsed, err := ParseModelJSON(pass3Text)
	if err != nil {
		return err
	}

	// Enrichment overwrites any same-named fields the model produced.
	parsed["original_filename"] = doc.Name
	parsed["processing_timestamp"] = p.now().UTC().Format(time.RFC3339)
	rec.ParsedData = parsed
	rec.ParsedDataSnippet = snippetOf(parsed)
	rec.Status = constants.StatusParsedAndEnriched
	emit()

	// Validation downgrades the status but never stops persistence.
	outcome := p.Validator.Validate(parsed)
	parsed["__validation_details"] = outcome.AsMap()
	rec.ParsedData = parsed
	if outcome.Passed() {
		rec.Status = constants.StatusValidationPassed
	} else {
		rec.Status = constants.StatusValidationFailed
		detail := "Schema validation failed: " + outcome.ErrorsSummary
		rec.ErrorDetail = &detail
	}
	emit()

	// Persist; the output filename is recorded only on success.
	outputName, err := p.Persister.Save(parsed)
	if err != nil {
		return common.NewAppError("FILE_SAVE_ERROR", fmt.Sprintf("file save error: %v", err), common.ErrDocument)
	}
	rec.OutputFilename = outputName
	rec.Status = constants.StatusSavedSuccessfully
	return nil
}

// call shields the model call from consumer disconnects: once a pass has
// started it runs to its natural end even if the stream consumer goes away.
// The model client applies its own timeout.
func (p *Pipeline) call(ctx context.Context, inline InlineDocument, parts []string) (string, error) {
	text, err := p.Model.GenerateText(context.WithoutCancel(ctx), p.SystemPrompt, inline, parts)
	if err != nil {
		return "", fmt.Errorf("gemini call failed: %w", err)
	}
	return text, nil
}

func snippetOf(parsed map[string]any) *string {
	b, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		s := "(unrenderable)"
		return &s
	}
	s := truncate(string(b), parsedSnippetLen) + "\n..."
	return &s
}
