package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qb-bastiaan/invoice-processor-app/constants"
	"github.com/qb-bastiaan/invoice-processor-app/internal/schema"
)

type fakeModel struct {
	responses []string
	errs      []error
	calls     int
	parts     [][]string
}

func (m *fakeModel) GenerateText(_ context.Context, _ string, _ InlineDocument, contextParts []string) (string, error) {
	i := m.calls
	m.calls++
	m.parts = append(m.parts, contextParts)
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	var text string
	if i < len(m.responses) {
		text = m.responses[i]
	}
	return text, err
}

type fakeValidator struct {
	outcome schema.Outcome
	seen    map[string]any
}

func (v *fakeValidator) Validate(doc map[string]any) schema.Outcome {
	v.seen = doc
	return v.outcome
}

type fakePersister struct {
	name  string
	err   error
	saved map[string]any
}

func (p *fakePersister) Save(doc map[string]any) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.saved = doc
	return p.name, nil
}

type captor struct {
	records    []Record
	progresses []Progress
}

func (c *captor) FileUpdate(progress Progress, record Record) {
	c.progresses = append(c.progresses, progress)
	c.records = append(c.records, record)
}

func testDocument(t *testing.T) Document {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "invoice-001.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not really a jpeg"), 0o644))
	return Document{Name: "invoice-001.jpg", Path: path, MediaType: "image/jpeg"}
}

func newTestPipeline(model ModelCaller, validator Validator, persister Persister) *Pipeline {
	p := NewPipeline(nil, model, validator, persister, "system prompt")
	p.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return p
}

func statuses(records []Record) []constants.ProcessingStatus {
	out := make([]constants.ProcessingStatus, 0, len(records))
	for _, r := range records {
		out = append(out, r.Status)
	}
	return out
}

func TestProcessHappyPath(t *testing.T) {
	model := &fakeModel{responses: []string{
		"The invoice has a header, a line items table and a footer.",
		"Supplier name top-left, totals bottom-right.",
		"```json\n{\"supplier_name\":\"Acme GmbH\",\"invoice_number\":\"INV-9\",\"invoice_date\":\"2026-01-31\",\"grand_total\":119}\n```",
	}}
	validator := &fakeValidator{outcome: schema.Outcome{Status: "passed"}}
	persister := &fakePersister{name: "Acme_GmbH_2026-01-31_INV_9.json"}
	sink := &captor{}

	rec := newTestPipeline(model, validator, persister).Process(context.Background(), testDocument(t), Progress{Current: 1, Total: 2}, sink)

	assert.Equal(t, []constants.ProcessingStatus{
		constants.StatusProcessingStarted,
		constants.StatusPreparedForGemini,
		constants.StatusPass1Calling,
		constants.StatusPass1Complete,
		constants.StatusPass2Calling,
		constants.StatusPass2Complete,
		constants.StatusPass3Calling,
		constants.StatusPass3Complete,
		constants.StatusParsedAndEnriched,
		constants.StatusValidationPassed,
		constants.StatusSavedSuccessfully,
	}, statuses(sink.records))

	// Every update carries the same counters.
	for _, p := range sink.progresses {
		assert.Equal(t, Progress{Current: 1, Total: 2}, p)
	}

	// The preview payload rides on exactly one emission.
	var previews int
	for _, r := range sink.records {
		if r.PreviewData != "" {
			previews++
			assert.Equal(t, "image/jpeg", r.PreviewMediaType)
			assert.Equal(t, constants.StatusPreparedForGemini, r.Status)
		}
	}
	assert.Equal(t, 1, previews)

	// isLastUpdateForFile true exactly once, on the last update.
	for i, r := range sink.records {
		assert.Equal(t, i == len(sink.records)-1, r.IsLastUpdateForFile, "update %d", i)
	}

	assert.Equal(t, constants.StatusSavedSuccessfully, rec.Status)
	assert.Equal(t, "Acme_GmbH_2026-01-31_INV_9.json", rec.OutputFilename)
	assert.Nil(t, rec.ErrorDetail)
	require.NotNil(t, rec.GeminiResponsePreview)

	// Enrichment overwrote nothing here but must always be present.
	require.NotNil(t, persister.saved)
	assert.Equal(t, "invoice-001.jpg", persister.saved["original_filename"])
	assert.Equal(t, "2026-03-14T09:30:00Z", persister.saved["processing_timestamp"])

	// Later passes thread earlier output as context parts.
	require.Len(t, model.parts, 3)
	assert.Len(t, model.parts[0], 1)
	assert.Len(t, model.parts[1], 2)
	assert.Len(t, model.parts[2], 3)
}

func TestProcessEmptyPassResponseFailsThatDocument(t *testing.T) {
	for _, tc := range []struct {
		name      string
		responses []string
		wantIn    string
	}{
		{"pass1", []string{""}, "pass 1"},
		{"pass2", []string{"structure", ""}, "pass 2"},
		{"pass3", []string{"structure", "regions", ""}, "pass 3"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			model := &fakeModel{responses: tc.responses}
			persister := &fakePersister{name: "x.json"}
			sink := &captor{}

			rec := newTestPipeline(model, &fakeValidator{}, persister).
				Process(context.Background(), testDocument(t), Progress{Current: 1, Total: 1}, sink)

			assert.Equal(t, constants.StatusErrorProcessingFile, rec.Status)
			require.NotNil(t, rec.ErrorDetail)
			assert.Contains(t, *rec.ErrorDetail, tc.wantIn)
			assert.Contains(t, *rec.ErrorDetail, "returned no text")
			assert.Empty(t, rec.OutputFilename)
			assert.Nil(t, persister.saved)
			assert.True(t, rec.IsLastUpdateForFile)
		})
	}
}

func TestProcessMalformedJSONIsIsolated(t *testing.T) {
	model := &fakeModel{responses: []string{"structure", "regions", "not json"}}
	persister := &fakePersister{name: "x.json"}
	sink := &captor{}

	rec := newTestPipeline(model, &fakeValidator{}, persister).
		Process(context.Background(), testDocument(t), Progress{Current: 1, Total: 1}, sink)

	assert.Equal(t, constants.StatusErrorProcessingFile, rec.Status)
	require.NotNil(t, rec.ErrorDetail)
	assert.Contains(t, *rec.ErrorDetail, "JSON parse error")
	assert.Nil(t, persister.saved, "no output file for malformed JSON")

	// The failure is reported through the record, plus a final update.
	assert.Equal(t, map[string]any{
		"error":   "Processing failed for this file",
		"details": *rec.ErrorDetail,
	}, rec.ParsedData)
}

func TestProcessNullJSONResponseIsIsolated(t *testing.T) {
	model := &fakeModel{responses: []string{"structure", "regions", "```json\nnull\n```"}}
	persister := &fakePersister{name: "x.json"}
	sink := &captor{}

	rec := newTestPipeline(model, &fakeValidator{}, persister).
		Process(context.Background(), testDocument(t), Progress{Current: 1, Total: 1}, sink)

	assert.Equal(t, constants.StatusErrorProcessingFile, rec.Status)
	require.NotNil(t, rec.ErrorDetail)
	assert.Contains(t, *rec.ErrorDetail, "not a JSON object")
	assert.Nil(t, persister.saved)

	// The stream still gets its terminal update.
	require.NotEmpty(t, sink.records)
	last := sink.records[len(sink.records)-1]
	assert.True(t, last.IsLastUpdateForFile)
	assert.True(t, last.Status.IsTerminal())
}

func TestProcessValidationFailureStillPersists(t *testing.T) {
	model := &fakeModel{responses: []string{
		"structure", "regions",
		`{"supplier_name":"Acme","grand_total":"not-a-number"}`,
	}}
	validator := &fakeValidator{outcome: schema.Outcome{
		Status:        "failed",
		ErrorsSummary: "/grand_total expected number, but got string",
		ErrorsList:    []schema.Violation{{InstanceLocation: "/grand_total", Message: "expected number, but got string"}},
	}}
	persister := &fakePersister{name: "Acme_2026-03-14_NoInvoiceNumber.json"}
	sink := &captor{}

	rec := newTestPipeline(model, validator, persister).
		Process(context.Background(), testDocument(t), Progress{Current: 1, Total: 1}, sink)

	assert.Contains(t, statuses(sink.records), constants.StatusValidationFailed)
	assert.NotContains(t, statuses(sink.records), constants.StatusValidationPassed)

	// Validation failure downgrades the status mid-stream but never blocks the
	// write; the terminal status is still saved_successfully.
	assert.Equal(t, constants.StatusSavedSuccessfully, rec.Status)
	assert.Equal(t, "Acme_2026-03-14_NoInvoiceNumber.json", rec.OutputFilename)
	require.NotNil(t, rec.ErrorDetail)
	assert.Contains(t, *rec.ErrorDetail, "Schema validation failed")

	// The outcome is attached under the reserved key and persisted with it.
	require.NotNil(t, persister.saved)
	details, ok := persister.saved["__validation_details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "failed", details["status"])
}

func TestProcessPersistFailureIsIsolated(t *testing.T) {
	model := &fakeModel{responses: []string{
		"structure", "regions", `{"supplier_name":"Acme"}`,
	}}
	persister := &fakePersister{err: errors.New("disk full")}
	sink := &captor{}

	rec := newTestPipeline(model, &fakeValidator{outcome: schema.Outcome{Status: "passed"}}, persister).
		Process(context.Background(), testDocument(t), Progress{Current: 1, Total: 1}, sink)

	assert.Equal(t, constants.StatusErrorProcessingFile, rec.Status)
	require.NotNil(t, rec.ErrorDetail)
	assert.Contains(t, *rec.ErrorDetail, "file save error")
	assert.Empty(t, rec.OutputFilename)
}

func TestProcessModelErrorSetsErrorStatus(t *testing.T) {
	model := &fakeModel{errs: []error{errors.New("quota exceeded")}}
	sink := &captor{}

	rec := newTestPipeline(model, &fakeValidator{}, &fakePersister{}).
		Process(context.Background(), testDocument(t), Progress{Current: 1, Total: 1}, sink)

	assert.Equal(t, constants.StatusErrorProcessingFile, rec.Status)
	require.NotNil(t, rec.ErrorDetail)
	assert.Contains(t, *rec.ErrorDetail, "quota exceeded")
}

// ctxSensitiveModel fails a pass whenever its context has been canceled, the
// way a real client would.
type ctxSensitiveModel struct {
	inner fakeModel
}

func (m *ctxSensitiveModel) GenerateText(ctx context.Context, systemPrompt string, doc InlineDocument, contextParts []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.inner.GenerateText(ctx, systemPrompt, doc, contextParts)
}

func TestProcessSurvivesConsumerDisconnect(t *testing.T) {
	model := &ctxSensitiveModel{inner: fakeModel{responses: []string{
		"structure", "regions",
		"{\"supplier_name\":\"Acme\",\"invoice_number\":\"7\",\"invoice_date\":\"2026-01-31\",\"grand_total\":99}",
	}}}
	persister := &fakePersister{name: "Acme_2026-01-31_7.json"}
	sink := &captor{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := newTestPipeline(model, &fakeValidator{outcome: schema.Outcome{Status: "passed"}}, persister).
		Process(ctx, testDocument(t), Progress{Current: 1, Total: 1}, sink)

	assert.Equal(t, constants.StatusSavedSuccessfully, rec.Status)
	assert.Equal(t, 3, model.inner.calls, "passes run to completion regardless of the consumer")
	require.NotNil(t, persister.saved)
}

func TestProcessMissingInputFileFails(t *testing.T) {
	model := &fakeModel{}
	sink := &captor{}
	doc := Document{Name: "ghost.pdf", Path: filepath.Join(t.TempDir(), "ghost.pdf"), MediaType: "application/pdf"}

	rec := newTestPipeline(model, &fakeValidator{}, &fakePersister{}).
		Process(context.Background(), doc, Progress{Current: 1, Total: 1}, sink)

	assert.Equal(t, constants.StatusErrorProcessingFile, rec.Status)
	assert.Zero(t, model.calls, "no model calls for an unreadable document")
}
