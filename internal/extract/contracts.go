package extract

import (
	"context"

	"github.com/qb-bastiaan/invoice-processor-app/constants"
)

// Document is one enumerated input file. Immutable once enumerated.
type Document struct {
	Name      string
	Path      string
	MediaType string // application/pdf or image/jpeg, derived from extension
}

// InlineDocument carries the raw bytes handed to the vision model.
type InlineDocument struct {
	MediaType string
	Data      []byte
}

// Record is the per-document mutable state emitted (as snapshots) on every
// pipeline transition. Field names mirror the stream wire format.
type Record struct {
	FileName              string                     `json:"fileName"`
	Status                constants.ProcessingStatus `json:"status"`
	GeminiResponsePreview *string                    `json:"geminiResponsePreview"`
	ErrorDetail           *string                    `json:"errorDetail"`
	ParsedDataSnippet     *string                    `json:"parsedDataSnippet"`
	ParsedData            map[string]any             `json:"parsedData,omitempty"`
	OutputFilename        string                     `json:"outputFilename,omitempty"`

	// One-time preview payload; cleared immediately after its first emission.
	PreviewMediaType string `json:"previewMimeType,omitempty"`
	PreviewData      string `json:"previewData,omitempty"` // base64

	// PageCount is a diagnostic for PDFs, 0 when unknown.
	PageCount int `json:"pageCount,omitempty"`

	// IsLastUpdateForFile is true exactly once, on the record's final emission.
	IsLastUpdateForFile bool `json:"isLastUpdateForFile,omitempty"`
}

// Snapshot returns a copy safe to hand to the progress stream while the
// pipeline keeps mutating the record. ParsedData is shared by reference; the
// pipeline only ever replaces it wholesale.
func (r *Record) Snapshot() Record {
	return *r
}

// Progress carries the batch position counters sent with every file_update.
type Progress struct {
	Current int `json:"current"` // 1-based index of the document being processed
	Total   int `json:"total"`
}

// ModelCaller is the opaque capability backing the three extraction passes:
// submit a system prompt, a document and ordered context parts, get back text.
// An empty response with a nil error is possible; the pipeline treats it as a
// pass failure.
type ModelCaller interface {
	GenerateText(ctx context.Context, systemPrompt string, doc InlineDocument, contextParts []string) (string, error)
}

// Sink receives record snapshots on every state transition. Implementations
// must tolerate being called after the consumer has gone away.
type Sink interface {
	FileUpdate(progress Progress, record Record)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(progress Progress, record Record)

func (f SinkFunc) FileUpdate(progress Progress, record Record) { f(progress, record) }
