// Package stream turns pipeline state transitions into the ordered
// server-sent event stream consumed by the stateless batch client.
package stream

import (
	"github.com/qb-bastiaan/invoice-processor-app/internal/extract"
)

// EventType discriminates the progress event union.
type EventType string

const (
	EventInfo           EventType = "info"
	EventFileUpdate     EventType = "file_update"
	EventIndexProcessed EventType = "index_processed"
	EventError          EventType = "error"
)

// Event is one discrete message on the live stream. Fields beyond Type vary
// by kind; unused ones are omitted from the wire payload.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`

	// info
	TotalFilesInfo *int `json:"totalFiles,omitempty"`

	// file_update
	Progress *extract.Progress `json:"progress,omitempty"`
	Data     *extract.Record   `json:"data,omitempty"`

	// index_processed
	ProcessedFileIndex  *int            `json:"processedFileIndex,omitempty"`
	IsOverallLastFile   *bool           `json:"isOverallLastFile,omitempty"`
	ProcessedFileResult *extract.Record `json:"processedFileResult,omitempty"`
}

// Info builds the once-per-stream informational event. totalFiles is only
// carried on the very first request of a batch (start_index 0), which is how
// the consumer learns the batch size.
func Info(message string, totalFiles *int) Event {
	return Event{Type: EventInfo, Message: message, TotalFilesInfo: totalFiles}
}

// FileUpdate wraps a record snapshot for one pipeline transition.
func FileUpdate(progress extract.Progress, record extract.Record) Event {
	return Event{Type: EventFileUpdate, Progress: &progress, Data: &record}
}

// IndexProcessed is the batch-level terminal summary for one index.
func IndexProcessed(message string, index int, isOverallLast bool, totalFiles int, result *extract.Record) Event {
	return Event{
		Type:                EventIndexProcessed,
		Message:             message,
		ProcessedFileIndex:  &index,
		IsOverallLastFile:   &isOverallLast,
		TotalFilesInfo:      &totalFiles,
		ProcessedFileResult: result,
	}
}

// Error is the stream-fatal event; it always terminates the stream.
func Error(message string) Event {
	return Event{Type: EventError, Message: message}
}
