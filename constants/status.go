package constants

import "strings"

// ProcessingStatus is the canonical status for one document moving through the
// extraction pipeline. Every transition is emitted to the progress stream, so
// these exact strings are part of the wire contract.
type ProcessingStatus string

// Stable values (emit these exact strings on the stream).
const (
	StatusProcessingStarted   ProcessingStatus = "processing_started"
	StatusPreparedForGemini   ProcessingStatus = "prepared_for_gemini"
	StatusPass1Calling        ProcessingStatus = "gemini_pass1_calling"
	StatusPass1Complete       ProcessingStatus = "gemini_pass1_complete"
	StatusPass2Calling        ProcessingStatus = "gemini_pass2_calling"
	StatusPass2Complete       ProcessingStatus = "gemini_pass2_complete"
	StatusPass3Calling        ProcessingStatus = "gemini_pass3_json_extraction_calling"
	StatusPass3Complete       ProcessingStatus = "gemini_pass3_json_extraction_complete"
	StatusParsedAndEnriched   ProcessingStatus = "json_parsed_and_enriched"
	StatusValidationPassed    ProcessingStatus = "validation_passed"
	StatusValidationFailed    ProcessingStatus = "validation_failed"
	StatusSavedSuccessfully   ProcessingStatus = "saved_successfully"
	StatusErrorProcessingFile ProcessingStatus = "error_processing_file"
)

// IsError reports whether s is an error status. Statuses already prefixed
// "error_" are preserved rather than overwritten on failure.
func (s ProcessingStatus) IsError() bool {
	return strings.HasPrefix(string(s), "error_")
}

// IsTerminal reports whether the pipeline stops at s.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusSavedSuccessfully || s.IsError()
}
