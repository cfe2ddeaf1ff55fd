package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/qb-bastiaan/invoice-processor-app/internal/extract"
	"github.com/qb-bastiaan/invoice-processor-app/internal/history"
	"github.com/qb-bastiaan/invoice-processor-app/internal/stream"
)

// processInvoices serves GET /api/process-invoices?start_index=N.
//
// One request processes exactly one document (the one at the requested index)
// and then the stream self-closes. Flow control for "next document" is the
// consumer opening a brand-new request with an incremented index after
// observing index_processed.
func (s *Server) processInvoices(w http.ResponseWriter, r *http.Request) {
	startIndex := parseStartIndex(r.URL.Query().Get("start_index"))
	b := stream.NewBroadcaster(r.Context(), w, s.logger)

	s.logger.Info("process.request", "start_index", startIndex)

	// Everything up to per-document work is stream-fatal on failure: the
	// stream ends with a terminal error event, never silently.
	validator, err := s.registry.Get()
	if err != nil {
		s.logger.Error("process.schema_unavailable", "error", err)
		b.Send(stream.Error(err.Error()))
		return
	}
	systemPrompt, err := s.systemPrompt()
	if err != nil {
		s.logger.Error("process.prompt_unavailable", "error", err)
		b.Send(stream.Error(err.Error()))
		return
	}

	// Re-enumerate on every request: the index space is a live view of the
	// input directory.
	docs, err := s.enumerator.List()
	if err != nil {
		s.logger.Error("process.enumeration_failed", "error", err)
		b.Send(stream.Error(err.Error()))
		return
	}
	if len(docs) == 0 {
		b.Send(stream.Error("No supported files (PDF, JPEG, JPG) found in input-files directory."))
		return
	}
	total := len(docs)

	if startIndex == 0 {
		b.Send(stream.Info(
			fmt.Sprintf("Found %d supported files. Starting batch...", total),
			&total,
		))
	} else {
		b.Send(stream.Info(
			fmt.Sprintf("Requesting processing for file at index %d. Total files: %d", startIndex, total),
			nil,
		))
	}

	if startIndex >= total {
		b.Send(stream.IndexProcessed(
			"All files processed or requested index is out of bounds.",
			startIndex, true, total, nil,
		))
		return
	}

	doc := docs[startIndex]
	pipeline := extract.NewPipeline(s.logger, s.model, validator, s.persister, systemPrompt)
	rec := pipeline.Process(r.Context(), doc, extract.Progress{Current: startIndex + 1, Total: total}, b)

	s.recordOutcome(r, startIndex, rec)

	b.Send(stream.IndexProcessed(
		fmt.Sprintf("Finished processing for index %d. File: %s. Status: %s.", startIndex, doc.Name, rec.Status),
		startIndex,
		startIndex >= total-1,
		total,
		&rec,
	))
}

func (s *Server) recordOutcome(r *http.Request, index int, rec extract.Record) {
	if s.hist == nil {
		return
	}
	entry := history.Entry{
		FileName:       rec.FileName,
		FileIndex:      index,
		Status:         rec.Status,
		OutputFilename: rec.OutputFilename,
	}
	if rec.ErrorDetail != nil {
		entry.ErrorDetail = *rec.ErrorDetail
	}
	if err := s.hist.Record(r.Context(), entry); err != nil {
		s.logger.Warn("history.record_failed", "file", rec.FileName, "error", err)
	}
}

// parseStartIndex coerces missing, malformed or negative values to 0.
func parseStartIndex(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
