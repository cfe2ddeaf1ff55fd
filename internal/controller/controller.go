// Package controller is the caller-side batch coordinator: it requests one
// document at a time by index, observes terminal events on the SSE stream and
// decides when to open the next stream. It holds no server-side state; the
// only cursor is the integer index it sends.
package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/qb-bastiaan/invoice-processor-app/internal/stream"
)

// Outcome is what the controller learned from one index's stream.
type Outcome struct {
	Index             int
	TotalFiles        int
	IsOverallLastFile bool
	Message           string
	FileUpdates       int
}

// AcceptFunc is the external "continue" gate. It is asked after every
// non-final index_processed; returning false-or-error ends the batch session.
type AcceptFunc func(ctx context.Context, outcome Outcome) (bool, error)

// AcceptAll continues through the whole batch without pausing.
func AcceptAll(context.Context, Outcome) (bool, error) { return true, nil }

// Summary describes a completed (or stopped) batch session.
type Summary struct {
	ProcessedCount int
	TotalFiles     int
	LastIndex      int
	Stopped        bool // true when the accept gate declined
}

// Controller drives a batch by issuing sequential start_index requests.
type Controller struct {
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
	Accept  AcceptFunc
}

func New(baseURL string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{}, // no overall timeout; streams are long-lived
		Logger:  logger,
		Accept:  AcceptAll,
	}
}

// Run processes indexes from startIndex until the stream reports the overall
// last file, a stream-fatal error arrives, or the accept gate declines.
func (c *Controller) Run(ctx context.Context, startIndex int) (Summary, error) {
	if startIndex < 0 {
		startIndex = 0
	}
	summary := Summary{LastIndex: startIndex - 1}

	for index := startIndex; ; index++ {
		outcome, err := c.ProcessIndex(ctx, index)
		if err != nil {
			return summary, err
		}
		summary.ProcessedCount++
		summary.LastIndex = index
		if outcome.TotalFiles > 0 {
			summary.TotalFiles = outcome.TotalFiles
		}

		if outcome.IsOverallLastFile {
			c.Logger.Info("controller.batch_complete", "last_index", index, "total", summary.TotalFiles)
			return summary, nil
		}

		cont, err := c.Accept(ctx, outcome)
		if err != nil {
			return summary, fmt.Errorf("accept gate: %w", err)
		}
		if !cont {
			summary.Stopped = true
			c.Logger.Info("controller.batch_stopped", "last_index", index)
			return summary, nil
		}
	}
}

// ProcessIndex opens one stream for the given index and consumes it to its
// terminal event.
func (c *Controller) ProcessIndex(ctx context.Context, index int) (Outcome, error) {
	url := fmt.Sprintf("%s/api/process-invoices?start_index=%d", c.BaseURL, index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.Client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Outcome{}, fmt.Errorf("stream status %d", resp.StatusCode)
	}

	outcome := Outcome{Index: index}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024) // preview payloads are large

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev stream.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return outcome, fmt.Errorf("decode event: %w", err)
		}

		switch ev.Type {
		case stream.EventInfo:
			if ev.TotalFilesInfo != nil {
				outcome.TotalFiles = *ev.TotalFilesInfo
			}
		case stream.EventFileUpdate:
			outcome.FileUpdates++
			if ev.Data != nil {
				c.Logger.Debug("controller.file_update",
					"index", index, "file", ev.Data.FileName, "status", ev.Data.Status)
			}
		case stream.EventIndexProcessed:
			outcome.Message = ev.Message
			if ev.IsOverallLastFile != nil {
				outcome.IsOverallLastFile = *ev.IsOverallLastFile
			}
			if ev.TotalFilesInfo != nil {
				outcome.TotalFiles = *ev.TotalFilesInfo
			}
			c.Logger.Info("controller.index_processed",
				"index", index,
				"overall_last", outcome.IsOverallLastFile,
				"updates", outcome.FileUpdates,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return outcome, nil
		case stream.EventError:
			return outcome, fmt.Errorf("stream error: %s", ev.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return outcome, fmt.Errorf("read stream: %w", err)
	}
	// The producer guarantees a terminal event; reaching EOF without one means
	// the stream infrastructure failed.
	return outcome, fmt.Errorf("stream ended without a terminal event")
}
