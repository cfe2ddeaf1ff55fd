package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/qb-bastiaan/invoice-processor-app/internal/extract"
)

// Broadcaster frames events as text/event-stream messages on a single
// response. Once the consumer disconnects, every further Send is suppressed;
// one request is served by one goroutine, so no locking is needed.
type Broadcaster struct {
	w       io.Writer
	flush   func()
	ctx     context.Context
	logger  *slog.Logger
	closed  bool
}

// NewBroadcaster prepares w for server-sent events. ctx should be the request
// context so consumer disconnects are detected. The flusher is optional;
// httptest recorders, for instance, don't provide one.
func NewBroadcaster(ctx context.Context, w http.ResponseWriter, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	return &Broadcaster{w: w, flush: flush, ctx: ctx, logger: logger}
}

// Send frames one event as "data: <JSON>\n\n". Events offered after the
// consumer has gone away are dropped silently; the pipeline keeps running to
// its natural end either way.
func (b *Broadcaster) Send(ev Event) {
	if b.closed {
		return
	}
	if err := b.ctx.Err(); err != nil {
		b.closed = true
		b.logger.Info("stream.consumer_gone", "event_type", ev.Type)
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("stream.encode_failed", "event_type", ev.Type, "error", err)
		return
	}
	if _, err := fmt.Fprintf(b.w, "data: %s\n\n", payload); err != nil {
		b.closed = true
		b.logger.Info("stream.write_failed", "event_type", ev.Type, "error", err)
		return
	}
	b.flush()
}

// FileUpdate implements extract.Sink.
func (b *Broadcaster) FileUpdate(progress extract.Progress, record extract.Record) {
	b.Send(FileUpdate(progress, record))
}

// Closed reports whether the consumer is known to be gone.
func (b *Broadcaster) Closed() bool {
	return b.closed || b.ctx.Err() != nil
}
