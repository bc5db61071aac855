package serverless

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/faasprobe/faasprobe/internal/protocol"
)

// LineTransport is a sentry.Transport that writes every captured payload
// onto a single tagged stdout line instead of sending it to a telemetry
// backend. Error events go to the EVENT tag, transaction events to the
// ENVELOPE tag.
//
// Writes are serialized with a mutex: the timeout watchdog captures from
// its own goroutine, and interleaved writes would corrupt the line
// framing the harness parses.
type LineTransport struct {
	mu     sync.Mutex
	w      io.Writer
	events []*sentry.Event
}

// NewLineTransport creates a transport writing framed lines to w.
// Pass os.Stdout in generated function programs.
func NewLineTransport(w io.Writer) *LineTransport {
	return &LineTransport{w: w}
}

// Configure implements sentry.Transport. Nothing to configure: the
// transport never dials the DSN.
func (t *LineTransport) Configure(options sentry.ClientOptions) {}

// SendEvent implements sentry.Transport.
func (t *LineTransport) SendEvent(event *sentry.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		fmt.Fprintf(os.Stderr, "faasprobe: marshal captured event: %v\n", err)
		return
	}

	tag := protocol.EventTag
	if event.Type == "transaction" {
		tag = protocol.EnvelopeTag
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := protocol.WriteLine(t.w, tag, payload); err != nil {
		fmt.Fprintf(os.Stderr, "faasprobe: write captured event: %v\n", err)
		return
	}
	t.events = append(t.events, event)
}

// Flush implements sentry.Transport. Writes are synchronous, so there is
// never anything left to flush.
func (t *LineTransport) Flush(timeout time.Duration) bool { return true }

// FlushWithContext implements sentry.Transport.
func (t *LineTransport) FlushWithContext(ctx context.Context) bool { return true }

// Close implements sentry.Transport.
func (t *LineTransport) Close() {}

// Events returns the events written so far, in capture order.
// Useful for in-process assertions in tests.
func (t *LineTransport) Events() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*sentry.Event, len(t.events))
	copy(out, t.events)
	return out
}
