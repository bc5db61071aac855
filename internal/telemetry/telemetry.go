// Package telemetry defines the structured records the harness extracts
// from a monitored function's output: the error event and the
// performance envelope, plus the canonical serialization used for
// deterministic snapshot comparison.
package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/getsentry/sentry-go"
)

// Event is an error report captured from the function under test.
// The payload on the wire is the monitoring SDK's own event shape, so it
// decodes directly into the SDK's type.
type Event = sentry.Event

// Envelope is a performance/transaction report captured from the
// function under test.
type Envelope struct {
	// Type discriminates the payload kind; always "transaction" for
	// envelopes produced by these scenarios.
	Type string `json:"type"`

	// Transaction is the transaction name (the function name).
	Transaction string `json:"transaction"`

	// Contexts carries nested tracing context; the trace context's "op"
	// identifies the instrumented operation.
	Contexts map[string]map[string]any `json:"contexts,omitempty"`

	// Request holds metadata about the simulated trigger request.
	Request *Request `json:"request,omitempty"`
}

// Request is the request metadata attached to an envelope.
type Request struct {
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
}

// TraceOp returns the operation name from the trace context, or ""
// if the envelope carries no trace context.
func (e *Envelope) TraceOp() string {
	trace, ok := e.Contexts["trace"]
	if !ok {
		return ""
	}
	op, _ := trace["op"].(string)
	return op
}

// URL returns the request URL, or "" if no request metadata is present.
func (e *Envelope) URL() string {
	if e.Request == nil {
		return ""
	}
	return e.Request.URL
}

// ParseEvent decodes an EVENT payload.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	return &event, nil
}

// ParseEnvelope decodes an ENVELOPE payload.
func ParseEnvelope(payload []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope payload: %w", err)
	}
	return &envelope, nil
}
