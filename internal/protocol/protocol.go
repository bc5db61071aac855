// Package protocol implements the line-tagged wire protocol between the
// harness and the function under test.
//
// The function under test writes its captured telemetry to stdout, one
// payload per line, each line carrying a reserved tag prefix:
//
//	EVENT: <payload>
//	ENVELOPE: <payload>
//
// Every other stdout line is ordinary diagnostic output and is ignored.
// Payloads written by this package are base64-encoded JSON so that a
// payload can never contain a newline or fabricate a tag line, no matter
// what the captured data contains. For hand-written fixtures the reader
// also accepts a raw single-line JSON object after the tag.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Reserved line tags.
const (
	EventTag    = "EVENT"
	EnvelopeTag = "ENVELOPE"
)

const tagSeparator = ": "

// Maximum size of a single protocol line. Telemetry payloads with full
// stack traces can exceed bufio.Scanner's 64 KiB default.
const maxLineSize = 4 << 20

// Capture holds the raw payloads extracted from one subprocess run.
// At most one payload per tag is retained: if a tag appears more than
// once, the last occurrence wins. A slot is nil when its tag never
// appeared in the output.
type Capture struct {
	Event    []byte
	Envelope []byte

	// Raw is the complete text the payloads were extracted from.
	Raw string
}

// HasEvent reports whether an EVENT payload was captured.
func (c Capture) HasEvent() bool { return c.Event != nil }

// HasEnvelope reports whether an ENVELOPE payload was captured.
func (c Capture) HasEnvelope() bool { return c.Envelope != nil }

// WriteLine frames a single payload onto w as one tagged line.
// The payload is base64-encoded so it survives framing regardless of
// content. Callers are responsible for serializing concurrent writes.
func WriteLine(w io.Writer, tag string, payload []byte) error {
	encoded := base64.StdEncoding.EncodeToString(payload)
	// The leading newline guards against a preceding write that did not
	// terminate its own line (e.g. the handler's own print output).
	if _, err := fmt.Fprintf(w, "\n%s%s%s\n", tag, tagSeparator, encoded); err != nil {
		return fmt.Errorf("write %s line: %w", tag, err)
	}
	return nil
}

// Scan reads r to EOF and extracts tagged payloads.
//
// Lines are processed in order; a recognized tag replaces any payload
// previously captured for that tag (last occurrence wins — the harness
// captures at most one event and one envelope per run). A malformed
// payload after a recognized tag is a hard error: the harness generated
// the emitting code itself, so recovery would only mask a bug.
func Scan(r io.Reader) (Capture, error) {
	var raw strings.Builder
	var capture Capture

	scanner := bufio.NewScanner(io.TeeReader(r, &raw))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, EventTag+tagSeparator):
			payload, err := decodePayload(strings.TrimPrefix(line, EventTag+tagSeparator))
			if err != nil {
				return capture, fmt.Errorf("%s payload: %w", EventTag, err)
			}
			capture.Event = payload
		case strings.HasPrefix(line, EnvelopeTag+tagSeparator):
			payload, err := decodePayload(strings.TrimPrefix(line, EnvelopeTag+tagSeparator))
			if err != nil {
				return capture, fmt.Errorf("%s payload: %w", EnvelopeTag, err)
			}
			capture.Envelope = payload
		}
	}
	if err := scanner.Err(); err != nil {
		return capture, fmt.Errorf("scan output: %w", err)
	}

	capture.Raw = raw.String()
	return capture, nil
}

// ScanString extracts tagged payloads from already-captured output.
func ScanString(output string) (Capture, error) {
	capture, err := Scan(strings.NewReader(output))
	capture.Raw = output
	return capture, err
}

// decodePayload decodes the remainder of a tagged line into JSON bytes.
// A payload starting with '{' is taken as raw single-line JSON; anything
// else must be base64-encoded JSON.
func decodePayload(rest string) ([]byte, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, fmt.Errorf("empty payload")
	}

	var payload []byte
	if rest[0] == '{' {
		payload = []byte(rest)
	} else {
		decoded, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
		payload = decoded
	}

	if !json.Valid(payload) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return bytes.TrimSpace(payload), nil
}
