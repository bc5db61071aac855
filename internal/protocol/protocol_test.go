package protocol

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLineScanRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	event := []byte(`{"level":"error","message":"boom"}`)
	envelope := []byte(`{"type":"transaction"}`)

	require.NoError(t, WriteLine(&buf, EventTag, event))
	require.NoError(t, WriteLine(&buf, EnvelopeTag, envelope))

	capture, err := Scan(&buf)
	require.NoError(t, err)

	assert.True(t, capture.HasEvent())
	assert.True(t, capture.HasEnvelope())
	assert.Equal(t, event, capture.Event)
	assert.Equal(t, envelope, capture.Envelope)
}

func TestWriteLineSurvivesTagLookalikePayload(t *testing.T) {
	// A payload whose content embeds the tag syntax itself must not be
	// able to fabricate or corrupt a protocol line.
	var buf bytes.Buffer
	payload := []byte(`{"message":"log said:\nEVENT: {\"level\":\"fatal\"}\n"}`)

	require.NoError(t, WriteLine(&buf, EventTag, payload))

	capture, err := Scan(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, capture.Event)
}

func TestScanIgnoresNoise(t *testing.T) {
	output := strings.Join([]string{
		"starting handler",
		"EVENT: " + base64.StdEncoding.EncodeToString([]byte(`{"level":"error"}`)),
		"some unrelated print output",
		"EVENTS: not a tag line",
		"",
	}, "\n")

	capture, err := ScanString(output)
	require.NoError(t, err)

	assert.True(t, capture.HasEvent())
	assert.False(t, capture.HasEnvelope())
	assert.Equal(t, []byte(`{"level":"error"}`), capture.Event)
	assert.Equal(t, output, capture.Raw)
}

func TestScanLastTagWins(t *testing.T) {
	output := strings.Join([]string{
		`EVENT: {"attempt":1}`,
		`EVENT: {"attempt":2}`,
		`ENVELOPE: {"attempt":1}`,
		`ENVELOPE: {"attempt":3}`,
	}, "\n")

	capture, err := ScanString(output)
	require.NoError(t, err)

	assert.Equal(t, []byte(`{"attempt":2}`), capture.Event)
	assert.Equal(t, []byte(`{"attempt":3}`), capture.Envelope)
}

func TestScanAcceptsRawJSONPayload(t *testing.T) {
	capture, err := ScanString(`EVENT: {"level":"warning"}`)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"level":"warning"}`), capture.Event)
}

func TestScanEmptyOutput(t *testing.T) {
	capture, err := ScanString("")
	require.NoError(t, err)

	assert.False(t, capture.HasEvent())
	assert.False(t, capture.HasEnvelope())
}

func TestScanMalformedPayloadIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty payload", "EVENT: \n"},
		{"broken base64", "EVENT: not!!!base64\n"},
		{"base64 of non-JSON", "EVENT: " + base64.StdEncoding.EncodeToString([]byte("not json")) + "\n"},
		{"truncated raw JSON", `ENVELOPE: {"type":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ScanString(tt.output)
			assert.Error(t, err)
		})
	}
}

func TestScanMalformedEnvelopeAfterGoodEvent(t *testing.T) {
	// The event was already captured, but a malformed envelope payload
	// still fails the whole scan.
	output := `EVENT: {"level":"error"}` + "\nENVELOPE: broken!\n"

	_, err := ScanString(output)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvelopeTag)
}
