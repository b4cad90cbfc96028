// Package protocol defines the wire types of the daemon: the JSON request
// read from the input stream and the structured error lines written to the
// error stream.
package protocol

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Format identifies the audio container requested for one synthesis job.
type Format string

const (
	// FormatPCM is raw little-endian 16-bit samples, no container.
	FormatPCM Format = "pcm"
	// FormatWAV is a RIFF/WAVE byte stream. Default when a request names no format.
	FormatWAV Format = "wav"
	// FormatOpus is an Ogg Opus byte stream.
	FormatOpus Format = "opus"
)

// Request is one synthesis job parsed from a single input line.
// Immutable once constructed.
type Request struct {
	// ID is assigned by the reader in arrival order and never reused.
	ID uint64
	// Text to synthesize. Never empty.
	Text string
	// Format of the output container.
	Format Format
	// SampleRate requested for the output, in Hz. Zero means the request
	// carried none and the format default applies.
	SampleRate int
}

// wireRequest mirrors the input protocol: one JSON object per line.
// sample_rate is a pointer so an explicit null is treated as absent.
type wireRequest struct {
	Text       string `json:"text"`
	Format     string `json:"format"`
	SampleRate *int   `json:"sample_rate"`
}

// ParseRequest parses one input line into a Request. The caller assigns the
// ID. Unknown format strings are accepted here and rejected by the pipeline,
// so a bad format fails the request rather than the whole line of intake.
func ParseRequest(line []byte) (Request, error) {
	var w wireRequest
	if err := sonic.Unmarshal(line, &w); err != nil {
		return Request{}, fmt.Errorf("invalid request: %w", err)
	}
	if strings.TrimSpace(w.Text) == "" {
		return Request{}, ErrMissingText
	}
	req := Request{Text: w.Text, Format: FormatWAV}
	if w.Format != "" {
		req.Format = Format(w.Format)
	}
	if w.SampleRate != nil {
		req.SampleRate = *w.SampleRate
	}
	return req, nil
}
