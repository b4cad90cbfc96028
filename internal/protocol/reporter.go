package protocol

import (
	"io"
	"sync"

	"github.com/bytedance/sonic"
)

// errorLine is the error stream protocol: one JSON object per line.
type errorLine struct {
	Error string `json:"error"`
}

// Reporter writes structured error lines to the error stream. Workers report
// concurrently, so writes are serialized; a line is always complete JSON.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewReporter returns a Reporter writing to w, typically stderr.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Report emits exactly one {"error": "..."} line for err.
func (r *Reporter) Report(err error) {
	if err == nil {
		return
	}
	b, merr := sonic.Marshal(errorLine{Error: err.Error()})
	if merr != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.w.Write(append(b, '\n'))
}
