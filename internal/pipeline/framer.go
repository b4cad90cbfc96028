package pipeline

import (
	"encoding/binary"
	"fmt"
	"io"
)

// writeFrame emits one length-prefixed frame: a 4-byte little-endian
// payload size followed by the payload. Empty payloads are skipped so a
// reader never sees a zero-length frame before the stream actually ends.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}
