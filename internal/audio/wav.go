package audio

import (
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeSeeker is an in-memory io.WriteSeeker. The wav encoder seeks back to
// patch the RIFF header on Close, so a plain bytes.Buffer is not enough.
type writeSeeker struct {
	buf []byte
	pos int
}

func (ws *writeSeeker) Write(p []byte) (int, error) {
	if need := ws.pos + len(p); need > len(ws.buf) {
		grown := make([]byte, need)
		copy(grown, ws.buf)
		ws.buf = grown
	}
	copy(ws.buf[ws.pos:], p)
	ws.pos += len(p)
	return len(p), nil
}

func (ws *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(ws.pos) + offset
	case io.SeekEnd:
		pos = int64(len(ws.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative seek position %d", pos)
	}
	ws.pos = int(pos)
	return pos, nil
}

// EncodeWAV wraps pcm in a complete 16-bit mono WAV byte stream at the
// given sample rate.
func EncodeWAV(pcm []int16, sampleRate int) ([]byte, error) {
	ws := &writeSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, BitDepth, Channels, 1)

	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: Channels, SampleRate: sampleRate},
		Data:           make([]int, len(pcm)),
		SourceBitDepth: BitDepth,
	}
	for i, s := range pcm {
		buf.Data[i] = int(s)
	}

	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return ws.buf, nil
}
