package ogg

import (
	"bytes"
	"errors"
	"fmt"

	opus "gopkg.in/hraban/opus.v2"
)

// ErrEncoderFinished is returned when a stream encoder is used after
// Finish.
var ErrEncoderFinished = errors.New("ogg: encoder already finished")

// frameMillis is the Opus frame duration used throughout: 20ms is the
// codec's default tradeoff between latency and efficiency.
const frameMillis = 20

// maxPacketSize comfortably fits any 20ms packet at the bitrates libopus
// will choose for speech.
const maxPacketSize = 4000

// StreamEncoder incrementally encodes 16-bit mono PCM into a framed Ogg
// Opus stream. It is owned by exactly one request: create it at request
// start, call Encode for every chunk, call Finish exactly once at the end,
// then discard it. Never shared across requests or goroutines.
type StreamEncoder struct {
	enc        *opus.Encoder
	w          *Writer
	out        bytes.Buffer
	pending    []int16
	packet     []byte
	frameSize  int
	sampleRate int
	finished   bool
}

// NewStreamEncoder creates an encoder for the given input rate. The rate
// must be one libopus accepts (8, 12, 16, 24 or 48 kHz).
func NewStreamEncoder(sampleRate, channels int) (*StreamEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}

	e := &StreamEncoder{
		enc:        enc,
		packet:     make([]byte, maxPacketSize),
		frameSize:  sampleRate * frameMillis / 1000 * channels,
		sampleRate: sampleRate,
	}
	// Prime the encoder with the pre-skip interval of silence so a
	// decoder's mandatory pre-skip trim removes priming, not real audio.
	e.pending = make([]int16, preSkip*sampleRate/48000*channels)
	w, err := NewWriter(&e.out, sampleRate, channels)
	if err != nil {
		return nil, err
	}
	e.w = w
	return e, nil
}

// Encode ingests pcm and returns any container bytes produced so far. The
// first call also returns the stream's header pages. The result may be
// empty when not enough samples have accumulated for a complete frame.
func (e *StreamEncoder) Encode(pcm []int16) ([]byte, error) {
	if e.finished {
		return nil, ErrEncoderFinished
	}
	e.pending = append(e.pending, pcm...)

	consumed := 0
	for len(e.pending)-consumed >= e.frameSize {
		frame := e.pending[consumed : consumed+e.frameSize]
		n, err := e.enc.Encode(frame, e.packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode: %w", err)
		}
		if err := e.w.WritePacket(e.packet[:n], e.frameSize, false); err != nil {
			return nil, err
		}
		consumed += e.frameSize
	}
	e.pending = append(e.pending[:0], e.pending[consumed:]...)

	return e.drain(), nil
}

// Finish flushes the trailing partial frame, zero-padded to a full frame,
// and terminates the stream with an end-of-stream page. Must be called
// exactly once per request; the encoder is unusable afterwards.
func (e *StreamEncoder) Finish() ([]byte, error) {
	if e.finished {
		return nil, ErrEncoderFinished
	}
	e.finished = true

	// Flush still-buffered full frames ahead of the final page.
	for len(e.pending) > e.frameSize {
		frame := e.pending[:e.frameSize]
		n, err := e.enc.Encode(frame, e.packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode: %w", err)
		}
		if err := e.w.WritePacket(e.packet[:n], e.frameSize, false); err != nil {
			return nil, err
		}
		e.pending = e.pending[e.frameSize:]
	}

	if len(e.pending) > 0 {
		// Zero-pad the trailing partial frame to a full frame, but
		// advance the granule only by the real samples so the decoder
		// trims the padding off the end of the stream.
		remainder := len(e.pending)
		frame := make([]int16, e.frameSize)
		copy(frame, e.pending)
		e.pending = nil

		n, err := e.enc.Encode(frame, e.packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode: %w", err)
		}
		if err := e.w.WritePacket(e.packet[:n], remainder, true); err != nil {
			return nil, err
		}
	} else if err := e.w.CloseStream(); err != nil {
		return nil, err
	}

	return e.drain(), nil
}

func (e *StreamEncoder) drain() []byte {
	if e.out.Len() == 0 {
		return nil
	}
	out := make([]byte, e.out.Len())
	copy(out, e.out.Bytes())
	e.out.Reset()
	return out
}

// EncodeAll produces one complete Ogg Opus byte stream for a whole PCM
// buffer, the non-streaming counterpart of the incremental encoder.
func EncodeAll(pcm []int16, sampleRate, channels int) ([]byte, error) {
	e, err := NewStreamEncoder(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	head, err := e.Encode(pcm)
	if err != nil {
		return nil, err
	}
	tail, err := e.Finish()
	if err != nil {
		return nil, err
	}
	return append(head, tail...), nil
}
