package ogg

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeAll_ProducesCompleteStream(t *testing.T) {
	pcm := make([]int16, 24000/2) // 500ms of silence at 24kHz
	b, err := EncodeAll(pcm, 24000, 1)
	if err != nil {
		t.Fatalf("EncodeAll failed: %v", err)
	}

	pages := parsePages(t, b)
	if len(pages) < 3 {
		t.Fatalf("got %d pages, want headers plus audio", len(pages))
	}
	if !bytes.HasPrefix(pagePayload(pages[0]), []byte(idSignature)) {
		t.Error("stream does not start with OpusHead")
	}
	last := pages[len(pages)-1]
	if last[5] != headerTypeEOS {
		t.Errorf("final page header type = %#x, want EOS", last[5])
	}
}

func TestStreamEncoder_BuffersPartialFrames(t *testing.T) {
	e, err := NewStreamEncoder(24000, 1)
	if err != nil {
		t.Fatalf("NewStreamEncoder failed: %v", err)
	}

	// 100 samples is well under one 20ms frame (480 samples at 24kHz), so
	// the first call emits the 2 headers plus the 4 pre-skip priming
	// frames and holds the real samples back.
	out, err := e.Encode(make([]int16, 100))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	pages := parsePages(t, out)
	if len(pages) != 6 {
		t.Fatalf("got %d pages before a full frame, want headers plus priming", len(pages))
	}

	// Topping up past one frame releases an audio page.
	out, err = e.Encode(make([]int16, 400))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(parsePages(t, out)) == 0 {
		t.Error("no audio page after a complete frame accumulated")
	}

	tail, err := e.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	pages = parsePages(t, tail)
	if len(pages) == 0 {
		t.Fatal("Finish produced no pages")
	}
	if last := pages[len(pages)-1]; last[5] != headerTypeEOS {
		t.Errorf("final page header type = %#x, want EOS", last[5])
	}
}

func TestStreamEncoder_StreamMatchesWholeBufferPageCount(t *testing.T) {
	pcm := make([]int16, 24000) // one second
	for i := range pcm {
		pcm[i] = int16(i % 512)
	}

	whole, err := EncodeAll(pcm, 24000, 1)
	if err != nil {
		t.Fatalf("EncodeAll failed: %v", err)
	}

	e, err := NewStreamEncoder(24000, 1)
	if err != nil {
		t.Fatalf("NewStreamEncoder failed: %v", err)
	}
	var streamed []byte
	for off := 0; off < len(pcm); off += 1000 {
		end := off + 1000
		if end > len(pcm) {
			end = len(pcm)
		}
		out, err := e.Encode(pcm[off:end])
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		streamed = append(streamed, out...)
	}
	tail, err := e.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	streamed = append(streamed, tail...)

	if got, want := len(parsePages(t, streamed)), len(parsePages(t, whole)); got != want {
		t.Errorf("streamed page count = %d, whole-buffer = %d", got, want)
	}
}

func TestEncodeAll_GranuleAccountsForPreSkip(t *testing.T) {
	// 700 samples at 24kHz end mid-frame. The final granule must be the
	// pre-skip plus the real samples in 48kHz units, so the decoder trims
	// both the priming and the zero padding and returns exactly 700.
	b, err := EncodeAll(make([]int16, 700), 24000, 1)
	if err != nil {
		t.Fatalf("EncodeAll failed: %v", err)
	}

	pages := parsePages(t, b)
	last := pages[len(pages)-1]
	want := uint64(preSkip + 700*2)
	if got := binary.LittleEndian.Uint64(last[6:]); got != want {
		t.Errorf("final granule = %d, want %d", got, want)
	}
}

func TestStreamEncoder_FinishIsTerminal(t *testing.T) {
	e, err := NewStreamEncoder(24000, 1)
	if err != nil {
		t.Fatalf("NewStreamEncoder failed: %v", err)
	}
	if _, err := e.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if _, err := e.Finish(); err != ErrEncoderFinished {
		t.Errorf("second Finish error = %v, want ErrEncoderFinished", err)
	}
	if _, err := e.Encode(make([]int16, 480)); err != ErrEncoderFinished {
		t.Errorf("Encode after Finish error = %v, want ErrEncoderFinished", err)
	}
}
