package audio

import (
	"bytes"
	"testing"

	"github.com/go-audio/wav"
)

func TestEncodeWAV_RoundTrip(t *testing.T) {
	pcm := []int16{0, 100, -100, 32000, -32000, 7}

	b, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("RIFF")) {
		t.Fatalf("missing RIFF header: % x", b[:4])
	}

	dec := wav.NewDecoder(bytes.NewReader(b))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if dec.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", dec.SampleRate)
	}
	if dec.BitDepth != 16 {
		t.Errorf("bit depth = %d, want 16", dec.BitDepth)
	}
	if dec.NumChans != 1 {
		t.Errorf("channels = %d, want 1", dec.NumChans)
	}
	if len(buf.Data) != len(pcm) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(pcm))
	}
	for i, s := range pcm {
		if buf.Data[i] != int(s) {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], s)
		}
	}
}

func TestEncodeWAV_EmptyBuffer(t *testing.T) {
	b, err := EncodeWAV(nil, 22050)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if len(b) < 44 {
		t.Errorf("expected at least a complete header, got %d bytes", len(b))
	}
}

func TestWriteSeeker(t *testing.T) {
	ws := &writeSeeker{}
	if _, err := ws.Write([]byte("abcdef")); err != nil {
		t.Fatal(err)
	}
	if _, err := ws.Seek(1, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := ws.Write([]byte("XY")); err != nil {
		t.Fatal(err)
	}
	if string(ws.buf) != "aXYdef" {
		t.Errorf("buffer = %q, want %q", ws.buf, "aXYdef")
	}
}
