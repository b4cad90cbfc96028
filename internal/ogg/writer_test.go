package ogg

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// parsePages splits a raw Ogg byte stream into individual pages.
func parsePages(t *testing.T, raw []byte) [][]byte {
	t.Helper()
	var pages [][]byte
	for len(raw) > 0 {
		if !bytes.HasPrefix(raw, []byte(captureSignature)) {
			t.Fatalf("page does not start with OggS: % x", raw[:4])
		}
		nSegments := int(raw[26])
		size := pageHeaderSize + nSegments
		for i := 0; i < nSegments; i++ {
			size += int(raw[pageHeaderSize+i])
		}
		pages = append(pages, raw[:size])
		raw = raw[size:]
	}
	return pages
}

func pagePayload(page []byte) []byte {
	nSegments := int(page[26])
	return page[pageHeaderSize+nSegments:]
}

func TestWriter_HeaderPages(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf, 22050, 1)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	pages := parsePages(t, buf.Bytes())
	if len(pages) != 2 {
		t.Fatalf("got %d header pages, want 2", len(pages))
	}

	id := pages[0]
	if id[5] != headerTypeBOS {
		t.Errorf("first page header type = %#x, want BOS", id[5])
	}
	payload := pagePayload(id)
	if !bytes.HasPrefix(payload, []byte(idSignature)) {
		t.Fatalf("first page is not OpusHead: % x", payload[:8])
	}
	if payload[9] != 1 {
		t.Errorf("channel count = %d, want 1", payload[9])
	}
	if got := binary.LittleEndian.Uint16(payload[10:]); got != preSkip {
		t.Errorf("pre-skip = %d, want %d", got, preSkip)
	}
	if got := binary.LittleEndian.Uint32(payload[12:]); got != 22050 {
		t.Errorf("input sample rate = %d, want 22050", got)
	}

	tags := pagePayload(pages[1])
	if !bytes.HasPrefix(tags, []byte(commentSignature)) {
		t.Fatalf("second page is not OpusTags: % x", tags[:8])
	}
}

func TestWriter_GranulePositionsCount48kHzSamples(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 24000, 1)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	buf.Reset()

	// Two 20ms packets at 24kHz: 480 input samples each, 960 at 48kHz.
	if err := w.WritePacket([]byte{1, 2, 3}, 480, false); err != nil {
		t.Fatal(err)
	}
	if err := w.WritePacket([]byte{4, 5, 6}, 480, true); err != nil {
		t.Fatal(err)
	}

	pages := parsePages(t, buf.Bytes())
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	want := []uint64{960, 1920}
	for i, p := range pages {
		if got := binary.LittleEndian.Uint64(p[6:]); got != want[i] {
			t.Errorf("page %d granule = %d, want %d", i, got, want[i])
		}
	}
	if pages[1][5] != headerTypeEOS {
		t.Errorf("final page header type = %#x, want EOS", pages[1][5])
	}
}

func TestWriter_SegmentLacing(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 48000, 1)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	buf.Reset()

	payload := bytes.Repeat([]byte{0xAB}, 600)
	if err := w.WritePacket(payload, 960, false); err != nil {
		t.Fatal(err)
	}

	pages := parsePages(t, buf.Bytes())
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	page := pages[0]
	if got := int(page[26]); got != 3 {
		t.Fatalf("segment count = %d, want 3", got)
	}
	lacing := page[pageHeaderSize : pageHeaderSize+3]
	if lacing[0] != 255 || lacing[1] != 255 || lacing[2] != 90 {
		t.Errorf("lacing = %v, want [255 255 90]", lacing)
	}
	if !bytes.Equal(pagePayload(page), payload) {
		t.Error("payload corrupted by paging")
	}
}

func TestWriter_PageSequenceIncrements(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 48000, 1)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.WritePacket([]byte{byte(i)}, 960, false); err != nil {
			t.Fatal(err)
		}
	}

	pages := parsePages(t, buf.Bytes())
	for i, p := range pages {
		if got := binary.LittleEndian.Uint32(p[18:]); got != uint32(i) {
			t.Errorf("page %d sequence number = %d", i, got)
		}
	}
}

func TestWriter_CloseStream(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 48000, 1)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	buf.Reset()

	if err := w.CloseStream(); err != nil {
		t.Fatalf("CloseStream failed: %v", err)
	}
	pages := parsePages(t, buf.Bytes())
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	if pages[0][5] != headerTypeEOS {
		t.Errorf("header type = %#x, want EOS", pages[0][5])
	}
	if len(pagePayload(pages[0])) != 0 {
		t.Error("EOS page should carry no payload")
	}

	if err := w.CloseStream(); err == nil {
		t.Error("second CloseStream should fail")
	}
	if err := w.WritePacket([]byte{1}, 960, false); err == nil {
		t.Error("WritePacket after close should fail")
	}
}

func TestWriter_ChecksumNonZero(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, 48000, 1); err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	pages := parsePages(t, buf.Bytes())
	if got := binary.LittleEndian.Uint32(pages[0][22:]); got == 0 {
		t.Error("checksum field was left zero")
	}
}
