// Package ogg implements the Ogg Opus container used by the opus output
// format: a page writer plus an incremental per-request stream encoder.
//
// Framing follows RFC 7845. Granule positions always count 48 kHz samples
// regardless of the encoder's input rate.
package ogg

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	headerTypeContinuation = 0x00
	headerTypeBOS          = 0x02
	headerTypeEOS          = 0x04

	pageHeaderSize   = 27
	captureSignature = "OggS"
	idSignature      = "OpusHead"
	commentSignature = "OpusTags"
	vendor           = "sayd"

	// preSkip per RFC 7845 §5.1: 80ms of decoder priming at 48kHz.
	preSkip = 3840

	// granuleRate is the fixed clock for Ogg Opus granule positions.
	granuleRate = 48000
)

var errStreamClosed = errors.New("ogg: stream already closed")

// Writer assembles Ogg pages around Opus packets for a single logical
// stream. Not safe for concurrent use; every request owns its own Writer.
type Writer struct {
	out        io.Writer
	sampleRate uint32
	channels   uint16
	serial     uint32
	pageIndex  uint32
	granule    uint64
	crcTable   *[256]uint32
	closed     bool
}

// NewWriter starts a logical Ogg Opus stream on out by emitting the
// OpusHead and OpusTags header pages.
func NewWriter(out io.Writer, sampleRate, channels int) (*Writer, error) {
	var serial uint32
	if err := binary.Read(rand.Reader, binary.LittleEndian, &serial); err != nil {
		return nil, fmt.Errorf("ogg: stream serial: %w", err)
	}

	w := &Writer{
		out:        out,
		sampleRate: uint32(sampleRate),
		channels:   uint16(channels),
		serial:     serial,
		crcTable:   makeCRCTable(),
	}
	if err := w.writeHeaders(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeaders() error {
	// ID header (OpusHead), alone on the first page with the BOS flag.
	id := make([]byte, 19)
	copy(id, idSignature)
	id[8] = 1 // version
	id[9] = uint8(w.channels)
	binary.LittleEndian.PutUint16(id[10:], preSkip)
	binary.LittleEndian.PutUint32(id[12:], w.sampleRate) // original input rate
	binary.LittleEndian.PutUint16(id[16:], 0)            // output gain
	id[18] = 0                                           // channel mapping family 0

	if err := w.writePage(id, headerTypeBOS); err != nil {
		return err
	}

	// Comment header (OpusTags).
	tags := make([]byte, 8+4+len(vendor)+4)
	copy(tags, commentSignature)
	binary.LittleEndian.PutUint32(tags[8:], uint32(len(vendor)))
	copy(tags[12:], vendor)
	binary.LittleEndian.PutUint32(tags[12+len(vendor):], 0) // no user comments

	return w.writePage(tags, headerTypeContinuation)
}

// WritePacket appends one Opus packet covering the given number of input
// samples, one packet per page. The final packet of a stream is written
// with eos set so the page carries the end-of-stream flag.
func (w *Writer) WritePacket(packet []byte, samples int, eos bool) error {
	if w.closed {
		return errStreamClosed
	}
	w.granule += uint64(int64(samples) * granuleRate / int64(w.sampleRate))
	headerType := byte(headerTypeContinuation)
	if eos {
		headerType = headerTypeEOS
		w.closed = true
	}
	return w.writePage(packet, headerType)
}

// CloseStream terminates the stream with an empty end-of-stream page. Used
// when every audio packet has already been written without the EOS flag.
func (w *Writer) CloseStream() error {
	if w.closed {
		return errStreamClosed
	}
	w.closed = true
	return w.writePage(nil, headerTypeEOS)
}

func (w *Writer) writePage(payload []byte, headerType byte) error {
	nSegments := len(payload)/255 + 1
	page := make([]byte, pageHeaderSize+nSegments+len(payload))

	copy(page, captureSignature)
	page[4] = 0 // stream structure version
	page[5] = headerType
	binary.LittleEndian.PutUint64(page[6:], w.granule)
	binary.LittleEndian.PutUint32(page[14:], w.serial)
	binary.LittleEndian.PutUint32(page[18:], w.pageIndex)
	page[26] = uint8(nSegments)

	// Segment lacing: 255 for every full segment, remainder in the last.
	for i := 0; i < nSegments-1; i++ {
		page[pageHeaderSize+i] = 255
	}
	page[pageHeaderSize+nSegments-1] = uint8(len(payload) % 255)
	copy(page[pageHeaderSize+nSegments:], payload)

	var checksum uint32
	for _, b := range page {
		checksum = (checksum << 8) ^ w.crcTable[byte(checksum>>24)^b]
	}
	binary.LittleEndian.PutUint32(page[22:], checksum)

	w.pageIndex++
	_, err := w.out.Write(page)
	if err != nil {
		return fmt.Errorf("ogg: write page: %w", err)
	}
	return nil
}

func makeCRCTable() *[256]uint32 {
	const poly = 0x04c11db7
	var table [256]uint32
	for i := range table {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ poly
			} else {
				r <<= 1
			}
		}
		table[i] = r
	}
	return &table
}
