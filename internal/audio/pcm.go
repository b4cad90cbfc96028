// Package audio provides the PCM primitives of the synthesis pipeline:
// volume scaling, sample/byte conversion, resampling, and WAV encoding.
// Everything here operates on signed 16-bit mono samples.
package audio

import (
	"encoding/binary"
	"math"
)

// Audio format constants shared by the whole pipeline.
const (
	// BitDepth is the sample bit depth produced by the engine.
	BitDepth = 16
	// Channels is the channel count. The engine is mono throughout.
	Channels = 1
	// BytesPerSample for one channel at BitDepth.
	BytesPerSample = BitDepth / 8
)

// ApplyVolume scales samples in place by volume, clamping to the 16-bit
// signed range so extreme samples saturate instead of wrapping. A volume of
// 1.0 leaves the buffer untouched.
func ApplyVolume(pcm []int16, volume float64) {
	if volume == 1.0 {
		return
	}
	for i, s := range pcm {
		v := int32(math.Round(float64(s) * volume))
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		pcm[i] = int16(v)
	}
}

// Int16ToBytes converts samples to little-endian wire order.
func Int16ToBytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*BytesPerSample)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16 converts little-endian bytes to samples. A trailing odd byte
// is dropped.
func BytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/BytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
