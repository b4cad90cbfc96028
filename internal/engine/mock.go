package engine

import (
	"context"
	"sync"
	"time"
)

// Mock is a deterministic in-process Engine for tests. SamplesFor decides
// the PCM returned for a given text; the default is one sample per input
// byte, each carrying the byte's value.
type Mock struct {
	SampleRate int
	ChunkSize  int
	SamplesFor func(text string) []int16
	Err        error
	Delay      time.Duration

	mu        sync.Mutex
	active    int
	maxActive int
}

func (m *Mock) samples(text string) []int16 {
	if m.SamplesFor != nil {
		return m.SamplesFor(text)
	}
	pcm := make([]int16, len(text))
	for i := range text {
		pcm[i] = int16(text[i])
	}
	return pcm
}

func (m *Mock) enter() {
	m.mu.Lock()
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}
	m.mu.Unlock()
}

func (m *Mock) leave() {
	m.mu.Lock()
	m.active--
	m.mu.Unlock()
}

// MaxActive reports the highest number of synthesis calls that were in
// flight at the same time.
func (m *Mock) MaxActive() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

func (m *Mock) NativeSampleRate() int {
	if m.SampleRate > 0 {
		return m.SampleRate
	}
	return DefaultSampleRate
}

func (m *Mock) Synthesize(ctx context.Context, text string) ([]int16, error) {
	m.enter()
	defer m.leave()
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.samples(text), nil
}

func (m *Mock) SynthesizeStream(ctx context.Context, text string, fn func(pcm []int16) error) error {
	m.enter()
	defer m.leave()
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.Err != nil {
		return m.Err
	}

	pcm := m.samples(text)
	chunk := m.ChunkSize
	if chunk <= 0 {
		chunk = len(pcm)
	}
	for off := 0; off < len(pcm); off += chunk {
		end := off + chunk
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := fn(pcm[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mock) Close() error {
	return nil
}
