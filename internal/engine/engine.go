// Package engine abstracts speech synthesis backends. The production
// backend shells out to the piper binary; tests substitute a mock.
package engine

import "context"

// Engine converts text into 16-bit mono PCM at the engine's native rate.
// Implementations must be safe for concurrent calls: the daemon invokes
// Synthesize from every worker in its pool.
type Engine interface {
	// NativeSampleRate reports the rate of the PCM the engine produces.
	NativeSampleRate() int

	// Synthesize renders the whole utterance and returns it as one buffer.
	Synthesize(ctx context.Context, text string) ([]int16, error)

	// SynthesizeStream renders the utterance incrementally, invoking fn
	// for each chunk of samples as it becomes available. fn is called
	// sequentially; returning an error from it aborts synthesis.
	SynthesizeStream(ctx context.Context, text string, fn func(pcm []int16) error) error

	// Close releases any resources held by the engine.
	Close() error
}
