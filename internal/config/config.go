// Package config holds the process-wide run configuration. A Config is
// assembled once at startup and read-only afterwards; every worker shares
// the same value without mutation.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Config is the validated run configuration for one daemon process.
type Config struct {
	// ModelPath points at the voice model (ONNX) used by the engine.
	ModelPath string
	// ModelConfigPath points at the model's config JSON. Optional; when
	// empty the engine looks for <model>.json next to the model.
	ModelConfigPath string
	// ESpeakDataPath is the espeak-ng data directory. Optional.
	ESpeakDataPath string
	// EngineBinary is the synthesis binary to run. Defaults to "piper".
	EngineBinary string
	// Accelerator selects hardware acceleration for the engine ("cuda").
	Accelerator string
	// JSONL suppresses all human logging so the streams carry only
	// JSON and audio.
	JSONL bool
	// Stream enables length-prefixed chunked output.
	Stream bool
	// MaxConcurrency is the worker pool size. Always at least 1.
	MaxConcurrency int
	// OutputFile, when set, receives output instead of stdout. Every
	// request opens and truncates the same path, so callers should keep
	// MaxConcurrency at 1 when using it.
	OutputFile string
	// PlayAudio plays pcm requests on the local audio device instead of
	// writing them to the sink.
	PlayAudio bool
	// Volume scales playback samples. Must be within [0.0, 1.0].
	Volume float64
	// Debug and Quiet drive log verbosity.
	Debug bool
	Quiet bool
}

// Env holds settings read only from the environment, parsed with
// caarlos0/env. Flags take precedence over these.
type Env struct {
	EngineBinary string `env:"SAYD_ENGINE_BIN"`
	ESpeakData   string `env:"SAYD_ESPEAK_DATA"`
	Model        string `env:"SAYD_MODEL"`
	ModelConfig  string `env:"SAYD_MODEL_CONFIG"`
}

// FromEnv reads the environment-only settings.
func FromEnv() (Env, error) {
	return env.ParseAs[Env]()
}

// Error is a fatal startup configuration problem. It aborts the process
// before the worker pool starts.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func errorf(format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the configuration and normalizes the concurrency bound.
// Any error returned is fatal.
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return errorf("model file must be provided")
	}
	if _, err := os.Stat(c.ModelPath); err != nil {
		return errorf("model file doesn't exist: %s", c.ModelPath)
	}
	if c.ModelConfigPath != "" {
		if _, err := os.Stat(c.ModelConfigPath); err != nil {
			return errorf("model config doesn't exist: %s", c.ModelConfigPath)
		}
	}
	if c.ESpeakDataPath != "" {
		if _, err := os.Stat(c.ESpeakDataPath); err != nil {
			return errorf("espeak data directory doesn't exist: %s", c.ESpeakDataPath)
		}
	}
	if c.Volume < 0.0 || c.Volume > 1.0 {
		return errorf("volume must be between 0.0 and 1.0")
	}
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = 1
	}
	return nil
}
