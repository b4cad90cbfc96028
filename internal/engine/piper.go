package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/glottech/sayd/internal/audio"
)

// DefaultSampleRate is assumed when the voice model config does not state
// an output rate.
const DefaultSampleRate = 22050

// streamChunkSamples is how many samples we hand to the chunk callback at
// a time while piper is still producing audio.
const streamChunkSamples = 4096

// PiperError describes a failure in the piper subprocess lifecycle.
type PiperError struct {
	Type    string
	Message string
	Cause   error
}

func (e *PiperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("piper %s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("piper %s: %s", e.Type, e.Message)
}

func (e *PiperError) Unwrap() error {
	return e.Cause
}

// PiperOptions configures the piper backend.
type PiperOptions struct {
	// Binary is the piper executable. Empty means look it up on PATH.
	Binary string
	// ModelPath is the ONNX voice model. Required.
	ModelPath string
	// ModelConfigPath is the model's JSON config. Empty means piper
	// resolves it next to the model itself.
	ModelConfigPath string
	// ESpeakDataPath points piper at an espeak-ng data directory.
	ESpeakDataPath string
	// Accelerator selects a compute backend ("cuda" or empty for CPU).
	Accelerator string
}

// Piper runs the piper binary as a subprocess per synthesis call. Each
// call gets its own process, so concurrent synthesis needs no locking.
type Piper struct {
	opts       PiperOptions
	binary     string
	sampleRate int
}

// NewPiper resolves the binary and the model's output sample rate. It does
// not start any process; that happens per synthesis call.
func NewPiper(opts PiperOptions) (*Piper, error) {
	binary := opts.Binary
	if binary == "" {
		path, err := exec.LookPath("piper")
		if err != nil {
			return nil, &PiperError{
				Type:    "binary",
				Message: "piper not found on PATH",
				Cause:   err,
			}
		}
		binary = path
	}

	rate := DefaultSampleRate
	configPath := opts.ModelConfigPath
	if configPath == "" {
		configPath = opts.ModelPath + ".json"
	}
	if r, err := readModelSampleRate(configPath); err == nil {
		rate = r
	}

	return &Piper{opts: opts, binary: binary, sampleRate: rate}, nil
}

// modelConfig is the slice of piper's voice config we care about.
type modelConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
}

func readModelSampleRate(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var cfg modelConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return 0, fmt.Errorf("parse model config: %w", err)
	}
	if cfg.Audio.SampleRate <= 0 {
		return 0, fmt.Errorf("model config %s has no sample rate", path)
	}
	return cfg.Audio.SampleRate, nil
}

// NativeSampleRate reports the model's output rate.
func (p *Piper) NativeSampleRate() int {
	return p.sampleRate
}

func (p *Piper) args() []string {
	args := []string{"--model", p.opts.ModelPath, "--output-raw"}
	if p.opts.ModelConfigPath != "" {
		args = append(args, "--config", p.opts.ModelConfigPath)
	}
	if p.opts.ESpeakDataPath != "" {
		args = append(args, "--espeak_data", p.opts.ESpeakDataPath)
	}
	if p.opts.Accelerator == "cuda" {
		args = append(args, "--cuda")
	}
	return args
}

// Synthesize runs piper to completion and returns the whole utterance.
func (p *Piper) Synthesize(ctx context.Context, text string) ([]int16, error) {
	var pcm []int16
	err := p.run(ctx, text, func(r io.Reader) error {
		raw, err := io.ReadAll(r)
		if err != nil {
			return &PiperError{
				Type:    "synthesis",
				Message: "failed to read audio data",
				Cause:   err,
			}
		}
		pcm = audio.BytesToInt16(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pcm, nil
}

// SynthesizeStream runs piper and forwards audio to fn in chunks as it is
// produced, instead of waiting for the whole utterance.
func (p *Piper) SynthesizeStream(ctx context.Context, text string, fn func(pcm []int16) error) error {
	return p.run(ctx, text, func(r io.Reader) error {
		buf := make([]byte, streamChunkSamples*audio.BytesPerSample)
		carry := 0
		for {
			n, err := r.Read(buf[carry:])
			n += carry
			carry = 0

			// A 16-bit sample may be split across reads. Hold the odd
			// byte back and complete it on the next read.
			if n%2 != 0 {
				carry = 1
			}
			if n >= 2 {
				if cbErr := fn(audio.BytesToInt16(buf[:n-carry])); cbErr != nil {
					return cbErr
				}
			}
			if carry == 1 {
				buf[0] = buf[n-1]
			}

			if err == io.EOF {
				return nil
			}
			if err != nil {
				return &PiperError{
					Type:    "synthesis",
					Message: "failed to read audio data",
					Cause:   err,
				}
			}
		}
	})
}

// run starts a piper process with text on stdin and hands its stdout to
// consume. Stderr is captured and folded into any resulting error.
func (p *Piper) run(ctx context.Context, text string, consume func(io.Reader) error) error {
	cmd := exec.CommandContext(ctx, p.binary, p.args()...)
	cmd.Stdin = strings.NewReader(text + "\n")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &PiperError{
			Type:    "process",
			Message: "failed to create stdout pipe",
			Cause:   err,
		}
	}

	if err := cmd.Start(); err != nil {
		return &PiperError{
			Type:    "process",
			Message: "failed to start piper process",
			Cause:   err,
		}
	}

	consumeErr := consume(stdout)
	if consumeErr != nil {
		// Drain so Wait does not block on a full pipe.
		io.Copy(io.Discard, stdout) //nolint:errcheck
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return &PiperError{
				Type:    "synthesis",
				Message: msg,
				Cause:   err,
			}
		}
		return &PiperError{
			Type:    "synthesis",
			Message: "synthesis failed",
			Cause:   err,
		}
	}

	return consumeErr
}

// Close implements Engine. The subprocess-per-call model holds nothing
// between calls.
func (p *Piper) Close() error {
	return nil
}
