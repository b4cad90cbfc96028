// Package pipeline executes one synthesis request end to end: engine
// output, resampling, format encoding and delivery to the output sink or
// the audio device.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/glottech/sayd/internal/audio"
	"github.com/glottech/sayd/internal/config"
	"github.com/glottech/sayd/internal/engine"
	"github.com/glottech/sayd/internal/ogg"
	"github.com/glottech/sayd/internal/player"
	"github.com/glottech/sayd/internal/protocol"
)

// DefaultOpusRate is the output rate for opus when the request does not
// ask for one. Opus internally runs at 48kHz multiples, and 24kHz keeps
// speech quality without upsampling the whole model output.
const DefaultOpusRate = 24000

// Pipeline turns requests into audio. Safe for concurrent Process calls;
// output emission is serialized so frames of different requests never
// interleave on a shared sink.
type Pipeline struct {
	cfg      config.Config
	engine   engine.Engine
	reporter *protocol.Reporter
	player   *player.Player
	logger   *log.Logger
	stdout   io.Writer

	outMu sync.Mutex
}

// New builds a pipeline around the given engine. out is where audio bytes
// go when no output file is configured, normally os.Stdout.
func New(cfg config.Config, eng engine.Engine, reporter *protocol.Reporter, logger *log.Logger, out io.Writer) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		engine:   eng,
		reporter: reporter,
		player:   player.New(eng.NativeSampleRate()),
		logger:   logger,
		stdout:   out,
	}
}

// Process handles one request. Failures are reported on the error channel
// and logged; they never propagate, so one bad request cannot take a
// worker down.
func (p *Pipeline) Process(ctx context.Context, req protocol.Request) {
	if err := p.run(ctx, req); err != nil {
		p.logger.Error("request failed", "id", req.ID, "err", err)
		p.reporter.Report(err)
	} else {
		p.logger.Debug("request done", "id", req.ID)
	}
}

func (p *Pipeline) run(ctx context.Context, req protocol.Request) error {
	switch req.Format {
	case protocol.FormatPCM, protocol.FormatWAV, protocol.FormatOpus:
	default:
		return fmt.Errorf("%w: %q", protocol.ErrUnsupportedFormat, req.Format)
	}

	if req.Format == protocol.FormatPCM && p.cfg.PlayAudio {
		return p.play(ctx, req)
	}

	if p.cfg.Stream {
		p.outMu.Lock()
		defer p.outMu.Unlock()

		sink, err := p.openSink()
		if err != nil {
			return err
		}
		defer sink.Close()
		return p.streamTo(ctx, sink, req)
	}

	// Whole-buffer mode synthesizes and encodes outside the output lock
	// so workers overlap; only the single write is serialized.
	out, err := p.renderWhole(ctx, req)
	if err != nil {
		return err
	}

	p.outMu.Lock()
	defer p.outMu.Unlock()

	sink, err := p.openSink()
	if err != nil {
		return err
	}
	defer sink.Close()
	if _, err := sink.Write(out); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}

// play renders the request at the engine's native rate and sends it to
// the audio device instead of the output sink.
func (p *Pipeline) play(ctx context.Context, req protocol.Request) error {
	pcm, err := p.engine.Synthesize(ctx, req.Text)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	audio.ApplyVolume(pcm, p.cfg.Volume)
	if err := p.player.Play(ctx, pcm); err != nil {
		return fmt.Errorf("play audio: %w", err)
	}
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (p *Pipeline) openSink() (io.WriteCloser, error) {
	if p.cfg.OutputFile == "" {
		return nopCloser{p.stdout}, nil
	}
	f, err := os.Create(p.cfg.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return f, nil
}

// effectiveRate picks the output sample rate for container formats: the
// request's explicit rate wins, opus falls back to its codec default, wav
// to the model's native rate. Raw pcm always stays at the native rate.
func (p *Pipeline) effectiveRate(req protocol.Request) int {
	if req.Format == protocol.FormatPCM {
		return p.engine.NativeSampleRate()
	}
	if req.SampleRate > 0 {
		return req.SampleRate
	}
	if req.Format == protocol.FormatOpus {
		return DefaultOpusRate
	}
	return p.engine.NativeSampleRate()
}

// renderWhole synthesizes the complete utterance and encodes it as a
// single unframed blob.
func (p *Pipeline) renderWhole(ctx context.Context, req protocol.Request) ([]byte, error) {
	pcm, err := p.engine.Synthesize(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	rate := p.effectiveRate(req)
	pcm = audio.Resample(pcm, p.engine.NativeSampleRate(), rate)

	var out []byte
	switch req.Format {
	case protocol.FormatPCM:
		out = audio.Int16ToBytes(pcm)
	case protocol.FormatWAV:
		out, err = audio.EncodeWAV(pcm, rate)
	case protocol.FormatOpus:
		out, err = ogg.EncodeAll(pcm, rate, audio.Channels)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", req.Format, err)
	}
	return out, nil
}

// streamTo synthesizes incrementally and emits length-prefixed frames as
// chunks arrive. pcm and wav frames carry the chunk's raw samples (wav
// resampled to the effective rate); opus frames carry slices of one
// continuous Ogg stream.
func (p *Pipeline) streamTo(ctx context.Context, w io.Writer, req protocol.Request) error {
	rate := p.effectiveRate(req)
	native := p.engine.NativeSampleRate()

	var enc *ogg.StreamEncoder
	if req.Format == protocol.FormatOpus {
		var err error
		enc, err = ogg.NewStreamEncoder(rate, audio.Channels)
		if err != nil {
			return fmt.Errorf("encode opus: %w", err)
		}
	}

	err := p.engine.SynthesizeStream(ctx, req.Text, func(chunk []int16) error {
		chunk = audio.Resample(chunk, native, rate)
		switch req.Format {
		case protocol.FormatPCM, protocol.FormatWAV:
			return writeFrame(w, audio.Int16ToBytes(chunk))
		case protocol.FormatOpus:
			b, err := enc.Encode(chunk)
			if err != nil {
				return fmt.Errorf("encode opus: %w", err)
			}
			return writeFrame(w, b)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	if enc != nil {
		tail, err := enc.Finish()
		if err != nil {
			return fmt.Errorf("encode opus: %w", err)
		}
		if err := writeFrame(w, tail); err != nil {
			return err
		}
	}
	return nil
}
