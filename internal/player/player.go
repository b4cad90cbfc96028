// Package player plays synthesized PCM on the local audio device.
package player

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/glottech/sayd/internal/audio"
)

// The oto context is process-global and can only be created once, so every
// Player shares it. The first Player's sample rate wins.
var (
	otoCtx   *oto.Context
	otoRate  int
	otoErr   error
	otoOnce  sync.Once
	pollTick = 10 * time.Millisecond
)

func sharedContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: audio.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("initialize audio device: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
		otoRate = sampleRate
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if sampleRate != otoRate {
		return nil, fmt.Errorf("audio device already opened at %d Hz, cannot play %d Hz", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// Player plays 16-bit mono PCM at a fixed sample rate.
type Player struct {
	sampleRate int
}

// New prepares a player for the given rate. The underlying device is
// opened lazily on first playback.
func New(sampleRate int) *Player {
	return &Player{sampleRate: sampleRate}
}

// Play blocks until the buffer has been played or ctx is canceled.
func (p *Player) Play(ctx context.Context, pcm []int16) error {
	if len(pcm) == 0 {
		return nil
	}
	oc, err := sharedContext(p.sampleRate)
	if err != nil {
		return err
	}

	pl := oc.NewPlayer(bytes.NewReader(audio.Int16ToBytes(pcm)))
	defer pl.Close()
	pl.Play()

	ticker := time.NewTicker(pollTick)
	defer ticker.Stop()
	for pl.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
