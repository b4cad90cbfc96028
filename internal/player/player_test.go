package player

import (
	"context"
	"testing"
)

func TestPlay_EmptyBufferIsNoOp(t *testing.T) {
	// An empty buffer must not open the audio device, so this passes even
	// on machines with no audio hardware.
	p := New(22050)
	if err := p.Play(context.Background(), nil); err != nil {
		t.Errorf("Play(nil) = %v, want nil", err)
	}
}
