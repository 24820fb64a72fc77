package stealth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextDelayStaysInRange(t *testing.T) {
	p := NewPolicy(100*time.Millisecond, 300*time.Millisecond)
	for i := 0; i < 200; i++ {
		d := p.NextDelay()
		require.GreaterOrEqual(t, d, 100*time.Millisecond)
		require.Less(t, d, 300*time.Millisecond)
	}
}

func TestNewPolicyRejectsInvertedRange(t *testing.T) {
	p := NewPolicy(5*time.Second, 1*time.Second)
	d := p.NextDelay()
	require.GreaterOrEqual(t, d, 1*time.Second)
	require.Less(t, d, 3*time.Second)
}

func TestNextIdentityDrawsFromPools(t *testing.T) {
	p := NewPolicy(time.Second, 2*time.Second)
	id := p.NextIdentity()
	require.NotEmpty(t, id.UserAgent)
	require.Positive(t, id.Viewport.Width)
	require.Positive(t, id.Viewport.Height)
	require.NotEmpty(t, id.AcceptLanguage)
}

func TestPauseHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPolicy(5*time.Second, 10*time.Second)
	start := time.Now()
	p.Pause(ctx)
	require.Less(t, time.Since(start), time.Second, "pause should exit immediately when context is done")
}
