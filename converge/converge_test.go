package converge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage replays a fixed sample sequence; after the sequence ends it
// repeats the last value plus the index so it never stabilises by accident.
type fakePage struct {
	seq     []int
	samples int
	scrolls int
}

func (f *fakePage) scroll(context.Context) error {
	f.scrolls++
	return nil
}

func (f *fakePage) sample(context.Context) (int, error) {
	i := f.samples
	f.samples++
	if i < len(f.seq) {
		return f.seq[i], nil
	}
	return 1000 + i, nil
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestController(cfg Config, f *fakePage) *Controller {
	return New(cfg, f.scroll, f.sample, WithSleep(noSleep))
}

func TestRun_ConvergesAfterFourEqualSamples(t *testing.T) {
	f := &fakePage{seq: []int{3, 5, 5, 5, 5, 7}}
	c := newTestController(Config{MaxRounds: 40, SampleEvery: 5, StableSamples: 4}, f)

	out := c.Run(context.Background())

	assert.Equal(t, Converged, out.State)
	assert.Equal(t, 25, out.Rounds, "must stop at the round of the fourth 5")
	assert.Equal(t, []int{3, 5, 5, 5, 5}, out.Samples)
	assert.Equal(t, 5, out.Count)
	assert.Equal(t, 5, f.samples, "the trailing 7 must never be sampled")
	assert.Equal(t, 25, f.scrolls)
}

func TestRun_StopsExactlyAtRoundBudget(t *testing.T) {
	f := &fakePage{}
	for i := 1; i <= 100; i++ {
		f.seq = append(f.seq, i)
	}
	c := newTestController(Config{MaxRounds: 40, SampleEvery: 5, StableSamples: 4}, f)

	out := c.Run(context.Background())

	assert.Equal(t, Exhausted, out.State)
	assert.Equal(t, 40, out.Rounds)
	assert.Equal(t, 40, f.scrolls)
	assert.Equal(t, 8, f.samples)
	assert.Equal(t, 8, out.Count)
}

func TestRun_ZeroCountNeverConverges(t *testing.T) {
	f := &fakePage{seq: make([]int, 20)}
	c := newTestController(Config{MaxRounds: 40, SampleEvery: 5, StableSamples: 4}, f)

	out := c.Run(context.Background())

	assert.Equal(t, Exhausted, out.State)
	assert.Equal(t, 40, out.Rounds)
	assert.Equal(t, 0, out.Count)
}

func TestRun_RecoversFromScrollAndSampleErrors(t *testing.T) {
	calls := 0
	sample := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("execution context destroyed")
		}
		return 9, nil
	}
	scroll := func(context.Context) error { return errors.New("no scrollable element") }
	c := New(Config{MaxRounds: 40, SampleEvery: 5, StableSamples: 4}, scroll, sample, WithSleep(noSleep))

	out := c.Run(context.Background())

	assert.Equal(t, Converged, out.State)
	assert.Equal(t, []int{9, 9, 9, 9}, out.Samples)
	assert.Equal(t, 25, out.Rounds)
}

func TestRun_InterruptedByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakePage{}
	scroll := func(context.Context) error {
		f.scrolls++
		if f.scrolls == 7 {
			cancel()
		}
		return nil
	}
	c := New(Config{MaxRounds: 40}, scroll, f.sample, WithSleep(noSleep))

	out := c.Run(ctx)

	assert.Equal(t, Interrupted, out.State)
	require.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, 6, out.Rounds)
}

func TestRun_UsesRealIntervalByDefault(t *testing.T) {
	f := &fakePage{seq: []int{2, 2}}
	c := New(Config{MaxRounds: 2, SampleEvery: 1, StableSamples: 2, Interval: 5 * time.Millisecond}, f.scroll, f.sample)

	start := time.Now()
	out := c.Run(context.Background())

	assert.Equal(t, Converged, out.State)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestStability(t *testing.T) {
	tests := []struct {
		name      string
		seq       []int
		threshold int
		wantAt    int // 1-based sample index that converges, 0 = never
	}{
		{"growth then plateau", []int{3, 5, 5, 5, 5, 7}, 4, 5},
		{"immediately stable", []int{4, 4, 4, 4}, 4, 4},
		{"reset by change", []int{4, 4, 4, 6, 6, 6, 6}, 4, 7},
		{"zeros", []int{0, 0, 0, 0, 0}, 4, 0},
		{"threshold one", []int{1}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stability{threshold: tt.threshold}
			got := 0
			for i, n := range tt.seq {
				if s.observe(n) {
					got = i + 1
					break
				}
			}
			assert.Equal(t, tt.wantAt, got)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, Config{MaxRounds: 40, SampleEvery: 5, StableSamples: 4}, c)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "interrupted", Interrupted.String())
	assert.Equal(t, "running", Running.String())
}
