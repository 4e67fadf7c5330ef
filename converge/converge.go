// Package converge drives incremental content loading until the amount of
// rendered content stops changing.
//
// A Controller repeatedly triggers a scroll, waits a fixed interval, and
// every few rounds samples how many content elements exist. It stops when a
// run of equal samples is observed (Converged) or the round budget is spent
// (Exhausted). Scrolling and sampling are injected so the loop can be driven
// deterministically in tests without a browser or real timers.
package converge

import (
	"context"
	"log/slog"
	"time"
)

// State is the controller's position in its lifecycle.
type State int

const (
	Running State = iota
	Converged
	Exhausted
	Interrupted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Config holds the loop parameters.
type Config struct {
	// MaxRounds is the round budget.
	MaxRounds int // default: 40

	// SampleEvery is the number of rounds between samples.
	SampleEvery int // default: 5

	// StableSamples is the length of the run of equal samples that counts
	// as convergence.
	StableSamples int // default: 4

	// Interval is the pause after each scroll.
	Interval time.Duration // default: 500ms
}

func (c Config) withDefaults() Config {
	if c.MaxRounds <= 0 {
		c.MaxRounds = 40
	}
	if c.SampleEvery <= 0 {
		c.SampleEvery = 5
	}
	if c.StableSamples <= 0 {
		c.StableSamples = 4
	}
	if c.Interval < 0 {
		c.Interval = 0
	}
	return c
}

// ScrollFunc triggers one round of scrolling. Errors are logged and ignored.
type ScrollFunc func(ctx context.Context) error

// SampleFunc returns the current number of content elements.
type SampleFunc func(ctx context.Context) (int, error)

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Outcome is the result of one Run.
type Outcome struct {
	State   State
	Rounds  int   // rounds fully completed
	Count   int   // last sampled count
	Samples []int // every successful sample, in order
	Err     error // set when State is Interrupted
}

// Option customises a Controller.
type Option func(*Controller)

// WithSleep replaces the real timer, e.g. with a no-op in tests.
func WithSleep(fn SleepFunc) Option {
	return func(c *Controller) { c.sleep = fn }
}

// Controller runs the scroll/sample loop.
type Controller struct {
	cfg    Config
	scroll ScrollFunc
	sample SampleFunc
	sleep  SleepFunc
}

// New creates a Controller.
func New(cfg Config, scroll ScrollFunc, sample SampleFunc, opts ...Option) *Controller {
	c := &Controller{
		cfg:    cfg.withDefaults(),
		scroll: scroll,
		sample: sample,
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run drives the loop until convergence, budget exhaustion, or ctx is done.
func (c *Controller) Run(ctx context.Context) Outcome {
	out := Outcome{State: Running}
	tr := stability{threshold: c.cfg.StableSamples}

	for round := 1; round <= c.cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return interrupted(out, err)
		}

		if err := c.scroll(ctx); err != nil {
			slog.Debug("converge: scroll failed, continuing", "round", round, "error", err)
		}
		if err := c.sleep(ctx, c.cfg.Interval); err != nil {
			return interrupted(out, err)
		}
		out.Rounds = round

		if round%c.cfg.SampleEvery != 0 {
			continue
		}

		n, err := c.sample(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return interrupted(out, ctxErr)
			}
			slog.Debug("converge: sample failed, skipping", "round", round, "error", err)
			continue
		}
		out.Samples = append(out.Samples, n)
		out.Count = n

		if tr.observe(n) {
			out.State = Converged
			return out
		}
	}

	out.State = Exhausted
	return out
}

func interrupted(out Outcome, err error) Outcome {
	out.State = Interrupted
	out.Err = err
	return out
}

// stability tracks the run of equal consecutive samples.
type stability struct {
	threshold int
	last      int
	run       int
	seen      bool
}

// observe records a sample and reports whether the run of equal samples
// has reached the threshold. A zero count never converges: nothing has
// rendered yet, so equality carries no information.
func (s *stability) observe(n int) bool {
	if s.seen && n == s.last {
		s.run++
	} else {
		s.last = n
		s.run = 1
		s.seen = true
	}
	return n > 0 && s.run >= s.threshold
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
