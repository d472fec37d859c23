// Package clock decouples a variable-rate host loop from the fixed-rate
// simulation via a time accumulator. The host calls Advance on every frame;
// the clock invokes the step callback zero or more times and then the render
// callback with the sub-tick interpolation alpha.
package clock

import "time"

// DefaultMaxFrameDelta caps a single frame's wall-time contribution so a
// long stall (host suspended, debugger break) does not trigger a catch-up
// burst that itself takes longer than a frame.
const DefaultMaxFrameDelta = 250 * time.Millisecond

type StepFunc func(tick int64, dt float64)

type RenderFunc func(alpha float64)

type Clock struct {
	tickDuration  time.Duration
	maxFrameDelta time.Duration

	step   StepFunc
	render RenderFunc

	accumulator time.Duration
	last        time.Time
	started     bool
	paused      bool
	tick        int64
}

func New(tps int, step StepFunc) *Clock {
	return &Clock{
		tickDuration:  time.Second / time.Duration(tps),
		maxFrameDelta: DefaultMaxFrameDelta,
		step:          step,
	}
}

// SetRender registers an optional per-frame render callback.
func (c *Clock) SetRender(render RenderFunc) {
	c.render = render
}

// SetMaxFrameDelta overrides the frame-delta clamp.
func (c *Clock) SetMaxFrameDelta(d time.Duration) {
	if d > 0 {
		c.maxFrameDelta = d
	}
}

func (c *Clock) Tick() int64 { return c.tick }

func (c *Clock) Paused() bool { return c.paused }

// Advance consumes wall time up to now, stepping the simulation at the fixed
// rate. While paused only the render callback fires, with the alpha frozen.
func (c *Clock) Advance(now time.Time) {
	if !c.started {
		c.started = true
		c.last = now
	}

	delta := now.Sub(c.last)
	c.last = now

	if c.paused {
		c.invokeRender()
		return
	}

	if delta < 0 {
		delta = 0
	}
	if delta > c.maxFrameDelta {
		delta = c.maxFrameDelta
	}
	c.accumulator += delta

	for c.accumulator >= c.tickDuration {
		c.step(c.tick, c.tickDuration.Seconds())
		c.tick++
		c.accumulator -= c.tickDuration
	}

	c.invokeRender()
}

// Pause freezes simulation advancement. Rendering continues.
func (c *Clock) Pause() {
	c.paused = true
}

// Resume restarts simulation advancement. The accumulator and wall-clock
// reference are reset so the time spent paused is not replayed as a burst of
// catch-up ticks.
func (c *Clock) Resume(now time.Time) {
	c.paused = false
	c.accumulator = 0
	c.last = now
	c.started = true
}

func (c *Clock) invokeRender() {
	if c.render == nil {
		return
	}
	alpha := float64(c.accumulator) / float64(c.tickDuration)
	if alpha < 0 {
		alpha = 0
	}
	if alpha >= 1 {
		alpha = 0
	}
	c.render(alpha)
}
