// Package animation turns particles and a camera path into an ordered
// sequence of frame records. It is deterministic and never blocks; rendering
// and encoding happen downstream of the Sink.
package animation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/OCAP2/trajectory-animator/pkg/core"
)

var (
	// ErrInvalidConfig is returned for unusable rate, fps or particle settings.
	ErrInvalidConfig = errors.New("invalid animation configuration")

	// ErrFrameOutOfRange is returned when asking for a frame past the animation.
	ErrFrameOutOfRange = errors.New("frame index out of range")
)

// FrameSlack is added to the frame counts so the final sample is always
// reached despite rounding.
const FrameSlack = 3

// ClockConfig selects the playback rate. Exactly one of Speed and Duration
// must be non-zero.
type ClockConfig struct {
	// Speed is simulated seconds advanced per rendered frame.
	Speed float64
	// Duration is the rendered length of the orbit phase in seconds.
	Duration float64
	FPS      int
	// Multiplier stretches the animation past the orbit phase; values
	// below 1 are treated as 1.
	Multiplier float64
}

// Clock is the global time base shared by every particle.
type Clock struct {
	Start time.Time
	End   time.Time

	OrbitSeconds float64
	FullSeconds  float64

	Speed      float64
	Duration   float64
	FPS        int
	Multiplier float64

	FramesOrbit int
	// FramesFull is the frame count implied by the multiplier alone. With a
	// camera path the render length is Composer.Frames, which follows the
	// compiled path and may differ.
	FramesFull int
}

// NewClock reconciles the particles' time ranges with the rate selector.
func NewClock(particles []*core.Particle, cfg ClockConfig) (*Clock, error) {
	hasSpeed := cfg.Speed != 0
	hasDuration := cfg.Duration != 0
	switch {
	case hasSpeed && hasDuration:
		return nil, fmt.Errorf("%w: speed and duration are mutually exclusive", ErrInvalidConfig)
	case !hasSpeed && !hasDuration:
		return nil, fmt.Errorf("%w: either speed or duration must be set", ErrInvalidConfig)
	case cfg.Speed < 0 || cfg.Duration < 0:
		return nil, fmt.Errorf("%w: speed and duration must be positive", ErrInvalidConfig)
	case cfg.FPS <= 0:
		return nil, fmt.Errorf("%w: fps must be positive, got %d", ErrInvalidConfig, cfg.FPS)
	case len(particles) == 0:
		return nil, fmt.Errorf("%w: no particles", ErrInvalidConfig)
	}

	c := &Clock{
		FPS:        cfg.FPS,
		Multiplier: math.Max(1, cfg.Multiplier),
	}

	for i, p := range particles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if i == 0 || p.Trajectory.Start().Before(c.Start) {
			c.Start = p.Trajectory.Start()
		}
		if i == 0 || p.Trajectory.End().After(c.End) {
			c.End = p.Trajectory.End()
		}
	}

	c.OrbitSeconds = c.End.Sub(c.Start).Seconds()
	if c.OrbitSeconds <= 0 {
		return nil, fmt.Errorf("%w: trajectories span no time", ErrInvalidConfig)
	}
	c.FullSeconds = c.OrbitSeconds * c.Multiplier

	if hasDuration {
		c.Duration = cfg.Duration * c.Multiplier
		c.Speed = c.OrbitSeconds / c.Duration / float64(c.FPS)
	} else {
		c.Speed = cfg.Speed
		c.Duration = math.Round(c.FullSeconds / float64(c.FPS) / c.Speed * c.Multiplier)
	}

	c.FramesOrbit = int(math.Floor(c.OrbitSeconds/c.Speed)) + FrameSlack
	c.FramesFull = int(math.Floor(c.FullSeconds/c.Speed)) + FrameSlack

	return c, nil
}

// SimTime maps frame i to the time the particle tracks are evaluated at,
// Start + Speed×(i−1). Frames past the orbit phase stay frozen at the last
// orbit frame's time, which the frame slack puts past End so every track is
// in its past-window state. Use DisplayTime for a time clamped to End.
func (c *Clock) SimTime(i int) time.Time {
	j := min(max(i, 0), c.FramesOrbit-1)
	offset := c.Speed * float64(j-1)
	return c.Start.Add(time.Duration(offset * float64(time.Second)))
}

// DisplayTime is SimTime clamped to the global end, used for the time label.
func (c *Clock) DisplayTime(i int) time.Time {
	t := c.SimTime(i)
	if t.After(c.End) {
		return c.End
	}
	return t
}

// PhysicalDuration is the simulated span covered by the full animation.
func (c *Clock) PhysicalDuration() time.Duration {
	return time.Duration(c.FullSeconds * float64(time.Second))
}

// AnimationDuration is the rendered length of the animation.
func (c *Clock) AnimationDuration() time.Duration {
	return time.Duration(c.Duration * float64(time.Second))
}
