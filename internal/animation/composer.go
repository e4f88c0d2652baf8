package animation

import (
	"context"
	"fmt"
	"math"

	"github.com/OCAP2/trajectory-animator/pkg/core"
)

// DefaultTimeLayout is the time label layout when none is given.
const DefaultTimeLayout = "2006-01-02"

// Options configures a Composer.
type Options struct {
	Speed    float64
	Duration float64
	FPS      int

	// LightUp enables the post-orbit trail light-up.
	LightUp bool

	// TimeLayout is a Go time layout for Frame.TimeLabel.
	TimeLayout string
}

// Sink consumes composed frames in order.
type Sink interface {
	Consume(ctx context.Context, f core.Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f core.Frame) error

// Consume calls fn.
func (fn SinkFunc) Consume(ctx context.Context, f core.Frame) error {
	return fn(ctx, f)
}

// Composer resolves simulated time, camera pose and per-particle state for
// every frame index. Frame is a function of the index alone, so frames can be
// recomposed or skipped; a Composer is not safe for concurrent use because
// its tracks cache a cursor.
type Composer struct {
	clock      *Clock
	camera     *CompiledPath
	tracks     []*Track
	framesFull int
	opts       Options
}

// NewComposer validates everything up front: particles, rate selector and
// camera path. camera may be nil for the fixed default pose.
func NewComposer(particles []*core.Particle, camera *CameraPath, opts Options) (*Composer, error) {
	multiplier := 1.0
	if camera != nil {
		multiplier = camera.Multiplier()
	}

	clock, err := NewClock(particles, ClockConfig{
		Speed:      opts.Speed,
		Duration:   opts.Duration,
		FPS:        opts.FPS,
		Multiplier: multiplier,
	})
	if err != nil {
		return nil, err
	}

	c := &Composer{
		clock:      clock,
		framesFull: clock.FramesFull,
		opts:       opts,
	}
	if c.opts.TimeLayout == "" {
		c.opts.TimeLayout = DefaultTimeLayout
	}

	if camera != nil {
		compiled, err := camera.Compile(clock.FramesOrbit)
		if err != nil {
			return nil, err
		}
		c.camera = compiled
		c.framesFull = max(clock.FramesOrbit, compiled.Len())
	}

	c.tracks = make([]*Track, len(particles))
	for i, p := range particles {
		c.tracks[i] = NewTrack(p)
	}

	return c, nil
}

// Clock returns the reconciled time base.
func (c *Composer) Clock() *Clock {
	return c.clock
}

// Camera returns the compiled camera path, or nil when none was supplied.
func (c *Composer) Camera() *CompiledPath {
	return c.camera
}

// Frames is the total frame count including any epilogue.
func (c *Composer) Frames() int {
	return c.framesFull
}

// FramesOrbit is the number of frames in the orbit phase.
func (c *Composer) FramesOrbit() int {
	return c.clock.FramesOrbit
}

// SpeedLabel is the playback speed shown on every frame.
func (c *Composer) SpeedLabel() string {
	return fmt.Sprintf("%.0fx", math.Round(c.clock.Speed))
}

// Pose is the camera pose of frame i.
func (c *Composer) Pose(i int) core.Pose {
	if c.camera == nil {
		return core.DefaultPose
	}
	return c.camera.At(i)
}

// Frame composes frame i.
func (c *Composer) Frame(i int) (core.Frame, error) {
	if i < 0 || i >= c.framesFull {
		return core.Frame{}, fmt.Errorf("%w: %d not in [0, %d)", ErrFrameOutOfRange, i, c.framesFull)
	}

	simTime := c.clock.SimTime(i)
	postOrbit := i >= c.clock.FramesOrbit

	lightUp := NoLightUp
	if postOrbit && c.opts.LightUp {
		lightUp = i - c.clock.FramesOrbit
	}

	f := core.Frame{
		Index:      i,
		SimTime:    simTime,
		TimeLabel:  c.clock.DisplayTime(i).Format(c.opts.TimeLayout),
		SpeedLabel: c.SpeedLabel(),
		Camera:     c.Pose(i),
		PostOrbit:  postOrbit,
		Bodies:     make([]core.BodyState, len(c.tracks)),
		Final:      i == c.framesFull-1,
	}

	for k, tr := range c.tracks {
		f.Bodies[k] = tr.State(simTime, lightUp)
		if f.Bodies[k].Annotations != nil {
			f.Annotations = f.Bodies[k].Annotations
		}
	}

	return f, nil
}

// Run composes every frame in increasing order and hands it to sink. The
// context is checked between frames; frames already consumed stay consumed.
func (c *Composer) Run(ctx context.Context, sink Sink) error {
	for i := 0; i < c.framesFull; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stopped before frame %d: %w", i, err)
		}

		f, err := c.Frame(i)
		if err != nil {
			return err
		}
		if err := sink.Consume(ctx, f); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}
