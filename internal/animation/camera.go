package animation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/OCAP2/trajectory-animator/pkg/core"
)

var (
	// ErrNonMonotonicCamera is returned when a camera segment ends before the
	// segment preceding it.
	ErrNonMonotonicCamera = errors.New("camera segment end fractions must be non-decreasing")

	// ErrInvalidCamera is returned for end fractions that are negative,
	// non-finite or past MaxCameraFraction, and for poses with a non-finite
	// channel or a zoom that is not positive.
	ErrInvalidCamera = errors.New("invalid camera segment")
)

// MaxCameraFraction bounds how far past the orbit phase a keyframe may end.
const MaxCameraFraction = 100

// maxCompiledFrames bounds the dense pose array.
const maxCompiledFrames = 1 << 26

// Smoothstep is the cubic ease t²(3 − 2t).
func Smoothstep(t float64) float64 {
	return t * t * (3.0 - 2.0*t)
}

// Ramp returns n values moving from `from` towards `to`, eased with
// Smoothstep over t = 0, 1/n, ..., (n-1)/n. Equal endpoints produce a linear
// ramp, which is constant.
func Ramp(from, to float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if from == to {
		return floats.Span(make([]float64, n+1), from, to)[:n]
	}

	out := floats.Span(make([]float64, n+1), 0, 1)[:n]
	for i, t := range out {
		out[i] = from + (to-from)*Smoothstep(t)
	}
	return out
}

// CameraPath is a validated, ordered list of camera keyframes.
type CameraPath struct {
	segments []core.CameraSegment
}

// NewCameraPath validates the keyframes once. End fractions must be finite,
// in [0, MaxCameraFraction] and non-decreasing. Every pose channel must be
// finite and the zoom positive.
func NewCameraPath(segments []core.CameraSegment) (*CameraPath, error) {
	for i, s := range segments {
		if !finite(s.EndFraction) || s.EndFraction < 0 || s.EndFraction > MaxCameraFraction {
			return nil, fmt.Errorf("%w: segment %d has end fraction %v", ErrInvalidCamera, i, s.EndFraction)
		}
		if !finite(s.Elevation) || !finite(s.Azimuth) || !finite(s.Roll) || !finite(s.Zoom) {
			return nil, fmt.Errorf("%w: segment %d has a non-finite pose %+v", ErrInvalidCamera, i, s.Pose)
		}
		if s.Zoom <= 0 {
			return nil, fmt.Errorf("%w: segment %d has zoom %v, must be positive", ErrInvalidCamera, i, s.Zoom)
		}
		if i > 0 && s.EndFraction < segments[i-1].EndFraction {
			return nil, fmt.Errorf("%w: segment %d ends at %v, before segment %d at %v",
				ErrNonMonotonicCamera, i, s.EndFraction, i-1, segments[i-1].EndFraction)
		}
	}

	owned := make([]core.CameraSegment, len(segments))
	copy(owned, segments)
	return &CameraPath{segments: owned}, nil
}

// Segments returns a copy of the keyframes.
func (c *CameraPath) Segments() []core.CameraSegment {
	out := make([]core.CameraSegment, len(c.segments))
	copy(out, c.segments)
	return out
}

// Multiplier is how far the path reaches relative to the orbit phase, at least 1.
func (c *CameraPath) Multiplier() float64 {
	m := 1.0
	for _, s := range c.segments {
		m = math.Max(m, s.EndFraction)
	}
	return m
}

// Compile expands the keyframes into one pose per frame. Interpolation starts
// from core.DefaultPose until the first keyframe.
func (c *CameraPath) Compile(framesOrbit int) (*CompiledPath, error) {
	if framesOrbit <= 0 {
		return nil, fmt.Errorf("%w: orbit frame count must be positive, got %d", ErrInvalidConfig, framesOrbit)
	}

	last := 0
	if n := len(c.segments); n > 0 {
		f := math.Round(c.segments[n-1].EndFraction * float64(framesOrbit))
		if f > maxCompiledFrames {
			return nil, fmt.Errorf("%w: path ends at frame %.0f, more than %d frames",
				ErrInvalidCamera, f, maxCompiledFrames)
		}
		last = int(f)
	}
	poses := make([]core.Pose, 0, last)

	from := core.DefaultPose
	start := 0
	for i, s := range c.segments {
		end := breakpoint(s.EndFraction, framesOrbit)
		if end < start {
			return nil, fmt.Errorf("%w: segment %d breakpoint %d precedes %d", ErrNonMonotonicCamera, i, end, start)
		}
		poses = append(poses, interpolate(from, s.Pose, end-start)...)
		from = s.Pose
		start = end
	}

	return &CompiledPath{poses: poses, hold: from}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func breakpoint(fraction float64, framesOrbit int) int {
	return int(math.Round(fraction * float64(framesOrbit)))
}

func interpolate(p0, p1 core.Pose, n int) []core.Pose {
	if n <= 0 {
		return nil
	}
	elev := Ramp(p0.Elevation, p1.Elevation, n)
	azim := Ramp(p0.Azimuth, p1.Azimuth, n)
	roll := Ramp(p0.Roll, p1.Roll, n)
	zoom := Ramp(p0.Zoom, p1.Zoom, n)

	out := make([]core.Pose, n)
	for i := range out {
		out[i] = core.Pose{Elevation: elev[i], Azimuth: azim[i], Roll: roll[i], Zoom: zoom[i]}
	}
	return out
}

// CompiledPath is the dense per-frame camera array.
type CompiledPath struct {
	poses []core.Pose
	// hold is the final keyframe pose, used past the end of poses.
	hold core.Pose
}

// Len is the number of interpolated frames, i.e. the final breakpoint.
func (cp *CompiledPath) Len() int {
	return len(cp.poses)
}

// At returns the pose for frame i. Frames past the final breakpoint hold the
// last keyframe.
func (cp *CompiledPath) At(i int) core.Pose {
	if i < 0 {
		i = 0
	}
	if i < len(cp.poses) {
		return cp.poses[i]
	}
	return cp.hold
}

// Poses returns a copy of the compiled array.
func (cp *CompiledPath) Poses() []core.Pose {
	out := make([]core.Pose, len(cp.poses))
	copy(out, cp.poses)
	return out
}
