// pkg/core/trajectory.go
package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyTrajectory is returned when a trajectory has no samples.
	ErrEmptyTrajectory = errors.New("trajectory has no samples")

	// ErrUnorderedTrajectory is returned when sample times go backwards.
	ErrUnorderedTrajectory = errors.New("trajectory sample times are not ordered")
)

// Vec3 is a position in the scene's world units (metres for the bundled loaders).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sample is one timestamped position of a moving body.
type Sample struct {
	Time     time.Time
	Position Vec3
}

// Trajectory is an immutable, time-ordered sequence of samples.
type Trajectory struct {
	samples []Sample
}

// NewTrajectory validates and copies samples into a Trajectory.
// Equal consecutive times are accepted, decreasing times are not.
func NewTrajectory(samples []Sample) (*Trajectory, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyTrajectory
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Time.Before(samples[i-1].Time) {
			return nil, fmt.Errorf("%w: sample %d (%s) is before sample %d (%s)",
				ErrUnorderedTrajectory,
				i, samples[i].Time.Format(time.RFC3339Nano),
				i-1, samples[i-1].Time.Format(time.RFC3339Nano),
			)
		}
	}

	owned := make([]Sample, len(samples))
	copy(owned, samples)
	return &Trajectory{samples: owned}, nil
}

// Len returns the number of samples.
func (t *Trajectory) Len() int {
	return len(t.samples)
}

// At returns the i-th sample.
func (t *Trajectory) At(i int) Sample {
	return t.samples[i]
}

// Start returns the time of the first sample.
func (t *Trajectory) Start() time.Time {
	return t.samples[0].Time
}

// End returns the time of the last sample.
func (t *Trajectory) End() time.Time {
	return t.samples[len(t.samples)-1].Time
}

// Positions returns the positions of samples [from, to).
// The returned slice is freshly allocated.
func (t *Trajectory) Positions(from, to int) []Vec3 {
	if from < 0 {
		from = 0
	}
	if to > len(t.samples) {
		to = len(t.samples)
	}
	if to <= from {
		return nil
	}
	out := make([]Vec3, 0, to-from)
	for _, s := range t.samples[from:to] {
		out = append(out, s.Position)
	}
	return out
}
