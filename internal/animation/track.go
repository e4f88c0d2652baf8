package animation

import (
	"sort"
	"time"

	"github.com/OCAP2/trajectory-animator/pkg/core"
)

const (
	// NoLightUp disables the light-up effect for a State call.
	NoLightUp = -1

	// lightUpStep is the opacity gained per post-orbit frame.
	lightUpStep = 0.005

	// terminalTracerSamples is the tracer length once a particle has ended.
	terminalTracerSamples = 2
)

// LightUpOpacity is the trail opacity after frames post-orbit frames. It is
// monotonic and saturates at 1.
func LightUpOpacity(base float64, frames int) float64 {
	return min(1, base+lightUpStep*float64(max(0, frames)))
}

// Track computes the per-frame render state of one particle.
//
// The visible prefix is found with a forward-moving cursor, so sequential
// playback costs O(samples) in total. Asking for an earlier time falls back
// to a binary search; the result never depends on call order. A Track is not
// safe for concurrent use.
type Track struct {
	particle  *core.Particle
	tracerLen int

	cursor   int
	cursorAt time.Time
	primed   bool
}

// NewTrack wraps a validated particle.
func NewTrack(p *core.Particle) *Track {
	return &Track{
		particle:  p,
		tracerLen: p.TracerLength.Resolve(p.Trajectory.Len()),
	}
}

// Particle returns the wrapped particle.
func (tr *Track) Particle() *core.Particle {
	return tr.particle
}

// TracerLength is the resolved tracer length in samples.
func (tr *Track) TracerLength() int {
	return tr.tracerLen
}

// Visible returns the number of samples with time <= t.
func (tr *Track) Visible(t time.Time) int {
	traj := tr.particle.Trajectory
	if !tr.primed || t.Before(tr.cursorAt) {
		tr.cursor = sort.Search(traj.Len(), func(i int) bool {
			return traj.At(i).Time.After(t)
		})
	} else {
		for tr.cursor < traj.Len() && !traj.At(tr.cursor).Time.After(t) {
			tr.cursor++
		}
	}
	tr.cursorAt = t
	tr.primed = true
	return tr.cursor
}

// State returns the render state at simulated time t. lightUp is the number
// of frames since the post-orbit phase began, or NoLightUp.
func (tr *Track) State(t time.Time, lightUp int) core.BodyState {
	p := tr.particle
	traj := p.Trajectory
	n := tr.Visible(t)

	st := core.BodyState{
		Name:         p.Name,
		TrailColor:   p.TrailColor(),
		TrailOpacity: p.TrailOpacity(),
		TracerColor:  p.Color,
		LineWidth:    p.LineWidth,
	}

	switch {
	case t.Before(traj.Start()):
		// nothing drawn yet
	case !t.After(traj.End()):
		st.Visible = true
		st.Trail = traj.Positions(0, n)
		if p.Tracer {
			st.Tracer = traj.Positions(n-min(tr.tracerLen, n), n)
		}
		if p.Annotations != nil {
			st.Annotations = p.Annotations[n-1]
		}
	default:
		last := traj.Len()
		st.Visible = true
		st.Trail = traj.Positions(0, last)
		if p.Tracer {
			st.Tracer = traj.Positions(last-min(terminalTracerSamples, last), last)
		}
		if p.Annotations != nil {
			st.Annotations = p.Annotations[last-1]
		}
	}

	if lightUp >= 0 && p.Tracer {
		st.TrailColor = p.Color
		st.TrailOpacity = LightUpOpacity(p.TrailOpacity(), lightUp)
	}

	return st
}
