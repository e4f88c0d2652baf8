package animation

import (
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/OCAP2/trajectory-animator/pkg/core"
)

var epoch = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}

// line builds a particle with one sample every step seconds starting at from.
func line(t *testing.T, name string, from, step float64, n int) *core.Particle {
	t.Helper()
	samples := make([]core.Sample, n)
	for i := range samples {
		samples[i] = core.Sample{
			Time:     at(from + step*float64(i)),
			Position: core.Vec3{X: float64(i), Y: -float64(i), Z: 0.5 * float64(i)},
		}
	}
	traj, err := core.NewTrajectory(samples)
	require.NoError(t, err)

	return &core.Particle{
		Name:       name,
		Color:      color.RGBA{R: 0xEF, G: 0x47, B: 0x6F, A: 0xFF},
		Opacity:    1,
		LineWidth:  1,
		Trajectory: traj,
	}
}
