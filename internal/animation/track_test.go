package animation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/trajectory-animator/pkg/core"
)

func TestTrack_PrefixGrowsMonotonically(t *testing.T) {
	p := line(t, "voyager", 0, 1, 50)
	tr := NewTrack(p)

	var prev []core.Vec3
	for s := -2.0; s <= 55; s += 0.5 {
		st := tr.State(at(s), NoLightUp)
		require.GreaterOrEqual(t, len(st.Trail), len(prev))
		if len(prev) > 0 {
			assert.Equal(t, prev, st.Trail[:len(prev)], "trail at %v must extend trail before it", s)
		}
		prev = st.Trail
	}
	assert.Len(t, prev, 50)
}

func TestTrack_VisibleIgnoresCallOrder(t *testing.T) {
	p := line(t, "voyager", 0, 1, 20)
	forward := NewTrack(p)
	jumping := NewTrack(p)

	for s := 0.0; s < 20; s++ {
		forward.Visible(at(s))
	}
	assert.Equal(t, 20, forward.Visible(at(19)))

	assert.Equal(t, 11, jumping.Visible(at(10)))
	assert.Equal(t, 3, jumping.Visible(at(2.5)))
	assert.Equal(t, 0, jumping.Visible(at(-1)))
	assert.Equal(t, 20, jumping.Visible(at(100)))
}

func TestTrack_TracerLength(t *testing.T) {
	p := line(t, "voyager", 0, 1, 100)
	p.Tracer = true
	p.TracerLength = core.TracerLength{Samples: 5}
	tr := NewTrack(p)

	tests := []struct {
		name string
		at   float64
		want int
	}{
		{"before start", -1, 0},
		{"first sample", 0, 1},
		{"prefix shorter than tracer", 2, 3},
		{"full tracer", 40, 5},
		{"last sample", 99, 5},
		{"past the window", 150, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tr.State(at(tt.at), NoLightUp)
			assert.Len(t, st.Tracer, tt.want)
			if tt.want > 0 {
				assert.Equal(t, st.Trail[len(st.Trail)-1], st.Tracer[len(st.Tracer)-1])
			}
		})
	}
}

func TestTrack_ZeroTracerLength(t *testing.T) {
	p := line(t, "voyager", 0, 1, 10) // 2% of 10 truncates to 0
	p.Tracer = true
	tr := NewTrack(p)

	assert.Equal(t, 0, tr.TracerLength())
	assert.Empty(t, tr.State(at(5), NoLightUp).Tracer)
}

func TestTrack_NotYetStarted(t *testing.T) {
	p := line(t, "late", 100, 1, 10)
	st := NewTrack(p).State(at(50), NoLightUp)

	assert.False(t, st.Visible)
	assert.Empty(t, st.Trail)
	assert.Equal(t, "late", st.Name)
}

func TestTrack_Annotations(t *testing.T) {
	p := line(t, "voyager", 0, 1, 3)
	p.Annotations = [][]core.Annotation{
		{{Label: "mass", Value: "1"}},
		{{Label: "mass", Value: "2"}},
		{{Label: "mass", Value: "3"}},
	}
	tr := NewTrack(p)

	assert.Nil(t, tr.State(at(-1), NoLightUp).Annotations)
	assert.Equal(t, "2", tr.State(at(1.5), NoLightUp).Annotations[0].Value)
	assert.Equal(t, "3", tr.State(at(10), NoLightUp).Annotations[0].Value)
}

func TestTrack_LightUp(t *testing.T) {
	p := line(t, "voyager", 0, 1, 10)
	p.Tracer = true
	p.DimHistory = true
	tr := NewTrack(p)

	st := tr.State(at(20), NoLightUp)
	assert.Equal(t, core.NeutralColor, st.TrailColor)
	assert.InDelta(t, 0.5, st.TrailOpacity, 1e-12)

	st = tr.State(at(20), 0)
	assert.Equal(t, p.Color, st.TrailColor)
	assert.InDelta(t, 0.5, st.TrailOpacity, 1e-12)

	st = tr.State(at(20), 40)
	assert.InDelta(t, 0.7, st.TrailOpacity, 1e-12)

	st = tr.State(at(20), 10000)
	assert.Equal(t, 1.0, st.TrailOpacity)
}

func TestTrack_LightUpNeedsTracer(t *testing.T) {
	p := line(t, "voyager", 0, 1, 10)
	p.DimHistory = true
	st := NewTrack(p).State(at(20), 100)

	assert.Equal(t, core.NeutralColor, st.TrailColor)
	assert.Equal(t, 1.0, st.TrailOpacity)
}

func TestLightUpOpacity(t *testing.T) {
	prev := 0.0
	for i := -5; i < 400; i++ {
		o := LightUpOpacity(0.2, i)
		assert.GreaterOrEqual(t, o, prev)
		assert.LessOrEqual(t, o, 1.0)
		prev = o
	}
	assert.Equal(t, 0.2, LightUpOpacity(0.2, -5))
	assert.Equal(t, 1.0, prev)
}
