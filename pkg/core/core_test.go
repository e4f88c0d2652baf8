package core

import (
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func samplesAt(seconds ...int) []Sample {
	out := make([]Sample, len(seconds))
	for i, s := range seconds {
		out[i] = Sample{
			Time:     epoch.Add(time.Duration(s) * time.Second),
			Position: Vec3{X: float64(i), Y: float64(2 * i), Z: 0},
		}
	}
	return out
}

func TestNewTrajectory(t *testing.T) {
	tr, err := NewTrajectory(samplesAt(0, 10, 10, 20))
	require.NoError(t, err)

	assert.Equal(t, 4, tr.Len())
	assert.Equal(t, epoch, tr.Start())
	assert.Equal(t, epoch.Add(20*time.Second), tr.End())
	assert.Equal(t, Vec3{X: 3, Y: 6}, tr.At(3).Position)
}

func TestNewTrajectory_Empty(t *testing.T) {
	_, err := NewTrajectory(nil)
	assert.ErrorIs(t, err, ErrEmptyTrajectory)
}

func TestNewTrajectory_Unordered(t *testing.T) {
	_, err := NewTrajectory(samplesAt(0, 10, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnorderedTrajectory)
	assert.Contains(t, err.Error(), "sample 2")
}

func TestNewTrajectory_CopiesInput(t *testing.T) {
	in := samplesAt(0, 1)
	tr, err := NewTrajectory(in)
	require.NoError(t, err)

	in[0].Position.X = 99
	assert.Equal(t, 0.0, tr.At(0).Position.X)
}

func TestTrajectory_Positions(t *testing.T) {
	tr, err := NewTrajectory(samplesAt(0, 1, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, []Vec3{{X: 1, Y: 2}, {X: 2, Y: 4}}, tr.Positions(1, 3))
	assert.Len(t, tr.Positions(-5, 100), 4)
	assert.Nil(t, tr.Positions(3, 3))
}

func TestTracerLength_Resolve(t *testing.T) {
	tests := []struct {
		name   string
		length TracerLength
		n      int
		want   int
	}{
		{"default two percent", TracerLength{}, 1000, 20},
		{"percent", TracerLength{Percent: 10}, 1000, 100},
		{"percent truncates", TracerLength{Percent: 2}, 149, 2},
		{"absolute", TracerLength{Samples: 7}, 1000, 7},
		{"absolute wins over percent", TracerLength{Samples: 7, Percent: 50}, 1000, 7},
		{"clamped to samples", TracerLength{Samples: 50}, 10, 10},
		{"percent over hundred clamped", TracerLength{Percent: 300}, 10, 10},
		{"tiny trajectory", TracerLength{}, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.length.Resolve(tt.n))
		})
	}
}

func TestParticle_Validate(t *testing.T) {
	tr, err := NewTrajectory(samplesAt(0, 1, 2))
	require.NoError(t, err)

	p := &Particle{Name: "voyager", Trajectory: tr, Opacity: 1}
	assert.NoError(t, p.Validate())

	p.Annotations = [][]Annotation{{{Label: "a", Value: "1"}}}
	assert.ErrorIs(t, p.Validate(), ErrAnnotationRows)

	p.Annotations = nil
	p.Opacity = 1.5
	assert.Error(t, p.Validate())

	empty := &Particle{Name: "ghost"}
	assert.ErrorIs(t, empty.Validate(), ErrEmptyTrajectory)
}

func TestParticle_TrailStyling(t *testing.T) {
	own := color.RGBA{R: 0xEF, G: 0x47, B: 0x6F, A: 0xFF}

	p := &Particle{Color: own, Opacity: 0.8}
	assert.Equal(t, own, p.TrailColor())
	assert.InDelta(t, 0.8, p.TrailOpacity(), 1e-12)

	p.DimHistory = true
	p.Tracer = true
	assert.Equal(t, NeutralColor, p.TrailColor())
	assert.InDelta(t, 0.4, p.TrailOpacity(), 1e-12)
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#249DAB")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x24, G: 0x9D, B: 0xAB, A: 0xFF}, c)

	c, err = ParseHexColor("fff")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}, c)

	c, err = ParseHexColor("#00000080")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x80), c.A)

	_, err = ParseHexColor("#12345")
	assert.Error(t, err)
	_, err = ParseHexColor("#gggggg")
	assert.Error(t, err)

	assert.Equal(t, "#249dab", HexColor(color.RGBA{R: 0x24, G: 0x9D, B: 0xAB, A: 0xFF}))
}
