package animation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/trajectory-animator/pkg/core"
)

func TestComposer_RunCallsSinkOncePerFrame(t *testing.T) {
	p := line(t, "voyager", 0, 10, 11)
	c, err := NewComposer([]*core.Particle{p}, nil, Options{Speed: 5, FPS: 30})
	require.NoError(t, err)

	var calls, finals int
	var last core.Frame
	err = c.Run(context.Background(), SinkFunc(func(_ context.Context, f core.Frame) error {
		require.Equal(t, calls, f.Index)
		calls++
		if f.Final {
			finals++
		}
		last = f
		return nil
	}))
	require.NoError(t, err)

	assert.Equal(t, c.Frames(), calls)
	assert.Equal(t, 1, finals)
	assert.True(t, last.Final)
	assert.Equal(t, c.Frames()-1, last.Index)
}

func TestComposer_CameraExtendsAnimation(t *testing.T) {
	p := line(t, "voyager", 0, 1, 101)
	p.Tracer = true
	p.TracerLength = core.TracerLength{Samples: 10}

	path, err := NewCameraPath([]core.CameraSegment{
		seg(0, 90, 90, 0, 1.2),
		seg(1.0, 15, 90, 0, 2.4),
		seg(1.5, 15, 0, 0, 2.4),
	})
	require.NoError(t, err)

	c, err := NewComposer([]*core.Particle{p}, path, Options{Speed: 1, FPS: 30, LightUp: true})
	require.NoError(t, err)

	assert.Equal(t, 1.5, c.Clock().Multiplier)
	assert.Equal(t, 103, c.FramesOrbit())
	assert.Equal(t, c.Camera().Len(), c.Frames())
	assert.Greater(t, c.Frames(), c.FramesOrbit())

	orbitEnd, err := c.Frame(c.FramesOrbit() - 1)
	require.NoError(t, err)
	assert.False(t, orbitEnd.PostOrbit)

	first, err := c.Frame(c.FramesOrbit())
	require.NoError(t, err)
	assert.True(t, first.PostOrbit)
	assert.Equal(t, p.Color, first.Bodies[0].TrailColor)
	assert.Len(t, first.Bodies[0].Tracer, 2)

	final, err := c.Frame(c.Frames() - 1)
	require.NoError(t, err)
	assert.True(t, final.Final)
	assert.Greater(t, final.Bodies[0].TrailOpacity, first.Bodies[0].TrailOpacity)
	assert.Equal(t, first.SimTime, final.SimTime)
	assert.Equal(t, first.Bodies[0].Trail, final.Bodies[0].Trail)
}

func TestComposer_FrameIsIndexPure(t *testing.T) {
	a := line(t, "a", 0, 1, 60)
	b := line(t, "b", 20, 1, 60)
	b.Tracer = true
	path, err := NewCameraPath([]core.CameraSegment{seg(1.2, 30, 60, 0, 2)})
	require.NoError(t, err)

	c, err := NewComposer([]*core.Particle{a, b}, path, Options{Speed: 2, FPS: 24, LightUp: true})
	require.NoError(t, err)

	sequential := make([]core.Frame, c.Frames())
	for i := range sequential {
		sequential[i], err = c.Frame(i)
		require.NoError(t, err)
	}

	for i := c.Frames() - 1; i >= 0; i -= 7 {
		f, err := c.Frame(i)
		require.NoError(t, err)
		if diff := cmp.Diff(sequential[i], f); diff != "" {
			t.Errorf("frame %d differs when composed out of order (-want +got):\n%s", i, diff)
		}
	}
}

func TestComposer_Labels(t *testing.T) {
	p := line(t, "voyager", 0, 86400, 11)
	c, err := NewComposer([]*core.Particle{p}, nil, Options{Speed: 86400, FPS: 10, TimeLayout: "2006-01-02"})
	require.NoError(t, err)

	f, err := c.Frame(1)
	require.NoError(t, err)
	assert.Equal(t, "2030-01-01", f.TimeLabel)
	assert.Equal(t, "86400x", f.SpeedLabel)

	f, err = c.Frame(c.Frames() - 1)
	require.NoError(t, err)
	assert.Equal(t, "2030-01-11", f.TimeLabel, "label never runs past the end")
}

func TestComposer_PostOrbitTimes(t *testing.T) {
	p := line(t, "voyager", 0, 10, 11) // 0..100
	p.Tracer = true
	p.TracerLength = core.TracerLength{Samples: 5}
	path, err := NewCameraPath([]core.CameraSegment{seg(0, 30, 0, 0, 2), seg(2, 30, 90, 0, 2)})
	require.NoError(t, err)

	c, err := NewComposer([]*core.Particle{p}, path, Options{Speed: 10, FPS: 30, TimeLayout: "15:04:05"})
	require.NoError(t, err)
	require.Equal(t, 13, c.FramesOrbit())
	// the compiled path, not Clock.FramesFull, decides the render length
	assert.Equal(t, 26, c.Frames())
	assert.Equal(t, 23, c.Clock().FramesFull)

	f, err := c.Frame(c.Frames() - 1)
	require.NoError(t, err)
	assert.True(t, f.PostOrbit)
	assert.Equal(t, at(110), f.SimTime, "track time is not clamped")
	assert.Equal(t, at(100).Format("15:04:05"), f.TimeLabel)
	assert.Len(t, f.Bodies[0].Tracer, 2, "tracks are past their window")
}

func TestComposer_DefaultPoseWithoutCamera(t *testing.T) {
	p := line(t, "voyager", 0, 1, 10)
	c, err := NewComposer([]*core.Particle{p}, nil, Options{Duration: 1, FPS: 30})
	require.NoError(t, err)

	f, err := c.Frame(3)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultPose, f.Camera)
	assert.Nil(t, c.Camera())
}

func TestComposer_PanelShowsLastAnnotatedParticle(t *testing.T) {
	a := line(t, "a", 0, 1, 3)
	a.Annotations = [][]core.Annotation{{{Label: "k", Value: "a0"}}, {{Label: "k", Value: "a1"}}, {{Label: "k", Value: "a2"}}}
	b := line(t, "b", 0, 1, 3)
	b.Annotations = [][]core.Annotation{{{Label: "k", Value: "b0"}}, {{Label: "k", Value: "b1"}}, {{Label: "k", Value: "b2"}}}

	c, err := NewComposer([]*core.Particle{a, b}, nil, Options{Speed: 1, FPS: 30})
	require.NoError(t, err)

	f, err := c.Frame(2)
	require.NoError(t, err)
	assert.Equal(t, []core.Annotation{{Label: "k", Value: "b1"}}, f.Annotations)
}

func TestComposer_FrameOutOfRange(t *testing.T) {
	p := line(t, "voyager", 0, 1, 10)
	c, err := NewComposer([]*core.Particle{p}, nil, Options{Speed: 1, FPS: 30})
	require.NoError(t, err)

	_, err = c.Frame(-1)
	assert.ErrorIs(t, err, ErrFrameOutOfRange)
	_, err = c.Frame(c.Frames())
	assert.ErrorIs(t, err, ErrFrameOutOfRange)
}

func TestComposer_RunStopsOnCancel(t *testing.T) {
	p := line(t, "voyager", 0, 1, 100)
	c, err := NewComposer([]*core.Particle{p}, nil, Options{Speed: 1, FPS: 30})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err = c.Run(ctx, SinkFunc(func(context.Context, core.Frame) error {
		calls++
		if calls == 10 {
			cancel()
		}
		return nil
	}))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, calls)
}

func TestComposer_RunPropagatesSinkError(t *testing.T) {
	p := line(t, "voyager", 0, 1, 100)
	c, err := NewComposer([]*core.Particle{p}, nil, Options{Speed: 1, FPS: 30})
	require.NoError(t, err)

	boom := errors.New("disk full")
	err = c.Run(context.Background(), SinkFunc(func(_ context.Context, f core.Frame) error {
		if f.Index == 4 {
			return boom
		}
		return nil
	}))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "frame 4")
}

func TestNewComposer_RejectsBadInput(t *testing.T) {
	p := line(t, "voyager", 0, 1, 10)

	_, err := NewComposer([]*core.Particle{p}, nil, Options{Speed: 1, Duration: 2, FPS: 30})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewComposer(nil, nil, Options{Speed: 1, FPS: 30})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
