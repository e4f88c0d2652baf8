// Package storagetest runs the same behaviour checks against every
// storage.Backend implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/trajectory-animator/internal/model"
	"github.com/OCAP2/trajectory-animator/internal/storage"
	"github.com/OCAP2/trajectory-animator/pkg/core"
)

var epoch = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// Body builds a body of n samples one minute apart, with two annotation
// columns when annotated is set.
func Body(t *testing.T, name string, n int, annotated bool) storage.Body {
	t.Helper()

	samples := make([]core.Sample, n)
	var rows [][]core.Annotation
	if annotated {
		rows = make([][]core.Annotation, n)
	}
	for i := range samples {
		samples[i] = core.Sample{
			Time:     epoch.Add(time.Duration(i) * time.Minute),
			Position: core.Vec3{X: float64(i), Y: float64(2 * i), Z: -float64(i)},
		}
		if annotated {
			rows[i] = []core.Annotation{
				{Label: "Mass", Value: "5.97e24"},
				{Label: "Step", Value: time.Duration(i * int(time.Minute)).String()},
			}
		}
	}
	traj, err := core.NewTrajectory(samples)
	require.NoError(t, err)

	return storage.Body{
		Name:        name,
		Source:      name + ".dat",
		Format:      "dat",
		Color:       "#ef476f",
		Trajectory:  traj,
		Annotations: rows,
	}
}

// Run exercises newBackend. Each subtest gets a fresh backend.
func Run(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	ctx := context.Background()

	t.Run("SaveLoadRoundTrip", func(t *testing.T) {
		b := newBackend(t)
		in := Body(t, "Earth", 5, true)
		require.NoError(t, b.SaveBody(ctx, in))

		out, err := b.LoadBody(ctx, "Earth")
		require.NoError(t, err)
		assert.Equal(t, in.Name, out.Name)
		assert.Equal(t, in.Source, out.Source)
		assert.Equal(t, in.Color, out.Color)
		require.Equal(t, in.Trajectory.Len(), out.Trajectory.Len())
		for i := 0; i < in.Trajectory.Len(); i++ {
			assert.True(t, in.Trajectory.At(i).Time.Equal(out.Trajectory.At(i).Time), "sample %d time", i)
			assert.Equal(t, in.Trajectory.At(i).Position, out.Trajectory.At(i).Position)
		}
		assert.Equal(t, in.Annotations, out.Annotations)
	})

	t.Run("WithoutAnnotations", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.SaveBody(ctx, Body(t, "Moon", 3, false)))

		out, err := b.LoadBody(ctx, "Moon")
		require.NoError(t, err)
		assert.Nil(t, out.Annotations)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.SaveBody(ctx, Body(t, "Mars", 10, false)))
		require.NoError(t, b.SaveBody(ctx, Body(t, "Mars", 4, true)))

		out, err := b.LoadBody(ctx, "Mars")
		require.NoError(t, err)
		assert.Equal(t, 4, out.Trajectory.Len())
		assert.Len(t, out.Annotations, 4)

		list, err := b.ListBodies(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		b := newBackend(t)
		assert.ErrorIs(t, b.SaveBody(ctx, storage.Body{Name: "empty"}), core.ErrEmptyTrajectory)

		bad := Body(t, "Venus", 3, true)
		bad.Annotations = bad.Annotations[:2]
		assert.ErrorIs(t, b.SaveBody(ctx, bad), core.ErrAnnotationRows)
	})

	t.Run("NotFound", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.LoadBody(ctx, "Pluto")
		assert.ErrorIs(t, err, storage.ErrBodyNotFound)
		assert.ErrorIs(t, b.DeleteBody(ctx, "Pluto"), storage.ErrBodyNotFound)
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.SaveBody(ctx, Body(t, "Venus", 2, false)))
		require.NoError(t, b.SaveBody(ctx, Body(t, "Earth", 3, true)))

		list, err := b.ListBodies(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Earth", list[0].Name)
		assert.Equal(t, 3, list[0].SampleCount)
		assert.Equal(t, []string{"Mass", "Step"}, list[0].Labels)
		assert.True(t, list[0].End.Equal(epoch.Add(2*time.Minute)))
		assert.Equal(t, "Venus", list[1].Name)
		assert.Empty(t, list[1].Labels)

		require.NoError(t, b.DeleteBody(ctx, "Earth"))
		list, err = b.ListBodies(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Venus", list[0].Name)
	})

	t.Run("RunLifecycle", func(t *testing.T) {
		b := newBackend(t)
		run := storage.Run{ID: "6f1c1bb4-5bd1-4a43-8f2e-7f0ad1f6c3a1", Scene: "solar.yaml", Output: "out.gif", FramesTotal: 103}
		require.NoError(t, b.BeginRun(ctx, run))

		got, err := b.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunRunning, got.Status)

		require.NoError(t, b.UpdateRun(ctx, run.ID, 50))
		require.NoError(t, b.FinishRun(ctx, run.ID, model.RunFailed, errors.New("encoder crashed")))

		got, err = b.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, 50, got.FramesDone)
		assert.Equal(t, 103, got.FramesTotal)
		assert.Equal(t, model.RunFailed, got.Status)
		assert.Equal(t, "encoder crashed", got.Error)
	})

	t.Run("UnknownRun", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.GetRun(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrRunNotFound)
		assert.ErrorIs(t, b.UpdateRun(ctx, "missing", 1), storage.ErrRunNotFound)
		assert.ErrorIs(t, b.FinishRun(ctx, "missing", model.RunDone, nil), storage.ErrRunNotFound)
	})
}
