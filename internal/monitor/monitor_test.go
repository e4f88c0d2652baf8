package monitor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/trajectory-animator/internal/storage"
	"github.com/OCAP2/trajectory-animator/internal/storage/memory"
)

func progress(done *atomic.Int64, total int) ProgressFunc {
	return func() (int, int) { return int(done.Load()), total }
}

func TestStatus_PercentAndETA(t *testing.T) {
	var done atomic.Int64
	done.Store(25)
	s := NewService(Dependencies{Progress: progress(&done, 100)})
	s.started = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	st := s.Status(s.started.Add(10 * time.Second))
	assert.Equal(t, 25.0, st.Percent)
	assert.Equal(t, "10s", st.Elapsed)
	assert.Equal(t, "30s", st.ETA)
}

func TestStatus_NothingDone(t *testing.T) {
	var done atomic.Int64
	s := NewService(Dependencies{Progress: progress(&done, 0)})
	st := s.Status(time.Now())
	assert.Equal(t, 0.0, st.Percent)
	assert.Equal(t, "unknown", st.ETA)
}

func TestService_WritesStatusFileAndRun(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "status.json")
	store := memory.New()
	require.NoError(t, store.BeginRun(ctx, storage.Run{ID: "r-1", FramesTotal: 10}))

	var done atomic.Int64
	s := NewService(Dependencies{
		Progress:   progress(&done, 10),
		StatusFile: path,
		Interval:   5 * time.Millisecond,
		Store:      store,
		RunID:      "r-1",
	})
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	// second start is a no-op
	require.NoError(t, s.Start(ctx))

	done.Store(4)
	assert.Eventually(t, func() bool {
		run, err := store.GetRun(ctx, "r-1")
		return err == nil && run.FramesDone == 4
	}, time.Second, 5*time.Millisecond)

	done.Store(10)
	s.Stop()
	assert.False(t, s.IsRunning())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Equal(t, 10, st.Done)
	assert.Equal(t, 100.0, st.Percent)
	assert.Equal(t, "r-1", st.RunID)
}

func TestService_StopsWithContext(t *testing.T) {
	var done atomic.Int64
	s := NewService(Dependencies{Progress: progress(&done, 1), Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, time.Millisecond)
	s.Stop()
}

func TestService_BadStatusFile(t *testing.T) {
	var done atomic.Int64
	s := NewService(Dependencies{
		Progress:   progress(&done, 1),
		StatusFile: filepath.Join(t.TempDir(), "missing", "status.json"),
	})
	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}
