// Package memory is a storage backend that keeps everything in process
// memory. Nothing survives a restart; it backs tests and one-shot renders.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/OCAP2/trajectory-animator/internal/model"
	"github.com/OCAP2/trajectory-animator/internal/storage"
	"github.com/OCAP2/trajectory-animator/pkg/core"
)

// Backend implements storage.Backend with maps guarded by a mutex.
type Backend struct {
	mu     sync.RWMutex
	bodies map[string]storage.Body
	runs   map[string]storage.Run
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		bodies: make(map[string]storage.Body),
		runs:   make(map[string]storage.Run),
	}
}

func (b *Backend) Init() error  { return nil }
func (b *Backend) Close() error { return nil }

func (b *Backend) SaveBody(_ context.Context, body storage.Body) error {
	if body.Trajectory == nil || body.Trajectory.Len() == 0 {
		return fmt.Errorf("body %q: %w", body.Name, core.ErrEmptyTrajectory)
	}
	if body.Annotations != nil && len(body.Annotations) != body.Trajectory.Len() {
		return fmt.Errorf("body %q: %w", body.Name, core.ErrAnnotationRows)
	}

	// rows are copied so later edits by the caller don't leak in
	if body.Annotations != nil {
		rows := make([][]core.Annotation, len(body.Annotations))
		for i, r := range body.Annotations {
			rows[i] = append([]core.Annotation(nil), r...)
		}
		body.Annotations = rows
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.bodies[body.Name] = body
	return nil
}

func (b *Backend) LoadBody(_ context.Context, name string) (storage.Body, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	body, ok := b.bodies[name]
	if !ok {
		return storage.Body{}, fmt.Errorf("%w: %s", storage.ErrBodyNotFound, name)
	}
	return body, nil
}

func (b *Backend) ListBodies(_ context.Context) ([]storage.Summary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]storage.Summary, 0, len(b.bodies))
	for _, body := range b.bodies {
		out = append(out, storage.Summary{
			Name:        body.Name,
			Source:      body.Source,
			Format:      body.Format,
			SampleCount: body.Trajectory.Len(),
			Start:       body.Trajectory.Start(),
			End:         body.Trajectory.End(),
			Labels:      storage.Labels(body.Annotations),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *Backend) DeleteBody(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.bodies[name]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrBodyNotFound, name)
	}
	delete(b.bodies, name)
	return nil
}

func (b *Backend) BeginRun(_ context.Context, r storage.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.runs[r.ID]; ok {
		return fmt.Errorf("render run %s already exists", r.ID)
	}
	r.Status = model.RunRunning
	b.runs[r.ID] = r
	return nil
}

func (b *Backend) UpdateRun(_ context.Context, id string, framesDone int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	}
	r.FramesDone = framesDone
	b.runs[id] = r
	return nil
}

func (b *Backend) FinishRun(_ context.Context, id, status string, runErr error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	}
	r.Status = status
	if runErr != nil {
		r.Error = runErr.Error()
	}
	b.runs[id] = r
	return nil
}

func (b *Backend) GetRun(_ context.Context, id string) (storage.Run, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.runs[id]
	if !ok {
		return storage.Run{}, fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	}
	return r, nil
}

var _ storage.Backend = (*Backend)(nil)
