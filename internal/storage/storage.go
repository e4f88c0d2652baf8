// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/OCAP2/trajectory-animator/pkg/core"
)

var (
	// ErrBodyNotFound is returned when no body is stored under the name.
	ErrBodyNotFound = errors.New("body not found")

	// ErrRunNotFound is returned when no render run has the id.
	ErrRunNotFound = errors.New("render run not found")
)

// Body is a named trajectory with its optional annotation columns.
type Body struct {
	Name   string
	Source string
	Format string
	// Color is an optional "#rrggbb" default used when the scene gives none.
	Color string

	Trajectory *core.Trajectory

	// Annotations holds one row per sample, or nil.
	Annotations [][]core.Annotation
}

// Summary describes a stored body without its samples.
type Summary struct {
	Name        string
	Source      string
	Format      string
	SampleCount int
	Start       time.Time
	End         time.Time
	Labels      []string
}

// Run is the progress record of one render.
type Run struct {
	ID          string
	Scene       string
	Output      string
	FramesTotal int
	FramesDone  int
	Status      string
	Error       string
}

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Trajectories. SaveBody replaces any body with the same name.
	SaveBody(ctx context.Context, b Body) error
	LoadBody(ctx context.Context, name string) (Body, error)
	ListBodies(ctx context.Context) ([]Summary, error)
	DeleteBody(ctx context.Context, name string) error

	// Render runs
	BeginRun(ctx context.Context, r Run) error
	UpdateRun(ctx context.Context, id string, framesDone int) error
	FinishRun(ctx context.Context, id, status string, runErr error) error
	GetRun(ctx context.Context, id string) (Run, error)
}

// Labels returns the annotation labels of the first row, which every row
// shares.
func Labels(rows [][]core.Annotation) []string {
	if len(rows) == 0 {
		return nil
	}
	out := make([]string, len(rows[0]))
	for i, a := range rows[0] {
		out[i] = a.Label
	}
	return out
}
