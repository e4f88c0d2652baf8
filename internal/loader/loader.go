// Package loader reads particle trajectories from their sources: text
// tables, OCAP recordings and previously imported bodies.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/OCAP2/trajectory-animator/internal/geo"
	"github.com/OCAP2/trajectory-animator/internal/scene"
	"github.com/OCAP2/trajectory-animator/internal/storage"
)

// ErrUnknownFormat is returned for sources in a format no loader reads.
var ErrUnknownFormat = errors.New("unknown source format")

// Loader resolves scene sources into bodies.
type Loader struct {
	// Store backs the "db" format; nil disables it.
	Store storage.Backend
	// Dir is the base directory of relative source paths.
	Dir string

	projector *geo.Projector
}

// New creates a loader.
func New(store storage.Backend, dir string) *Loader {
	return &Loader{Store: store, Dir: dir}
}

// Load reads the body named name from src.
func (l *Loader) Load(ctx context.Context, name string, src scene.Source) (storage.Body, error) {
	path := l.resolve(src.Path)

	switch src.Format {
	case scene.FormatDat:
		return l.loadDat(name, path, src)
	case scene.FormatOCAP:
		return loadOCAP(name, path, src)
	case scene.FormatDB:
		if l.Store == nil {
			return storage.Body{}, fmt.Errorf("%w: no database configured for %q", ErrUnknownFormat, name)
		}
		key := src.Body
		if key == "" {
			key = name
		}
		body, err := l.Store.LoadBody(ctx, key)
		if err != nil {
			return storage.Body{}, err
		}
		body.Name = name
		return body, nil
	default:
		return storage.Body{}, fmt.Errorf("%w: %q", ErrUnknownFormat, src.Format)
	}
}

// DetectFormat guesses a file source format from its extension.
func DetectFormat(path string) (string, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json"), strings.HasSuffix(lower, ".json.gz"):
		return scene.FormatOCAP, nil
	case strings.HasSuffix(lower, ".dat"), strings.HasSuffix(lower, ".txt"),
		strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".tsv"):
		return scene.FormatDat, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
}

func (l *Loader) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || l.Dir == "" {
		return p
	}
	return filepath.Join(l.Dir, p)
}

func (l *Loader) proj() *geo.Projector {
	if l.projector == nil {
		l.projector = geo.NewProjector()
	}
	return l.projector
}
