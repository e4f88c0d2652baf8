// Package scene reads the YAML description of an animation: the particles
// and where their data comes from, the camera keyframes, the playback rate
// and render overrides.
package scene

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/OCAP2/trajectory-animator/internal/animation"
	"github.com/OCAP2/trajectory-animator/internal/config"
	"github.com/OCAP2/trajectory-animator/internal/geo"
	"github.com/OCAP2/trajectory-animator/pkg/core"
)

// ErrInvalidScene is returned for scene files that cannot be animated.
var ErrInvalidScene = errors.New("invalid scene")

// Source formats.
const (
	FormatDat  = "dat"
	FormatOCAP = "ocap"
	FormatDB   = "db"
)

// Scene is a parsed scene file.
type Scene struct {
	Speed    float64 `yaml:"speed"`
	Duration float64 `yaml:"duration"`
	Output   string  `yaml:"output"`

	Render    Render         `yaml:"render"`
	Particles []ParticleSpec `yaml:"particles"`
	Camera    []CameraKey    `yaml:"camera"`

	// Dir is the directory of the scene file. Relative source paths and
	// the output path resolve against it.
	Dir string `yaml:"-"`
}

// Render overrides the render section of the config file. Zero values keep
// the configured value.
type Render struct {
	FPS              int      `yaml:"fps"`
	DPI              int      `yaml:"dpi"`
	Width            int      `yaml:"width"`
	Height           int      `yaml:"height"`
	TimeFormat       string   `yaml:"timeFormat"`
	LightUp          *bool    `yaml:"lightUp"`
	PlotLimits       *float64 `yaml:"plotLimits"`
	CentralBodyColor string   `yaml:"centralBodyColor"`
	// CentralBody is the "x,y,z" position of the central body marker.
	CentralBody string `yaml:"centralBody"`
	Watermark   string `yaml:"watermark"`
}

// ParticleSpec describes one particle and its data source.
type ParticleSpec struct {
	Name          string   `yaml:"name"`
	Color         string   `yaml:"color"`
	DimHistory    bool     `yaml:"dimHistory"`
	Tracer        bool     `yaml:"tracer"`
	TracerPercent float64  `yaml:"tracerPercent"`
	TracerSamples int      `yaml:"tracerSamples"`
	Opacity       *float64 `yaml:"opacity"`
	LineWidth     float64  `yaml:"lineWidth"`
	Source        Source   `yaml:"source"`
}

// Source says where a particle's samples come from.
type Source struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`

	// dat: Epoch is the RFC3339 instant the time column counts seconds from.
	Epoch      string `yaml:"epoch"`
	TimeColumn int    `yaml:"timeColumn"`
	// Position columns, default 1 2 3.
	Columns   []int  `yaml:"columns"`
	Delimiter string `yaml:"delimiter"`
	// Geographic treats the position columns as longitude, latitude and
	// altitude and projects them to web mercator metres.
	Geographic  bool         `yaml:"geographic"`
	Annotations []ColumnSpec `yaml:"annotations"`

	// ocap: entity id inside the recording.
	Entity int `yaml:"entity"`

	// db: stored body name, defaults to the particle name.
	Body string `yaml:"body"`
}

// ColumnSpec turns a numeric column into an annotation. The value is
// multiplied by Scale (when non-zero) and printed with Format.
type ColumnSpec struct {
	Column int     `yaml:"column"`
	Label  string  `yaml:"label"`
	Scale  float64 `yaml:"scale"`
	Offset float64 `yaml:"offset"`
	// Format is a fmt verb string, default "%g".
	Format string `yaml:"format"`
	// Elapsed formats the column relative to its first value.
	Elapsed bool `yaml:"elapsed"`
}

// CameraKey is one camera keyframe.
type CameraKey struct {
	At        float64  `yaml:"at"`
	Elevation float64  `yaml:"elevation"`
	Azimuth   float64  `yaml:"azimuth"`
	Roll      float64  `yaml:"roll"`
	Zoom      *float64 `yaml:"zoom"`
}

// Load reads and validates a scene file.
func Load(path string) (*Scene, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene: %w", err)
	}
	s, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Dir = filepath.Dir(path)
	return s, nil
}

// Parse decodes and validates a scene document.
func Parse(raw []byte) (*Scene, error) {
	var s Scene
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the scene for mistakes that can be caught before any
// data is loaded.
func (s *Scene) Validate() error {
	if len(s.Particles) == 0 {
		return fmt.Errorf("%w: no particles", ErrInvalidScene)
	}
	if s.Speed < 0 || s.Duration < 0 {
		return fmt.Errorf("%w: speed and duration must not be negative", ErrInvalidScene)
	}

	seen := make(map[string]bool, len(s.Particles))
	for i, p := range s.Particles {
		if p.Name == "" {
			return fmt.Errorf("%w: particle %d has no name", ErrInvalidScene, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate particle %q", ErrInvalidScene, p.Name)
		}
		seen[p.Name] = true

		if p.Color != "" {
			if _, err := core.ParseHexColor(p.Color); err != nil {
				return fmt.Errorf("%w: particle %q: %v", ErrInvalidScene, p.Name, err)
			}
		}
		switch p.Source.Format {
		case FormatDat, FormatOCAP:
			if p.Source.Path == "" {
				return fmt.Errorf("%w: particle %q: source path missing", ErrInvalidScene, p.Name)
			}
		case FormatDB:
		default:
			return fmt.Errorf("%w: particle %q: unknown source format %q", ErrInvalidScene, p.Name, p.Source.Format)
		}
	}

	if s.Render.CentralBody != "" {
		if _, err := geo.ParseVec3(s.Render.CentralBody); err != nil {
			return fmt.Errorf("%w: centralBody: %v", ErrInvalidScene, err)
		}
	}
	return nil
}

// ResolvePath makes p relative to the scene directory unless it is absolute.
func (s *Scene) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || s.Dir == "" {
		return p
	}
	return filepath.Join(s.Dir, p)
}

// Apply returns base with the scene's render overrides applied.
func (r Render) Apply(base config.RenderConfig) config.RenderConfig {
	if r.FPS != 0 {
		base.FPS = r.FPS
	}
	if r.DPI != 0 {
		base.DPI = r.DPI
	}
	if r.Width != 0 {
		base.Width = r.Width
	}
	if r.Height != 0 {
		base.Height = r.Height
	}
	if r.TimeFormat != "" {
		base.TimeFormat = r.TimeFormat
	}
	if r.LightUp != nil {
		base.LightUp = *r.LightUp
	}
	if r.PlotLimits != nil {
		base.PlotLimits = *r.PlotLimits
	}
	if r.CentralBodyColor != "" {
		base.CentralBodyColor = r.CentralBodyColor
	}
	if r.Watermark != "" {
		base.Watermark = r.Watermark
	}
	return base
}

// CentralBodyPosition returns the central body marker position, the origin
// when unset.
func (r Render) CentralBodyPosition() core.Vec3 {
	if r.CentralBody == "" {
		return core.Vec3{}
	}
	v, _ := geo.ParseVec3(r.CentralBody)
	return v
}

// CameraPath builds the camera path, or nil when the scene has no keyframes.
func (s *Scene) CameraPath() (*animation.CameraPath, error) {
	if len(s.Camera) == 0 {
		return nil, nil
	}
	segments := make([]core.CameraSegment, len(s.Camera))
	for i, k := range s.Camera {
		zoom := core.DefaultZoom
		if k.Zoom != nil {
			zoom = *k.Zoom
		}
		segments[i] = core.CameraSegment{
			Pose: core.Pose{
				Elevation: k.Elevation,
				Azimuth:   k.Azimuth,
				Roll:      k.Roll,
				Zoom:      zoom,
			},
			EndFraction: k.At,
		}
	}
	return animation.NewCameraPath(segments)
}

// Particle builds the animated particle from its scene entry and loaded data.
// fallbackColor is used when the scene entry gives none.
func (p ParticleSpec) Particle(traj *core.Trajectory, annotations [][]core.Annotation, fallbackColor string) (*core.Particle, error) {
	hex := p.Color
	if hex == "" {
		hex = fallbackColor
	}
	c := core.NeutralColor
	if hex != "" {
		var err error
		if c, err = core.ParseHexColor(hex); err != nil {
			return nil, fmt.Errorf("%w: particle %q: %v", ErrInvalidScene, p.Name, err)
		}
	}

	opacity := 1.0
	if p.Opacity != nil {
		opacity = *p.Opacity
	}
	width := p.LineWidth
	if width == 0 {
		width = 1
	}

	particle := &core.Particle{
		Name:       p.Name,
		Color:      c,
		DimHistory: p.DimHistory,
		Tracer:     p.Tracer,
		TracerLength: core.TracerLength{
			Samples: p.TracerSamples,
			Percent: p.TracerPercent,
		},
		Opacity:     opacity,
		LineWidth:   width,
		Trajectory:  traj,
		Annotations: annotations,
	}
	if err := particle.Validate(); err != nil {
		return nil, err
	}
	return particle, nil
}
