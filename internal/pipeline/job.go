package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/OCAP2/trajectory-animator/internal/animation"
	"github.com/OCAP2/trajectory-animator/internal/config"
	"github.com/OCAP2/trajectory-animator/internal/loader"
	"github.com/OCAP2/trajectory-animator/internal/render"
	"github.com/OCAP2/trajectory-animator/internal/scene"
	"github.com/OCAP2/trajectory-animator/internal/util"
	"github.com/OCAP2/trajectory-animator/pkg/core"
)

// Job is everything one render needs, fully loaded.
type Job struct {
	Scene  string
	Output string

	Particles []*core.Particle
	Camera    *animation.CameraPath
	Animation animation.Options
	Render    render.Options

	StatusFile       string
	ProgressInterval time.Duration
}

// Overrides take precedence over the scene file.
type Overrides struct {
	Output   string
	Speed    float64
	Duration float64
}

// Build loads every particle of s and assembles the job. rc is the render
// config with the scene's overrides already applied.
func Build(ctx context.Context, s *scene.Scene, scenePath string, l *loader.Loader, rc config.RenderConfig, o Overrides) (Job, error) {
	particles := make([]*core.Particle, 0, len(s.Particles))
	for _, spec := range s.Particles {
		body, err := l.Load(ctx, spec.Name, spec.Source)
		if err != nil {
			return Job{}, fmt.Errorf("loading %q: %w", spec.Name, err)
		}
		p, err := spec.Particle(body.Trajectory, body.Annotations, body.Color)
		if err != nil {
			return Job{}, err
		}
		particles = append(particles, p)
	}

	camera, err := s.CameraPath()
	if err != nil {
		return Job{}, err
	}

	speed, duration := s.Speed, s.Duration
	switch {
	case o.Speed != 0:
		speed, duration = o.Speed, 0
	case o.Duration != 0:
		speed, duration = 0, o.Duration
	}

	output := s.ResolvePath(s.Output)
	if o.Output != "" {
		output = o.Output
	}
	if output == "" {
		return Job{}, fmt.Errorf("%w: no output path", scene.ErrInvalidScene)
	}

	return Job{
		Scene:     scenePath,
		Output:    output,
		Particles: particles,
		Camera:    camera,
		Animation: animation.Options{
			Speed:      speed,
			Duration:   duration,
			FPS:        rc.FPS,
			LightUp:    rc.LightUp,
			TimeLayout: util.StrftimeToLayout(rc.TimeFormat),
		},
		Render: render.Options{
			Width:            rc.Width,
			Height:           rc.Height,
			DPI:              rc.DPI,
			PlotLimits:       rc.PlotLimits,
			CentralBody:      s.Render.CentralBodyPosition(),
			CentralBodyColor: rc.CentralBodyColor,
			Watermark:        rc.Watermark,
		},
		StatusFile:       rc.StatusFile,
		ProgressInterval: rc.ProgressInterval,
	}, nil
}
