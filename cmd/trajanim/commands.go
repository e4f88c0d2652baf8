package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/OCAP2/trajectory-animator/internal/animation"
	"github.com/OCAP2/trajectory-animator/internal/config"
	"github.com/OCAP2/trajectory-animator/internal/dispatcher"
	"github.com/OCAP2/trajectory-animator/internal/influx"
	"github.com/OCAP2/trajectory-animator/internal/loader"
	"github.com/OCAP2/trajectory-animator/internal/logging"
	"github.com/OCAP2/trajectory-animator/internal/pipeline"
	"github.com/OCAP2/trajectory-animator/internal/preview"
	"github.com/OCAP2/trajectory-animator/internal/scene"
	"github.com/OCAP2/trajectory-animator/internal/storage"
	"github.com/OCAP2/trajectory-animator/internal/util"
	"github.com/OCAP2/trajectory-animator/pkg/core"
)

// errUsage marks a missing or conflicting flag.
var errUsage = errors.New("usage")

// loadJob reads the --scene file, opens the store and loads every particle.
// The caller closes the returned store.
func (a *app) loadJob(ctx context.Context, output string) (pipeline.Job, *store, error) {
	scenePath := a.flagString("scene")
	if scenePath == "" {
		return pipeline.Job{}, nil, fmt.Errorf("%w: --scene is required", errUsage)
	}
	speed, duration := a.flagFloat("speed"), a.flagFloat("duration")
	if speed != 0 && duration != 0 {
		return pipeline.Job{}, nil, fmt.Errorf("%w: --speed and --duration are exclusive", errUsage)
	}

	s, err := scene.Load(scenePath)
	if err != nil {
		return pipeline.Job{}, nil, err
	}
	rc := a.applyFlags(s.Render.Apply(config.GetRenderConfig()))

	st, err := a.initStorage()
	if err != nil {
		return pipeline.Job{}, nil, err
	}

	job, err := pipeline.Build(ctx, s, scenePath, loader.New(st, s.Dir), rc, pipeline.Overrides{
		Output:   output,
		Speed:    speed,
		Duration: duration,
	})
	if err != nil {
		_ = st.Close()
		return pipeline.Job{}, nil, err
	}
	return job, st, nil
}

func (a *app) render(ctx context.Context, _ dispatcher.Event) (any, error) {
	job, st, err := a.loadJob(ctx, a.flagString("out"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	var metrics *influx.Manager
	if cfg := config.GetInfluxConfig(); cfg.Enabled {
		m := influx.NewManager(logging.NewZerolog(a.zerologWriter(), viper.GetString("logLevel"), "metrics"), cfg)
		if err := m.Connect(ctx); err != nil {
			a.logger.Warn("Frame timings disabled", "error", err)
		} else {
			metrics = m
			defer func() {
				if err := m.Close(); err != nil {
					a.logger.Warn("Failed to close InfluxDB writer", "error", err)
				}
			}()
		}
	}

	p, err := pipeline.New(pipeline.Dependencies{
		Logger: a.logger,
		Store:  st,
		Influx: metrics,
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("Rendering", "scene", absPath(job.Scene), "output", absPath(job.Output))
	res, err := p.Run(ctx, job)

	if ferr := a.otel.Flush(context.WithoutCancel(ctx)); ferr != nil {
		a.logger.Warn("Failed to flush OTel data", "error", ferr)
	}
	if err != nil {
		return res, err
	}

	fmt.Fprintf(a.stdout, "%s: %s frames, %s in %s\n",
		res.Output, humanize.Comma(int64(res.Frames)), humanize.Bytes(uint64(res.Size)), res.Elapsed.Round(time.Millisecond))
	return res, nil
}

func (a *app) preview(ctx context.Context, _ dispatcher.Event) (any, error) {
	out := a.flagString("out")
	if out == "" {
		return nil, fmt.Errorf("%w: --out is required", errUsage)
	}

	job, st, err := a.loadJob(ctx, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	composer, err := animation.NewComposer(job.Particles, job.Camera, job.Animation)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(out)
	if err != nil {
		return nil, fmt.Errorf("creating preview: %w", err)
	}
	if err := preview.Write(f, composer, filepath.Base(job.Scene)); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing preview: %w", err)
	}

	fmt.Fprintf(a.stdout, "Wrote camera preview of %s frames to %s\n", humanize.Comma(int64(composer.Frames())), out)
	return out, nil
}

func (a *app) inspect(ctx context.Context, _ dispatcher.Event) (any, error) {
	if a.flagString("scene") == "" {
		return a.listBodies(ctx)
	}

	job, st, err := a.loadJob(ctx, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	composer, err := animation.NewComposer(job.Particles, job.Camera, job.Animation)
	if err != nil {
		return nil, err
	}
	clock := composer.Clock()

	w := a.stdout
	fmt.Fprintf(w, "Scene:     %s\n", job.Scene)
	fmt.Fprintf(w, "Output:    %s\n", job.Output)
	fmt.Fprintf(w, "Particles: %d\n", len(job.Particles))
	for _, p := range job.Particles {
		traj := p.Trajectory
		fmt.Fprintf(w, "  %-16s %10s samples  %s .. %s\n", p.Name, humanize.Comma(int64(traj.Len())),
			traj.Start().UTC().Format("2006-01-02 15:04:05"), traj.End().UTC().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "Speed:     %s (%g s per frame)\n", composer.SpeedLabel(), clock.Speed)
	fmt.Fprintf(w, "Frames:    %s (orbit %s) at %d fps\n",
		humanize.Comma(int64(composer.Frames())), humanize.Comma(int64(composer.FramesOrbit())), clock.FPS)
	fmt.Fprintf(w, "Physical duration: %s (%s)\n",
		clock.PhysicalDuration(), humanize.RelTime(clock.Start, clock.End, "", ""))
	fmt.Fprintf(w, "Animation duration: %s\n", clock.AnimationDuration())
	return clock, nil
}

func (a *app) listBodies(ctx context.Context) (any, error) {
	st, err := a.initStorage()
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	bodies, err := st.ListBodies(ctx)
	if err != nil {
		return nil, err
	}
	if len(bodies) == 0 {
		fmt.Fprintln(a.stdout, "No stored bodies")
		return bodies, nil
	}
	for _, b := range bodies {
		fmt.Fprintf(a.stdout, "%-16s %-5s %10s samples  %s .. %s  %s\n", b.Name, b.Format,
			humanize.Comma(int64(b.SampleCount)),
			b.Start.UTC().Format("2006-01-02 15:04:05"), b.End.UTC().Format("2006-01-02 15:04:05"),
			b.Source)
	}
	return bodies, nil
}

func (a *app) importBody(ctx context.Context, _ dispatcher.Event) (any, error) {
	file := a.flagString("file")
	name := util.TrimQuotes(a.flagString("name"))
	if file == "" || name == "" {
		return nil, fmt.Errorf("%w: --file and --name are required", errUsage)
	}

	format := a.flagString("format")
	if format == "" {
		var err error
		if format, err = loader.DetectFormat(file); err != nil {
			return nil, err
		}
	}
	if format != scene.FormatDat && format != scene.FormatOCAP {
		return nil, fmt.Errorf("%w: %q", loader.ErrUnknownFormat, format)
	}
	entity, _ := a.fs.GetInt("entity")
	geographic, _ := a.fs.GetBool("geographic")

	st, err := a.initStorage()
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	body, err := loader.New(st, "").Load(ctx, name, scene.Source{
		Format:     format,
		Path:       file,
		Epoch:      a.flagString("epoch"),
		Entity:     entity,
		Geographic: geographic,
	})
	if err != nil {
		return nil, err
	}
	if c := a.flagString("color"); c != "" {
		if _, err := core.ParseHexColor(c); err != nil {
			return nil, fmt.Errorf("%w: --color: %v", errUsage, err)
		}
		body.Color = c
	}

	if err := st.SaveBody(ctx, body); err != nil {
		return nil, err
	}

	summary := storage.Summary{
		Name:        body.Name,
		Source:      body.Source,
		Format:      body.Format,
		SampleCount: body.Trajectory.Len(),
		Start:       body.Trajectory.Start(),
		End:         body.Trajectory.End(),
		Labels:      storage.Labels(body.Annotations),
	}
	a.logger.Info("Imported body", "name", summary.Name, "samples", summary.SampleCount, "format", summary.Format)
	fmt.Fprintf(a.stdout, "Imported %s: %s samples from %s\n", summary.Name, humanize.Comma(int64(summary.SampleCount)), file)
	return summary, nil
}
