// Package pipeline drives a render: frames are composed, rasterised and
// encoded one at a time, with progress, metrics and run bookkeeping around
// the loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/trajectory-animator/internal/animation"
	"github.com/OCAP2/trajectory-animator/internal/cache"
	"github.com/OCAP2/trajectory-animator/internal/encode"
	"github.com/OCAP2/trajectory-animator/internal/influx"
	"github.com/OCAP2/trajectory-animator/internal/logging"
	"github.com/OCAP2/trajectory-animator/internal/model"
	"github.com/OCAP2/trajectory-animator/internal/monitor"
	"github.com/OCAP2/trajectory-animator/internal/render"
	"github.com/OCAP2/trajectory-animator/internal/storage"
	"github.com/OCAP2/trajectory-animator/pkg/core"
)

const instrumentationName = "github.com/OCAP2/trajectory-animator/internal/pipeline"

// Dependencies holds all dependencies for the pipeline
type Dependencies struct {
	Logger *slog.Logger
	// Store records the run; optional.
	Store storage.Backend
	// Influx receives per-frame timings; optional.
	Influx *influx.Manager
}

// Result summarises a finished render.
type Result struct {
	RunID    string
	Output   string
	Frames   int
	Size     int64
	Elapsed  time.Duration
	Physical time.Duration
	Playback time.Duration
}

// Pipeline runs render jobs.
type Pipeline struct {
	deps Dependencies

	composed metric.Int64Counter
	encoded  metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a pipeline. Metrics go to the global OTel meter.
func New(deps Dependencies) (*Pipeline, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	p := &Pipeline{deps: deps}

	m := otel.Meter(instrumentationName)
	var err error
	p.composed, err = m.Int64Counter(
		"render.frames.composed",
		metric.WithDescription("Frames composed by the animation engine"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating composed counter: %w", err)
	}
	p.encoded, err = m.Int64Counter(
		"render.frames.encoded",
		metric.WithDescription("Frames handed to the encoder"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating encoded counter: %w", err)
	}
	p.duration, err = m.Float64Histogram(
		"render.frame.duration",
		metric.WithDescription("Time to compose, render and encode one frame"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return p, nil
}

// Prepare validates the job and builds its composer. Nothing is written.
func Prepare(job Job) (*animation.Composer, error) {
	if _, err := encode.Check(job.Output); err != nil {
		return nil, err
	}
	return animation.NewComposer(job.Particles, job.Camera, job.Animation)
}

// Run renders job. On cancellation the encoder is still closed so the
// frames written so far form a valid file, and the error wraps ctx.Err().
func (p *Pipeline) Run(ctx context.Context, job Job) (res Result, err error) {
	composer, err := Prepare(job)
	if err != nil {
		return Result{}, err
	}
	renderer, err := render.New(job.Particles, job.Render)
	if err != nil {
		return Result{}, err
	}

	runID := uuid.NewString()
	var current atomic.Int64
	logger := slog.New(logging.NewContextHandler(p.deps.Logger.Handler(), func() []slog.Attr {
		return []slog.Attr{slog.Int64("frame", current.Load())}
	})).With("run_id", runID)

	clock := composer.Clock()
	res = Result{
		RunID:    runID,
		Output:   job.Output,
		Physical: clock.PhysicalDuration(),
		Playback: clock.AnimationDuration(),
	}
	logger.Info(fmt.Sprintf("Physical duration: %s | Animation duration: %s", res.Physical, res.Playback),
		"frames", composer.Frames(),
		"frames_orbit", composer.FramesOrbit(),
		"speed", composer.SpeedLabel(),
		"plot_limits", renderer.Limit(),
	)

	if p.deps.Store != nil {
		if err := p.deps.Store.BeginRun(ctx, storage.Run{
			ID:          runID,
			Scene:       job.Scene,
			Output:      job.Output,
			FramesTotal: composer.Frames(),
		}); err != nil {
			return res, err
		}
		defer func() {
			status := model.RunDone
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				status = model.RunCancelled
			case err != nil:
				status = model.RunFailed
			}
			// the run context may be cancelled already
			if ferr := p.deps.Store.FinishRun(context.WithoutCancel(ctx), runID, status, err); ferr != nil {
				logger.Error("Error finishing render run", "error", ferr)
			}
		}()
	}

	enc, err := encode.New(ctx, job.Output, job.Animation.FPS)
	if err != nil {
		return res, err
	}

	var done cache.SafeCounter
	mon := monitor.NewService(monitor.Dependencies{
		Logger:     logger,
		Progress:   func() (int, int) { return done.Value(), composer.Frames() },
		StatusFile: job.StatusFile,
		Interval:   job.ProgressInterval,
		Store:      p.deps.Store,
		RunID:      runID,
	})
	if err := mon.Start(ctx); err != nil {
		logger.Warn("Status monitor not started", "error", err)
	}

	start := time.Now()
	last := start
	sink := animation.SinkFunc(func(ctx context.Context, f core.Frame) error {
		current.Store(int64(f.Index))
		composed := time.Since(last)
		p.composed.Add(ctx, 1)

		t0 := time.Now()
		img, err := renderer.Render(f)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		rendered := time.Since(t0)

		t1 := time.Now()
		if err := enc.Encode(ctx, img); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		encoded := time.Since(t1)
		p.encoded.Add(ctx, 1)
		done.Inc()

		total := composed + rendered + encoded
		phase := influx.PhaseOrbit
		if f.PostOrbit {
			phase = influx.PhaseEpilogue
		}
		p.duration.Record(ctx, float64(total)/float64(time.Millisecond),
			metric.WithAttributes(attribute.String("phase", phase)))

		if p.deps.Influx != nil {
			visible := 0
			for _, b := range f.Bodies {
				if b.Visible {
					visible++
				}
			}
			if err := p.deps.Influx.WriteFrame(influx.FrameTiming{
				RunID:         runID,
				Frame:         f.Index,
				PostOrbit:     f.PostOrbit,
				Compose:       composed,
				Render:        rendered,
				Encode:        encoded,
				BodiesVisible: visible,
			}); err != nil {
				logger.Debug("Dropped frame timing", "error", err)
			}
		}

		last = time.Now()
		return nil
	})

	runErr := composer.Run(ctx, sink)
	mon.Stop()
	closeErr := enc.Close()

	res.Frames = done.Value()
	res.Elapsed = time.Since(start)
	if info, statErr := os.Stat(job.Output); statErr == nil {
		res.Size = info.Size()
	}

	if err := errors.Join(runErr, closeErr); err != nil {
		logger.Error("Render stopped",
			"error", err,
			"frames_done", humanize.Comma(int64(res.Frames)),
			"frames_total", humanize.Comma(int64(composer.Frames())),
		)
		return res, err
	}

	logger.Info("Render finished",
		"output", job.Output,
		"frames", humanize.Comma(int64(res.Frames)),
		"size", humanize.Bytes(uint64(res.Size)),
		"elapsed", res.Elapsed.Round(time.Millisecond),
	)
	return res, nil
}
