// Package gormstorage keeps trajectories and render runs in SQLite or
// Postgres through GORM.
package gormstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/OCAP2/trajectory-animator/internal/database"
	"github.com/OCAP2/trajectory-animator/internal/model"
	"github.com/OCAP2/trajectory-animator/internal/storage"
	"github.com/OCAP2/trajectory-animator/pkg/core"
)

// Dependencies holds all dependencies for the GORM backend
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend stores bodies and runs in a relational database.
type Backend struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New creates a GORM backend. The schema is migrated by Init.
func New(deps Dependencies) *Backend {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{db: deps.DB, logger: logger}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	return database.Migrate(b.db)
}

// Close is a no-op; the connection belongs to the database manager.
func (b *Backend) Close() error {
	return nil
}

// SaveBody replaces any body with the same name in one transaction.
func (b *Backend) SaveBody(ctx context.Context, body storage.Body) error {
	if body.Trajectory == nil || body.Trajectory.Len() == 0 {
		return fmt.Errorf("body %q: %w", body.Name, core.ErrEmptyTrajectory)
	}
	if body.Annotations != nil && len(body.Annotations) != body.Trajectory.Len() {
		return fmt.Errorf("body %q: %w", body.Name, core.ErrAnnotationRows)
	}

	labels, err := json.Marshal(storage.Labels(body.Annotations))
	if err != nil {
		return fmt.Errorf("encoding labels: %w", err)
	}

	start := time.Now()
	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteBody(tx, body.Name); err != nil && !errors.Is(err, storage.ErrBodyNotFound) {
			return err
		}

		row := model.Body{
			Name:             body.Name,
			Source:           body.Source,
			Format:           body.Format,
			Color:            body.Color,
			SampleCount:      body.Trajectory.Len(),
			StartTime:        body.Trajectory.Start(),
			EndTime:          body.Trajectory.End(),
			AnnotationLabels: datatypes.JSON(labels),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("creating body: %w", err)
		}

		samples := make([]model.BodySample, body.Trajectory.Len())
		for i := range samples {
			s := body.Trajectory.At(i)
			samples[i] = model.BodySample{
				BodyID: row.ID,
				Seq:    i,
				Time:   s.Time,
				X:      s.Position.X,
				Y:      s.Position.Y,
				Z:      s.Position.Z,
			}
			if body.Annotations != nil {
				values := make([]string, len(body.Annotations[i]))
				for k, a := range body.Annotations[i] {
					values[k] = a.Value
				}
				raw, err := json.Marshal(values)
				if err != nil {
					return fmt.Errorf("encoding sample %d values: %w", i, err)
				}
				samples[i].Values = datatypes.JSON(raw)
			}
		}
		if err := tx.CreateInBatches(samples, 1000).Error; err != nil {
			return fmt.Errorf("creating samples: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving body %q: %w", body.Name, err)
	}

	b.logger.Debug("Saved body", "name", body.Name, "samples", body.Trajectory.Len(), "duration", time.Since(start))
	return nil
}

// LoadBody reads a body and its samples in order.
func (b *Backend) LoadBody(ctx context.Context, name string) (storage.Body, error) {
	db := b.db.WithContext(ctx)

	var row model.Body
	if err := db.Where("name = ?", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.Body{}, fmt.Errorf("%w: %s", storage.ErrBodyNotFound, name)
		}
		return storage.Body{}, fmt.Errorf("loading body %q: %w", name, err)
	}

	var rows []model.BodySample
	if err := db.Where("body_id = ?", row.ID).Order("seq").Find(&rows).Error; err != nil {
		return storage.Body{}, fmt.Errorf("loading samples of %q: %w", name, err)
	}

	var labels []string
	if len(row.AnnotationLabels) > 0 {
		if err := json.Unmarshal(row.AnnotationLabels, &labels); err != nil {
			return storage.Body{}, fmt.Errorf("decoding labels of %q: %w", name, err)
		}
	}

	samples := make([]core.Sample, len(rows))
	var annotations [][]core.Annotation
	if len(labels) > 0 {
		annotations = make([][]core.Annotation, len(rows))
	}
	for i, r := range rows {
		samples[i] = core.Sample{Time: r.Time, Position: core.Vec3{X: r.X, Y: r.Y, Z: r.Z}}
		if annotations == nil {
			continue
		}
		var values []string
		if err := json.Unmarshal(r.Values, &values); err != nil {
			return storage.Body{}, fmt.Errorf("decoding sample %d of %q: %w", i, name, err)
		}
		cols := make([]core.Annotation, len(labels))
		for k, label := range labels {
			cols[k].Label = label
			if k < len(values) {
				cols[k].Value = values[k]
			}
		}
		annotations[i] = cols
	}

	traj, err := core.NewTrajectory(samples)
	if err != nil {
		return storage.Body{}, fmt.Errorf("body %q: %w", name, err)
	}

	return storage.Body{
		Name:        row.Name,
		Source:      row.Source,
		Format:      row.Format,
		Color:       row.Color,
		Trajectory:  traj,
		Annotations: annotations,
	}, nil
}

// ListBodies returns every stored body ordered by name.
func (b *Backend) ListBodies(ctx context.Context) ([]storage.Summary, error) {
	var rows []model.Body
	if err := b.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing bodies: %w", err)
	}

	out := make([]storage.Summary, len(rows))
	for i, r := range rows {
		var labels []string
		if len(r.AnnotationLabels) > 0 {
			_ = json.Unmarshal(r.AnnotationLabels, &labels)
		}
		out[i] = storage.Summary{
			Name:        r.Name,
			Source:      r.Source,
			Format:      r.Format,
			SampleCount: r.SampleCount,
			Start:       r.StartTime,
			End:         r.EndTime,
			Labels:      labels,
		}
	}
	return out, nil
}

// DeleteBody removes a body and its samples.
func (b *Backend) DeleteBody(ctx context.Context, name string) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteBody(tx, name)
	})
}

func deleteBody(tx *gorm.DB, name string) error {
	var row model.Body
	if err := tx.Where("name = ?", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", storage.ErrBodyNotFound, name)
		}
		return err
	}
	if err := tx.Where("body_id = ?", row.ID).Delete(&model.BodySample{}).Error; err != nil {
		return fmt.Errorf("deleting samples: %w", err)
	}
	if err := tx.Delete(&row).Error; err != nil {
		return fmt.Errorf("deleting body: %w", err)
	}
	return nil
}

// BeginRun records a new running render.
func (b *Backend) BeginRun(ctx context.Context, r storage.Run) error {
	row := model.RenderRun{
		ID:          r.ID,
		Scene:       r.Scene,
		Output:      r.Output,
		FramesTotal: r.FramesTotal,
		FramesDone:  r.FramesDone,
		Status:      model.RunRunning,
	}
	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("creating render run: %w", err)
	}
	return nil
}

// UpdateRun stores the progress of a running render.
func (b *Backend) UpdateRun(ctx context.Context, id string, framesDone int) error {
	res := b.db.WithContext(ctx).Model(&model.RenderRun{}).
		Where("id = ?", id).
		Update("frames_done", framesDone)
	if res.Error != nil {
		return fmt.Errorf("updating render run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	}
	return nil
}

// FinishRun marks a render as done, failed or cancelled.
func (b *Backend) FinishRun(ctx context.Context, id, status string, runErr error) error {
	now := time.Now()
	updates := map[string]any{
		"status":      status,
		"finished_at": &now,
	}
	if runErr != nil {
		updates["error"] = runErr.Error()
	}
	res := b.db.WithContext(ctx).Model(&model.RenderRun{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("finishing render run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	}
	return nil
}

// GetRun reads a render run.
func (b *Backend) GetRun(ctx context.Context, id string) (storage.Run, error) {
	var row model.RenderRun
	if err := b.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.Run{}, fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
		}
		return storage.Run{}, fmt.Errorf("loading render run %s: %w", id, err)
	}
	return storage.Run{
		ID:          row.ID,
		Scene:       row.Scene,
		Output:      row.Output,
		FramesTotal: row.FramesTotal,
		FramesDone:  row.FramesDone,
		Status:      row.Status,
		Error:       row.Error,
	}, nil
}

var _ storage.Backend = (*Backend)(nil)
