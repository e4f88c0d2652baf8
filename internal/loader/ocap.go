package loader

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/OCAP2/trajectory-animator/internal/scene"
	"github.com/OCAP2/trajectory-animator/internal/storage"
	"github.com/OCAP2/trajectory-animator/pkg/core"
)

// Recording is the subset of an OCAP v1 recording the loader reads.
type Recording struct {
	MissionName  string   `json:"missionName"`
	WorldName    string   `json:"worldName"`
	EndFrame     int      `json:"endFrame"`
	CaptureDelay float32  `json:"captureDelay"`
	Times        []Time   `json:"times"`
	Entities     []Entity `json:"entities"`
}

// Time synchronises capture frames with the wall clock.
type Time struct {
	Date          string `json:"date"`
	FrameNum      int    `json:"frameNum"`
	SystemTimeUTC string `json:"systemTimeUTC"`
}

// Entity is a recorded unit or vehicle.
type Entity struct {
	ID            uint16  `json:"id"`
	Name          string  `json:"name"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	StartFrameNum int     `json:"startFrameNum"`
	Positions     [][]any `json:"positions"`
}

var systemTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ReadRecording decodes a recording, gunzipping ".gz" files.
func ReadRecording(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var rec Recording
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding recording: %w", err)
	}
	return &rec, nil
}

// Start is the wall-clock time of capture frame 0, falling back to epoch.
func (r *Recording) Start(epoch time.Time) time.Time {
	for _, t := range r.Times {
		for _, layout := range systemTimeLayouts {
			ts, err := time.Parse(layout, t.SystemTimeUTC)
			if err != nil {
				continue
			}
			return ts.Add(-r.frameDuration(t.FrameNum))
		}
	}
	return epoch
}

func (r *Recording) frameDuration(frame int) time.Duration {
	delay := float64(r.CaptureDelay)
	if delay <= 0 {
		delay = 1
	}
	return time.Duration(float64(frame) * delay * float64(time.Second))
}

// Entity finds an entity by id.
func (r *Recording) Entity(id int) (*Entity, bool) {
	for i := range r.Entities {
		if int(r.Entities[i].ID) == id {
			return &r.Entities[i], true
		}
	}
	return nil, false
}

func loadOCAP(name, path string, src scene.Source) (storage.Body, error) {
	rec, err := ReadRecording(path)
	if err != nil {
		return storage.Body{}, fmt.Errorf("%s: %w", name, err)
	}
	e, ok := rec.Entity(src.Entity)
	if !ok {
		return storage.Body{}, fmt.Errorf("%s: entity %d not in recording", name, src.Entity)
	}

	epoch := time.Unix(0, 0).UTC()
	if src.Epoch != "" {
		if epoch, err = time.Parse(time.RFC3339, src.Epoch); err != nil {
			return storage.Body{}, fmt.Errorf("%s: invalid epoch: %w", name, err)
		}
	}
	start := rec.Start(epoch)

	samples := make([]core.Sample, 0, len(e.Positions))
	rows := make([][]core.Annotation, 0, len(e.Positions))
	for i, p := range e.Positions {
		pos, bearing, frame, err := e.decodePosition(i, p)
		if err != nil {
			return storage.Body{}, fmt.Errorf("%s: %w", name, err)
		}
		samples = append(samples, core.Sample{Time: start.Add(rec.frameDuration(frame)), Position: pos})
		rows = append(rows, []core.Annotation{
			{Label: "Bearing: ", Value: fmt.Sprintf("%.0f°", bearing)},
			{Label: "Frame: ", Value: fmt.Sprintf("%d", frame)},
		})
	}

	traj, err := core.NewTrajectory(samples)
	if err != nil {
		return storage.Body{}, fmt.Errorf("%s: %w", name, err)
	}
	return storage.Body{
		Name:        name,
		Source:      path,
		Format:      scene.FormatOCAP,
		Trajectory:  traj,
		Annotations: rows,
	}, nil
}

// decodePosition reads one positions entry: [[x, y, z], bearing, ...].
// Units are captured every frame from StartFrameNum; vehicles carry their
// frame range at index 4.
func (e *Entity) decodePosition(i int, p []any) (core.Vec3, float64, int, error) {
	if len(p) < 2 {
		return core.Vec3{}, 0, 0, fmt.Errorf("position %d: too short", i)
	}
	xyz, ok := p[0].([]any)
	if !ok || len(xyz) < 2 {
		return core.Vec3{}, 0, 0, fmt.Errorf("position %d: bad coordinates", i)
	}
	var v [3]float64
	for k := 0; k < len(xyz) && k < 3; k++ {
		f, ok := xyz[k].(float64)
		if !ok {
			return core.Vec3{}, 0, 0, fmt.Errorf("position %d: coordinate %d is not a number", i, k)
		}
		v[k] = f
	}
	bearing, _ := p[1].(float64)

	frame := e.StartFrameNum + i
	if e.Type == "vehicle" && len(p) > 4 {
		if rng, ok := p[4].([]any); ok && len(rng) > 0 {
			if f, ok := rng[0].(float64); ok {
				frame = int(f)
			}
		}
	}
	return core.Vec3{X: v[0], Y: v[1], Z: v[2]}, bearing, frame, nil
}
