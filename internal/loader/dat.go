package loader

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/trajectory-animator/internal/scene"
	"github.com/OCAP2/trajectory-animator/internal/storage"
	"github.com/OCAP2/trajectory-animator/pkg/core"
)

// DefaultEpoch is J2000, the reference instant of propagator output.
var DefaultEpoch = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

var defaultColumns = []int{1, 2, 3}

// loadDat reads a numeric table: one sample per line, the time column in
// seconds since the epoch. Blank lines and lines starting with '#' are
// skipped.
func (l *Loader) loadDat(name, path string, src scene.Source) (storage.Body, error) {
	epoch := DefaultEpoch
	if src.Epoch != "" {
		var err error
		if epoch, err = time.Parse(time.RFC3339, src.Epoch); err != nil {
			return storage.Body{}, fmt.Errorf("%s: invalid epoch: %w", name, err)
		}
	}
	columns := src.Columns
	if len(columns) == 0 {
		columns = defaultColumns
	}
	if len(columns) != 3 {
		return storage.Body{}, fmt.Errorf("%s: expected 3 position columns, got %d", name, len(columns))
	}

	f, err := os.Open(path)
	if err != nil {
		return storage.Body{}, fmt.Errorf("%s: %w", name, err)
	}
	defer f.Close()

	var (
		samples []core.Sample
		rows    [][]core.Annotation
		first   []float64
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := split(line, src.Delimiter)
		get := func(col int) (float64, error) {
			if col < 0 || col >= len(fields) {
				return 0, fmt.Errorf("line %d: column %d missing", lineNum, col)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[col]), 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: column %d: %w", lineNum, col, err)
			}
			return v, nil
		}

		secs, err := get(src.TimeColumn)
		if err != nil {
			return storage.Body{}, fmt.Errorf("%s: %w", name, err)
		}
		var pos [3]float64
		for i, col := range columns {
			if pos[i], err = get(col); err != nil {
				return storage.Body{}, fmt.Errorf("%s: %w", name, err)
			}
		}

		s := core.Sample{
			Time:     epoch.Add(time.Duration(secs * float64(time.Second))),
			Position: core.Vec3{X: pos[0], Y: pos[1], Z: pos[2]},
		}
		if src.Geographic {
			s.Position = l.proj().Project(pos[0], pos[1], pos[2])
		}
		samples = append(samples, s)

		if len(src.Annotations) == 0 {
			continue
		}
		values := make([]float64, len(src.Annotations))
		for i, spec := range src.Annotations {
			if values[i], err = get(spec.Column); err != nil {
				return storage.Body{}, fmt.Errorf("%s: %w", name, err)
			}
		}
		if first == nil {
			first = values
		}
		row := make([]core.Annotation, len(values))
		for i, spec := range src.Annotations {
			row[i] = core.Annotation{Label: spec.Label, Value: FormatColumn(spec, values[i], first[i])}
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return storage.Body{}, fmt.Errorf("%s: %w", name, err)
	}

	traj, err := core.NewTrajectory(samples)
	if err != nil {
		return storage.Body{}, fmt.Errorf("%s: %w", name, err)
	}
	return storage.Body{
		Name:        name,
		Source:      path,
		Format:      scene.FormatDat,
		Trajectory:  traj,
		Annotations: rows,
	}, nil
}

// FormatColumn renders one annotation value.
func FormatColumn(spec scene.ColumnSpec, v, first float64) string {
	if spec.Elapsed {
		v -= first
	}
	scale := spec.Scale
	if scale == 0 {
		scale = 1
	}
	v = v*scale + spec.Offset
	format := spec.Format
	if format == "" {
		format = "%g"
	}
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf(format, v)
}

func split(line, delimiter string) []string {
	if delimiter == "" {
		return strings.Fields(line)
	}
	return strings.Split(line, delimiter)
}
