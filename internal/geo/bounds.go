package geo

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/trajectory-animator/pkg/core"
)

// AutoLimitMargin is added around the data when plot limits are derived.
const AutoLimitMargin = 0.05

// Path builds the ground track of a trajectory as a linestring in the XY
// plane. Trajectories with a single sample yield a point.
func Path(t *core.Trajectory) geom.Geometry {
	if t.Len() == 1 {
		p := t.At(0).Position
		return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Y}}).AsGeometry()
	}

	flat := make([]float64, 0, t.Len()*2)
	for i := 0; i < t.Len(); i++ {
		p := t.At(i).Position
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY)).AsGeometry()
}

// GroundLength is the XY length of a trajectory's path.
func GroundLength(t *core.Trajectory) float64 {
	return Path(t).Length()
}

// Length is the full 3D path length.
func Length(t *core.Trajectory) float64 {
	var total float64
	for i := 1; i < t.Len(); i++ {
		a, b := t.At(i-1).Position, t.At(i).Position
		total += math.Sqrt((b.X-a.X)*(b.X-a.X) + (b.Y-a.Y)*(b.Y-a.Y) + (b.Z-a.Z)*(b.Z-a.Z))
	}
	return total
}

// Bounds is the extent of a set of trajectories.
type Bounds struct {
	Min, Max core.Vec3
	Empty    bool
}

// Extent returns the XY envelope and Z range of every trajectory.
func Extent(trajectories ...*core.Trajectory) Bounds {
	var env geom.Envelope
	minZ, maxZ := math.Inf(1), math.Inf(-1)

	for _, t := range trajectories {
		if t == nil || t.Len() == 0 {
			continue
		}
		env = env.ExpandToIncludeEnvelope(Path(t).Envelope())
		for i := 0; i < t.Len(); i++ {
			z := t.At(i).Position.Z
			minZ = math.Min(minZ, z)
			maxZ = math.Max(maxZ, z)
		}
	}

	lo, hi, ok := env.MinMaxXYs()
	if !ok {
		return Bounds{Empty: true}
	}
	return Bounds{
		Min: core.Vec3{X: lo.X, Y: lo.Y, Z: minZ},
		Max: core.Vec3{X: hi.X, Y: hi.Y, Z: maxZ},
	}
}

// AutoLimit picks a symmetric half-width for a 2:2:1 box around the origin
// that contains every trajectory plus AutoLimitMargin.
func AutoLimit(trajectories ...*core.Trajectory) float64 {
	b := Extent(trajectories...)
	if b.Empty {
		return 1
	}
	limit := max(
		math.Abs(b.Min.X), math.Abs(b.Max.X),
		math.Abs(b.Min.Y), math.Abs(b.Max.Y),
		2*math.Abs(b.Min.Z), 2*math.Abs(b.Max.Z),
	)
	if limit == 0 {
		return 1
	}
	return limit * (1 + AutoLimitMargin)
}
