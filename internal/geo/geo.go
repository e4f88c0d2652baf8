// Package geo converts coordinates into the scene frame and measures
// trajectories. Geographic sources (lon, lat, altitude) are projected to
// EPSG:3857 metres so they can be drawn alongside Cartesian data.
package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/wroge/wgs84"

	"github.com/OCAP2/trajectory-animator/pkg/core"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ParseVec3 parses "x,y" or "x,y,z" into a core.Vec3.
func ParseVec3(coords string) (core.Vec3, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.Vec3{}, ErrInvalidCoordinates
	}
	var out [3]float64
	for i := 0; i < len(coordsSplit) && i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[i]), 64)
		if err != nil {
			return core.Vec3{}, ErrInvalidCoordinates
		}
		out[i] = v
	}
	return core.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

// Projector converts WGS84 longitude/latitude to web mercator metres.
type Projector struct {
	f func(a, b, c float64) (float64, float64, float64)
}

// NewProjector builds the 4326 → 3857 transform once.
func NewProjector() *Projector {
	return &Projector{f: wgs84.EPSG().Transform(4326, 3857)}
}

// Project returns the position of (longitude, latitude) at altitude metres.
// Altitude is carried through unchanged as Z.
func (p *Projector) Project(longitude, latitude, altitude float64) core.Vec3 {
	x, y, _ := p.f(longitude, latitude, 0)
	return core.Vec3{X: x, Y: y, Z: altitude}
}
