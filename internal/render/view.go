package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/OCAP2/trajectory-animator/pkg/core"
)

// View is an orthographic camera. Positions are scaled by the plot limit
// so the scene box spans ±1 on X and Y and ±0.5 on Z.
type View struct {
	right, up, eye r3.Vec
	scale          float64
}

// NewView builds the view for a pose. Elevation and azimuth follow the
// usual 3D plot convention: azimuth -90 looks along +Y with X to the right,
// elevation 90 looks straight down.
func NewView(p core.Pose, limit float64) View {
	e := p.Elevation * math.Pi / 180
	a := p.Azimuth * math.Pi / 180
	r := p.Roll * math.Pi / 180

	right := r3.Vec{X: -math.Sin(a), Y: math.Cos(a)}
	up := r3.Vec{X: -math.Sin(e) * math.Cos(a), Y: -math.Sin(e) * math.Sin(a), Z: math.Cos(e)}
	eye := r3.Vec{X: math.Cos(e) * math.Cos(a), Y: math.Cos(e) * math.Sin(a), Z: math.Sin(e)}

	if r != 0 {
		right, up = r3.Add(r3.Scale(math.Cos(r), right), r3.Scale(math.Sin(r), up)),
			r3.Sub(r3.Scale(math.Cos(r), up), r3.Scale(math.Sin(r), right))
	}

	zoom := p.Zoom
	if zoom <= 0 {
		zoom = core.DefaultZoom
	}
	if limit <= 0 {
		limit = 1
	}
	return View{right: right, up: up, eye: eye, scale: zoom / core.DefaultZoom / limit}
}

// Project maps a scene position onto the image plane.
func (v View) Project(p core.Vec3) (x, y float64) {
	q := r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
	return r3.Dot(q, v.right) * v.scale, r3.Dot(q, v.up) * v.scale
}

// Depth is the distance towards the viewer; larger is closer.
func (v View) Depth(p core.Vec3) float64 {
	return r3.Dot(r3.Vec{X: p.X, Y: p.Y, Z: p.Z}, v.eye) * v.scale
}
