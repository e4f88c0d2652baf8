// pkg/core/frame.go
package core

import (
	"image/color"
	"time"
)

// DefaultZoom matches the box-aspect zoom of the original scenes.
const DefaultZoom = 2.4

// Pose is a camera orientation in degrees plus a zoom factor.
type Pose struct {
	Elevation float64 `json:"elevation"`
	Azimuth   float64 `json:"azimuth"`
	Roll      float64 `json:"roll"`
	Zoom      float64 `json:"zoom"`
}

// DefaultPose is used when no camera path is supplied.
var DefaultPose = Pose{Elevation: 15, Azimuth: -130, Roll: 0, Zoom: DefaultZoom}

// CameraSegment is a camera keyframe: the pose reached at EndFraction of the
// orbit phase. Fractions above 1 extend the animation into an epilogue.
type CameraSegment struct {
	Pose
	EndFraction float64 `json:"endFraction"`
}

// BodyState is the per-frame render state of one particle.
type BodyState struct {
	Name    string
	Visible bool

	Trail  []Vec3
	Tracer []Vec3

	TrailColor   color.RGBA
	TrailOpacity float64
	TracerColor  color.RGBA
	LineWidth    float64

	// Annotations is the row for the newest visible sample, nil before the
	// particle's first sample.
	Annotations []Annotation
}

// Frame is the composed render state for one output frame.
type Frame struct {
	Index int
	// SimTime is the time the particle tracks were evaluated at. It is not
	// clamped and runs past the global end during the post-orbit phase;
	// TimeLabel shows the clamped time.
	SimTime    time.Time
	TimeLabel  string
	SpeedLabel string

	Camera    Pose
	PostOrbit bool
	Bodies    []BodyState

	// Annotations is the annotation panel content for this frame.
	Annotations []Annotation

	// Final is set only on the last frame of the animation.
	Final bool
}
