package core

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ErrAnnotationRows is returned when annotation rows do not line up with samples.
var ErrAnnotationRows = errors.New("annotation rows do not match trajectory samples")

// NeutralColor is the trail colour used for particles with dimmed history.
var NeutralColor = color.RGBA{R: 0xF9, G: 0xF8, B: 0xF8, A: 0xFF}

// DefaultTracerPercent is the tracer length used when none is configured.
const DefaultTracerPercent = 2.0

// Annotation is one labelled value shown next to the animation.
type Annotation struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// TracerLength is either an absolute sample count or a percentage of the
// trajectory's samples. Samples wins when both are set.
type TracerLength struct {
	Samples int
	Percent float64
}

// Resolve returns the tracer length in samples for a trajectory of n samples,
// clamped to [0, n].
func (l TracerLength) Resolve(n int) int {
	var out int
	switch {
	case l.Samples > 0:
		out = l.Samples
	case l.Percent > 0:
		out = int(float64(n) * (l.Percent / 100))
	default:
		out = int(float64(n) * (DefaultTracerPercent / 100))
	}
	if out < 0 {
		return 0
	}
	if out > n {
		return n
	}
	return out
}

// Particle is one moving body with its render attributes. Identity and
// styling are fixed once the animation starts; per-frame state lives in
// BodyState.
type Particle struct {
	Name       string
	Color      color.RGBA
	DimHistory bool

	Tracer       bool
	TracerLength TracerLength

	// Opacity is the base trail opacity in [0, 1].
	Opacity   float64
	LineWidth float64

	Trajectory *Trajectory

	// Annotations holds one row per trajectory sample, or nil.
	Annotations [][]Annotation
}

// Validate checks the particle can be animated.
func (p *Particle) Validate() error {
	if p.Trajectory == nil || p.Trajectory.Len() == 0 {
		return fmt.Errorf("particle %q: %w", p.Name, ErrEmptyTrajectory)
	}
	if p.Annotations != nil && len(p.Annotations) != p.Trajectory.Len() {
		return fmt.Errorf("particle %q: %w: %d rows for %d samples",
			p.Name, ErrAnnotationRows, len(p.Annotations), p.Trajectory.Len())
	}
	if p.Opacity < 0 || p.Opacity > 1 {
		return fmt.Errorf("particle %q: opacity %v out of range [0, 1]", p.Name, p.Opacity)
	}
	return nil
}

// TrailColor is the colour the trail is drawn in outside the light-up phase.
func (p *Particle) TrailColor() color.RGBA {
	if p.DimHistory {
		return NeutralColor
	}
	return p.Color
}

// TrailOpacity is the trail opacity outside the light-up phase. Enabling the
// tracer halves it so the tracer stands out.
func (p *Particle) TrailOpacity() float64 {
	if p.Tracer {
		return p.Opacity * 0.5
	}
	return p.Opacity
}

// ParseHexColor parses "#RRGGBB", "#RRGGBBAA" or the short "#RGB" form.
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// HexColor formats c as "#rrggbb".
func HexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
