// Package render rasterises composed frames. It owns the plot drawables of
// every particle and receives their state as plain data each frame.
package render

import (
	"fmt"
	"image"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/OCAP2/trajectory-animator/internal/cache"
	"github.com/OCAP2/trajectory-animator/internal/geo"
	"github.com/OCAP2/trajectory-animator/pkg/core"
)

// Background is the default canvas colour.
var Background = color.RGBA{A: 0xFF}

var (
	boxColor  = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0x40}
	textColor = color.NRGBA{R: 0xF9, G: 0xF8, B: 0xF8, A: 0xFF}
)

// Options configures the canvas.
type Options struct {
	Width  int
	Height int
	DPI    int

	// PlotLimits is the half extent of the X and Y axes; Z spans half of
	// it. Zero derives it from the trajectories.
	PlotLimits float64

	CentralBody      core.Vec3
	CentralBodyColor string
	Watermark        string

	Background color.Color
}

type drawable struct {
	trail  *plotter.Line
	tracer *plotter.Line
	head   *plotter.Scatter
}

type legendEntry struct {
	name  string
	color color.RGBA
}

// Renderer turns frames into images.
type Renderer struct {
	opts      Options
	limit     float64
	halfW     float64
	halfH     float64
	fontSize  vg.Length
	central   color.Color
	legend    []legendEntry
	drawables *cache.Store[string, *drawable]
}

// New prepares a renderer for particles.
func New(particles []*core.Particle, opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.DPI <= 0 {
		return nil, fmt.Errorf("invalid canvas %dx%d at %d dpi", opts.Width, opts.Height, opts.DPI)
	}
	if opts.Background == nil {
		opts.Background = Background
	}

	r := &Renderer{
		opts:      opts,
		limit:     opts.PlotLimits,
		halfH:     1.2,
		drawables: cache.NewStore[string, *drawable](),
	}
	r.halfW = r.halfH * float64(opts.Width) / float64(opts.Height)

	// 14pt on a 1080px canvas, scaled with the canvas height
	inches := float64(opts.Height) / float64(opts.DPI)
	r.fontSize = vg.Points(14 * inches / 11.25)

	if r.limit <= 0 {
		trajs := make([]*core.Trajectory, len(particles))
		for i, p := range particles {
			trajs[i] = p.Trajectory
		}
		r.limit = geo.AutoLimit(trajs...)
	}

	if opts.CentralBodyColor != "" {
		c, err := core.ParseHexColor(opts.CentralBodyColor)
		if err != nil {
			return nil, fmt.Errorf("central body: %w", err)
		}
		r.central = c
	}

	for _, p := range particles {
		r.legend = append(r.legend, legendEntry{name: p.Name, color: p.Color})
		if _, err := r.drawable(p.Name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Limit is the plot limit in use.
func (r *Renderer) Limit() float64 {
	return r.limit
}

func (r *Renderer) drawable(name string) (*drawable, error) {
	var err error
	d := r.drawables.GetOrCreate(name, func() *drawable {
		d := &drawable{}
		placeholder := plotter.XYs{{}}
		if d.trail, err = plotter.NewLine(placeholder); err != nil {
			return nil
		}
		if d.tracer, err = plotter.NewLine(placeholder); err != nil {
			return nil
		}
		if d.head, err = plotter.NewScatter(placeholder); err != nil {
			return nil
		}
		d.head.GlyphStyle.Shape = draw.CircleGlyph{}
		return d
	})
	if err != nil {
		r.drawables.Delete(name)
		return nil, fmt.Errorf("drawable %q: %w", name, err)
	}
	return d, nil
}

// Render rasterises f.
func (r *Renderer) Render(f core.Frame) (image.Image, error) {
	p := plot.New()
	p.HideAxes()
	p.BackgroundColor = r.opts.Background
	p.X.Padding, p.Y.Padding = 0, 0

	view := NewView(f.Camera, r.limit)

	if err := r.addBox(p, view); err != nil {
		return nil, err
	}
	if r.central != nil {
		x, y := view.Project(r.opts.CentralBody)
		s, err := plotter.NewScatter(plotter.XYs{{X: x, Y: y}})
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = r.central
		s.GlyphStyle.Radius = vg.Points(6)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
	}

	for _, b := range f.Bodies {
		if !b.Visible {
			continue
		}
		d, err := r.drawable(b.Name)
		if err != nil {
			return nil, err
		}
		width := vg.Points(b.LineWidth)

		if len(b.Trail) > 0 {
			d.trail.XYs = project(view, b.Trail)
			d.trail.LineStyle.Color = withAlpha(b.TrailColor, b.TrailOpacity)
			d.trail.LineStyle.Width = width
			p.Add(d.trail)

			last := d.trail.XYs[len(d.trail.XYs)-1]
			d.head.XYs = plotter.XYs{last}
			d.head.GlyphStyle.Color = b.TracerColor
			d.head.GlyphStyle.Radius = vg.Points(2 + b.LineWidth)
			p.Add(d.head)
		}
		if len(b.Tracer) > 0 {
			d.tracer.XYs = project(view, b.Tracer)
			d.tracer.LineStyle.Color = b.TracerColor
			d.tracer.LineStyle.Width = 2 * width
			p.Add(d.tracer)
		}
	}

	if err := r.addText(p, f); err != nil {
		return nil, err
	}

	// Add grows the axes to fit the data; the view stays fixed
	p.X.Min, p.X.Max = -r.halfW, r.halfW
	p.Y.Min, p.Y.Max = -r.halfH, r.halfH

	w := vg.Length(r.opts.Width) * vg.Inch / vg.Length(r.opts.DPI)
	h := vg.Length(r.opts.Height) * vg.Inch / vg.Length(r.opts.DPI)
	img := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(r.opts.DPI))
	p.Draw(draw.New(img))
	return img.Image(), nil
}

func project(view View, pts []core.Vec3) plotter.XYs {
	out := make(plotter.XYs, len(pts))
	for i, v := range pts {
		out[i].X, out[i].Y = view.Project(v)
	}
	return out
}

func withAlpha(c color.RGBA, opacity float64) color.NRGBA {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(opacity*255 + 0.5)}
}

// addBox draws the edges of the scene box.
func (r *Renderer) addBox(p *plot.Plot, view View) error {
	l := r.limit
	corners := [8]core.Vec3{}
	for i := range corners {
		corners[i] = core.Vec3{
			X: l * float64(2*(i&1)-1),
			Y: l * float64(2*(i>>1&1)-1),
			Z: l / 2 * float64(2*(i>>2&1)-1),
		}
	}
	for i := range corners {
		for _, bit := range []int{1, 2, 4} {
			j := i | bit
			if j == i {
				continue
			}
			x0, y0 := view.Project(corners[i])
			x1, y1 := view.Project(corners[j])
			edge, err := plotter.NewLine(plotter.XYs{{X: x0, Y: y0}, {X: x1, Y: y1}})
			if err != nil {
				return err
			}
			edge.LineStyle.Color = boxColor
			edge.LineStyle.Width = vg.Points(0.5)
			p.Add(edge)
		}
	}
	return nil
}

type textLine struct {
	s string
	c color.Color
}

// addText places the legend (top left), the annotation panel (top right),
// the time and speed labels (bottom left) and the watermark (bottom right).
func (r *Renderer) addText(p *plot.Plot, f core.Frame) error {
	step := r.halfH * 0.07
	top := r.halfH - step
	bottom := -r.halfH + step/2
	left := -r.halfW * 0.97
	right := r.halfW * 0.97

	legend := make([]textLine, len(r.legend))
	for i, e := range r.legend {
		legend[i] = textLine{s: e.name, c: e.color}
	}
	if err := r.addColumn(p, left, top, -step, text.XLeft, legend); err != nil {
		return err
	}

	panel := make([]textLine, len(f.Annotations))
	for i, a := range f.Annotations {
		panel[i] = textLine{s: a.Label + a.Value, c: textColor}
	}
	if err := r.addColumn(p, right, top, -step, text.XRight, panel); err != nil {
		return err
	}

	status := []textLine{{s: f.TimeLabel, c: textColor}}
	if f.SpeedLabel != "" {
		status = append(status, textLine{s: "Speed: " + f.SpeedLabel, c: textColor})
	}
	if err := r.addColumn(p, left, bottom, step, text.XLeft, status); err != nil {
		return err
	}

	if r.opts.Watermark != "" {
		wm := []textLine{{s: r.opts.Watermark, c: color.NRGBA{R: 0xF9, G: 0xF8, B: 0xF8, A: 0x80}}}
		if err := r.addColumn(p, right, bottom, step, text.XRight, wm); err != nil {
			return err
		}
	}
	return nil
}

// addColumn stacks lines from (x, y), moving dy per line. Empty lines are
// skipped.
func (r *Renderer) addColumn(p *plot.Plot, x, y, dy float64, align text.XAlignment, lines []textLine) error {
	var xys plotter.XYs
	var labels []string
	var colors []color.Color
	for _, l := range lines {
		if l.s == "" {
			continue
		}
		xys = append(xys, plotter.XY{X: x, Y: y + dy*float64(len(labels))})
		labels = append(labels, l.s)
		colors = append(colors, l.c)
	}
	if len(labels) == 0 {
		return nil
	}

	lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return err
	}
	for i := range lbl.TextStyle {
		lbl.TextStyle[i].Color = colors[i]
		lbl.TextStyle[i].XAlign = align
		lbl.TextStyle[i].YAlign = text.YCenter
		lbl.TextStyle[i].Font.Size = r.fontSize
	}
	p.Add(lbl)
	return nil
}
