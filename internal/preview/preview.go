// Package preview charts the compiled camera path so keyframes can be
// checked without rendering the animation.
package preview

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/OCAP2/trajectory-animator/internal/animation"
)

// Channels holds one value per frame for each camera parameter.
type Channels struct {
	Frames    []int
	Elevation []opts.LineData
	Azimuth   []opts.LineData
	Roll      []opts.LineData
	Zoom      []opts.LineData
}

// Sample reads the camera pose of every frame, keeping every stride-th
// frame plus the last one.
func Sample(c *animation.Composer, stride int) Channels {
	if stride < 1 {
		stride = 1
	}
	var ch Channels
	n := c.Frames()
	for i := 0; i < n; i++ {
		if i%stride != 0 && i != n-1 {
			continue
		}
		p := c.Pose(i)
		ch.Frames = append(ch.Frames, i)
		ch.Elevation = append(ch.Elevation, opts.LineData{Value: p.Elevation})
		ch.Azimuth = append(ch.Azimuth, opts.LineData{Value: p.Azimuth})
		ch.Roll = append(ch.Roll, opts.LineData{Value: p.Roll})
		ch.Zoom = append(ch.Zoom, opts.LineData{Value: p.Zoom})
	}
	return ch
}

// Write renders an HTML page with the angle and zoom channels. The end of
// the orbit phase is marked on both charts.
func Write(w io.Writer, c *animation.Composer, title string) error {
	stride := max(1, c.Frames()/2000)
	ch := Sample(c, stride)
	orbitEnd := opts.MarkLineNameXAxisItem{Name: "orbit end", XAxis: c.FramesOrbit()}

	subtitle := fmt.Sprintf("frames=%d orbit=%d speed=%s", c.Frames(), c.FramesOrbit(), c.SpeedLabel())

	angles := charts.NewLine()
	angles.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "1200px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Camera angles", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Degrees"}),
	)
	angles.SetXAxis(ch.Frames).
		AddSeries("elevation", ch.Elevation, charts.WithMarkLineNameXAxisItemOpts(orbitEnd)).
		AddSeries("azimuth", ch.Azimuth).
		AddSeries("roll", ch.Roll)

	zoom := charts.NewLine()
	zoom.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1200px", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Zoom"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
	)
	zoom.SetXAxis(ch.Frames).
		AddSeries("zoom", ch.Zoom, charts.WithMarkLineNameXAxisItemOpts(orbitEnd))

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(angles, zoom)
	return page.Render(w)
}
