package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/courtside-data/rally.report/internal/court"
	"github.com/courtside-data/rally.report/internal/track"
)

var verdictColors = map[track.Verdict]color.RGBA{
	track.VerdictIn:           {R: 0x2e, G: 0x8b, B: 0x57, A: 0xff},
	track.VerdictOut:          {R: 0xd9, G: 0x2b, B: 0x2b, A: 0xff},
	track.VerdictUndetermined: {R: 0x8a, G: 0x8a, B: 0x8a, A: 0xff},
}

// courtSegments returns the line segments of the court markings: doubles
// and singles sidelines, both baselines, both service lines, the centre
// service line and the net.
func courtSegments() [][2]court.Point {
	const (
		left         = 0.0
		right        = court.DoublesWidth
		singlesLeft  = court.AlleyWidth
		singlesRight = court.AlleyWidth + court.SinglesWidth
		far          = 0.0
		near         = court.Length
		net          = court.HalfLength
		serviceFar   = court.HalfLength - court.ServiceFromNet
		serviceNear  = court.HalfLength + court.ServiceFromNet
		centerX      = court.DoublesWidth / 2
	)
	return [][2]court.Point{
		{{X: left, Y: far}, {X: right, Y: far}},
		{{X: left, Y: near}, {X: right, Y: near}},
		{{X: left, Y: far}, {X: left, Y: near}},
		{{X: right, Y: far}, {X: right, Y: near}},
		{{X: singlesLeft, Y: far}, {X: singlesLeft, Y: near}},
		{{X: singlesRight, Y: far}, {X: singlesRight, Y: near}},
		{{X: singlesLeft, Y: serviceFar}, {X: singlesRight, Y: serviceFar}},
		{{X: singlesLeft, Y: serviceNear}, {X: singlesRight, Y: serviceNear}},
		{{X: centerX, Y: serviceFar}, {X: centerX, Y: serviceNear}},
		{{X: left, Y: net}, {X: right, Y: net}},
	}
}

// SaveCourtPNG writes a static top-down diagram of the run: the court
// markings, each player's path and the bounce locations coloured by
// verdict. The Y axis is inverted so the far baseline draws at the top,
// matching the camera's view.
func SaveCourtPNG(path string, report *track.RallyReport) error {
	if report == nil {
		return fmt.Errorf("nil rally report")
	}

	p := plot.New()
	p.Title.Text = "Bounce and Coverage Map"
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.X.Min, p.X.Max = -1, court.DoublesWidth+1
	p.Y.Min, p.Y.Max = court.Length+1, -1

	for _, seg := range courtSegments() {
		pts := plotter.XYs{
			{X: seg[0].X, Y: seg[0].Y},
			{X: seg[1].X, Y: seg[1].Y},
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build court line: %w", err)
		}
		line.Width = vg.Points(1)
		line.Color = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
		p.Add(line)
	}

	for _, id := range reportEntities(report) {
		if id == track.BallEntity {
			continue
		}
		pts := make(plotter.XYs, 0, len(report.Frames))
		for _, fs := range report.Frames {
			efs, ok := fs.Entities[id]
			if !ok {
				continue
			}
			pts = append(pts, plotter.XY{X: efs.Court.X, Y: efs.Court.Y})
		}
		if len(pts) < 2 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build path line: %w", err)
		}
		line.Width = vg.Points(0.5)
		line.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0x80}
		p.Add(line)
		p.Legend.Add(string(id), line)
	}

	byVerdict := make(map[track.Verdict]plotter.XYs)
	for _, b := range report.Bounces {
		byVerdict[b.Verdict] = append(byVerdict[b.Verdict], plotter.XY{X: b.Position.X, Y: b.Position.Y})
	}
	for _, v := range []track.Verdict{track.VerdictIn, track.VerdictOut, track.VerdictUndetermined} {
		pts, ok := byVerdict[v]
		if !ok {
			continue
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("failed to build bounce scatter: %w", err)
		}
		scatter.GlyphStyle.Color = verdictColors[v]
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add(string(v), scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(5*vg.Inch, 10*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save court plot: %w", err)
	}
	return nil
}
