// Package report renders analysis output as interactive HTML charts and
// static court diagrams.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/courtside-data/rally.report/internal/court"
	"github.com/courtside-data/rally.report/internal/track"
)

// unitLabel maps a unit identifier to its chart axis label.
func unitLabel(units string) string {
	switch units {
	case court.MPH:
		return "mph"
	case court.KMPH, court.KPH:
		return "km/h"
	default:
		return "m/s"
	}
}

// RenderHTML writes the full rally dashboard for one run. All speeds are
// converted to the requested units at render time; the report itself stays
// in m/s.
func RenderHTML(w io.Writer, report *track.RallyReport, units string) error {
	if report == nil {
		return fmt.Errorf("nil rally report")
	}
	if !court.IsValidUnit(units) {
		return fmt.Errorf("invalid units %q", units)
	}

	page := components.NewPage()
	page.PageTitle = "Rally Report"
	page.AddCharts(
		speedChart(report, units),
		distanceChart(report),
		shotChart(report, units),
		bounceChart(report),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report page: %w", err)
	}
	return nil
}

// WriteHTMLFile renders the dashboard to a file.
func WriteHTMLFile(path string, report *track.RallyReport, units string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	return RenderHTML(f, report, units)
}

// reportEntities returns the entities appearing anywhere in the frame
// stats, ball first, players sorted.
func reportEntities(report *track.RallyReport) []track.EntityID {
	seen := make(map[track.EntityID]bool)
	for _, fs := range report.Frames {
		for id := range fs.Entities {
			seen[id] = true
		}
	}
	var players []track.EntityID
	for id := range seen {
		if id != track.BallEntity {
			players = append(players, id)
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i] < players[j] })

	var out []track.EntityID
	if seen[track.BallEntity] {
		out = append(out, track.BallEntity)
	}
	return append(out, players...)
}

// speedChart plots per-entity instantaneous speed against frame index.
// Frames without a kinematic sample are left out of the series entirely so
// gaps render as gaps.
func speedChart(report *track.RallyReport, units string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Speed", Subtitle: fmt.Sprintf("frames %d to %d", report.Start, report.End)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("Speed (%s)", unitLabel(units))}),
	)

	var x []string
	for _, fs := range report.Frames {
		x = append(x, fmt.Sprintf("%d", fs.Frame))
	}
	line.SetXAxis(x)

	for _, id := range reportEntities(report) {
		data := make([]opts.LineData, 0, len(report.Frames))
		for _, fs := range report.Frames {
			efs, ok := fs.Entities[id]
			if !ok || !efs.HasKinematic {
				data = append(data, opts.LineData{Value: nil})
				continue
			}
			data = append(data, opts.LineData{Value: court.ConvertSpeed(efs.SpeedMps, units)})
		}
		line.AddSeries(string(id), data)
	}
	return line
}

// distanceChart plots cumulative distance travelled per entity.
func distanceChart(report *track.RallyReport) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cumulative Distance"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Distance (m)"}),
	)

	var x []string
	for _, fs := range report.Frames {
		x = append(x, fmt.Sprintf("%d", fs.Frame))
	}
	line.SetXAxis(x)

	for _, id := range reportEntities(report) {
		data := make([]opts.LineData, 0, len(report.Frames))
		for _, fs := range report.Frames {
			efs, ok := fs.Entities[id]
			if !ok || !efs.HasKinematic {
				data = append(data, opts.LineData{Value: nil})
				continue
			}
			data = append(data, opts.LineData{Value: efs.CumDistanceM})
		}
		line.AddSeries(string(id), data)
	}
	return line
}

// shotChart plots each shot's average ball speed as a bar, labelled by the
// hitting player and the starting frame.
func shotChart(report *track.RallyReport, units string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Shot Speeds"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("Speed (%s)", unitLabel(units))}),
	)

	var x []string
	avg := make([]opts.BarData, 0, len(report.Shots))
	peak := make([]opts.BarData, 0, len(report.Shots))
	for _, sh := range report.Shots {
		label := fmt.Sprintf("%s @%d", sh.Player, sh.StartFrame)
		if sh.Player == "" {
			label = fmt.Sprintf("@%d", sh.StartFrame)
		}
		x = append(x, label)
		avg = append(avg, opts.BarData{Value: court.ConvertSpeed(sh.BallSpeedMps, units)})
		peak = append(peak, opts.BarData{Value: court.ConvertSpeed(sh.BallPeakSpeedMps, units)})
	}
	bar.SetXAxis(x).
		AddSeries("average", avg,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		).
		AddSeries("peak", peak)
	return bar
}

// bounceChart scatters bounce positions in court coordinates, one series
// per verdict so in and out calls are visually separable.
func bounceChart(report *track.RallyReport) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "600px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Bounce Map", Subtitle: "court coordinates, metres"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -1, Max: court.DoublesWidth + 1, Name: "X (m)"}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: court.Length + 1, Name: "Y (m)"}),
	)

	byVerdict := make(map[track.Verdict][]opts.ScatterData)
	for _, b := range report.Bounces {
		byVerdict[b.Verdict] = append(byVerdict[b.Verdict], opts.ScatterData{
			Value: []interface{}{b.Position.X, b.Position.Y},
		})
	}
	for _, v := range []track.Verdict{track.VerdictIn, track.VerdictOut, track.VerdictUndetermined} {
		data, ok := byVerdict[v]
		if !ok {
			continue
		}
		scatter.AddSeries(string(v), data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}
	return scatter
}
