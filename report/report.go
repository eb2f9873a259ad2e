// Package report renders a tracking session into a standalone HTML page
// with a trajectory plot and a speed over time chart.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/pongvision/condense"
)

// Render writes an HTML report of the tracking run to w
func Render(w io.Writer, title string, estimates []condense.TrackEstimate) error {

	page := components.NewPage()
	page.SetPageTitle(title)

	page.AddCharts(
		trajectoryChart(title, estimates),
		speedChart(estimates),
		essChart(estimates),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	return nil
}

// WriteFile renders the HTML report to the given file path
func WriteFile(path, title string, estimates []condense.TrackEstimate) error {

	f, err := os.Create(path)

	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	defer f.Close()

	return Render(f, title, estimates)
}

// trajectoryChart plots the estimated ball positions in frame coordinates,
// colored by elapsed time.  Reinitialized estimates stand out by size.
func trajectoryChart(title string, estimates []condense.TrackEstimate) components.Charter {

	data := make([]opts.ScatterData, 0, len(estimates))
	maxT := 0.0

	for _, est := range estimates {
		t := est.PTS.Seconds()

		if t > maxT {
			maxT = t
		}

		size := 6
		if est.Reinitialized {
			size = 12
		}

		// negate Y so the plot matches image coordinates, which grow
		// downwards
		data = append(data, opts.ScatterData{
			Value:      []interface{}{est.X, -est.Y, t},
			SymbolSize: size,
		})
	}

	if maxT == 0 {
		maxT = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Trajectory", Subtitle: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (px)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "-Y (px)"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxT),
			Dimension:  "2",
			InRange: &opts.VisualMapInRange{
				Color: []string{"#31688e", "#35b779", "#fde725"},
			},
		}),
	)

	scatter.AddSeries("estimate", data)

	return scatter
}

// speedChart plots the estimated ball speed over time
func speedChart(estimates []condense.TrackEstimate) components.Charter {

	times := make([]string, 0, len(estimates))
	speeds := make([]opts.LineData, 0, len(estimates))

	for _, est := range estimates {
		times = append(times,
			fmt.Sprintf("%.3f", est.PTS.Seconds()))
		speeds = append(speeds, opts.LineData{Value: est.Speed()})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Speed"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "px/s"}),
	)

	line.SetXAxis(times)
	line.AddSeries("speed", speeds,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	return line
}

// essChart plots the effective sample size over time, the health signal
// of the particle set
func essChart(estimates []condense.TrackEstimate) components.Charter {

	times := make([]string, 0, len(estimates))
	ess := make([]opts.LineData, 0, len(estimates))

	for _, est := range estimates {
		times = append(times,
			fmt.Sprintf("%.3f", est.PTS.Seconds()))
		ess = append(ess, opts.LineData{Value: est.ESS})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Effective sample size"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "particles"}),
	)

	line.SetXAxis(times)
	line.AddSeries("ess", ess)

	return line
}
