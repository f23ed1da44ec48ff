package cropcast

import (
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/cropforge/cropcast/evaluate"
	"github.com/cropforge/cropcast/scenario"
	"github.com/cropforge/cropcast/timeseries"
	"github.com/cropforge/cropcast/walkforward"
)

const monthLayout = "2006-01"

// TablePrint writes a human readable summary of the run covering the
// selected specification, the validation scores against the naive
// benchmarks, and the scenario endpoints.
func (r *Results) TablePrint(w io.Writer) error {
	if r.Spec != nil {
		if _, err := fmt.Fprintf(w, "Specification:\n"); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  Order: %s  Seasonal: %s  AIC: %.3f\n",
			r.Spec.Order, r.Spec.Seasonal, r.Spec.AIC); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  Fingerprint: %.12s\n", r.Spec.Fingerprint); err != nil {
			return err
		}
		if err := r.featureTable(w); err != nil {
			return err
		}
	}

	if r.Validation != nil && r.Validation.Comparison != nil {
		if err := r.comparisonTable(w, r.Validation.Comparison); err != nil {
			return err
		}
	}

	if r.Scenarios != nil && (len(r.Scenarios.Paths) > 0 || r.Scenarios.Skipped() > 0) {
		if err := r.scenarioTable(w); err != nil {
			return err
		}
	}
	return nil
}

func (r *Results) featureTable(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "  Features:\n"); err != nil {
		return err
	}
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "    Name\tScore\t\n"); err != nil {
		return err
	}
	for _, rec := range r.Spec.Features {
		feat, err := rec.ToFeature()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(tbl, "    %s\t%.4f\t\n", feat, rec.Score); err != nil {
			return err
		}
	}
	return tbl.Flush()
}

func (r *Results) comparisonTable(w io.Writer, cmp *evaluate.Comparison) error {
	if _, err := fmt.Fprintf(w, "Validation:\n"); err != nil {
		return err
	}
	if cmp.SkippedOrigins > 0 {
		if _, err := fmt.Fprintf(w, "  Skipped Origins: %d\n", cmp.SkippedOrigins); err != nil {
			return err
		}
	}

	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "    Forecaster\tN\tMAE\tRMSE\tBias\tMAPE\tSMAPE\tR2\t\n"); err != nil {
		return err
	}
	rows := []struct {
		name    string
		summary *evaluate.Summary
	}{
		{"model", cmp.Model},
		{"naive", cmp.Naive},
		{"seasonal naive", cmp.SeasonalNaive},
	}
	for _, row := range rows {
		if row.summary == nil {
			continue
		}
		if _, err := fmt.Fprintf(tbl, "    %s\t%d\t%.3f\t%.3f\t%.3f\t%.2f\t%.2f\t%.3f\t\n",
			row.name, row.summary.N,
			row.summary.MAE, row.summary.RMSE, row.summary.Bias,
			row.summary.MAPE, row.summary.SMAPE, row.summary.R2); err != nil {
			return err
		}
	}
	return tbl.Flush()
}

func (r *Results) scenarioTable(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Scenarios:\n"); err != nil {
		return err
	}
	if skipped := r.Scenarios.Skipped(); skipped > 0 {
		if _, err := fmt.Fprintf(w, "  Skipped Scenarios: %d\n", skipped); err != nil {
			return err
		}
		for _, failure := range r.Scenarios.Failures {
			if _, err := fmt.Fprintf(w, "    %s: %s\n", failure.Name, failure.Reason); err != nil {
				return err
			}
		}
	}

	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "    Name\tEnd\tPoint\tLower\tUpper\t\n"); err != nil {
		return err
	}
	for _, path := range r.Scenarios.Paths {
		last := len(path.Point) - 1
		if last < 0 {
			continue
		}
		if _, err := fmt.Fprintf(tbl, "    %s\t%s\t%.2f\t%.2f\t%.2f\t\n",
			path.Name, path.T[last].Format(monthLayout),
			path.Point[last], path.Lower[last], path.Upper[last]); err != nil {
			return err
		}
	}
	return tbl.Flush()
}

// lineValue maps NaN to the echarts empty-point marker so gaps render as
// gaps instead of breaking the chart.
func lineValue(v float64) opts.LineData {
	if math.IsNaN(v) {
		return opts.LineData{Value: "-"}
	}
	return opts.LineData{Value: v}
}

// LineValidation generates an echart line chart of the walk-forward records
// plotting actuals against forecasts with their confidence bounds.
func LineValidation(res *walkforward.Result) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: "Walk-Forward Validation",
			},
		),
	)

	x := make([]string, 0, len(res.Records))
	actual := make([]opts.LineData, 0, len(res.Records))
	forecast := make([]opts.LineData, 0, len(res.Records))
	upper := make([]opts.LineData, 0, len(res.Records))
	lower := make([]opts.LineData, 0, len(res.Records))
	for _, rec := range res.Records {
		x = append(x, rec.T.Format(monthLayout))
		actual = append(actual, lineValue(rec.Actual))
		forecast = append(forecast, lineValue(rec.Forecast))
		upper = append(upper, lineValue(rec.Upper))
		lower = append(lower, lineValue(rec.Lower))
	}

	line.SetXAxis(x).
		AddSeries("Actual", actual).
		AddSeries("Forecast", forecast).
		AddSeries("Upper", upper).
		AddSeries("Lower", lower)
	return line
}

// LineScenarios generates an echart line chart of the price history with
// each scenario path continuing off its end.
func LineScenarios(history *timeseries.Series, paths []scenario.Path) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: "Scenario Projections",
			},
		),
	)

	horizon := 0
	if len(paths) > 0 {
		horizon = len(paths[0].T)
	}

	x := make([]string, 0, history.Len()+horizon)
	actual := make([]opts.LineData, 0, history.Len()+horizon)
	for i, t := range history.T {
		x = append(x, t.Format(monthLayout))
		actual = append(actual, lineValue(history.Y[i]))
	}
	if len(paths) > 0 {
		for _, t := range paths[0].T {
			x = append(x, t.Format(monthLayout))
			actual = append(actual, opts.LineData{Value: "-"})
		}
	}

	line = line.SetXAxis(x).AddSeries("Actual", actual)
	for _, path := range paths {
		vals := make([]opts.LineData, 0, history.Len()+len(path.Point))
		for i := 0; i < history.Len(); i++ {
			vals = append(vals, opts.LineData{Value: "-"})
		}
		for _, v := range path.Point {
			vals = append(vals, lineValue(v))
		}
		line = line.AddSeries(path.Name, vals)
	}
	return line
}

// PlotResults uses the Apache Echarts library to generate an html file
// showing the walk-forward fit and the scenario projections.
func (p *Pipeline) PlotResults(path string, r *Results) error {
	page := components.NewPage()
	if r.Validation != nil && r.Validation.Model != nil {
		page.AddCharts(LineValidation(r.Validation.Model))
	}
	if p.trainY != nil && r.Scenarios != nil && len(r.Scenarios.Paths) > 0 {
		page.AddCharts(LineScenarios(p.trainY, r.Scenarios.Paths))
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	return page.Render(io.MultiWriter(file))
}
