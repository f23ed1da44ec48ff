package main

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cropforge/cropcast"
	"github.com/cropforge/cropcast/dataprep"
	"github.com/cropforge/cropcast/modelspec"
	"github.com/cropforge/cropcast/timeseries"
)

var (
	errNoScenarios = errors.New("no scenarios configured")
	errGapMonths   = errors.New("gap months inside the modeled range")
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Walk-forward validate the selected model against naive benchmarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := preparePipeline(cmd)
		if err != nil {
			return err
		}
		if _, err := p.Validate(); err != nil {
			return err
		}

		res := &cropcast.Results{
			Spec:       p.Spec(),
			Validation: p.Validation(),
		}
		if err := res.TablePrint(os.Stdout); err != nil {
			return err
		}
		return plotIfConfigured(p, res)
	},
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project scenario price paths off the end of the driver history",
	RunE: func(cmd *cobra.Command, args []string) error {
		defs := cfg.Definitions()
		if len(defs) == 0 {
			return errNoScenarios
		}

		p, err := preparePipeline(cmd)
		if err != nil {
			return err
		}
		scenarios, err := p.Project(defs)
		if err != nil {
			return err
		}

		res := &cropcast.Results{
			Spec:      p.Spec(),
			Scenarios: scenarios,
		}
		if err := res.TablePrint(os.Stdout); err != nil {
			return err
		}
		return plotIfConfigured(p, res)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{validateCmd, projectCmd} {
		cmd.Flags().Bool("refresh", false, "ignore any stored model specification and search again")
	}
}

// preparePipeline loads the configured inputs, prepares features, and pins a
// model specification, reusing a stored one when it is still fresh.
func preparePipeline(cmd *cobra.Command) (*cropcast.Pipeline, error) {
	target, drivers, err := loadInputs()
	if err != nil {
		return nil, err
	}

	ranker, err := cfg.Ranker()
	if err != nil {
		return nil, err
	}
	p, err := cropcast.New(&cropcast.Options{
		Features:   cfg.FeatureOptions(),
		Selection:  cfg.SelectorOptions(),
		Fit:        cfg.FitOptions(),
		Search:     cfg.SearchOptions(),
		Validation: cfg.ValidationOptions(),
		Projection: cfg.ScenarioOptions(),
		Ranker:     ranker,
	})
	if err != nil {
		return nil, err
	}

	if err := p.Prepare(target, drivers); err != nil {
		return nil, err
	}

	refresh, _ := cmd.Flags().GetBool("refresh")
	if err := resolveSpec(p, cfg.Report.SpecPath, refresh); err != nil {
		return nil, err
	}
	return p, nil
}

// resolveSpec adopts a stored specification when present and still matching
// the prepared inputs, and otherwise searches and stores the winner.
func resolveSpec(p *cropcast.Pipeline, specPath string, refresh bool) error {
	if specPath != "" && !refresh {
		spec, err := modelspec.Load(specPath)
		switch {
		case err == nil:
			if err := p.UseSpec(spec); err == nil {
				return nil
			} else if !errors.Is(err, modelspec.ErrStaleSpec) {
				return err
			}
			log.Warn().Str("path", specPath).Msg("stored specification is stale, searching again")
		case errors.Is(err, os.ErrNotExist):
		default:
			return err
		}
	}

	spec, err := p.BestSpec()
	if err != nil {
		return err
	}
	if specPath != "" {
		if err := spec.Save(specPath); err != nil {
			return err
		}
		log.Info().Str("path", specPath).Msg("model specification saved")
	}
	return nil
}

// loadInputs reads the daily quote file and the monthly driver panel,
// compositing and aggregating the quotes up to the monthly grid.
func loadInputs() (*timeseries.Series, *timeseries.Panel, error) {
	quotes, err := dataprep.LoadDailyCSV(
		cfg.Data.TargetCSV,
		cfg.Data.DateColumn,
		cfg.Data.SettleColumn,
		cfg.Data.PremiumColumn,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to load daily quotes, %w", err)
	}

	values := dataprep.CompositeSeries(quotes)
	if cfg.Data.FilterTradingDays {
		values = dataprep.NewTradingCalendar().FilterTradingDays(values)
	}

	target, gaps, err := dataprep.AggregateMonthly(values)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to aggregate monthly composites, %w", err)
	}
	if len(gaps) > 0 {
		log.Warn().Int("months", len(gaps)).Msg("months without quotes carry NaN composites")
	}

	drivers, err := dataprep.LoadMonthlyPanelCSV(cfg.Data.DriversCSV, cfg.Data.DateColumn)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to load driver panel, %w", err)
	}

	target, drivers, err = dataprep.Intersect(target, drivers)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to intersect quotes with drivers, %w", err)
	}
	if n := nanMonths(target); n > 0 {
		return nil, nil, fmt.Errorf("%d %w, fill the quote history or trim the drivers", n, errGapMonths)
	}

	log.Info().
		Int("quotes", len(quotes)).
		Int("months", target.Len()).
		Int("drivers", drivers.NumColumns()).
		Msg("inputs loaded")
	return target, drivers, nil
}

// nanMonths counts months with no composite price. A single NaN target
// poisons every fit that sees it, so these abort the run rather than fail
// candidate by candidate.
func nanMonths(target *timeseries.Series) int {
	n := 0
	for _, v := range target.Y {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// plotIfConfigured renders the echarts report when a plot path is set.
func plotIfConfigured(p *cropcast.Pipeline, res *cropcast.Results) error {
	if cfg.Report.PlotPath == "" {
		return nil
	}
	if err := p.PlotResults(cfg.Report.PlotPath, res); err != nil {
		return err
	}
	log.Info().Str("path", cfg.Report.PlotPath).Msg("report plotted")
	return nil
}
