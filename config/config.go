// Package config loads pipeline configuration from a YAML file with
// environment variable overrides, and converts the raw values into the
// typed option structs the modeling packages take.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cropforge/cropcast/dataprep"
	"github.com/cropforge/cropcast/feature"
	"github.com/cropforge/cropcast/ordersearch"
	"github.com/cropforge/cropcast/rank"
	"github.com/cropforge/cropcast/sarimax"
	"github.com/cropforge/cropcast/scenario"
	"github.com/cropforge/cropcast/walkforward"
)

var (
	ErrUnknownRanker       = errors.New("ranker must be correlation or lasso")
	ErrBadInteraction      = errors.New("interactions must name exactly two columns")
	ErrBadWindow           = errors.New("report window dates must be YYYY-MM-DD")
	ErrAmbiguousAdjustment = errors.New("adjustment sets both per_step and total")
)

const dateLayout = "2006-01-02"

type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	Data       DataConfig       `mapstructure:"data"`
	Features   FeaturesConfig   `mapstructure:"features"`
	Search     SearchConfig     `mapstructure:"search"`
	Validation ValidationConfig `mapstructure:"validation"`
	Forecast   ForecastConfig   `mapstructure:"forecast"`
	Scenarios  []ScenarioConfig `mapstructure:"scenarios"`
	Report     ReportConfig     `mapstructure:"report"`
}

type DataConfig struct {
	TargetCSV         string `mapstructure:"target_csv"`
	DateColumn        string `mapstructure:"date_column"`
	SettleColumn      string `mapstructure:"settle_column"`
	PremiumColumn     string `mapstructure:"premium_column"`
	DriversCSV        string `mapstructure:"drivers_csv"`
	FilterTradingDays bool   `mapstructure:"filter_trading_days"`
}

type FeaturesConfig struct {
	Lags         []int      `mapstructure:"lags"`
	Interactions [][]string `mapstructure:"interactions"`
	Ranker       string     `mapstructure:"ranker"`
	TopK         int        `mapstructure:"top_k"`
	Lambda       float64    `mapstructure:"lambda"`
}

type SearchConfig struct {
	MaxP            int `mapstructure:"max_p"`
	MaxD            int `mapstructure:"max_d"`
	MaxQ            int `mapstructure:"max_q"`
	MaxSeasonalP    int `mapstructure:"max_seasonal_p"`
	MaxSeasonalD    int `mapstructure:"max_seasonal_d"`
	MaxSeasonalQ    int `mapstructure:"max_seasonal_q"`
	Period          int `mapstructure:"period"`
	Parallelization int `mapstructure:"parallelization"`
}

type ValidationConfig struct {
	Window          int `mapstructure:"window"`
	Horizon         int `mapstructure:"horizon"`
	Parallelization int `mapstructure:"parallelization"`
}

type ForecastConfig struct {
	Horizon         int     `mapstructure:"horizon"`
	Confidence      float64 `mapstructure:"confidence"`
	Parallelization int     `mapstructure:"parallelization"`
}

type ScenarioConfig struct {
	Name        string             `mapstructure:"name"`
	Adjustments []AdjustmentConfig `mapstructure:"adjustments"`
}

// AdjustmentConfig shifts one driver. PerStep and Total are alternatives:
// a total percentage change over the projection horizon is converted to the
// equivalent compound per-step rate.
type AdjustmentConfig struct {
	Variable string  `mapstructure:"variable"`
	PerStep  float64 `mapstructure:"per_step"`
	Total    float64 `mapstructure:"total"`
	Flat     bool    `mapstructure:"flat"`
}

type ReportConfig struct {
	SpecPath string         `mapstructure:"spec_path"`
	PlotPath string         `mapstructure:"plot_path"`
	Windows  []WindowConfig `mapstructure:"windows"`
}

type WindowConfig struct {
	Name  string `mapstructure:"name"`
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// Load reads configuration from the given file, or from cropcast.yaml in
// the working directory and ./configs when the path is empty. Environment
// variables prefixed with CROPCAST_ override file values, with dots
// replaced by underscores.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cropcast")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	setDefaults(v)

	v.SetEnvPrefix("cropcast")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// a missing file falls back to defaults and environment values,
		// but only when no explicit path was requested
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("data.date_column", "date")
	v.SetDefault("data.settle_column", "settle")
	v.SetDefault("data.premium_column", "premium")
	v.SetDefault("data.filter_trading_days", true)

	v.SetDefault("features.lags", []int{1, 2, 3})
	v.SetDefault("features.ranker", "correlation")
	v.SetDefault("features.top_k", 10)
	v.SetDefault("features.lambda", 0.1)

	v.SetDefault("search.max_p", 2)
	v.SetDefault("search.max_d", 1)
	v.SetDefault("search.max_q", 2)
	v.SetDefault("search.max_seasonal_p", 1)
	v.SetDefault("search.max_seasonal_d", 1)
	v.SetDefault("search.max_seasonal_q", 1)
	v.SetDefault("search.period", 12)
	v.SetDefault("search.parallelization", 4)

	v.SetDefault("validation.window", 12)
	v.SetDefault("validation.horizon", 1)
	v.SetDefault("validation.parallelization", 4)

	v.SetDefault("forecast.horizon", 6)
	v.SetDefault("forecast.confidence", 0.95)
	v.SetDefault("forecast.parallelization", 1)

	v.SetDefault("report.spec_path", "modelspec.json")
}

func (c *Config) validate() error {
	switch c.Features.Ranker {
	case "correlation", "lasso":
	default:
		return fmt.Errorf("ranker %q, %w", c.Features.Ranker, ErrUnknownRanker)
	}

	for _, pair := range c.Features.Interactions {
		if len(pair) != 2 {
			return fmt.Errorf("interaction %v, %w", pair, ErrBadInteraction)
		}
	}

	for _, w := range c.Report.Windows {
		if _, err := time.Parse(dateLayout, w.Start); err != nil {
			return fmt.Errorf("window %q start, %w", w.Name, ErrBadWindow)
		}
		if _, err := time.Parse(dateLayout, w.End); err != nil {
			return fmt.Errorf("window %q end, %w", w.Name, ErrBadWindow)
		}
	}

	for _, sc := range c.Scenarios {
		for _, adj := range sc.Adjustments {
			if adj.PerStep != 0 && adj.Total != 0 {
				return fmt.Errorf("scenario %q driver %q, %w", sc.Name, adj.Variable, ErrAmbiguousAdjustment)
			}
		}
	}
	return nil
}

// FeatureOptions converts the feature section into generation options.
func (c *Config) FeatureOptions() *feature.Options {
	interactions := make([][2]string, 0, len(c.Features.Interactions))
	for _, pair := range c.Features.Interactions {
		interactions = append(interactions, [2]string{pair[0], pair[1]})
	}
	return &feature.Options{
		Lags:         c.Features.Lags,
		Interactions: interactions,
	}
}

// SelectorOptions converts the features section into top-K selection
// options.
func (c *Config) SelectorOptions() *rank.SelectorOptions {
	return &rank.SelectorOptions{
		TopK: c.Features.TopK,
	}
}

// Ranker builds the configured feature ranker.
func (c *Config) Ranker() (rank.Ranker, error) {
	switch c.Features.Ranker {
	case "lasso":
		opt := rank.NewDefaultLassoOptions()
		opt.Lambda = c.Features.Lambda
		return rank.NewLassoRanker(opt)
	default:
		return rank.CorrelationRanker{}, nil
	}
}

// FitOptions converts the forecast section into fitter options.
func (c *Config) FitOptions() *sarimax.Options {
	return &sarimax.Options{
		Confidence: c.Forecast.Confidence,
	}
}

// SearchOptions converts the search section into order search options.
func (c *Config) SearchOptions() *ordersearch.Options {
	return &ordersearch.Options{
		Constraints: ordersearch.Constraints{
			MaxP:         c.Search.MaxP,
			MaxD:         c.Search.MaxD,
			MaxQ:         c.Search.MaxQ,
			MaxSeasonalP: c.Search.MaxSeasonalP,
			MaxSeasonalD: c.Search.MaxSeasonalD,
			MaxSeasonalQ: c.Search.MaxSeasonalQ,
			Period:       c.Search.Period,
		},
		Parallelization: c.Search.Parallelization,
	}
}

// ValidationOptions converts the validation section into walk-forward
// options.
func (c *Config) ValidationOptions() *walkforward.Options {
	return &walkforward.Options{
		Window:          c.Validation.Window,
		Horizon:         c.Validation.Horizon,
		Parallelization: c.Validation.Parallelization,
	}
}

// ScenarioOptions converts the forecast section into projection options.
func (c *Config) ScenarioOptions() *scenario.Options {
	return &scenario.Options{
		Horizon:         c.Forecast.Horizon,
		Parallelization: c.Forecast.Parallelization,
	}
}

// Definitions converts the scenario section into scenario definitions,
// folding total-over-horizon rates down to per-step rates.
func (c *Config) Definitions() []scenario.Definition {
	defs := make([]scenario.Definition, 0, len(c.Scenarios))
	for _, sc := range c.Scenarios {
		def := scenario.Definition{Name: sc.Name}
		for _, adj := range sc.Adjustments {
			perStep := adj.PerStep
			if adj.Total != 0 {
				perStep = scenario.TotalOverHorizon(adj.Total, c.Forecast.Horizon)
			}
			def.Adjustments = append(def.Adjustments, scenario.Adjustment{
				Variable: adj.Variable,
				PerStep:  perStep,
				Flat:     adj.Flat,
			})
		}
		defs = append(defs, def)
	}
	return defs
}

// Windows converts the report section into dated reporting windows.
func (c *Config) Windows() []dataprep.Window {
	windows := make([]dataprep.Window, 0, len(c.Report.Windows))
	for _, w := range c.Report.Windows {
		start, _ := time.Parse(dateLayout, w.Start)
		end, _ := time.Parse(dateLayout, w.End)
		windows = append(windows, dataprep.Window{
			Name:  w.Name,
			Start: start,
			End:   end,
		})
	}
	return windows
}
