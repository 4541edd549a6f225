package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration. Every analytic threshold the
// modules use is declared here rather than hardcoded; Load applies defaults
// and validates ranges.
type Config struct {
	Location   string           `yaml:"location"`
	LogLevel   string           `yaml:"log_level"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Menu       MenuConfig       `yaml:"menu"`
	Inventory  InventoryConfig  `yaml:"inventory"`
	Forecast   ForecastConfig   `yaml:"forecast"`
	Insights   InsightConfig    `yaml:"insights"`
}

// ClassifierConfig controls schema classification.
type ClassifierConfig struct {
	// SampleRows caps how many data rows are inspected for value-pattern
	// validation.
	SampleRows int `yaml:"sample_rows" validate:"gt=0"`
	// MinConfidence is the acceptance threshold; classifications scoring
	// below it are rejected, never guessed.
	MinConfidence float64 `yaml:"min_confidence" validate:"gt=0,lte=1"`
	// MinValueMatch is the fraction of sampled non-empty cells that must
	// parse for a value-validated role (dates, prices, quantities).
	MinValueMatch float64 `yaml:"min_value_match" validate:"gt=0,lte=1"`
	// FilenameHintBoost is the bounded confidence bonus granted when the
	// file name names the detected kind.
	FilenameHintBoost float64 `yaml:"filename_hint_boost" validate:"gte=0,lte=0.2"`
}

// ReconcilerConfig controls fuzzy entity matching.
type ReconcilerConfig struct {
	// MaxDistanceRatio bounds edit distance at max(1, ceil(ratio * name length)).
	MaxDistanceRatio float64 `yaml:"max_distance_ratio" validate:"gt=0,lt=1"`
	// MinTokenOverlap is the required token overlap relative to the
	// shorter token set.
	MinTokenOverlap float64 `yaml:"min_token_overlap" validate:"gt=0,lte=1"`
}

// MenuConfig controls menu engineering classification.
type MenuConfig struct {
	// PopularityCut is the percentile at or above which an item counts as
	// high popularity.
	PopularityCut float64 `yaml:"popularity_cut" validate:"gt=0,lte=1"`
}

// SupplierConfig carries per-supplier reorder parameters, keyed by the
// supplier's display name in InventoryConfig.Suppliers.
type SupplierConfig struct {
	LeadTimeDays float64 `yaml:"lead_time_days" validate:"gte=0"`
	MinOrderUnit float64 `yaml:"min_order_unit" validate:"gte=0"`
}

// InventoryConfig controls inventory risk assessment.
type InventoryConfig struct {
	DefaultLeadTimeDays    float64                   `yaml:"default_lead_time_days" validate:"gt=0"`
	OverstockThresholdDays float64                   `yaml:"overstock_threshold_days" validate:"gt=0"`
	TargetCoverageDays     float64                   `yaml:"target_coverage_days" validate:"gt=0"`
	Suppliers              map[string]SupplierConfig `yaml:"suppliers"`
}

// ForecastConfig controls demand forecasting.
type ForecastConfig struct {
	// LookbackWeeks bounds how many trailing same-weekday observations
	// feed the baseline.
	LookbackWeeks int `yaml:"lookback_weeks" validate:"gt=0"`
	// FactorTimeoutSeconds bounds each external-factor collaborator call.
	FactorTimeoutSeconds int `yaml:"factor_timeout_seconds" validate:"gt=0"`
}

// InsightConfig controls insight surfacing.
type InsightConfig struct {
	TopN int `yaml:"top_n" validate:"gt=0"`
}

// FactorTimeout returns the configured collaborator timeout as a duration.
func (f ForecastConfig) FactorTimeout() time.Duration {
	return time.Duration(f.FactorTimeoutSeconds) * time.Second
}

// Default returns the configuration used when no file overrides are given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Classifier: ClassifierConfig{
			SampleRows:        50,
			MinConfidence:     0.6,
			MinValueMatch:     0.9,
			FilenameHintBoost: 0.1,
		},
		Reconciler: ReconcilerConfig{
			MaxDistanceRatio: 0.2,
			MinTokenOverlap:  0.5,
		},
		Menu: MenuConfig{
			PopularityCut: 0.5,
		},
		Inventory: InventoryConfig{
			DefaultLeadTimeDays:    7,
			OverstockThresholdDays: 60,
			TargetCoverageDays:     14,
		},
		Forecast: ForecastConfig{
			LookbackWeeks:        8,
			FactorTimeoutSeconds: 5,
		},
		Insights: InsightConfig{
			TopN: 5,
		},
	}
}

// Load reads a YAML configuration file over the defaults and validates the
// result. A missing path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
