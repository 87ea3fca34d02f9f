/*
Package factory converts year-configuration documents into quota.YearConfig.

PURPOSE:
  Regulatory constants change every year. They are published as data, not
  code: an operator provisions a year by uploading a JSON document or by
  listing years in a YAML file, and the factory turns that into a validated
  quota.YearConfig.

DOCUMENT SCHEMA (JSON, same keys in YAML):
  {
    "year": 2025,
    "private_quota_rate": "0.031",
    "public_quota_rate": "0.038",
    "base_levy_amount": 1288000,
    "levy_tiers": {
      "mid_high": 1365280,
      "mid_low": 1545600,
      "low": 1803200,
      "unemployed": 2096270
    },
    "max_reduction_rate": "0.9",
    "max_reduction_by_contract": "0.5",
    "incentive": {
      "salary_cap_rate": "0.6",
      "rates": [
        {"severity": "SEVERE", "male": 700000, "female": 900000},
        {"severity": "MILD",   "male": 350000, "female": 500000}
      ]
    }
  }

  Rates may be written as strings or numbers; they are parsed as decimals
  from their literal text so 0.031 stays exactly 0.031.

USAGE:
  f := factory.NewYearConfigFactory()
  cfg, err := f.ParseJSON(body)
  cfgs, err := f.ParseYAMLFile("config/years.yaml")

SEE ALSO:
  - presets.go: Built-in years
  - quota/types.go: YearConfig definition and validation
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/levy-engine/quota"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// YearConfigJSON is the document form of a quota.YearConfig.
type YearConfigJSON struct {
	Year                   int            `json:"year" yaml:"year"`
	Description            string         `json:"description,omitempty" yaml:"description,omitempty"`
	PrivateQuotaRate       Rate           `json:"private_quota_rate" yaml:"private_quota_rate"`
	PublicQuotaRate        Rate           `json:"public_quota_rate" yaml:"public_quota_rate"`
	BaseLevyAmount         int64          `json:"base_levy_amount" yaml:"base_levy_amount"`
	LevyTiers              LevyTiersJSON  `json:"levy_tiers" yaml:"levy_tiers"`
	MaxReductionRate       Rate           `json:"max_reduction_rate" yaml:"max_reduction_rate"`
	MaxReductionByContract Rate           `json:"max_reduction_by_contract" yaml:"max_reduction_by_contract"`
	Incentive              *IncentiveJSON `json:"incentive,omitempty" yaml:"incentive,omitempty"`
}

// LevyTiersJSON holds the per-head amounts below the high tier.
type LevyTiersJSON struct {
	MidHigh    int64 `json:"mid_high" yaml:"mid_high"`
	MidLow     int64 `json:"mid_low" yaml:"mid_low"`
	Low        int64 `json:"low" yaml:"low"`
	Unemployed int64 `json:"unemployed" yaml:"unemployed"`
}

// IncentiveJSON holds the incentive rules.
type IncentiveJSON struct {
	SalaryCapRate Rate                `json:"salary_cap_rate" yaml:"salary_cap_rate"`
	Rates         []IncentiveRateJSON `json:"rates" yaml:"rates"`
}

type IncentiveRateJSON struct {
	Severity string `json:"severity" yaml:"severity"`
	Male     int64  `json:"male" yaml:"male"`
	Female   int64  `json:"female" yaml:"female"`
}

// YearsFileYAML is the layout of a multi-year YAML file.
type YearsFileYAML struct {
	Years []YearConfigJSON `yaml:"years"`
}

// Rate is a decimal kept as its literal text.
type Rate string

// UnmarshalJSON accepts both "0.031" and 0.031.
func (r *Rate) UnmarshalJSON(b []byte) error {
	if strings.TrimSpace(string(b)) == "null" {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = Rate(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("rate must be a string or a number, got %s", b)
	}
	*r = Rate(n.String())
	return nil
}

func (r Rate) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(r))
}

// UnmarshalYAML takes the scalar text, whatever YAML resolved it to.
func (r *Rate) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: rate must be a scalar", n.Line)
	}
	*r = Rate(n.Value)
	return nil
}

func (r Rate) parse(field string) (decimal.Decimal, error) {
	if r == "" {
		return decimal.Zero, &quota.InvalidInputError{Field: field, Reason: "is required"}
	}
	d, err := decimal.NewFromString(string(r))
	if err != nil {
		return decimal.Zero, &quota.InvalidInputError{Field: field, Reason: fmt.Sprintf("not a number: %q", string(r))}
	}
	return d, nil
}

// =============================================================================
// YEAR CONFIG FACTORY
// =============================================================================

// YearConfigFactory converts documents to validated YearConfigs.
type YearConfigFactory struct{}

// NewYearConfigFactory creates a new factory.
func NewYearConfigFactory() *YearConfigFactory {
	return &YearConfigFactory{}
}

// ParseJSON parses a single year document.
func (f *YearConfigFactory) ParseJSON(data []byte) (quota.YearConfig, error) {
	var doc YearConfigJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return quota.YearConfig{}, fmt.Errorf("failed to parse year config JSON: %w", err)
	}
	return f.FromDocument(doc)
}

// ParseYAML parses a multi-year YAML document.
func (f *YearConfigFactory) ParseYAML(data []byte) ([]quota.YearConfig, error) {
	var file YearsFileYAML
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse year config YAML: %w", err)
	}
	configs := make([]quota.YearConfig, 0, len(file.Years))
	seen := make(map[int]bool, len(file.Years))
	for _, doc := range file.Years {
		cfg, err := f.FromDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("year %d: %w", doc.Year, err)
		}
		if seen[cfg.Year] {
			return nil, &quota.InvalidInputError{Field: "years", Reason: fmt.Sprintf("duplicate year %d", cfg.Year)}
		}
		seen[cfg.Year] = true
		configs = append(configs, cfg)
	}
	return configs, nil
}

// ParseYAMLFile reads and parses a multi-year YAML file.
func (f *YearConfigFactory) ParseYAMLFile(path string) ([]quota.YearConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f.ParseYAML(data)
}

// FromDocument converts and validates a document.
func (f *YearConfigFactory) FromDocument(doc YearConfigJSON) (quota.YearConfig, error) {
	cfg := quota.YearConfig{
		Year:           doc.Year,
		Description:    doc.Description,
		BaseLevyAmount: doc.BaseLevyAmount,
		LevyTiers: quota.LevyTiers{
			MidHigh:    doc.LevyTiers.MidHigh,
			MidLow:     doc.LevyTiers.MidLow,
			Low:        doc.LevyTiers.Low,
			Unemployed: doc.LevyTiers.Unemployed,
		},
	}

	var err error
	if cfg.PrivateQuotaRate, err = doc.PrivateQuotaRate.parse("private_quota_rate"); err != nil {
		return quota.YearConfig{}, err
	}
	if cfg.PublicQuotaRate, err = doc.PublicQuotaRate.parse("public_quota_rate"); err != nil {
		return quota.YearConfig{}, err
	}
	if cfg.MaxReductionRate, err = doc.MaxReductionRate.parse("max_reduction_rate"); err != nil {
		return quota.YearConfig{}, err
	}
	if cfg.MaxReductionByContract, err = doc.MaxReductionByContract.parse("max_reduction_by_contract"); err != nil {
		return quota.YearConfig{}, err
	}

	if doc.Incentive != nil {
		if cfg.Incentive.SalaryCapRate, err = doc.Incentive.SalaryCapRate.parse("incentive.salary_cap_rate"); err != nil {
			return quota.YearConfig{}, err
		}
		for _, r := range doc.Incentive.Rates {
			cfg.Incentive.Rates = append(cfg.Incentive.Rates, quota.IncentiveRate{
				Severity: quota.Severity(strings.ToUpper(r.Severity)),
				Male:     r.Male,
				Female:   r.Female,
			})
		}
	}

	if err := cfg.Validate(); err != nil {
		return quota.YearConfig{}, err
	}
	return cfg, nil
}

// ToDocument converts a YearConfig back to its document form.
func ToDocument(cfg quota.YearConfig) YearConfigJSON {
	doc := YearConfigJSON{
		Year:                   cfg.Year,
		Description:            cfg.Description,
		PrivateQuotaRate:       Rate(cfg.PrivateQuotaRate.String()),
		PublicQuotaRate:        Rate(cfg.PublicQuotaRate.String()),
		BaseLevyAmount:         cfg.BaseLevyAmount,
		MaxReductionRate:       Rate(cfg.MaxReductionRate.String()),
		MaxReductionByContract: Rate(cfg.MaxReductionByContract.String()),
		LevyTiers: LevyTiersJSON{
			MidHigh:    cfg.LevyTiers.MidHigh,
			MidLow:     cfg.LevyTiers.MidLow,
			Low:        cfg.LevyTiers.Low,
			Unemployed: cfg.LevyTiers.Unemployed,
		},
	}
	if len(cfg.Incentive.Rates) > 0 || !cfg.Incentive.SalaryCapRate.IsZero() {
		inc := &IncentiveJSON{SalaryCapRate: Rate(cfg.Incentive.SalaryCapRate.String())}
		for _, r := range cfg.Incentive.Rates {
			inc.Rates = append(inc.Rates, IncentiveRateJSON{Severity: string(r.Severity), Male: r.Male, Female: r.Female})
		}
		doc.Incentive = inc
	}
	return doc
}

// MarshalJSON renders cfg as a year document.
func MarshalJSON(cfg quota.YearConfig) (string, error) {
	b, err := json.Marshal(ToDocument(cfg))
	if err != nil {
		return "", fmt.Errorf("failed to marshal year config: %w", err)
	}
	return string(b), nil
}
