/*
levy.go - Tiered levy base and levy estimate

PURPOSE:
  A company that recognizes fewer disability employees than it is obliged
  to pays a monthly levy per missing head. The per-head amount depends on
  how close the company came to its obligation.

TIER TABLE (employment rate = recognized / obligated):
  rate >= 3/4        -> BaseLevyAmount       (high)
  1/2 <= rate < 3/4  -> LevyTiers.MidHigh
  1/4 <= rate < 1/2  -> LevyTiers.MidLow
  0   <  rate < 1/4  -> LevyTiers.Low
  rate == 0          -> LevyTiers.Unemployed
  obligated == 0     -> LevyTiers.Unemployed

  A rate exactly on a boundary takes the higher tier. Boundaries are
  compared by cross-multiplication so no division rounding is involved.

ESTIMATE:
  shortfall = max(obligated - recognized, 0)
  estimated = shortfall × monthly base

  A recognized count above the obligation yields zero shortfall, never a
  credit. Credits are the incentive path (incentive.go).

SEE ALSO:
  - obligation.go: ObligatedCount
  - recognition.go: RecognizedCount
*/
package quota

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// MonthlyLevyBase maps the employment rate to a tier and its per-head amount.
func MonthlyLevyBase(obligated int, recognized decimal.Decimal, cfg YearConfig) (int64, Tier) {
	if obligated <= 0 || !recognized.IsPositive() {
		return cfg.LevyTiers.Unemployed, TierUnemployed
	}

	o := decimal.NewFromInt(int64(obligated))
	r4 := recognized.Mul(decimal.NewFromInt(4))

	switch {
	case r4.GreaterThanOrEqual(o.Mul(decimal.NewFromInt(3))):
		return cfg.BaseLevyAmount, TierHigh
	case r4.GreaterThanOrEqual(o.Mul(decimal.NewFromInt(2))):
		return cfg.LevyTiers.MidHigh, TierMidHigh
	case r4.GreaterThanOrEqual(o):
		return cfg.LevyTiers.MidLow, TierMidLow
	default:
		return cfg.LevyTiers.Low, TierLow
	}
}

// EstimateLevy computes the monthly levy for a company and its employees.
func EstimateLevy(company CompanyContext, employees []EmployeeRecord, cfg YearConfig) (LevyResult, error) {
	rate, err := cfg.QuotaRate(company.Sector)
	if err != nil {
		return LevyResult{}, err
	}
	obligated, err := ObligatedCount(company.TotalWorkforceCount, rate)
	if err != nil {
		return LevyResult{}, err
	}
	if err := validateEmployees(employees); err != nil {
		return LevyResult{}, err
	}

	recognized := RecognizedCount(employees)
	shortfall := decimal.Max(decimal.NewFromInt(int64(obligated)).Sub(recognized), decimal.Zero)
	base, tier := MonthlyLevyBase(obligated, recognized, cfg)
	estimated := shortfall.Mul(decimal.NewFromInt(base)).Floor()
	if estimated.GreaterThan(maxAmount) {
		return LevyResult{}, invalid("total_workforce_count", "levy of %s overflows int64", estimated)
	}

	return LevyResult{
		QuotaRate:       rate,
		ObligatedCount:  obligated,
		RecognizedCount: recognized,
		Shortfall:       shortfall,
		Tier:            tier,
		MonthlyLevyBase: base,
		EstimatedLevy:   estimated.IntPart(),
	}, nil
}

// =============================================================================
// ANNUAL LEVY - Sum of monthly estimates
// =============================================================================

// MonthlySnapshot is the company state reported for one month.
type MonthlySnapshot struct {
	Month     time.Month       `json:"month"`
	Company   CompanyContext   `json:"company"`
	Employees []EmployeeRecord `json:"employees"`
}

// MonthlyLevy is one month's line in an annual levy.
type MonthlyLevy struct {
	Month time.Month `json:"month"`
	Levy  LevyResult `json:"levy"`
}

// AnnualLevyResult is the sum of the monthly levies of a year.
type AnnualLevyResult struct {
	Year      int           `json:"year"`
	Months    []MonthlyLevy `json:"months"`
	TotalLevy int64         `json:"totalLevy"`
}

// EstimateAnnualLevy runs EstimateLevy for every reported month of cfg.Year.
// Employees hired after a month's last day do not count for that month.
// Months are returned in calendar order.
func EstimateAnnualLevy(snapshots []MonthlySnapshot, cfg YearConfig) (AnnualLevyResult, error) {
	if len(snapshots) == 0 {
		return AnnualLevyResult{}, invalid("months", "at least one month is required")
	}
	seen := make(map[time.Month]bool, len(snapshots))
	for i, s := range snapshots {
		if s.Month < time.January || s.Month > time.December {
			return AnnualLevyResult{}, invalid(indexed("months", i)+".month", "must be 1-12, got %d", int(s.Month))
		}
		if seen[s.Month] {
			return AnnualLevyResult{}, invalid(indexed("months", i)+".month", "duplicate month %d", int(s.Month))
		}
		seen[s.Month] = true
	}

	ordered := make([]MonthlySnapshot, len(snapshots))
	copy(ordered, snapshots)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Month < ordered[j].Month })

	result := AnnualLevyResult{Year: cfg.Year, Months: make([]MonthlyLevy, 0, len(ordered))}
	for _, s := range ordered {
		monthEnd := time.Date(cfg.Year, s.Month+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
		levy, err := EstimateLevy(s.Company, InScope(s.Employees, monthEnd), cfg)
		if err != nil {
			return AnnualLevyResult{}, err
		}
		if levy.EstimatedLevy > math.MaxInt64-result.TotalLevy {
			return AnnualLevyResult{}, invalid("months", "total levy overflows int64 at month %d", int(s.Month))
		}
		result.Months = append(result.Months, MonthlyLevy{Month: s.Month, Levy: levy})
		result.TotalLevy += levy.EstimatedLevy
	}
	return result, nil
}
