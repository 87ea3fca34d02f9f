/*
Package quota provides the disability-employment quota and levy engine.

PURPOSE:
  Turns a company's headcount and its disability employee records into the
  numbers a levy or incentive filing needs: the obligated quota, a weighted
  recognized headcount, the tiered monthly levy, the linkage reduction earned
  from subcontracting, and the incentive-eligible employee subset.

KEY CONCEPTS IN THIS FILE (types.go):
  - YearConfig: Regulatory constants for one calendar year
  - EmployeeRecord: One disability employee counted for a period
  - CompanyContext: Workforce size and sector
  - LevyResult / ReductionResult / IncentiveResult: Engine outputs

DESIGN PRINCIPLES:
  1. Purity: Every operation is a function of its arguments. No I/O, no
     globals, no mutation of inputs.
  2. Precision: Rates and counts use decimal.Decimal. Currency is int64 in
     the smallest currency unit and never crosses a float.
  3. Validate first: Inputs are checked before any result is built, so a
     failed call never yields a half-filled result.

USAGE:
  cfg, err := resolver.Resolve(ctx, 2025)
  levy, err := quota.EstimateLevy(company, employees, cfg)
  red, err := quota.AggregateReduction(levy.EstimatedLevy, contracts, cfg)

SEE ALSO:
  - obligation.go: Obligated count and incentive threshold
  - recognition.go: Weighted recognized count
  - levy.go: Tier lookup and levy estimate
  - reduction.go: Linkage reduction caps and allocation
  - incentive.go: Incentive eligibility selection
*/
package quota

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Severity is the registered disability grade of an employee.
type Severity string

const (
	SeveritySevere Severity = "SEVERE"
	SeverityMild   Severity = "MILD"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeveritySevere || s == SeverityMild
}

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Sector decides which quota rate applies to a company.
type Sector string

const (
	SectorPrivate Sector = "PRIVATE"
	SectorPublic  Sector = "PUBLIC_OR_GOVERNMENT"
)

// Tier names the employment-rate band a levy base was taken from.
type Tier string

const (
	TierHigh       Tier = "high"       // rate >= 3/4
	TierMidHigh    Tier = "mid_high"   // 1/2 <= rate < 3/4
	TierMidLow     Tier = "mid_low"    // 1/4 <= rate < 1/2
	TierLow        Tier = "low"        // 0 < rate < 1/4
	TierUnemployed Tier = "unemployed" // nobody recognized, or no obligation
)

// =============================================================================
// YEAR CONFIG - Regulatory constants, one instance per calendar year
// =============================================================================

// YearConfig holds the constants published for a levy year.
// It is created by configuration and never mutated by the engine.
type YearConfig struct {
	Year int
	// Description is free text shown to operators. The engine ignores it.
	Description string

	PrivateQuotaRate decimal.Decimal
	PublicQuotaRate  decimal.Decimal

	// BaseLevyAmount is the monthly per-head amount of the high tier.
	BaseLevyAmount int64
	LevyTiers      LevyTiers

	// MaxReductionRate caps the linkage reduction as a share of the levy.
	MaxReductionRate decimal.Decimal
	// MaxReductionByContract caps it as a share of the total contract amount.
	MaxReductionByContract decimal.Decimal

	Incentive IncentivePolicy
}

// LevyTiers are the monthly per-head amounts below the high tier.
type LevyTiers struct {
	MidHigh    int64
	MidLow     int64
	Low        int64
	Unemployed int64
}

// IncentivePolicy carries the per-employee incentive rules for a year.
type IncentivePolicy struct {
	// SalaryCapRate limits an employee's incentive to this share of salary.
	SalaryCapRate decimal.Decimal
	Rates         []IncentiveRate
}

// IncentiveRate is the monthly base incentive for one severity.
type IncentiveRate struct {
	Severity Severity
	Male     int64
	Female   int64
}

// BaseAmount returns the base incentive for a severity and gender.
// Unknown genders take the male rate. The bool is false when no rate is
// configured for the severity.
func (p IncentivePolicy) BaseAmount(sev Severity, g Gender) (int64, bool) {
	for _, r := range p.Rates {
		if r.Severity != sev {
			continue
		}
		if g == GenderFemale {
			return r.Female, true
		}
		return r.Male, true
	}
	return 0, false
}

// QuotaRate selects the quota rate for a sector.
func (c YearConfig) QuotaRate(sector Sector) (decimal.Decimal, error) {
	switch sector {
	case SectorPrivate:
		return c.PrivateQuotaRate, nil
	case SectorPublic:
		return c.PublicQuotaRate, nil
	default:
		return decimal.Zero, invalid("sector", "unknown sector %q", sector)
	}
}

// Validate checks the ranges every engine operation relies on.
func (c YearConfig) Validate() error {
	one := decimal.NewFromInt(1)
	openUnit := func(field string, d decimal.Decimal) error {
		if !d.IsPositive() || d.GreaterThanOrEqual(one) {
			return invalid(field, "must be in (0,1), got %s", d)
		}
		return nil
	}
	halfOpenUnit := func(field string, d decimal.Decimal) error {
		if !d.IsPositive() || d.GreaterThan(one) {
			return invalid(field, "must be in (0,1], got %s", d)
		}
		return nil
	}

	if c.Year <= 0 {
		return invalid("year", "must be positive, got %d", c.Year)
	}
	if err := openUnit("private_quota_rate", c.PrivateQuotaRate); err != nil {
		return err
	}
	if err := openUnit("public_quota_rate", c.PublicQuotaRate); err != nil {
		return err
	}
	if err := halfOpenUnit("max_reduction_rate", c.MaxReductionRate); err != nil {
		return err
	}
	if err := halfOpenUnit("max_reduction_by_contract", c.MaxReductionByContract); err != nil {
		return err
	}
	amounts := []struct {
		field string
		v     int64
	}{
		{"base_levy_amount", c.BaseLevyAmount},
		{"levy_tiers.mid_high", c.LevyTiers.MidHigh},
		{"levy_tiers.mid_low", c.LevyTiers.MidLow},
		{"levy_tiers.low", c.LevyTiers.Low},
		{"levy_tiers.unemployed", c.LevyTiers.Unemployed},
	}
	for _, a := range amounts {
		if a.v < 0 {
			return invalid(a.field, "must not be negative, got %d", a.v)
		}
	}
	if c.Incentive.SalaryCapRate.IsNegative() {
		return invalid("incentive.salary_cap_rate", "must not be negative, got %s", c.Incentive.SalaryCapRate)
	}
	seen := make(map[Severity]bool)
	for i, r := range c.Incentive.Rates {
		if !r.Severity.Valid() {
			return invalid(indexed("incentive.rates", i)+".severity", "unknown severity %q", r.Severity)
		}
		if seen[r.Severity] {
			return invalid(indexed("incentive.rates", i)+".severity", "duplicate severity %q", r.Severity)
		}
		seen[r.Severity] = true
		if r.Male < 0 || r.Female < 0 {
			return invalid(indexed("incentive.rates", i), "amounts must not be negative")
		}
	}
	return nil
}

// =============================================================================
// INPUTS
// =============================================================================

// EmployeeRecord is one disability employee counted in a period.
type EmployeeRecord struct {
	ID       string   `json:"id"`
	Severity Severity `json:"severity"`
	Gender   Gender   `json:"gender"`

	// MonthlyHours are the qualifying working hours in the period.
	MonthlyHours  decimal.Decimal `json:"monthlyHours"`
	MonthlySalary int64           `json:"monthlySalary"`
	HireDate      time.Time       `json:"hireDate"`
}

// CompanyContext is the company-level input to a levy estimate.
type CompanyContext struct {
	TotalWorkforceCount int    `json:"totalWorkforceCount"`
	Sector              Sector `json:"sector"`
}

// =============================================================================
// RESULTS
// =============================================================================

// LevyResult is the output of the obligation, recognition and tier steps.
type LevyResult struct {
	QuotaRate       decimal.Decimal `json:"quotaRate"`
	ObligatedCount  int             `json:"obligatedCount"`
	RecognizedCount decimal.Decimal `json:"recognizedCount"`
	Shortfall       decimal.Decimal `json:"shortfall"`
	Tier            Tier            `json:"tier"`
	MonthlyLevyBase int64           `json:"monthlyLevyBase"`
	EstimatedLevy   int64           `json:"estimatedLevy"`
}

// ReductionResult is the output of AggregateReduction.
type ReductionResult struct {
	TotalContractAmount int64 `json:"totalContractAmount"`
	CapByLevy           int64 `json:"capByLevy"`
	CapByContract       int64 `json:"capByContract"`
	MaxReduction        int64 `json:"maxReduction"`
	AfterReduction      int64 `json:"afterReduction"`

	// Unallocated is MaxReduction minus the sum of the floored allocations.
	Unallocated int64                `json:"unallocated"`
	Allocations []ContractAllocation `json:"allocations"`
}

// ContractAllocation is one subcontract's share of the reduction.
type ContractAllocation struct {
	Index          int             `json:"index"`
	ContractAmount int64           `json:"contractAmount"`
	Ratio          decimal.Decimal `json:"ratio"`
	Reduction      int64           `json:"reduction"`
}

// IncentiveResult is the output of SelectIncentiveEligible.
type IncentiveResult struct {
	ThresholdCount       int                  `json:"thresholdCount"`
	EligibleCount        int                  `json:"eligibleCount"`
	Selected             []IncentiveSelection `json:"selected"`
	TotalIncentiveAmount int64                `json:"totalIncentiveAmount"`
}

// IncentiveSelection pairs a selected employee with their capped amount.
type IncentiveSelection struct {
	Employee     EmployeeRecord `json:"employee"`
	CappedAmount int64          `json:"cappedAmount"`
}
