/*
incentive.go - Incentive eligibility selection

PURPOSE:
  A company employing more disability employees than the incentive threshold
  is paid an incentive for each employee above it. Which employees those are
  matters, because each one carries a different capped amount.

ALGORITHM:
  threshold = ceil(workforce × quotaRate)
  eligible  = max(0, len(employees) - threshold)      raw heads, not weighted
  capped_i  = min(base(severity_i, gender_i), round(salary_i × SalaryCapRate))
  sort by capped desc, then ID asc
  selected  = first `eligible` employees
  total     = Σ capped over selected only

  Selection happens before summation. Summing every employee and then
  trimming would overpay.
*/
package quota

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// SelectIncentiveEligible ranks employees by capped incentive and selects
// the top ones above the incentive threshold.
func SelectIncentiveEligible(employees []EmployeeRecord, workforce int, quotaRate decimal.Decimal, policy IncentivePolicy) (IncentiveResult, error) {
	threshold, err := IncentiveThreshold(workforce, quotaRate)
	if err != nil {
		return IncentiveResult{}, err
	}
	if err := validateEmployees(employees); err != nil {
		return IncentiveResult{}, err
	}
	if policy.SalaryCapRate.IsNegative() {
		return IncentiveResult{}, invalid("incentive.salary_cap_rate", "must not be negative, got %s", policy.SalaryCapRate)
	}

	ranked := make([]IncentiveSelection, len(employees))
	for i, e := range employees {
		ranked[i] = IncentiveSelection{Employee: e, CappedAmount: CappedIncentive(e, policy)}
	}
	slices.SortStableFunc(ranked, func(a, b IncentiveSelection) int {
		if a.CappedAmount != b.CappedAmount {
			if a.CappedAmount > b.CappedAmount {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Employee.ID, b.Employee.ID)
	})

	eligible := max(len(employees)-threshold, 0)
	selected := ranked[:eligible]

	var total int64
	for _, s := range selected {
		total += s.CappedAmount
	}

	return IncentiveResult{
		ThresholdCount:       threshold,
		EligibleCount:        eligible,
		Selected:             selected,
		TotalIncentiveAmount: total,
	}, nil
}

// CappedIncentive is the employee's base incentive limited to
// round(salary × SalaryCapRate). Severities without a configured rate
// earn nothing.
func CappedIncentive(e EmployeeRecord, policy IncentivePolicy) int64 {
	base, ok := policy.BaseAmount(e.Severity, e.Gender)
	if !ok {
		return 0
	}
	salaryCap := decimal.NewFromInt(e.MonthlySalary).Mul(policy.SalaryCapRate).Round(0).IntPart()
	return min(base, salaryCap)
}
