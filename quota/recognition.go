package quota

import (
	"time"

	"github.com/shopspring/decimal"
)

// SevereDoubleCountHours is the monthly hours a SEVERE employee needs to be
// counted twice.
const SevereDoubleCountHours = 60

var severeDoubleCountHours = decimal.NewFromInt(SevereDoubleCountHours)

// Weight is the number of heads one employee counts for.
//
//	SEVERE, hours >= 60  -> 2
//	SEVERE, hours <  60  -> 1
//	MILD                 -> 1
func Weight(e EmployeeRecord) decimal.Decimal {
	if e.Severity == SeveritySevere && e.MonthlyHours.GreaterThanOrEqual(severeDoubleCountHours) {
		return decimal.NewFromInt(2)
	}
	return decimal.NewFromInt(1)
}

// RecognizedCount sums the weights of all employees.
func RecognizedCount(employees []EmployeeRecord) decimal.Decimal {
	total := decimal.Zero
	for _, e := range employees {
		total = total.Add(Weight(e))
	}
	return total
}

// InScope returns the employees hired on or before periodEnd. Employees with
// no hire date are kept. The input slice is not modified.
func InScope(employees []EmployeeRecord, periodEnd time.Time) []EmployeeRecord {
	out := make([]EmployeeRecord, 0, len(employees))
	for _, e := range employees {
		if e.HireDate.IsZero() || !e.HireDate.After(periodEnd) {
			out = append(out, e)
		}
	}
	return out
}

func validateEmployees(employees []EmployeeRecord) error {
	for i, e := range employees {
		field := indexed("employees", i)
		if !e.Severity.Valid() {
			return invalid(field+".severity", "unknown severity %q", e.Severity)
		}
		if e.MonthlyHours.IsNegative() {
			return invalid(field+".monthly_hours", "must not be negative, got %s", e.MonthlyHours)
		}
		if e.MonthlySalary < 0 {
			return invalid(field+".monthly_salary", "must not be negative, got %d", e.MonthlySalary)
		}
	}
	return nil
}
