package quota

import "github.com/shopspring/decimal"

// =============================================================================
// OBLIGATION - How many disability employees the law requires
// =============================================================================

// ObligatedCount returns round(workforce × rate), rounding half away from
// zero, clamped at zero. Rounding happens once on the exact product.
func ObligatedCount(workforce int, rate decimal.Decimal) (int, error) {
	product, err := quotaProduct(workforce, rate)
	if err != nil {
		return 0, err
	}
	n := product.Round(0).IntPart()
	if n < 0 {
		n = 0
	}
	return int(n), nil
}

// IncentiveThreshold returns ceil(workforce × rate).
//
// The incentive bar rounds up while the levy obligation rounds to nearest,
// so the incentive threshold is never below the obligated count.
func IncentiveThreshold(workforce int, rate decimal.Decimal) (int, error) {
	product, err := quotaProduct(workforce, rate)
	if err != nil {
		return 0, err
	}
	n := product.Ceil().IntPart()
	if n < 0 {
		n = 0
	}
	return int(n), nil
}

func quotaProduct(workforce int, rate decimal.Decimal) (decimal.Decimal, error) {
	if workforce < 0 {
		return decimal.Zero, invalid("total_workforce_count", "must not be negative, got %d", workforce)
	}
	if rate.IsNegative() {
		return decimal.Zero, invalid("quota_rate", "must not be negative, got %s", rate)
	}
	return decimal.NewFromInt(int64(workforce)).Mul(rate), nil
}
