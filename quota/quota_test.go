package quota_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/levy-engine/quota"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func testConfig() quota.YearConfig {
	return quota.YearConfig{
		Year:             2024,
		PrivateQuotaRate: decimal.RequireFromString("0.031"),
		PublicQuotaRate:  decimal.RequireFromString("0.038"),
		BaseLevyAmount:   1_258_000,
		LevyTiers: quota.LevyTiers{
			MidHigh:    1_333_480,
			MidLow:     1_509_600,
			Low:        1_761_200,
			Unemployed: 2_060_740,
		},
		MaxReductionRate:       decimal.RequireFromString("0.9"),
		MaxReductionByContract: decimal.RequireFromString("0.5"),
		Incentive: quota.IncentivePolicy{
			SalaryCapRate: decimal.RequireFromString("0.6"),
			Rates: []quota.IncentiveRate{
				{Severity: quota.SeveritySevere, Male: 700_000, Female: 900_000},
				{Severity: quota.SeverityMild, Male: 350_000, Female: 500_000},
			},
		},
	}
}

func mild(id string) quota.EmployeeRecord {
	return quota.EmployeeRecord{
		ID:            id,
		Severity:      quota.SeverityMild,
		Gender:        quota.GenderMale,
		MonthlyHours:  decimal.NewFromInt(160),
		MonthlySalary: 2_500_000,
		HireDate:      time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

func severe(id string, hours int64) quota.EmployeeRecord {
	e := mild(id)
	e.Severity = quota.SeveritySevere
	e.MonthlyHours = decimal.NewFromInt(hours)
	return e
}

func rate(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// YEAR CONFIG / RESOLVER
// =============================================================================

func TestYearConfig_QuotaRateBySector(t *testing.T) {
	cfg := testConfig()

	r, err := cfg.QuotaRate(quota.SectorPrivate)
	require.NoError(t, err)
	assert.True(t, r.Equal(rate("0.031")))

	r, err = cfg.QuotaRate(quota.SectorPublic)
	require.NoError(t, err)
	assert.True(t, r.Equal(rate("0.038")))

	_, err = cfg.QuotaRate("NGO")
	assert.ErrorIs(t, err, quota.ErrInvalidInput)
}

func TestYearConfig_Validate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	cases := map[string]func(c *quota.YearConfig){
		"private_quota_rate":        func(c *quota.YearConfig) { c.PrivateQuotaRate = decimal.Zero },
		"public_quota_rate":         func(c *quota.YearConfig) { c.PublicQuotaRate = decimal.NewFromInt(1) },
		"max_reduction_rate":        func(c *quota.YearConfig) { c.MaxReductionRate = rate("1.1") },
		"max_reduction_by_contract": func(c *quota.YearConfig) { c.MaxReductionByContract = decimal.Zero },
		"levy_tiers.low":            func(c *quota.YearConfig) { c.LevyTiers.Low = -1 },
		"year":                      func(c *quota.YearConfig) { c.Year = 0 },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			c := testConfig()
			mutate(&c)
			err := c.Validate()
			var inv *quota.InvalidInputError
			require.ErrorAs(t, err, &inv)
			assert.Equal(t, field, inv.Field)
		})
	}
}

func TestYearConfig_FullReductionRateAllowed(t *testing.T) {
	c := testConfig()
	c.MaxReductionRate = decimal.NewFromInt(1)
	assert.NoError(t, c.Validate())
}

func TestStaticResolver_ResolveAndMissingYear(t *testing.T) {
	ctx := context.Background()
	r, err := quota.NewStaticResolver(testConfig())
	require.NoError(t, err)

	cfg, err := r.Resolve(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2024, cfg.Year)

	_, err = r.Resolve(ctx, 2023)
	require.Error(t, err)
	assert.True(t, quota.IsNotFound(err))
	var nf *quota.ConfigNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 2023, nf.Year)
	assert.Contains(t, err.Error(), "2023")
}

func TestStaticResolver_RejectsDuplicateYear(t *testing.T) {
	_, err := quota.NewStaticResolver(testConfig(), testConfig())
	assert.ErrorIs(t, err, quota.ErrInvalidInput)
}

func TestStaticResolver_Years(t *testing.T) {
	c2025 := testConfig()
	c2025.Year = 2025
	r, err := quota.NewStaticResolver(c2025, testConfig())
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025}, r.Years())
}

// =============================================================================
// OBLIGATION
// =============================================================================

func TestObligatedCount(t *testing.T) {
	cases := []struct {
		workforce int
		rate      string
		want      int
	}{
		{0, "0.031", 0},
		{300, "0.031", 9},   // 9.3
		{50, "0.031", 2},    // 1.55
		{500, "0.031", 16},  // 15.5, ties away from zero
		{100, "0.038", 4},   // 3.8
		{16, "0.031", 0},    // 0.496
		{1000, "0.031", 31}, // exact
		{1_000_000, "0.031", 31_000},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d×%s", tc.workforce, tc.rate), func(t *testing.T) {
			got, err := quota.ObligatedCount(tc.workforce, rate(tc.rate))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.GreaterOrEqual(t, got, 0)
		})
	}
}

func TestObligatedCount_NegativeWorkforce(t *testing.T) {
	_, err := quota.ObligatedCount(-1, rate("0.031"))
	var inv *quota.InvalidInputError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "total_workforce_count", inv.Field)
}

func TestIncentiveThreshold_RoundsUp(t *testing.T) {
	got, err := quota.IncentiveThreshold(300, rate("0.031"))
	require.NoError(t, err)
	assert.Equal(t, 10, got)

	got, err = quota.IncentiveThreshold(1000, rate("0.031"))
	require.NoError(t, err)
	assert.Equal(t, 31, got, "exact products are not bumped")
}

func TestIncentiveThreshold_NeverBelowObligation(t *testing.T) {
	for w := 0; w <= 2000; w += 7 {
		o, err := quota.ObligatedCount(w, rate("0.031"))
		require.NoError(t, err)
		th, err := quota.IncentiveThreshold(w, rate("0.031"))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, th, o, "workforce %d", w)
	}
}

// =============================================================================
// RECOGNITION
// =============================================================================

func TestRecognizedCount_Weights(t *testing.T) {
	assert.True(t, quota.RecognizedCount(nil).IsZero())

	assert.True(t, quota.Weight(severe("s", 60)).Equal(decimal.NewFromInt(2)), "severe at 60h counts twice")
	assert.True(t, quota.Weight(severe("s", 59)).Equal(decimal.NewFromInt(1)), "severe below 60h counts once")

	m := mild("m")
	m.MonthlyHours = decimal.NewFromInt(10)
	assert.True(t, quota.Weight(m).Equal(decimal.NewFromInt(1)))
	m.MonthlyHours = decimal.NewFromInt(200)
	assert.True(t, quota.Weight(m).Equal(decimal.NewFromInt(1)), "mild never counts twice")
}

func TestRecognizedCount_FractionalHoursAtBoundary(t *testing.T) {
	e := severe("s", 0)
	e.MonthlyHours = rate("59.99")
	assert.True(t, quota.Weight(e).Equal(decimal.NewFromInt(1)))
	e.MonthlyHours = rate("60.00")
	assert.True(t, quota.Weight(e).Equal(decimal.NewFromInt(2)))
}

func TestInScope_ExcludesLaterHires(t *testing.T) {
	early := mild("early")
	late := mild("late")
	late.HireDate = time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
	undated := mild("undated")
	undated.HireDate = time.Time{}

	end := time.Date(2024, time.June, 30, 23, 59, 59, 0, time.UTC)
	got := quota.InScope([]quota.EmployeeRecord{early, late, undated}, end)

	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].ID)
	assert.Equal(t, "undated", got[1].ID)
}

// =============================================================================
// SCENARIO - workforce 300, quota 3.1%
// =============================================================================

func TestScenario_Workforce300(t *testing.T) {
	// GIVEN: 300 workers, 11 disability employees (7 mild, 4 severe full time)
	// WHEN: Estimating the levy and the incentive
	// THEN: obligated 9, recognized 15, no shortfall, one incentive head

	cfg := testConfig()
	var employees []quota.EmployeeRecord
	for i := 0; i < 7; i++ {
		employees = append(employees, mild(fmt.Sprintf("m%d", i)))
	}
	for i := 0; i < 4; i++ {
		employees = append(employees, severe(fmt.Sprintf("s%d", i), 160))
	}

	levy, err := quota.EstimateLevy(quota.CompanyContext{TotalWorkforceCount: 300, Sector: quota.SectorPrivate}, employees, cfg)
	require.NoError(t, err)
	assert.Equal(t, 9, levy.ObligatedCount)
	assert.True(t, levy.RecognizedCount.Equal(decimal.NewFromInt(15)))
	assert.True(t, levy.Shortfall.IsZero())
	assert.Equal(t, int64(0), levy.EstimatedLevy)
	assert.Equal(t, quota.TierHigh, levy.Tier)

	inc, err := quota.SelectIncentiveEligible(employees, 300, cfg.PrivateQuotaRate, cfg.Incentive)
	require.NoError(t, err)
	assert.Equal(t, 10, inc.ThresholdCount)
	assert.Equal(t, 1, inc.EligibleCount)
	require.Len(t, inc.Selected, 1)
}

// =============================================================================
// IDEMPOTENCE
// =============================================================================

func TestEngine_Idempotent(t *testing.T) {
	cfg := testConfig()
	employees := []quota.EmployeeRecord{mild("a"), severe("b", 80), severe("c", 20)}
	company := quota.CompanyContext{TotalWorkforceCount: 250, Sector: quota.SectorPublic}

	l1, err1 := quota.EstimateLevy(company, employees, cfg)
	l2, err2 := quota.EstimateLevy(company, employees, cfg)
	require.NoError(t, errors.Join(err1, err2))
	assert.Equal(t, l1, l2)

	r1, err1 := quota.AggregateReduction(7_000_001, []int64{3, 5, 7}, cfg)
	r2, err2 := quota.AggregateReduction(7_000_001, []int64{3, 5, 7}, cfg)
	require.NoError(t, errors.Join(err1, err2))
	assert.Equal(t, r1, r2)

	i1, err1 := quota.SelectIncentiveEligible(employees, 10, cfg.PublicQuotaRate, cfg.Incentive)
	i2, err2 := quota.SelectIncentiveEligible(employees, 10, cfg.PublicQuotaRate, cfg.Incentive)
	require.NoError(t, errors.Join(err1, err2))
	assert.Equal(t, i1, i2)
}
