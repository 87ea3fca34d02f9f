package quota_test

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/levy-engine/quota"
)

func TestAggregateReduction_BalancedContracts(t *testing.T) {
	// GIVEN: 10M levy, two 5M contracts, caps 90% of levy / 50% of contracts
	// WHEN: Aggregating
	// THEN: contract cap wins at 5M, split evenly with no remainder

	cfg := testConfig()
	res, err := quota.AggregateReduction(10_000_000, []int64{5_000_000, 5_000_000}, cfg)
	require.NoError(t, err)

	assert.Equal(t, int64(10_000_000), res.TotalContractAmount)
	assert.Equal(t, int64(9_000_000), res.CapByLevy)
	assert.Equal(t, int64(5_000_000), res.CapByContract)
	assert.Equal(t, int64(5_000_000), res.MaxReduction)
	assert.Equal(t, int64(5_000_000), res.AfterReduction)
	assert.Equal(t, int64(0), res.Unallocated)

	require.Len(t, res.Allocations, 2)
	for i, a := range res.Allocations {
		assert.Equal(t, i, a.Index)
		assert.Equal(t, int64(5_000_000), a.ContractAmount)
		assert.True(t, a.Ratio.Equal(decimal.RequireFromString("0.5")))
		assert.Equal(t, int64(2_500_000), a.Reduction)
	}
}

func TestAggregateReduction_LevyCapWins(t *testing.T) {
	cfg := testConfig()
	res, err := quota.AggregateReduction(1_000_000, []int64{50_000_000}, cfg)
	require.NoError(t, err)

	assert.Equal(t, int64(900_000), res.CapByLevy)
	assert.Equal(t, int64(25_000_000), res.CapByContract)
	assert.Equal(t, int64(900_000), res.MaxReduction)
	assert.Equal(t, int64(100_000), res.AfterReduction)
	assert.Equal(t, int64(900_000), res.Allocations[0].Reduction)
}

func TestAggregateReduction_FloorRemainderIsNotRedistributed(t *testing.T) {
	// Three equal contracts cannot split 100 evenly: 33 each, 1 left over.
	cfg := testConfig()
	res, err := quota.AggregateReduction(112, []int64{100, 100, 100}, cfg)
	require.NoError(t, err)

	assert.Equal(t, int64(100), res.CapByLevy)
	assert.Equal(t, int64(150), res.CapByContract)
	assert.Equal(t, int64(100), res.MaxReduction)
	for _, a := range res.Allocations {
		assert.Equal(t, int64(33), a.Reduction)
	}
	assert.Equal(t, int64(1), res.Unallocated)

	res, err = quota.AggregateReduction(100, []int64{1, 1, 1}, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.MaxReduction) // floor(3 × 0.5)
	var sum int64
	for _, a := range res.Allocations {
		assert.Equal(t, int64(0), a.Reduction)
		sum += a.Reduction
	}
	assert.Equal(t, res.MaxReduction-sum, res.Unallocated)
	assert.Equal(t, int64(1), res.Unallocated)
}

func TestAggregateReduction_UnevenContracts(t *testing.T) {
	cfg := testConfig()
	res, err := quota.AggregateReduction(10_000_000, []int64{1_000_000, 2_000_000, 4_000_000}, cfg)
	require.NoError(t, err)

	assert.Equal(t, int64(3_500_000), res.MaxReduction)
	assert.Equal(t, int64(500_000), res.Allocations[0].Reduction)
	assert.Equal(t, int64(1_000_000), res.Allocations[1].Reduction)
	assert.Equal(t, int64(2_000_000), res.Allocations[2].Reduction)
	assert.True(t, res.Allocations[0].Ratio.Equal(decimal.RequireFromString("0.142857")))
	assert.Equal(t, int64(0), res.Unallocated)
}

func TestAggregateReduction_ZeroTotal(t *testing.T) {
	cfg := testConfig()
	res, err := quota.AggregateReduction(5_000_000, []int64{0, 0}, cfg)
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.MaxReduction)
	assert.Equal(t, int64(5_000_000), res.AfterReduction)
	for _, a := range res.Allocations {
		assert.True(t, a.Ratio.IsZero())
		assert.Equal(t, int64(0), a.Reduction)
	}
}

func TestAggregateReduction_ZeroLevy(t *testing.T) {
	cfg := testConfig()
	res, err := quota.AggregateReduction(0, []int64{1_000_000}, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.MaxReduction)
	assert.Equal(t, int64(0), res.AfterReduction)
}

func TestAggregateReduction_Invariants(t *testing.T) {
	cfg := testConfig()
	levies := []int64{0, 1, 999, 1_234_567, 98_765_432}
	contracts := [][]int64{{1}, {7, 11, 13}, {1_000_000, 1}, {333, 333, 334}, {0, 5, 0, 9}}

	for _, levy := range levies {
		for _, cs := range contracts {
			res, err := quota.AggregateReduction(levy, cs, cfg)
			require.NoError(t, err)

			assert.LessOrEqual(t, res.MaxReduction, res.CapByLevy)
			assert.LessOrEqual(t, res.MaxReduction, res.CapByContract)
			assert.GreaterOrEqual(t, res.MaxReduction, int64(0))
			assert.Equal(t, max(levy-res.MaxReduction, 0), res.AfterReduction)

			var sum int64
			for _, a := range res.Allocations {
				sum += a.Reduction
			}
			assert.LessOrEqual(t, sum, res.MaxReduction)
			assert.Less(t, res.Unallocated, int64(len(cs)))
		}
	}
}

func TestAggregateReduction_InvalidInput(t *testing.T) {
	cfg := testConfig()
	var inv *quota.InvalidInputError

	_, err := quota.AggregateReduction(100, nil, cfg)
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "contract_amounts", inv.Field)

	_, err = quota.AggregateReduction(-1, []int64{100}, cfg)
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "levy_amount", inv.Field)

	res, err := quota.AggregateReduction(100, []int64{100, -3}, cfg)
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "contract_amounts[1]", inv.Field)
	assert.Empty(t, res.Allocations, "no partial result on failure")
}

func TestAggregateReduction_ContractSumOverflow(t *testing.T) {
	// GIVEN: contracts whose sum does not fit in int64
	// WHEN: Aggregating
	// THEN: rejected instead of wrapping to a negative total

	cfg := testConfig()
	res, err := quota.AggregateReduction(10_000_000, []int64{math.MaxInt64, 1}, cfg)

	var inv *quota.InvalidInputError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "contract_amounts", inv.Field)
	assert.Empty(t, res.Allocations)

	_, err = quota.AggregateReduction(10_000_000, []int64{math.MaxInt64}, cfg)
	assert.NoError(t, err, "a single maximal contract still fits")
}
