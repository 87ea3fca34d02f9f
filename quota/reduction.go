/*
reduction.go - Linkage reduction against the levy

PURPOSE:
  A company that subcontracts to registered disability-employing suppliers
  may deduct part of its levy. The deduction is bounded by two independent
  caps and then split across the subcontracts in proportion to their size.

ALGORITHM:
  total          = Σ contracts
  capByLevy      = floor(levy  × MaxReductionRate)
  capByContract  = floor(total × MaxReductionByContract)
  maxReduction   = min(capByLevy, capByContract)
  afterReduction = max(levy - maxReduction, 0)
  allocation_i   = floor(maxReduction × contract_i / total)   (0 if total == 0)

REMAINDER:
  Allocations are floored one by one and NOT re-normalized. Up to
  len(contracts)-1 currency units may remain unallocated; the amount is
  reported as ReductionResult.Unallocated and is not assigned to any
  contract.
*/
package quota

import (
	"math"

	"github.com/shopspring/decimal"
)

const ratioPlaces = 6

// AggregateReduction computes the capped linkage reduction for a levy and
// allocates it across the contracts. Nothing is returned on invalid input.
func AggregateReduction(levyAmount int64, contractAmounts []int64, cfg YearConfig) (ReductionResult, error) {
	if levyAmount < 0 {
		return ReductionResult{}, invalid("levy_amount", "must not be negative, got %d", levyAmount)
	}
	if len(contractAmounts) == 0 {
		return ReductionResult{}, invalid("contract_amounts", "at least one contract amount is required")
	}
	var total int64
	for i, a := range contractAmounts {
		if a < 0 {
			return ReductionResult{}, invalid(indexed("contract_amounts", i), "must not be negative, got %d", a)
		}
		if a > math.MaxInt64-total {
			return ReductionResult{}, invalid("contract_amounts", "sum overflows int64 at index %d", i)
		}
		total += a
	}

	capByLevy := decimal.NewFromInt(levyAmount).Mul(cfg.MaxReductionRate).Floor().IntPart()
	capByContract := decimal.NewFromInt(total).Mul(cfg.MaxReductionByContract).Floor().IntPart()
	maxReduction := min(capByLevy, capByContract)
	if maxReduction < 0 {
		maxReduction = 0
	}

	result := ReductionResult{
		TotalContractAmount: total,
		CapByLevy:           capByLevy,
		CapByContract:       capByContract,
		MaxReduction:        maxReduction,
		AfterReduction:      max(levyAmount-maxReduction, 0),
		Allocations:         make([]ContractAllocation, len(contractAmounts)),
	}

	allocated := int64(0)
	dTotal := decimal.NewFromInt(total)
	dMax := decimal.NewFromInt(maxReduction)
	for i, a := range contractAmounts {
		alloc := ContractAllocation{Index: i, ContractAmount: a, Ratio: decimal.Zero}
		if total > 0 {
			dA := decimal.NewFromInt(a)
			alloc.Ratio = dA.DivRound(dTotal, ratioPlaces)
			q, _ := dMax.Mul(dA).QuoRem(dTotal, 0)
			alloc.Reduction = q.IntPart()
		}
		allocated += alloc.Reduction
		result.Allocations[i] = alloc
	}
	result.Unallocated = maxReduction - allocated

	return result, nil
}
