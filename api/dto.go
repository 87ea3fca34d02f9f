/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the quota engine's model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

WIRE RULES:
  - Keys are camelCase
  - Currency is always an integer (smallest currency unit)
  - Ratios and headcounts that may be fractional are JSON numbers rendered
    from exact decimals
  - Year documents keep the factory's snake_case schema, because the same
    document is used in YAML files

VALIDATION:
  Shape errors (unknown fields, wrong types) are rejected while decoding.
  Range errors come from the quota engine. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/yearconfig.go: YearConfigJSON type
*/
package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/levy-engine/factory"
	"github.com/warp/levy-engine/quota"
)

// =============================================================================
// INPUT TYPES
// =============================================================================

// EmployeeDTO is one disability employee in a request.
type EmployeeDTO struct {
	ID            string          `json:"id"`
	Severity      string          `json:"severity"`
	Gender        string          `json:"gender"`
	MonthlyHours  decimal.Decimal `json:"monthlyHours"`
	MonthlySalary int64           `json:"monthlySalary"`
	HireDate      string          `json:"hireDate,omitempty"` // YYYY-MM-DD
}

// CompanyDTO is the company-level input.
type CompanyDTO struct {
	TotalWorkforceCount int    `json:"totalWorkforceCount"`
	Sector              string `json:"sector"`
}

// LevyEstimateRequest is the body of POST /api/levy/estimate.
type LevyEstimateRequest struct {
	Year      int           `json:"year"`
	Company   CompanyDTO    `json:"company"`
	Employees []EmployeeDTO `json:"employees"`
}

// MonthlySnapshotDTO is one month of an annual levy request.
type MonthlySnapshotDTO struct {
	Month     int           `json:"month"`
	Company   CompanyDTO    `json:"company"`
	Employees []EmployeeDTO `json:"employees"`
}

// AnnualLevyRequest is the body of POST /api/levy/annual.
type AnnualLevyRequest struct {
	Year   int                  `json:"year"`
	Months []MonthlySnapshotDTO `json:"months"`
}

// ReductionRequest is the body of POST /api/reduction.
type ReductionRequest struct {
	Year            int     `json:"year"`
	LevyAmount      *int64  `json:"levyAmount"`
	ContractAmounts []int64 `json:"contractAmounts"`
}

// IncentiveRequest is the body of POST /api/incentive/estimate.
type IncentiveRequest struct {
	Year      int           `json:"year"`
	Company   CompanyDTO    `json:"company"`
	Employees []EmployeeDTO `json:"employees"`
}

// AssessmentRequest is the body of POST /api/assessments.
type AssessmentRequest struct {
	Year            int           `json:"year"`
	Company         CompanyDTO    `json:"company"`
	Employees       []EmployeeDTO `json:"employees"`
	ContractAmounts []int64       `json:"contractAmounts,omitempty"`
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// LevyResultDTO is a levy estimate.
type LevyResultDTO struct {
	QuotaRate       json.Number `json:"quotaRate"`
	ObligatedCount  int         `json:"obligatedCount"`
	RecognizedCount json.Number `json:"recognizedCount"`
	Shortfall       json.Number `json:"shortfall"`
	Tier            string      `json:"tier"`
	MonthlyLevyBase int64       `json:"monthlyLevyBase"`
	EstimatedLevy   int64       `json:"estimatedLevy"`
}

// LevyEstimateResponse is the response of POST /api/levy/estimate.
type LevyEstimateResponse struct {
	RunID string `json:"runId"`
	Year  int    `json:"year"`
	LevyResultDTO
}

// MonthlyLevyDTO is one month of an annual levy.
type MonthlyLevyDTO struct {
	Month int           `json:"month"`
	Levy  LevyResultDTO `json:"levy"`
}

// AnnualLevyResponse is the response of POST /api/levy/annual.
type AnnualLevyResponse struct {
	RunID     string           `json:"runId"`
	Year      int              `json:"year"`
	Months    []MonthlyLevyDTO `json:"months"`
	TotalLevy int64            `json:"totalLevy"`
}

// SupplierReductionDTO is one subcontract's share of the reduction.
type SupplierReductionDTO struct {
	Index          int         `json:"index"`
	ContractAmount int64       `json:"contractAmount"`
	Ratio          json.Number `json:"ratio"`
	Reduction      int64       `json:"reduction"`
}

// ReductionResultDTO is a linkage reduction.
type ReductionResultDTO struct {
	TotalContractAmount int64                  `json:"totalContractAmount"`
	CapByLevy           int64                  `json:"capByLevy"`
	CapByContract       int64                  `json:"capByContract"`
	MaxReduction        int64                  `json:"maxReduction"`
	AfterReduction      int64                  `json:"afterReduction"`
	Unallocated         int64                  `json:"unallocated"`
	SupplierReductions  []SupplierReductionDTO `json:"supplierReductions"`
	Disclaimer          string                 `json:"disclaimer"`
}

// ReductionResponse is the response of POST /api/reduction.
type ReductionResponse struct {
	RunID string `json:"runId"`
	Year  int    `json:"year"`
	ReductionResultDTO
}

// IncentiveSelectionDTO is one selected employee.
type IncentiveSelectionDTO struct {
	EmployeeID   string `json:"employeeId"`
	Severity     string `json:"severity"`
	Gender       string `json:"gender"`
	CappedAmount int64  `json:"cappedAmount"`
}

// IncentiveResultDTO is an incentive selection.
type IncentiveResultDTO struct {
	ThresholdCount       int                     `json:"thresholdCount"`
	EligibleCount        int                     `json:"eligibleCount"`
	Selected             []IncentiveSelectionDTO `json:"selected"`
	TotalIncentiveAmount int64                   `json:"totalIncentiveAmount"`
}

// IncentiveResponse is the response of POST /api/incentive/estimate.
type IncentiveResponse struct {
	RunID string `json:"runId"`
	Year  int    `json:"year"`
	IncentiveResultDTO
}

// AssessmentResponse is the response of POST /api/assessments.
type AssessmentResponse struct {
	RunID     string              `json:"runId"`
	Year      int                 `json:"year"`
	Levy      LevyResultDTO       `json:"levy"`
	Reduction *ReductionResultDTO `json:"reduction,omitempty"`
	Incentive IncentiveResultDTO  `json:"incentive"`
	NetLevy   int64               `json:"netLevy"`
}

// =============================================================================
// ADMIN TYPES
// =============================================================================

// YearConfigDTO is a provisioned year.
type YearConfigDTO struct {
	Year      int                    `json:"year"`
	Version   int                    `json:"version"`
	Config    factory.YearConfigJSON `json:"config"`
	CreatedAt string                 `json:"createdAt,omitempty"`
	UpdatedAt string                 `json:"updatedAt,omitempty"`
}

// RunDTO is a recorded calculation.
type RunDTO struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Year      int             `json:"year"`
	Input     json.RawMessage `json:"input"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt string          `json:"createdAt"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}

// =============================================================================
// CONVERSION
// =============================================================================

const hireDateLayout = "2006-01-02"

func (c CompanyDTO) toDomain() quota.CompanyContext {
	return quota.CompanyContext{
		TotalWorkforceCount: c.TotalWorkforceCount,
		Sector:              quota.Sector(strings.ToUpper(strings.TrimSpace(c.Sector))),
	}
}

func toEmployees(field string, dtos []EmployeeDTO) ([]quota.EmployeeRecord, error) {
	out := make([]quota.EmployeeRecord, 0, len(dtos))
	for i, d := range dtos {
		e := quota.EmployeeRecord{
			ID:            d.ID,
			Severity:      quota.Severity(strings.ToUpper(strings.TrimSpace(d.Severity))),
			Gender:        quota.Gender(strings.ToUpper(strings.TrimSpace(d.Gender))),
			MonthlyHours:  d.MonthlyHours,
			MonthlySalary: d.MonthlySalary,
		}
		if d.HireDate != "" {
			t, err := time.Parse(hireDateLayout, d.HireDate)
			if err != nil {
				return nil, &quota.InvalidInputError{
					Field:  fmt.Sprintf("%s[%d].hireDate", field, i),
					Reason: fmt.Sprintf("must be YYYY-MM-DD, got %q", d.HireDate),
				}
			}
			e.HireDate = t
		}
		out = append(out, e)
	}
	return out, nil
}

func toMonths(dtos []MonthlySnapshotDTO) ([]quota.MonthlySnapshot, error) {
	out := make([]quota.MonthlySnapshot, 0, len(dtos))
	for i, d := range dtos {
		employees, err := toEmployees(fmt.Sprintf("months[%d].employees", i), d.Employees)
		if err != nil {
			return nil, err
		}
		out = append(out, quota.MonthlySnapshot{
			Month:     time.Month(d.Month),
			Company:   d.Company.toDomain(),
			Employees: employees,
		})
	}
	return out, nil
}

func toLevyDTO(r quota.LevyResult) LevyResultDTO {
	return LevyResultDTO{
		QuotaRate:       json.Number(r.QuotaRate.String()),
		ObligatedCount:  r.ObligatedCount,
		RecognizedCount: json.Number(r.RecognizedCount.String()),
		Shortfall:       json.Number(r.Shortfall.String()),
		Tier:            string(r.Tier),
		MonthlyLevyBase: r.MonthlyLevyBase,
		EstimatedLevy:   r.EstimatedLevy,
	}
}

func toReductionDTO(r quota.ReductionResult) ReductionResultDTO {
	dto := ReductionResultDTO{
		TotalContractAmount: r.TotalContractAmount,
		CapByLevy:           r.CapByLevy,
		CapByContract:       r.CapByContract,
		MaxReduction:        r.MaxReduction,
		AfterReduction:      r.AfterReduction,
		Unallocated:         r.Unallocated,
		SupplierReductions:  make([]SupplierReductionDTO, 0, len(r.Allocations)),
		Disclaimer:          ReductionDisclaimer,
	}
	for _, a := range r.Allocations {
		dto.SupplierReductions = append(dto.SupplierReductions, SupplierReductionDTO{
			Index:          a.Index,
			ContractAmount: a.ContractAmount,
			Ratio:          json.Number(a.Ratio.String()),
			Reduction:      a.Reduction,
		})
	}
	return dto
}

func toIncentiveDTO(r quota.IncentiveResult) IncentiveResultDTO {
	dto := IncentiveResultDTO{
		ThresholdCount:       r.ThresholdCount,
		EligibleCount:        r.EligibleCount,
		Selected:             make([]IncentiveSelectionDTO, 0, len(r.Selected)),
		TotalIncentiveAmount: r.TotalIncentiveAmount,
	}
	for _, s := range r.Selected {
		dto.Selected = append(dto.Selected, IncentiveSelectionDTO{
			EmployeeID:   s.Employee.ID,
			Severity:     string(s.Employee.Severity),
			Gender:       string(s.Employee.Gender),
			CappedAmount: s.CappedAmount,
		})
	}
	return dto
}
