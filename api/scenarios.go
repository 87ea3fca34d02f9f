/*
scenarios.go - Demo scenarios for testing and demonstrations

PURPOSE:

	Provides pre-built company profiles that exercise the engine end to end
	against the 2025 configuration. Each scenario runs one calculation
	through the assessment service, so it is recorded like any other run.

AVAILABLE SCENARIOS:

	small-manufacturer:  300 staff, 3 mild employees, mid-low tier
	severe-double-count: Full-time severe employees count twice, high tier
	public-agency:       Public-sector quota rate
	linkage-reduction:   10M levy offset by two 5M subcontracts
	incentive-employer:  Employer above the incentive threshold
	annual-with-hire:    Quarter with a hire at the end of February

USAGE VIA API:

	GET  /api/scenarios
	POST /api/scenarios/linkage-reduction/run

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' with ID, name, description and a run function
 2. Use the Handler's response helpers so the output matches the
    corresponding calculation endpoint

NOTE:

	Scenarios need year 2025 to be provisioned (the built-in presets).

SEE ALSO:
  - handlers.go: ListScenarios, RunScenario handlers
  - factory/presets.yaml: Built-in years
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/levy-engine/assessment"
	"github.com/warp/levy-engine/quota"
)

const scenarioYear = 2025

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	run func(h *Handler, w http.ResponseWriter, r *http.Request)
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "small-manufacturer",
			Name:        "Small Manufacturer",
			Description: "300 private-sector staff with 3 mild disability employees: 9 obligated, mid-low tier",
			Category:    "levy",
		},
		run: func(h *Handler, w http.ResponseWriter, r *http.Request) {
			h.assess(w, r, assessment.AssessmentRequest{
				Year:      scenarioYear,
				Company:   quota.CompanyContext{TotalWorkforceCount: 300, Sector: quota.SectorPrivate},
				Employees: demoEmployees("m", 3, quota.SeverityMild, 160),
			})
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "severe-double-count",
			Name:        "Severe Double Count",
			Description: "3 full-time severe employees weigh 6; with 1 mild employee 7 of 9 are recognized",
			Category:    "levy",
		},
		run: func(h *Handler, w http.ResponseWriter, r *http.Request) {
			employees := demoEmployees("s", 3, quota.SeveritySevere, 160)
			employees = append(employees, demoEmployees("m", 1, quota.SeverityMild, 160)...)
			h.assess(w, r, assessment.AssessmentRequest{
				Year:      scenarioYear,
				Company:   quota.CompanyContext{TotalWorkforceCount: 300, Sector: quota.SectorPrivate},
				Employees: employees,
			})
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "public-agency",
			Name:        "Public Agency",
			Description: "500 staff under the public-sector rate with 5 mild employees",
			Category:    "levy",
		},
		run: func(h *Handler, w http.ResponseWriter, r *http.Request) {
			h.assess(w, r, assessment.AssessmentRequest{
				Year:      scenarioYear,
				Company:   quota.CompanyContext{TotalWorkforceCount: 500, Sector: quota.SectorPublic},
				Employees: demoEmployees("m", 5, quota.SeverityMild, 160),
			})
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "linkage-reduction",
			Name:        "Linkage Reduction",
			Description: "A 10,000,000 levy with two 5,000,000 subcontracts: the contract cap binds",
			Category:    "reduction",
		},
		run: func(h *Handler, w http.ResponseWriter, r *http.Request) {
			run, err := h.Service.AggregateReduction(r.Context(), assessment.ReductionRequest{
				Year:            scenarioYear,
				LevyAmount:      10_000_000,
				ContractAmounts: []int64{5_000_000, 5_000_000},
			})
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, ReductionResponse{
				RunID:              run.ID,
				Year:               run.Year,
				ReductionResultDTO: toReductionDTO(run.Result),
			})
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "incentive-employer",
			Name:        "Incentive Employer",
			Description: "50 staff with 5 disability employees: 3 above the incentive threshold",
			Category:    "incentive",
		},
		run: func(h *Handler, w http.ResponseWriter, r *http.Request) {
			employees := demoEmployees("s", 2, quota.SeveritySevere, 160)
			employees = append(employees, demoEmployees("m", 3, quota.SeverityMild, 120)...)
			employees[1].Gender = quota.GenderFemale
			employees[4].MonthlySalary = 400_000
			run, err := h.Service.SelectIncentive(r.Context(), assessment.IncentiveRequest{
				Year:      scenarioYear,
				Company:   quota.CompanyContext{TotalWorkforceCount: 50, Sector: quota.SectorPrivate},
				Employees: employees,
			})
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, IncentiveResponse{
				RunID:              run.ID,
				Year:               run.Year,
				IncentiveResultDTO: toIncentiveDTO(run.Result),
			})
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "annual-with-hire",
			Name:        "Annual With Hire",
			Description: "First quarter of a 300-staff company that hires a severe employee on 28 February",
			Category:    "levy",
		},
		run: func(h *Handler, w http.ResponseWriter, r *http.Request) {
			staff := demoEmployees("m", 2, quota.SeverityMild, 160)
			hire := demoEmployees("s", 1, quota.SeveritySevere, 160)[0]
			hire.ID = "s-new"
			hire.HireDate = time.Date(scenarioYear, time.February, 28, 0, 0, 0, 0, time.UTC)
			employees := append(staff, hire)

			company := quota.CompanyContext{TotalWorkforceCount: 300, Sector: quota.SectorPrivate}
			var months []quota.MonthlySnapshot
			for m := time.January; m <= time.March; m++ {
				months = append(months, quota.MonthlySnapshot{Month: m, Company: company, Employees: employees})
			}

			run, err := h.Service.EstimateAnnualLevy(r.Context(), assessment.AnnualLevyRequest{Year: scenarioYear, Months: months})
			if err != nil {
				writeEngineError(w, err)
				return
			}
			resp := AnnualLevyResponse{RunID: run.ID, Year: run.Year, TotalLevy: run.Result.TotalLevy}
			for _, m := range run.Result.Months {
				resp.Months = append(resp.Months, MonthlyLevyDTO{Month: int(m.Month), Levy: toLevyDTO(m.Levy)})
			}
			writeJSON(w, http.StatusOK, resp)
		},
	},
}

func demoEmployees(prefix string, n int, sev quota.Severity, hours int64) []quota.EmployeeRecord {
	out := make([]quota.EmployeeRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, quota.EmployeeRecord{
			ID:            prefix + "-" + string(rune('0'+i)),
			Severity:      sev,
			Gender:        quota.GenderMale,
			MonthlyHours:  decimal.NewFromInt(hours),
			MonthlySalary: 2_500_000,
			HireDate:      time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

// =============================================================================
// SCENARIO ENDPOINTS
// =============================================================================

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		dtos = append(dtos, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunScenario runs one demo scenario.
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, s := range scenarios {
		if s.ID == id {
			s.run(h, w, r)
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown scenario: "+id, nil)
}
