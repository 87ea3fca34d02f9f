/*
Package assessment runs quota calculations for a year and records them.

PURPOSE:
  The quota package is pure: it needs a YearConfig and returns a result.
  Callers think in years, not configs. Service is the glue between the two:

  1. Resolve the year's configuration
  2. Run the engine
  3. Record the run (input, result or error) for later audit
  4. Log and update metrics

  Engine errors are returned unchanged so callers can still use errors.Is
  with quota.ErrInvalidInput and quota.ErrConfigNotFound.

RECORDING:
  A Recorder is optional. When recording fails, the calculation is still
  returned; the failure is logged and counted. A run is a receipt, not a
  precondition.

USAGE:
  svc := assessment.NewService(store, store, logger)
  run, err := svc.EstimateLevy(ctx, assessment.LevyRequest{
      Year:      2025,
      Company:   quota.CompanyContext{TotalWorkforceCount: 300, Sector: quota.SectorPrivate},
      Employees: employees,
  })
  fmt.Println(run.ID, run.Result.EstimatedLevy)

SEE ALSO:
  - quota/: Calculation engine
  - store/sqlite/sqlite.go: Resolver and Recorder implementation
*/
package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/warp/levy-engine/metrics"
	"github.com/warp/levy-engine/quota"
	"github.com/warp/levy-engine/store/sqlite"
)

// Recorder persists calculation runs.
type Recorder interface {
	SaveRun(ctx context.Context, run sqlite.RunRecord) error
}

// Service resolves year configs, runs the engine and records each run.
type Service struct {
	Resolver quota.Resolver
	Recorder Recorder // optional
	Logger   *slog.Logger

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string
}

// NewService creates a service. recorder may be nil.
func NewService(resolver quota.Resolver, recorder Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Resolver: resolver,
		Recorder: recorder,
		Logger:   logger,
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}

// =============================================================================
// REQUESTS AND RESULTS
// =============================================================================

// LevyRequest asks for one month's levy estimate.
type LevyRequest struct {
	Year      int                    `json:"year"`
	Company   quota.CompanyContext   `json:"company"`
	Employees []quota.EmployeeRecord `json:"employees"`
}

// AnnualLevyRequest asks for the levy summed over reported months.
type AnnualLevyRequest struct {
	Year   int                     `json:"year"`
	Months []quota.MonthlySnapshot `json:"months"`
}

// ReductionRequest asks for the linkage reduction of a levy.
type ReductionRequest struct {
	Year            int     `json:"year"`
	LevyAmount      int64   `json:"levyAmount"`
	ContractAmounts []int64 `json:"contractAmounts"`
}

// IncentiveRequest asks for the incentive selection of a company.
type IncentiveRequest struct {
	Year      int                    `json:"year"`
	Company   quota.CompanyContext   `json:"company"`
	Employees []quota.EmployeeRecord `json:"employees"`
}

// AssessmentRequest combines levy, reduction and incentive for one company.
// ContractAmounts is optional; without it no reduction is computed.
type AssessmentRequest struct {
	Year            int                    `json:"year"`
	Company         quota.CompanyContext   `json:"company"`
	Employees       []quota.EmployeeRecord `json:"employees"`
	ContractAmounts []int64                `json:"contractAmounts,omitempty"`
}

// Assessment is the combined result for one company and month.
type Assessment struct {
	Levy      quota.LevyResult       `json:"levy"`
	Reduction *quota.ReductionResult `json:"reduction"`
	Incentive quota.IncentiveResult  `json:"incentive"`

	// NetLevy is the levy after the linkage reduction, if any.
	NetLevy int64 `json:"netLevy"`
}

// Run is a recorded calculation and its result.
type Run[T any] struct {
	ID        string
	Kind      sqlite.RunKind
	Year      int
	CreatedAt time.Time
	Result    T
}

// =============================================================================
// OPERATIONS
// =============================================================================

// EstimateLevy estimates one month's levy.
func (s *Service) EstimateLevy(ctx context.Context, req LevyRequest) (Run[quota.LevyResult], error) {
	run, err := execute(ctx, s, sqlite.RunLevy, req.Year, req, func(cfg quota.YearConfig) (quota.LevyResult, error) {
		return quota.EstimateLevy(req.Company, req.Employees, cfg)
	})
	if err != nil {
		return run, err
	}
	observeLevy(run.Result)
	s.Logger.Info("levy estimated",
		"run_id", run.ID,
		"year", run.Year,
		"tier", run.Result.Tier,
		"obligated", run.Result.ObligatedCount,
		"recognized", run.Result.RecognizedCount.String(),
		"estimated_levy", run.Result.EstimatedLevy,
	)
	return run, nil
}

// EstimateAnnualLevy estimates and sums the levy of each reported month.
func (s *Service) EstimateAnnualLevy(ctx context.Context, req AnnualLevyRequest) (Run[quota.AnnualLevyResult], error) {
	run, err := execute(ctx, s, sqlite.RunAnnualLevy, req.Year, req, func(cfg quota.YearConfig) (quota.AnnualLevyResult, error) {
		return quota.EstimateAnnualLevy(req.Months, cfg)
	})
	if err != nil {
		return run, err
	}
	for _, m := range run.Result.Months {
		observeLevy(m.Levy)
	}
	s.Logger.Info("annual levy estimated",
		"run_id", run.ID,
		"year", run.Year,
		"months", len(run.Result.Months),
		"total_levy", run.Result.TotalLevy,
	)
	return run, nil
}

// AggregateReduction computes the linkage reduction of a levy.
func (s *Service) AggregateReduction(ctx context.Context, req ReductionRequest) (Run[quota.ReductionResult], error) {
	run, err := execute(ctx, s, sqlite.RunReduction, req.Year, req, func(cfg quota.YearConfig) (quota.ReductionResult, error) {
		return quota.AggregateReduction(req.LevyAmount, req.ContractAmounts, cfg)
	})
	if err != nil {
		return run, err
	}
	observeReduction(run.Result)
	s.Logger.Info("reduction computed",
		"run_id", run.ID,
		"year", run.Year,
		"contracts", len(run.Result.Allocations),
		"max_reduction", run.Result.MaxReduction,
		"unallocated", run.Result.Unallocated,
	)
	return run, nil
}

// SelectIncentive selects the employees eligible for incentive.
func (s *Service) SelectIncentive(ctx context.Context, req IncentiveRequest) (Run[quota.IncentiveResult], error) {
	run, err := execute(ctx, s, sqlite.RunIncentive, req.Year, req, func(cfg quota.YearConfig) (quota.IncentiveResult, error) {
		return selectIncentive(req.Company, req.Employees, cfg)
	})
	if err != nil {
		return run, err
	}
	metrics.IncentiveEligible.Observe(float64(run.Result.EligibleCount))
	s.Logger.Info("incentive selected",
		"run_id", run.ID,
		"year", run.Year,
		"threshold", run.Result.ThresholdCount,
		"eligible", run.Result.EligibleCount,
		"total_incentive", run.Result.TotalIncentiveAmount,
	)
	return run, nil
}

// Assess runs levy, reduction (when contracts are given) and incentive
// against a single resolution of the year.
func (s *Service) Assess(ctx context.Context, req AssessmentRequest) (Run[Assessment], error) {
	run, err := execute(ctx, s, sqlite.RunAssessment, req.Year, req, func(cfg quota.YearConfig) (Assessment, error) {
		return assess(req, cfg)
	})
	if err != nil {
		return run, err
	}
	observeLevy(run.Result.Levy)
	if run.Result.Reduction != nil {
		observeReduction(*run.Result.Reduction)
	}
	metrics.IncentiveEligible.Observe(float64(run.Result.Incentive.EligibleCount))
	s.Logger.Info("assessment completed",
		"run_id", run.ID,
		"year", run.Year,
		"estimated_levy", run.Result.Levy.EstimatedLevy,
		"net_levy", run.Result.NetLevy,
		"total_incentive", run.Result.Incentive.TotalIncentiveAmount,
	)
	return run, nil
}

func assess(req AssessmentRequest, cfg quota.YearConfig) (Assessment, error) {
	levy, err := quota.EstimateLevy(req.Company, req.Employees, cfg)
	if err != nil {
		return Assessment{}, err
	}
	out := Assessment{Levy: levy, NetLevy: levy.EstimatedLevy}

	if len(req.ContractAmounts) > 0 {
		red, err := quota.AggregateReduction(levy.EstimatedLevy, req.ContractAmounts, cfg)
		if err != nil {
			return Assessment{}, err
		}
		out.Reduction = &red
		out.NetLevy = red.AfterReduction
	}

	if out.Incentive, err = selectIncentive(req.Company, req.Employees, cfg); err != nil {
		return Assessment{}, err
	}
	return out, nil
}

func selectIncentive(company quota.CompanyContext, employees []quota.EmployeeRecord, cfg quota.YearConfig) (quota.IncentiveResult, error) {
	rate, err := cfg.QuotaRate(company.Sector)
	if err != nil {
		return quota.IncentiveResult{}, err
	}
	return quota.SelectIncentiveEligible(employees, company.TotalWorkforceCount, rate, cfg.Incentive)
}

// =============================================================================
// EXECUTION
// =============================================================================

// execute resolves the year, runs calc and records the outcome.
func execute[T any](ctx context.Context, s *Service, kind sqlite.RunKind, year int, input any, calc func(quota.YearConfig) (T, error)) (Run[T], error) {
	start := time.Now()
	run := Run[T]{ID: s.NewID(), Kind: kind, Year: year, CreatedAt: s.Now()}

	cfg, err := s.Resolver.Resolve(ctx, year)
	if err == nil {
		run.Result, err = calc(cfg)
	}
	metrics.CalculationDurationSeconds.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	s.record(ctx, run.ID, kind, year, run.CreatedAt, input, run.Result, err)

	if err != nil {
		metrics.CalculationErrorsTotal.WithLabelValues(string(kind), errorReason(err)).Inc()
		s.Logger.Warn("calculation failed",
			"run_id", run.ID,
			"kind", kind,
			"year", year,
			"error", err,
		)
		return Run[T]{}, err
	}
	metrics.CalculationsTotal.WithLabelValues(string(kind)).Inc()
	return run, nil
}

func (s *Service) record(ctx context.Context, id string, kind sqlite.RunKind, year int, at time.Time, input, result any, calcErr error) {
	if s.Recorder == nil {
		return
	}

	rec := sqlite.RunRecord{ID: id, Kind: kind, Year: year, CreatedAt: at}
	in, err := json.Marshal(input)
	if err != nil {
		s.recordFailed(id, err)
		return
	}
	rec.InputJSON = string(in)

	if calcErr != nil {
		rec.Error = calcErr.Error()
	} else {
		out, err := json.Marshal(result)
		if err != nil {
			s.recordFailed(id, err)
			return
		}
		rec.ResultJSON = string(out)
	}

	if err := s.Recorder.SaveRun(ctx, rec); err != nil {
		s.recordFailed(id, err)
	}
}

func (s *Service) recordFailed(id string, err error) {
	metrics.RunRecordFailuresTotal.Inc()
	s.Logger.Error("failed to record run", "run_id", id, "error", err)
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, quota.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, quota.ErrConfigNotFound):
		return "config_not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

func observeLevy(r quota.LevyResult) {
	metrics.LevyEstimated.Observe(float64(r.EstimatedLevy))
	metrics.LevyTierTotal.WithLabelValues(string(r.Tier)).Inc()
	metrics.ShortfallHeadcount.Observe(r.Shortfall.InexactFloat64())
}

func observeReduction(r quota.ReductionResult) {
	metrics.ReductionGranted.Observe(float64(r.MaxReduction))
	metrics.ReductionUnallocated.Add(float64(r.Unallocated))
}
