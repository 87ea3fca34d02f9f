/*
handlers.go - HTTP API handlers for the levy engine

PURPOSE:
  Exposes the quota engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the assessment service.

ENDPOINTS:
  Years:
    GET    /api/years                  List provisioned years
    GET    /api/years/{year}           Get one year document
    PUT    /api/years/{year}           Provision or replace a year
    DELETE /api/years/{year}           Remove a year

  Calculations:
    POST   /api/levy/estimate          Monthly levy estimate
    POST   /api/levy/annual            Levy summed over reported months
    POST   /api/reduction              Linkage reduction
    POST   /api/incentive/estimate     Incentive selection
    POST   /api/assessments            Levy + reduction + incentive

  Runs:
    GET    /api/runs                   Recorded calculations (?kind=&limit=)
    GET    /api/runs/{id}              One recorded calculation

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/{id}/run     Run a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Year configs and runs
  - Service: Resolves years, runs the engine, records runs
  - Factory: Year document to YearConfig conversion

REQUEST FLOW:
  1. Decode the body strictly (unknown fields and trailing data rejected)
  2. Convert DTOs to engine types
  3. Call the assessment service
  4. Serialize response
  5. Map errors

ERROR HANDLING:
  Errors are returned as JSON {error, details, field}:
  - 400: Decode errors, invalid input, year not provisioned for a calculation
  - 404: Year or run resource not found
  - 500: Store failures

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenarios
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/levy-engine/assessment"
	"github.com/warp/levy-engine/factory"
	"github.com/warp/levy-engine/metrics"
	"github.com/warp/levy-engine/quota"
	"github.com/warp/levy-engine/store/sqlite"
)

// ReductionDisclaimer accompanies every reduction result.
const ReductionDisclaimer = "This is an estimate only. The actual linkage reduction is determined " +
	"case by case by the competent authority after review of the submitted contracts."

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *assessment.Service
	Factory *factory.YearConfigFactory
	Logger  *slog.Logger
}

// NewHandler creates a handler backed by store. Calculations resolve years
// from the store and record their runs in it.
func NewHandler(store *sqlite.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:   store,
		Service: assessment.NewService(store, store, logger),
		Factory: factory.NewYearConfigFactory(),
		Logger:  logger,
	}
}

// =============================================================================
// YEAR ENDPOINTS
// =============================================================================

// ListYears returns every provisioned year.
func (h *Handler) ListYears(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListYearConfigs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list years", err)
		return
	}

	dtos := make([]YearConfigDTO, 0, len(records))
	for _, rec := range records {
		dto, err := toYearConfigDTO(rec)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "stored year config is corrupt", err)
			return
		}
		dtos = append(dtos, dto)
	}
	metrics.ProvisionedYears.Set(float64(len(records)))
	writeJSON(w, http.StatusOK, dtos)
}

// GetYear returns one provisioned year.
func (h *Handler) GetYear(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	rec, err := h.Store.GetYearConfig(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get year", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("year %d is not provisioned", year), nil)
		return
	}

	dto, err := toYearConfigDTO(*rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stored year config is corrupt", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// PutYear provisions or replaces a year from a year document.
// The document's year may be omitted; if present it must match the path.
func (h *Handler) PutYear(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	var doc factory.YearConfigJSON
	if !decodeBody(w, r, &doc) {
		return
	}
	if doc.Year == 0 {
		doc.Year = year
	}
	if doc.Year != year {
		writeError(w, http.StatusBadRequest, "year mismatch",
			fmt.Errorf("path year %d, document year %d", year, doc.Year))
		return
	}

	cfg, err := h.Factory.FromDocument(doc)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if err := h.Store.SaveYearConfig(r.Context(), cfg); err != nil {
		writeEngineError(w, err)
		return
	}
	h.Logger.Info("year provisioned", "year", year)

	rec, err := h.Store.GetYearConfig(r.Context(), year)
	if err != nil || rec == nil {
		writeError(w, http.StatusInternalServerError, "failed to reload year", err)
		return
	}
	h.refreshProvisionedYears(r)

	dto, err := toYearConfigDTO(*rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stored year config is corrupt", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// DeleteYear removes a provisioned year.
func (h *Handler) DeleteYear(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	if err := h.Store.DeleteYearConfig(r.Context(), year); err != nil {
		if quota.IsNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete year", err)
		return
	}
	h.Logger.Info("year removed", "year", year)
	h.refreshProvisionedYears(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) refreshProvisionedYears(r *http.Request) {
	records, err := h.Store.ListYearConfigs(r.Context())
	if err != nil {
		h.Logger.Warn("failed to count provisioned years", "error", err)
		return
	}
	metrics.ProvisionedYears.Set(float64(len(records)))
}

// =============================================================================
// CALCULATION ENDPOINTS
// =============================================================================

// EstimateLevy handles POST /api/levy/estimate.
func (h *Handler) EstimateLevy(w http.ResponseWriter, r *http.Request) {
	var req LevyEstimateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	employees, err := toEmployees("employees", req.Employees)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	run, err := h.Service.EstimateLevy(r.Context(), assessment.LevyRequest{
		Year:      req.Year,
		Company:   req.Company.toDomain(),
		Employees: employees,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LevyEstimateResponse{
		RunID:         run.ID,
		Year:          run.Year,
		LevyResultDTO: toLevyDTO(run.Result),
	})
}

// EstimateAnnualLevy handles POST /api/levy/annual.
func (h *Handler) EstimateAnnualLevy(w http.ResponseWriter, r *http.Request) {
	var req AnnualLevyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	months, err := toMonths(req.Months)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	run, err := h.Service.EstimateAnnualLevy(r.Context(), assessment.AnnualLevyRequest{Year: req.Year, Months: months})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := AnnualLevyResponse{
		RunID:     run.ID,
		Year:      run.Year,
		Months:    make([]MonthlyLevyDTO, 0, len(run.Result.Months)),
		TotalLevy: run.Result.TotalLevy,
	}
	for _, m := range run.Result.Months {
		resp.Months = append(resp.Months, MonthlyLevyDTO{Month: int(m.Month), Levy: toLevyDTO(m.Levy)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// AggregateReduction handles POST /api/reduction.
func (h *Handler) AggregateReduction(w http.ResponseWriter, r *http.Request) {
	var req ReductionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.LevyAmount == nil {
		writeEngineError(w, &quota.InvalidInputError{Field: "levyAmount", Reason: "is required"})
		return
	}

	run, err := h.Service.AggregateReduction(r.Context(), assessment.ReductionRequest{
		Year:            req.Year,
		LevyAmount:      *req.LevyAmount,
		ContractAmounts: req.ContractAmounts,
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
}

// SelectIncentive handles POST /api/incentive/estimate.
func (h *Handler) SelectIncentive(w http.ResponseWriter, r *http.Request) {
	var req IncentiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	employees, err := toEmployees("employees", req.Employees)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	run, err := h.Service.SelectIncentive(r.Context(), assessment.IncentiveRequest{
		Year:      req.Year,
		Company:   req.Company.toDomain(),
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
}

// Assess handles POST /api/assessments.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	var req AssessmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	areq, err := req.toDomain()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.assess(w, r, areq)
}

func (h *Handler) assess(w http.ResponseWriter, r *http.Request, req assessment.AssessmentRequest) {
	run, err := h.Service.Assess(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssessmentResponse(run))
}

func (req AssessmentRequest) toDomain() (assessment.AssessmentRequest, error) {
	employees, err := toEmployees("employees", req.Employees)
	if err != nil {
		return assessment.AssessmentRequest{}, err
	}
	return assessment.AssessmentRequest{
		Year:            req.Year,
		Company:         req.Company.toDomain(),
		Employees:       employees,
		ContractAmounts: req.ContractAmounts,
	}, nil
}

func toAssessmentResponse(run assessment.Run[assessment.Assessment]) AssessmentResponse {
	resp := AssessmentResponse{
		RunID:     run.ID,
		Year:      run.Year,
		Levy:      toLevyDTO(run.Result.Levy),
		Incentive: toIncentiveDTO(run.Result.Incentive),
		NetLevy:   run.Result.NetLevy,
	}
	if run.Result.Reduction != nil {
		red := toReductionDTO(*run.Result.Reduction)
		resp.Reduction = &red
	}
	return resp
}

// =============================================================================
// RUN ENDPOINTS
// =============================================================================

// ListRuns returns recorded calculations, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	kind := sqlite.RunKind(r.URL.Query().Get("kind"))
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), kind, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one recorded calculation.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get run", err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// Healthz reports whether the store is reachable.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine and service errors to a status.
func writeEngineError(w http.ResponseWriter, err error) {
	var inv *quota.InvalidInputError
	var nf *quota.ConfigNotFoundError
	switch {
	case errors.As(err, &inv):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid input", Details: inv.Error(), Field: inv.Field})
	case errors.As(err, &nf):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "year not provisioned",
			Details: fmt.Sprintf("no levy configuration for year %d", nf.Year),
			Field:   "year",
		})
	case quota.IsClientError(err):
		writeError(w, http.StatusBadRequest, "invalid input", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

// decodeBody decodes exactly one JSON object, rejecting unknown fields.
// It writes a 400 and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeStrict(http.MaxBytesReader(w, r.Body, maxBodyBytes), dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func decodeStrict(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected additional JSON content")
	}
	return nil
}

func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year <= 0 {
		writeError(w, http.StatusBadRequest, "year must be a positive integer", err)
		return 0, false
	}
	return year, true
}

func toYearConfigDTO(rec sqlite.YearConfigRecord) (YearConfigDTO, error) {
	dto := YearConfigDTO{
		Year:      rec.Year,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
	}
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &dto.Config); err != nil {
		return YearConfigDTO{}, err
	}
	return dto, nil
}

func toRunDTO(run sqlite.RunRecord) RunDTO {
	dto := RunDTO{
		ID:        run.ID,
		Kind:      string(run.Kind),
		Year:      run.Year,
		Input:     json.RawMessage(run.InputJSON),
		Error:     run.Error,
		CreatedAt: run.CreatedAt.Format(time.RFC3339),
	}
	if run.ResultJSON != "" {
		dto.Result = json.RawMessage(run.ResultJSON)
	}
	return dto
}
