package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_AllRun(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios", "")
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]ScenarioDTO](t, rec)
	require.Len(t, listed, len(scenarios))

	for _, s := range listed {
		t.Run(s.ID, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/scenarios/"+s.ID+"/run", "")
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}
}

func TestScenario_SevereDoubleCount(t *testing.T) {
	// GIVEN: 3 full-time severe employees (weight 6) and 1 mild among 300 staff
	router, _ := newTestRouter(t)

	// WHEN: Running the scenario
	rec := do(t, router, http.MethodPost, "/api/scenarios/severe-double-count/run", "")

	// THEN: 7 of 9 recognized lands in the high tier with 2 short
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[AssessmentResponse](t, rec)
	assert.Equal(t, "7", resp.Levy.RecognizedCount.String())
	assert.Equal(t, "high", resp.Levy.Tier)
	assert.Equal(t, int64(2*1_288_000), resp.Levy.EstimatedLevy)
}

func TestScenario_AnnualWithHire(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/annual-with-hire/run", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[AnnualLevyResponse](t, rec)
	require.Len(t, resp.Months, 3)
	// January: 2 of 9 recognized; from February the severe hire adds 2
	assert.Equal(t, "2", resp.Months[0].Levy.RecognizedCount.String())
	assert.Equal(t, "4", resp.Months[1].Levy.RecognizedCount.String())
	assert.Equal(t, "4", resp.Months[2].Levy.RecognizedCount.String())
}

func TestScenario_Unknown(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/nope/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
