package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/levy-engine/factory"
	"github.com/warp/levy-engine/quota"
	"github.com/warp/levy-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestYearConfig_SaveAndResolve(t *testing.T) {
	// GIVEN: The 2025 preset saved to the store
	store := newStore(t)
	ctx := context.Background()
	cfg := factory.MustPreset(2025)
	require.NoError(t, store.SaveYearConfig(ctx, cfg))

	// WHEN: Resolving 2025
	got, err := store.Resolve(ctx, 2025)

	// THEN: The stored config comes back unchanged
	require.NoError(t, err)
	assert.Equal(t, cfg.BaseLevyAmount, got.BaseLevyAmount)
	assert.Equal(t, cfg.LevyTiers, got.LevyTiers)
	assert.True(t, cfg.PrivateQuotaRate.Equal(got.PrivateQuotaRate))
	assert.True(t, cfg.MaxReductionByContract.Equal(got.MaxReductionByContract))
	assert.Len(t, got.Incentive.Rates, len(cfg.Incentive.Rates))
}

func TestYearConfig_ResolveMissingYear(t *testing.T) {
	store := newStore(t)

	_, err := store.Resolve(context.Background(), 2019)

	assert.ErrorIs(t, err, quota.ErrConfigNotFound)
	var nf *quota.ConfigNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 2019, nf.Year)
}

func TestYearConfig_ReplaceBumpsVersion(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	cfg := factory.MustPreset(2024)
	require.NoError(t, store.SaveYearConfig(ctx, cfg))

	cfg.BaseLevyAmount = 1_260_000
	require.NoError(t, store.SaveYearConfig(ctx, cfg))

	rec, err := store.GetYearConfig(ctx, 2024)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.Version)

	got, err := store.Resolve(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(1_260_000), got.BaseLevyAmount)
}

func TestYearConfig_SaveRejectsInvalidConfig(t *testing.T) {
	store := newStore(t)
	cfg := factory.MustPreset(2024)
	cfg.BaseLevyAmount = -1

	err := store.SaveYearConfig(context.Background(), cfg)
	assert.ErrorIs(t, err, quota.ErrInvalidInput)

	rec, err := store.GetYearConfig(context.Background(), 2024)
	require.NoError(t, err)
	assert.Nil(t, rec, "invalid config must not be stored")
}

func TestYearConfig_ListAndDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	presets, err := factory.Presets()
	require.NoError(t, err)
	added, err := store.SeedYearConfigs(ctx, presets)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025}, added)

	// Seeding again adds nothing
	added, err = store.SeedYearConfigs(ctx, presets)
	require.NoError(t, err)
	assert.Empty(t, added)

	records, err := store.ListYearConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2024, records[0].Year)
	assert.Equal(t, 2025, records[1].Year)

	require.NoError(t, store.DeleteYearConfig(ctx, 2024))
	assert.ErrorIs(t, store.DeleteYearConfig(ctx, 2024), quota.ErrConfigNotFound)

	_, err = store.Resolve(ctx, 2024)
	assert.ErrorIs(t, err, quota.ErrConfigNotFound)
}

func TestRuns_SaveGetList(t *testing.T) {
	// GIVEN: Three runs of two kinds recorded a second apart
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	runs := []sqlite.RunRecord{
		{ID: "run-1", Kind: sqlite.RunLevy, Year: 2025, InputJSON: `{"a":1}`, ResultJSON: `{"estimatedLevy":0}`, CreatedAt: base},
		{ID: "run-2", Kind: sqlite.RunReduction, Year: 2025, InputJSON: `{"b":2}`, ResultJSON: `{"maxReduction":10}`, CreatedAt: base.Add(time.Second)},
		{ID: "run-3", Kind: sqlite.RunLevy, Year: 2024, InputJSON: `{"c":3}`, Error: "invalid input", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, r := range runs {
		require.NoError(t, store.SaveRun(ctx, r))
	}

	// WHEN/THEN: A single run round-trips
	got, err := store.GetRun(ctx, "run-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sqlite.RunReduction, got.Kind)
	assert.Equal(t, `{"maxReduction":10}`, got.ResultJSON)
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Second)))

	missing, err := store.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Listing is newest first and filters by kind
	all, err := store.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-3", all[0].ID)
	assert.Equal(t, "invalid input", all[0].Error)
	assert.Empty(t, all[0].ResultJSON)

	levy, err := store.ListRuns(ctx, sqlite.RunLevy, 1)
	require.NoError(t, err)
	require.Len(t, levy, 1)
	assert.Equal(t, "run-3", levy[0].ID)

	// Duplicate IDs are rejected
	assert.Error(t, store.SaveRun(ctx, runs[0]))
}

func TestReset(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveYearConfig(ctx, factory.MustPreset(2024)))
	require.NoError(t, store.SaveRun(ctx, sqlite.RunRecord{ID: "r", Kind: sqlite.RunLevy, Year: 2024, InputJSON: "{}"}))

	require.NoError(t, store.Reset(ctx))

	records, err := store.ListYearConfigs(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	runs, err := store.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
