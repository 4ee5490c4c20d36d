package market

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantsaathi/market-intelligence/internal/domain/analysis"
	"github.com/plantsaathi/market-intelligence/internal/domain/catalog"
	"github.com/plantsaathi/market-intelligence/internal/domain/recommendation"
	"github.com/plantsaathi/market-intelligence/internal/domain/regional"
	"github.com/plantsaathi/market-intelligence/internal/domain/rules"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

type fakeFieldStore struct {
	fields map[string]*Field
	calls  atomic.Int64
}

func (f *fakeFieldStore) GetField(_ context.Context, id string) (*Field, error) {
	f.calls.Add(1)
	field, ok := f.fields[id]
	if !ok {
		return nil, errors.Newf(errors.CodeFieldNotFound, "field %s not found", id)
	}
	return field, nil
}

func (f *fakeFieldStore) ListFields(_ context.Context) ([]Field, error) {
	out := make([]Field, 0, len(f.fields))
	for _, field := range f.fields {
		out = append(out, *field)
	}
	return out, nil
}

type fakeWeather struct {
	forecast []analysis.ForecastDay
	err      error
	calls    atomic.Int64
}

func (f *fakeWeather) Forecast(_ context.Context, _, _ float64) ([]analysis.ForecastDay, error) {
	f.calls.Add(1)
	return f.forecast, f.err
}

type fakeDisease struct {
	detections []analysis.DiseaseDetection
	err        error
	calls      atomic.Int64
}

func (f *fakeDisease) Detections(_ context.Context, _ string) ([]analysis.DiseaseDetection, error) {
	f.calls.Add(1)
	return f.detections, f.err
}

type serviceFixture struct {
	svc     *Service
	store   *fakeFieldStore
	weather *fakeWeather
	disease *fakeDisease
	engine  *rules.Engine
	now     time.Time
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger := logging.NewNopLogger()

	cat, err := catalog.NewService(logger)
	require.NoError(t, err)
	engine, err := rules.NewEngine(cat, logger)
	require.NoError(t, err)
	reg, err := regional.NewService(logger)
	require.NoError(t, err)

	fx := &serviceFixture{
		store: &fakeFieldStore{fields: map[string]*Field{
			"f1": {
				ID: "f1", Name: "North Paddy", Region: "PB", CropType: "rice",
				Latitude: 30.9, Longitude: 75.8,
				NPK:           &analysis.NPKLevels{Nitrogen: 1.0, Phosphorus: 0.6, Potassium: 1.2},
				NPKConfidence: 0.9,
			},
		}},
		weather: &fakeWeather{forecast: []analysis.ForecastDay{
			{Precipitation: 10, TempMax: 30, TempMin: 20},
			{Precipitation: 20, TempMax: 31, TempMin: 21},
			{Precipitation: 75, TempMax: 28, TempMin: 20},
		}},
		disease: &fakeDisease{},
		engine:  engine,
		// mid January: well outside Punjab's monsoon window
		now: time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
	}

	cache := NewContextCache(DefaultTTL, DefaultMaxEntries, logger, nil)
	fx.svc = NewService(fx.store, fx.weather, fx.disease, cache, engine, reg, logger, nil)
	fx.svc.clock = func() time.Time { return fx.now }
	return fx
}

func TestAnalyzeField_FusesAllSignals(t *testing.T) {
	fx := newFixture(t)
	fx.disease.detections = []analysis.DiseaseDetection{{
		DiseaseName: "Rice Blast",
		DetectedAt:  fx.now.AddDate(0, 0, -10),
		Confidence:  0.85,
	}}

	fa, err := fx.svc.AnalyzeField(context.Background(), "f1")
	require.NoError(t, err)

	assert.Equal(t, "f1", fa.FieldID)
	assert.Equal(t, "PB", fa.Region)
	assert.Equal(t, "rice", fa.CropType)
	assert.Equal(t, fx.now, fa.AnalyzedAt)

	n, ok := fa.NPKDeficiencies[analysis.NutrientNitrogen]
	require.True(t, ok, "nitrogen 1.0 vs adequate 1.5 is deficient")
	assert.Equal(t, analysis.SeverityHigh, n.Severity)
	assert.NotContains(t, fa.NPKDeficiencies, analysis.NutrientPhosphorus, "0.6 vs 0.5 is adequate")

	require.Len(t, fa.DiseaseHistory, 1)
	assert.Equal(t, analysis.SeverityHigh, fa.DiseaseHistory[0].RecurrenceRisk)

	require.Len(t, fa.WeatherRisks, 1)
	assert.Equal(t, analysis.WeatherHeavyRain, fa.WeatherRisks[0].Type)
	assert.Equal(t, 2, fa.WeatherRisks[0].DaysUntil)

	assert.Equal(t, 50.0, fa.GrowthStage.Percentage, "no planting date falls back to default stage")
	assert.Greater(t, fa.DataQualityScore, 0.0)
}

func TestAnalyzeField_ServesFromCache(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first, err := fx.svc.AnalyzeField(ctx, "f1")
	require.NoError(t, err)
	second, err := fx.svc.AnalyzeField(ctx, "f1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, fx.store.calls.Load(), "providers hit once")
	assert.EqualValues(t, 1, fx.weather.calls.Load())
	assert.EqualValues(t, 1, fx.disease.calls.Load())
}

func TestRefreshAnalysis_RebuildsThroughProviders(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.AnalyzeField(ctx, "f1")
	require.NoError(t, err)

	fa, err := fx.svc.RefreshAnalysis(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "f1", fa.FieldID)
	assert.EqualValues(t, 2, fx.store.calls.Load(), "refresh bypasses the cached entry")
}

func TestAnalyzeField_NotFound(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.AnalyzeField(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeFieldNotFound))
}

func TestAnalyzeField_DegradesWhenCollaboratorsFail(t *testing.T) {
	fx := newFixture(t)
	fx.weather.err = errors.New(errors.CodeWeatherUnavailable, "timeout")
	fx.disease.err = errors.New(errors.CodeDiseaseUnavailable, "timeout")

	fa, err := fx.svc.AnalyzeField(context.Background(), "f1")
	require.NoError(t, err, "collaborator outages must not fail the analysis")
	assert.Empty(t, fa.WeatherRisks)
	assert.Empty(t, fa.DiseaseHistory)
	assert.NotEmpty(t, fa.NPKDeficiencies, "field-store signals still present")
}

func TestGenerateRecommendations_Pipeline(t *testing.T) {
	fx := newFixture(t)
	fx.disease.detections = []analysis.DiseaseDetection{{
		DiseaseName: "Stem Borer",
		DetectedAt:  fx.now.AddDate(0, 0, -7),
		Confidence:  0.8,
	}}

	recs, err := fx.svc.GenerateRecommendations(context.Background(), "f1")
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	assert.Equal(t, "fert_urea_001", recs[0].ProductID, "highest urgency first")
	assert.Equal(t, "rec_f1_fert_urea_001", recs[0].ID)

	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].UrgencyScore, recs[i].UrgencyScore, "sorted by urgency")
	}

	seen := map[string]bool{}
	for _, r := range recs {
		assert.False(t, seen[r.ProductID], "no duplicate products")
		seen[r.ProductID] = true
	}
	assert.True(t, seen["pest_chlorpyrifos_002"], "regional rice rule fires in PB")
	assert.True(t, seen["fung_copper_003"], "heavy rain rule fires")
}

func TestGenerateRecommendations_DropsRegionallyUnavailable(t *testing.T) {
	fx := newFixture(t)
	fx.store.fields["f2"] = &Field{ID: "f2", Name: "Backwater Plot", Region: "KL", CropType: "rice"}
	require.NoError(t, fx.engine.AddRule(rules.Rule{
		RuleID:  "rule_always_chlorpyrifos",
		Enabled: true,
		Mapping: rules.ProductMapping{
			ProductID: "pest_chlorpyrifos_002", Priority: recommendation.PriorityLow,
			BaseUrgency: 10, ConfidenceMultiplier: 1, ReasonTemplate: "x",
		},
	}))

	recs, err := fx.svc.GenerateRecommendations(context.Background(), "f2")
	require.NoError(t, err)
	for _, r := range recs {
		assert.NotEqual(t, "pest_chlorpyrifos_002", r.ProductID, "not sold in Kerala")
	}
}

func TestGenerateRecommendations_MonsoonBoost(t *testing.T) {
	fx := newFixture(t)
	// June: one month before Punjab's monsoon.
	fx.now = time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC)
	fx.weather.forecast = []analysis.ForecastDay{{Precipitation: 80, TempMax: 30, TempMin: 22}}

	recs, err := fx.svc.GenerateRecommendations(context.Background(), "f1")
	require.NoError(t, err)

	var copper *recommendation.Recommendation
	for i := range recs {
		if recs[i].ProductID == "fung_copper_003" {
			copper = &recs[i]
		}
	}
	require.NotNil(t, copper)
	assert.Equal(t, 80.0, copper.UrgencyScore, "base 65 plus monsoon boost")
	assert.Contains(t, copper.TimingGuidance, "before monsoon")
}

func TestRecommendationFilters(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	byCat, err := fx.svc.RecommendationsByCategory(ctx, "f1", catalog.CategoryFertilizer)
	require.NoError(t, err)
	require.NotEmpty(t, byCat)
	for _, r := range byCat {
		assert.Equal(t, catalog.CategoryFertilizer, r.Category)
	}

	byPri, err := fx.svc.RecommendationsByPriority(ctx, "f1", recommendation.PriorityCritical)
	require.NoError(t, err)
	for _, r := range byPri {
		assert.Equal(t, recommendation.PriorityCritical, r.Priority)
	}
}

func TestInvalidateDataSource_ForcesRebuild(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.AnalyzeField(ctx, "f1")
	require.NoError(t, err)
	require.EqualValues(t, 1, fx.store.calls.Load())

	token, err := fx.svc.InvalidateDataSource(ctx, SourceWeather)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, token, fx.svc.DataSourceVersions(ctx)[SourceWeather])

	_, err = fx.svc.AnalyzeField(ctx, "f1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, fx.store.calls.Load(), "bump forces a rebuild")
}

func TestInvalidateDataSource_UnknownSource(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.InvalidateDataSource(context.Background(), "satellite")
	assert.Error(t, err)
}

func TestAnalyzeAllFields_SkipsFailures(t *testing.T) {
	fx := newFixture(t)
	fx.store.fields["f2"] = &Field{ID: "f2", Name: "South Plot", Region: "TN", CropType: "maize"}

	all, err := fx.svc.AnalyzeAllFields(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "f1", all[0].FieldID, "sorted by field ID")
	assert.Equal(t, "f2", all[1].FieldID)
}

func TestGenerateAllRecommendations(t *testing.T) {
	fx := newFixture(t)
	fx.store.fields["f2"] = &Field{ID: "f2", Name: "South Plot", Region: "TN", CropType: "maize"}

	all, err := fx.svc.GenerateAllRecommendations(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "f1", all[0].FieldID, "sorted by field ID")
	assert.NotEmpty(t, all[0].Recommendations, "f1 has an NPK deficiency")
	assert.Equal(t, "f2", all[1].FieldID)
}

func TestWarmCache(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.svc.WarmCache(ctx, []string{"f1", "ghost"}))

	_, err := fx.svc.AnalyzeField(ctx, "f1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, fx.store.calls.Load(), "f1 warmed, ghost attempted, no re-fetch for f1")
}

func TestWarmCache_TruncatesToCacheCapacity(t *testing.T) {
	fx := newFixture(t)

	ids := make([]string, 0, DefaultMaxEntries+3)
	for i := 0; i < DefaultMaxEntries+3; i++ {
		ids = append(ids, fmt.Sprintf("ghost_%d", i))
	}
	require.NoError(t, fx.svc.WarmCache(context.Background(), ids))

	assert.EqualValues(t, DefaultMaxEntries, fx.store.calls.Load())
}
