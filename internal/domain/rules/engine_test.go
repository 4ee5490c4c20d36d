package rules

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantsaathi/market-intelligence/internal/domain/analysis"
	"github.com/plantsaathi/market-intelligence/internal/domain/catalog"
	"github.com/plantsaathi/market-intelligence/internal/domain/recommendation"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cat, err := catalog.NewService(logging.NewNopLogger())
	require.NoError(t, err)
	e, err := NewEngine(cat, logging.NewNopLogger())
	require.NoError(t, err)
	return e
}

func baseAnalysis() *analysis.FieldAnalysis {
	fa := &analysis.FieldAnalysis{
		FieldID:         "f1",
		FieldName:       "North Paddy",
		Region:          "PB",
		CropType:        "rice",
		NPKDeficiencies: map[string]analysis.NPKDeficiency{},
		AnalyzedAt:      time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC),
	}
	return fa
}

func findRec(recs []recommendation.Recommendation, productID string) *recommendation.Recommendation {
	for i := range recs {
		if recs[i].ProductID == productID {
			return &recs[i]
		}
	}
	return nil
}

func TestEvaluate_HighNitrogenDeficiency(t *testing.T) {
	e := newTestEngine(t)

	fa := baseAnalysis()
	fa.NPKDeficiencies[analysis.NutrientNitrogen] = analysis.NPKDeficiency{
		Level: 1.0, Severity: analysis.SeverityHigh, Confidence: 0.9,
	}
	fa.ComputeDataQuality()

	recs := e.Evaluate(fa)
	urea := findRec(recs, "fert_urea_001")
	require.NotNil(t, urea, "severe nitrogen deficiency must surface urea")

	assert.Equal(t, "rec_f1_fert_urea_001", urea.ID)
	assert.Equal(t, recommendation.PriorityCritical, urea.Priority)
	assert.Equal(t, 80.0, urea.UrgencyScore)
	assert.InDelta(t, 0.9, urea.Confidence, 1e-9, "min(quality, signal) x 1.0")
	assert.Contains(t, urea.Reason, "1.00")
	assert.Contains(t, urea.Reason, "high")
	assert.True(t, urea.RegionalAvailable)
	assert.Equal(t, []string{"f1"}, urea.FieldsNeeding)
}

func TestEvaluate_MinSeverityGatesLowerTiers(t *testing.T) {
	e := newTestEngine(t)

	fa := baseAnalysis()
	fa.NPKDeficiencies[analysis.NutrientNitrogen] = analysis.NPKDeficiency{
		Level: 1.4, Severity: analysis.SeverityLow, Confidence: 0.9,
	}
	fa.ComputeDataQuality()

	recs := e.Evaluate(fa)
	assert.Nil(t, findRec(recs, "fert_urea_001"), "high-only rule must not fire on low severity")
	assert.Nil(t, findRec(recs, "fert_vermicompost_004"), "medium-gated rule must not fire on low severity")
}

func TestEvaluate_DiseaseSubstringCaseInsensitive(t *testing.T) {
	e := newTestEngine(t)

	fa := baseAnalysis()
	fa.DiseaseHistory = []analysis.DiseaseRecord{{
		DiseaseName:    "Rice Blast",
		LastDetected:   fa.AnalyzedAt.AddDate(0, 0, -12),
		RecurrenceRisk: analysis.SeverityHigh,
		Confidence:     0.85,
	}}
	fa.ComputeDataQuality()

	recs := e.Evaluate(fa)
	rec := findRec(recs, "fung_tricyclazole_001")
	require.NotNil(t, rec, `"blast" condition must match "Rice Blast"`)
	assert.Contains(t, rec.Reason, "Rice Blast")
	assert.Contains(t, rec.Reason, "12 days ago")
}

func TestEvaluate_WeatherTemplateFill(t *testing.T) {
	e := newTestEngine(t)

	fa := baseAnalysis()
	fa.WeatherRisks = []analysis.WeatherRisk{{
		Type: analysis.WeatherHeavyRain, Probability: 0.75, DaysUntil: 2, Confidence: 0.8,
	}}
	fa.ComputeDataQuality()

	recs := e.Evaluate(fa)
	rec := findRec(recs, "fung_copper_003")
	require.NotNil(t, rec)
	assert.Contains(t, rec.Reason, "in 2 days")
}

func TestEvaluate_CropAndRegionConditions(t *testing.T) {
	e := newTestEngine(t)

	fa := baseAnalysis() // rice in PB
	fa.DiseaseHistory = []analysis.DiseaseRecord{{
		DiseaseName:  "Stem Borer",
		LastDetected: fa.AnalyzedAt.AddDate(0, 0, -5),
		Confidence:   0.8,
	}}
	fa.ComputeDataQuality()

	recs := e.Evaluate(fa)
	require.NotNil(t, findRec(recs, "pest_chlorpyrifos_002"))

	fa.CropType = "wheat"
	recs = e.Evaluate(fa)
	assert.Nil(t, findRec(recs, "pest_chlorpyrifos_002"), "crop condition must gate the rule")

	fa.CropType = "rice"
	fa.Region = "TN"
	recs = e.Evaluate(fa)
	assert.Nil(t, findRec(recs, "pest_chlorpyrifos_002"), "region condition must gate the rule")
}

func TestEvaluate_GrowthStageRange(t *testing.T) {
	e := newTestEngine(t)

	fa := baseAnalysis()
	fa.GrowthStage = analysis.GrowthStage{
		Percentage: 50, StageName: "Flowering", DaysToHarvest: 60, Confidence: 0.8,
	}
	fa.ComputeDataQuality()

	recs := e.Evaluate(fa)
	rec := findRec(recs, "micro_boron_002")
	require.NotNil(t, rec)
	assert.Contains(t, rec.Reason, "Flowering")
	assert.Contains(t, rec.Reason, "60 days to harvest")

	fa.GrowthStage.Percentage = 80
	recs = e.Evaluate(fa)
	assert.Nil(t, findRec(recs, "micro_boron_002"))
}

func TestEvaluate_DisabledRuleNeverFires(t *testing.T) {
	e := newTestEngine(t)

	fa := baseAnalysis()
	fa.DiseaseHistory = []analysis.DiseaseRecord{{
		DiseaseName:  "Aphid infestation",
		LastDetected: fa.AnalyzedAt.AddDate(0, 0, -3),
		Confidence:   0.7,
	}}
	fa.ComputeDataQuality()

	recs := e.Evaluate(fa)
	assert.Nil(t, findRec(recs, "pest_neem_001"))
}

func TestEvaluate_UnknownProductSkipped(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AddRule(Rule{
		RuleID:  "rule_ghost_product",
		Enabled: true,
		Conditions: Conditions{
			NPKDeficiency: &NPKCondition{Nutrient: analysis.NutrientNitrogen},
		},
		Mapping: ProductMapping{
			ProductID:            "no_such_product",
			Priority:             recommendation.PriorityLow,
			BaseUrgency:          10,
			ConfidenceMultiplier: 1,
			ReasonTemplate:       "n/a",
		},
	}))

	fa := baseAnalysis()
	fa.NPKDeficiencies[analysis.NutrientNitrogen] = analysis.NPKDeficiency{
		Level: 1.0, Severity: analysis.SeverityHigh, Confidence: 0.9,
	}
	fa.ComputeDataQuality()

	recs := e.Evaluate(fa)
	assert.Nil(t, findRec(recs, "no_such_product"))
	assert.NotNil(t, findRec(recs, "fert_urea_001"), "other rules still evaluate")
}

func TestEvaluate_ConfidenceClampedAtOne(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AddRule(Rule{
		RuleID:  "rule_overconfident",
		Enabled: true,
		Conditions: Conditions{
			NPKDeficiency: &NPKCondition{Nutrient: analysis.NutrientPotassium},
		},
		Mapping: ProductMapping{
			ProductID:            "fert_mop_003",
			Priority:             recommendation.PriorityLow,
			BaseUrgency:          10,
			ConfidenceMultiplier: 5,
			ReasonTemplate:       "boosted",
		},
	}))

	fa := baseAnalysis()
	fa.NPKDeficiencies[analysis.NutrientPotassium] = analysis.NPKDeficiency{
		Level: 0.5, Severity: analysis.SeverityHigh, Confidence: 0.9,
	}
	fa.ComputeDataQuality()

	for _, rec := range e.Evaluate(fa) {
		assert.LessOrEqual(t, rec.Confidence, 1.0, "rule %s", rec.ProductID)
	}
}

// Exercises evaluation concurrent with every mutator; run with -race.  The
// mutators swap in a fresh rule slice, so a snapshot taken by Evaluate must
// never observe an in-place write.
func TestEvaluate_ConcurrentWithMutations(t *testing.T) {
	e := newTestEngine(t)

	fa := baseAnalysis()
	fa.NPKDeficiencies[analysis.NutrientNitrogen] = analysis.NPKDeficiency{
		Level: 1.0, Severity: analysis.SeverityHigh, Confidence: 0.9,
	}
	fa.ComputeDataQuality()

	updated, err := e.Rule("rule_n_deficiency_high")
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			_ = e.SetEnabled("rule_n_deficiency_high", false)
			_ = e.UpdateRule(updated)
			_ = e.SetEnabled("rule_n_deficiency_high", true)
		}
	}()

	for i := 0; i < 500; i++ {
		for _, rec := range e.Evaluate(fa) {
			assert.NotEmpty(t, rec.ProductID)
		}
	}
	close(done)
	wg.Wait()

	recs := e.Evaluate(fa)
	assert.NotNil(t, findRec(recs, "fert_urea_001"), "rule restored after the churn")
}

func TestRuleCRUD(t *testing.T) {
	e := newTestEngine(t)
	n := len(e.Rules())

	r := Rule{
		RuleID:  "rule_custom",
		Enabled: true,
		Mapping: ProductMapping{
			ProductID: "fert_urea_001", Priority: recommendation.PriorityLow,
			BaseUrgency: 20, ConfidenceMultiplier: 1, ReasonTemplate: "x",
		},
	}
	require.NoError(t, e.AddRule(r))
	assert.Len(t, e.Rules(), n+1)

	err := e.AddRule(r)
	require.Error(t, err, "duplicate rule_id rejected")

	r.Mapping.BaseUrgency = 30
	require.NoError(t, e.UpdateRule(r))
	got, err := e.Rule("rule_custom")
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.Mapping.BaseUrgency)

	require.NoError(t, e.SetEnabled("rule_custom", false))
	got, _ = e.Rule("rule_custom")
	assert.False(t, got.Enabled)

	require.NoError(t, e.RemoveRule("rule_custom"))
	_, err = e.Rule("rule_custom")
	assert.Error(t, err)

	assert.Error(t, e.UpdateRule(Rule{RuleID: "missing", Mapping: ProductMapping{
		ProductID: "fert_urea_001", BaseUrgency: 10, ConfidenceMultiplier: 1,
	}}))
	assert.Error(t, e.SetEnabled("missing", true))
	assert.Error(t, e.RemoveRule("missing"))
}

func TestAddRule_RejectsInvalid(t *testing.T) {
	e := newTestEngine(t)

	assert.Error(t, e.AddRule(Rule{Mapping: ProductMapping{ProductID: "p", BaseUrgency: 10, ConfidenceMultiplier: 1}}), "missing rule_id")
	assert.Error(t, e.AddRule(Rule{RuleID: "r", Mapping: ProductMapping{BaseUrgency: 10, ConfidenceMultiplier: 1}}), "missing product_id")
	assert.Error(t, e.AddRule(Rule{RuleID: "r", Mapping: ProductMapping{ProductID: "p", BaseUrgency: 150, ConfidenceMultiplier: 1}}), "urgency out of range")
	assert.Error(t, e.AddRule(Rule{RuleID: "r", Mapping: ProductMapping{ProductID: "p", BaseUrgency: 10}}), "multiplier must be positive")
	assert.Error(t, e.AddRule(Rule{
		RuleID:     "r",
		Conditions: Conditions{GrowthStage: &GrowthStageCondition{MinPercentage: 60, MaxPercentage: 40}},
		Mapping:    ProductMapping{ProductID: "p", BaseUrgency: 10, ConfidenceMultiplier: 1},
	}), "inverted growth range")
}

func TestExportLoadRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	before := e.Rules()

	data, err := e.ExportJSON()
	require.NoError(t, err)

	cat, err := catalog.NewService(logging.NewNopLogger())
	require.NoError(t, err)
	e2, err := NewEngineFromJSON(data, cat, logging.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, before, e2.Rules())
}

func TestLoadJSON_KeepsPreviousSetOnError(t *testing.T) {
	e := newTestEngine(t)
	before := e.Rules()

	assert.Error(t, e.LoadJSON([]byte("not json")))
	assert.Error(t, e.LoadJSON([]byte(`[{"rule_id":""}]`)))
	assert.Equal(t, before, e.Rules())
}

func TestNewEngineFromJSON_RejectsDuplicateIDs(t *testing.T) {
	cat, err := catalog.NewService(logging.NewNopLogger())
	require.NoError(t, err)

	doc := `[
		{"rule_id":"dup","enabled":true,"product_mapping":{"product_id":"fert_urea_001","base_urgency":10,"confidence_multiplier":1}},
		{"rule_id":"dup","enabled":true,"product_mapping":{"product_id":"fert_urea_001","base_urgency":10,"confidence_multiplier":1}}
	]`
	_, err = NewEngineFromJSON([]byte(doc), cat, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestNewWatcher_LoadsInitialFile(t *testing.T) {
	cat, err := catalog.NewService(logging.NewNopLogger())
	require.NoError(t, err)
	e, err := NewEngineFromJSON([]byte("[]"), cat, logging.NewNopLogger())
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	doc := `[{"rule_id":"rule_file","enabled":true,"product_mapping":{"product_id":"fert_urea_001","base_urgency":10,"confidence_multiplier":1,"reason_template":"x"}}]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	w, err := NewWatcher(e, path, logging.NewNopLogger())
	require.NoError(t, err)
	defer w.fsw.Close()

	rules := e.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "rule_file", rules[0].RuleID)
}

func TestNewWatcher_MissingOrInvalidFile(t *testing.T) {
	cat, err := catalog.NewService(logging.NewNopLogger())
	require.NoError(t, err)
	e, err := NewEngine(cat, logging.NewNopLogger())
	require.NoError(t, err)

	_, err = NewWatcher(e, filepath.Join(t.TempDir(), "absent.json"), logging.NewNopLogger())
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
	_, err = NewWatcher(e, bad, logging.NewNopLogger())
	assert.Error(t, err)
}
