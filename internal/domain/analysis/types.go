// Package analysis defines the fused per-field signal model (FieldAnalysis)
// and the derivation logic that buckets raw collaborator data — NPK levels,
// disease detections, weather forecasts, growth stage — into the normalized
// form the rule engine evaluates.
package analysis

import "time"

// Severity tiers for NPK deficiencies and recurrence risks.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// severityOrdinals orders tiers for min-severity comparisons.
var severityOrdinals = map[string]int{
	SeverityLow:    0,
	SeverityMedium: 1,
	SeverityHigh:   2,
}

// SeverityOrdinal returns the ordinal rank of a severity tier
// (low:0, medium:1, high:2); unknown tiers rank below low.
func SeverityOrdinal(severity string) int {
	if o, ok := severityOrdinals[severity]; ok {
		return o
	}
	return -1
}

// Nutrient identifiers.
const (
	NutrientNitrogen   = "nitrogen"
	NutrientPhosphorus = "phosphorus"
	NutrientPotassium  = "potassium"
)

// Weather risk types.
const (
	WeatherHeavyRain  = "heavy_rain"
	WeatherDrought    = "drought"
	WeatherHeatStress = "heat_stress"
	WeatherColdStress = "cold_stress"
)

// NPKDeficiency is a single detected nutrient deficiency.
type NPKDeficiency struct {
	// Level is the measured nutrient level (raw reading, not a percentage).
	Level float64 `json:"level"`

	// Severity is the bucketed tier: low, medium, high.
	Severity string `json:"severity"`

	// Confidence of the measurement, 0..1.
	Confidence float64 `json:"confidence"`
}

// DiseaseRecord is one entry of a field's disease-detection history.
type DiseaseRecord struct {
	DiseaseName    string    `json:"disease_name"`
	LastDetected   time.Time `json:"last_detected"`
	RecurrenceRisk string    `json:"recurrence_risk"` // low, medium, high
	Confidence     float64   `json:"confidence"`
}

// WeatherRisk is one derived weather threat.
type WeatherRisk struct {
	Type string `json:"type"` // heavy_rain, drought, heat_stress, cold_stress

	// Probability of the risk materialising, 0..1.
	Probability float64 `json:"probability"`

	// DaysUntil is the forecast index of the first qualifying day.
	DaysUntil int `json:"days_until"`

	Confidence float64 `json:"confidence"`
}

// GrowthStage describes crop progress toward harvest.
type GrowthStage struct {
	// Percentage of the crop cycle completed, 0..100.
	Percentage float64 `json:"percentage"`

	StageName     string  `json:"stage_name"`
	DaysToHarvest int     `json:"days_to_harvest"`
	Confidence    float64 `json:"confidence"`
}

// FieldAnalysis is the fused, normalized signal state of one field.  It is
// the sole input to rule evaluation and the unit stored in the context cache.
type FieldAnalysis struct {
	FieldID   string `json:"field_id"`
	FieldName string `json:"field_name"`

	// Region is the state code used for regional filtering; defaults to the
	// generic "IN" record when the field carries no override.
	Region string `json:"region"`

	// CropType is the field's crop, lowercased; rules may match on it.
	CropType string `json:"crop_type,omitempty"`

	// NPKDeficiencies maps nutrient → deficiency.  Nutrients at adequate
	// levels are absent.
	NPKDeficiencies map[string]NPKDeficiency `json:"npk_deficiencies"`

	DiseaseHistory []DiseaseRecord `json:"disease_history"`
	WeatherRisks   []WeatherRisk   `json:"weather_risks"`
	GrowthStage    GrowthStage     `json:"growth_stage"`

	// DataQualityScore is the mean of all present signal confidences,
	// clamped to [0, 1].
	DataQualityScore float64 `json:"data_quality_score"`

	AnalyzedAt time.Time `json:"analyzed_at"`
}

// ComputeDataQuality recalculates DataQualityScore from the present signals.
// Every populated sub-signal carries its own confidence; the aggregate is
// their mean, never fabricated above 1 or below 0.
func (fa *FieldAnalysis) ComputeDataQuality() {
	var sum float64
	var n int
	for _, d := range fa.NPKDeficiencies {
		sum += d.Confidence
		n++
	}
	for _, d := range fa.DiseaseHistory {
		sum += d.Confidence
		n++
	}
	for _, w := range fa.WeatherRisks {
		sum += w.Confidence
		n++
	}
	if fa.GrowthStage.StageName != "" {
		sum += fa.GrowthStage.Confidence
		n++
	}
	if n == 0 {
		fa.DataQualityScore = 0
		return
	}
	fa.DataQualityScore = clamp01(sum / float64(n))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
