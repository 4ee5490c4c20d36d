package analysis

import (
	"strings"
	"time"
)

// Raw collaborator shapes.  These mirror what the external field store,
// disease-detection API and weather API return, before bucketing.

// NPKLevels carries raw nutrient readings for one field.
type NPKLevels struct {
	Nitrogen   float64 `json:"nitrogen"`
	Phosphorus float64 `json:"phosphorus"`
	Potassium  float64 `json:"potassium"`
}

// DiseaseDetection is one raw disease-detection result.
type DiseaseDetection struct {
	DiseaseName string    `json:"disease_name"`
	DetectedAt  time.Time `json:"detected_at"`
	Confidence  float64   `json:"confidence"`
}

// ForecastDay is one day of the weather collaborator's forecast.
type ForecastDay struct {
	// Precipitation probability, 0–100.
	Precipitation float64 `json:"precipitation"`
	TempMax       float64 `json:"temp_max"`
	TempMin       float64 `json:"temp_min"`
}

// adequateLevels are the per-nutrient readings at or above which no
// deficiency is reported.  Readings are on the soil-test scale the satellite
// NPK estimator normalizes to.
var adequateLevels = map[string]float64{
	NutrientNitrogen:   1.5,
	NutrientPhosphorus: 0.5,
	NutrientPotassium:  1.0,
}

// Severity bucket boundaries as fractions of the adequate level.
const (
	severityHighRatio   = 0.70
	severityMediumRatio = 0.85
)

// SeverityForLevel buckets a raw nutrient reading against its adequate level.
// Returns the tier and true when deficient, or ("", false) when the reading
// is at or above adequate.  Bucketing is monotonic: a lower reading never
// yields a less severe tier.
func SeverityForLevel(level, adequate float64) (string, bool) {
	if adequate <= 0 || level >= adequate {
		return "", false
	}
	ratio := level / adequate
	switch {
	case ratio < severityHighRatio:
		return SeverityHigh, true
	case ratio < severityMediumRatio:
		return SeverityMedium, true
	default:
		return SeverityLow, true
	}
}

// DeriveNPKDeficiencies buckets raw readings into per-nutrient deficiencies.
// confidence is the measurement confidence of the upstream source (satellite
// estimates are less trusted than lab-backed marketplace analyses).
func DeriveNPKDeficiencies(levels NPKLevels, confidence float64) map[string]NPKDeficiency {
	readings := map[string]float64{
		NutrientNitrogen:   levels.Nitrogen,
		NutrientPhosphorus: levels.Phosphorus,
		NutrientPotassium:  levels.Potassium,
	}
	out := make(map[string]NPKDeficiency)
	for nutrient, level := range readings {
		if severity, deficient := SeverityForLevel(level, adequateLevels[nutrient]); deficient {
			out[nutrient] = NPKDeficiency{
				Level:      level,
				Severity:   severity,
				Confidence: clamp01(confidence),
			}
		}
	}
	return out
}

// Recurrence-risk boundaries in days since last detection.
const (
	recurrenceHighDays   = 30
	recurrenceMediumDays = 90
)

// DeriveDiseaseHistory buckets raw detections into history records with
// recurrence risk: detected within 30 days is high, within 90 medium,
// otherwise low.
func DeriveDiseaseHistory(detections []DiseaseDetection, now time.Time) []DiseaseRecord {
	out := make([]DiseaseRecord, 0, len(detections))
	for _, d := range detections {
		days := int(now.Sub(d.DetectedAt).Hours() / 24)
		risk := SeverityLow
		switch {
		case days < recurrenceHighDays:
			risk = SeverityHigh
		case days < recurrenceMediumDays:
			risk = SeverityMedium
		}
		out = append(out, DiseaseRecord{
			DiseaseName:    d.DiseaseName,
			LastDetected:   d.DetectedAt,
			RecurrenceRisk: risk,
			Confidence:     clamp01(d.Confidence),
		})
	}
	return out
}

// Weather risk thresholds.
const (
	heavyRainPrecipThreshold = 70.0 // precipitation probability, exclusive
	droughtPrecipThreshold   = 20.0 // below this a day counts as dry
	droughtMinDryDays        = 5
	heatStressTempThreshold  = 35.0 // °C, exclusive
	coldStressTempThreshold  = 10.0 // °C, exclusive (below)

	// forecastConfidence is the fixed confidence assigned to forecast-derived
	// risks; forecasts are inherently less certain than measurements.
	forecastConfidence = 0.8

	// tempRiskProbability is assigned to temperature risks, where the
	// forecast gives no probability of its own.
	tempRiskProbability = 0.7
)

// DeriveWeatherRisks scans a multi-day forecast and emits at most one risk
// per type.  Each risk's DaysUntil is the index of the first qualifying day.
func DeriveWeatherRisks(forecast []ForecastDay) []WeatherRisk {
	if len(forecast) == 0 {
		return nil
	}

	var out []WeatherRisk

	// Heavy rain: any day with precipitation probability above 70%.
	for i, day := range forecast {
		if day.Precipitation > heavyRainPrecipThreshold {
			out = append(out, WeatherRisk{
				Type:        WeatherHeavyRain,
				Probability: clamp01(day.Precipitation / 100),
				DaysUntil:   i,
				Confidence:  forecastConfidence,
			})
			break
		}
	}

	// Drought: five or more dry days in the forecast window.
	dryDays := 0
	firstDry := -1
	for i, day := range forecast {
		if day.Precipitation < droughtPrecipThreshold {
			dryDays++
			if firstDry < 0 {
				firstDry = i
			}
		}
	}
	if dryDays >= droughtMinDryDays {
		out = append(out, WeatherRisk{
			Type:        WeatherDrought,
			Probability: clamp01(float64(dryDays) / float64(len(forecast))),
			DaysUntil:   firstDry,
			Confidence:  forecastConfidence,
		})
	}

	// Heat stress: any day above 35°C.
	for i, day := range forecast {
		if day.TempMax > heatStressTempThreshold {
			out = append(out, WeatherRisk{
				Type:        WeatherHeatStress,
				Probability: tempRiskProbability,
				DaysUntil:   i,
				Confidence:  forecastConfidence,
			})
			break
		}
	}

	// Cold stress: any day below 10°C.
	for i, day := range forecast {
		if day.TempMin < coldStressTempThreshold {
			out = append(out, WeatherRisk{
				Type:        WeatherColdStress,
				Probability: tempRiskProbability,
				DaysUntil:   i,
				Confidence:  forecastConfidence,
			})
			break
		}
	}

	return out
}

// cropDurations maps crop type → days from planting to harvest.
var cropDurations = map[string]int{
	"rice":      120,
	"wheat":     140,
	"maize":     100,
	"cotton":    160,
	"sugarcane": 360,
	"potato":    90,
	"soybean":   100,
	"mustard":   110,
}

const defaultCropDuration = 120

// Default growth stage used when neither an override nor a planting date is
// available.
var defaultGrowthStage = GrowthStage{
	Percentage:    50,
	StageName:     "Vegetative",
	DaysToHarvest: 60,
	Confidence:    0.5,
}

// Confidence assigned to stages estimated from the planting date.
const estimatedStageConfidence = 0.8

// EstimateGrowthStage resolves the growth stage in priority order: explicit
// override, planting-date estimate, fixed default.
func EstimateGrowthStage(override *GrowthStage, plantingDate *time.Time, cropType string, now time.Time) GrowthStage {
	if override != nil {
		gs := *override
		gs.Percentage = clampPct(gs.Percentage)
		gs.Confidence = clamp01(gs.Confidence)
		return gs
	}
	if plantingDate == nil || plantingDate.After(now) {
		return defaultGrowthStage
	}

	duration, ok := cropDurations[strings.ToLower(cropType)]
	if !ok {
		duration = defaultCropDuration
	}

	daysSince := int(now.Sub(*plantingDate).Hours() / 24)
	pct := clampPct(float64(daysSince) / float64(duration) * 100)
	daysToHarvest := duration - daysSince
	if daysToHarvest < 0 {
		daysToHarvest = 0
	}

	return GrowthStage{
		Percentage:    pct,
		StageName:     stageNameForPercentage(pct),
		DaysToHarvest: daysToHarvest,
		Confidence:    estimatedStageConfidence,
	}
}

// stageNameForPercentage maps cycle completion to a coarse stage name.
func stageNameForPercentage(pct float64) string {
	switch {
	case pct < 20:
		return "Seedling"
	case pct < 45:
		return "Vegetative"
	case pct < 65:
		return "Flowering"
	case pct < 85:
		return "Maturation"
	default:
		return "Harvest Ready"
	}
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
