package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/plantsaathi/market-intelligence/internal/domain/analysis"
	"github.com/plantsaathi/market-intelligence/internal/domain/recommendation"
	"github.com/plantsaathi/market-intelligence/internal/domain/regional"
	"github.com/plantsaathi/market-intelligence/internal/domain/rules"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/prometheus"
)

// Field is one farmer field as stored by the field store.
type Field struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Region    string  `json:"region"`
	CropType  string  `json:"crop_type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// PlantingDate drives growth stage estimation; nil when unknown.
	PlantingDate *time.Time `json:"planting_date,omitempty"`

	// GrowthStageOverride wins over the planting-date estimate when set.
	GrowthStageOverride *analysis.GrowthStage `json:"growth_stage_override,omitempty"`

	// NPK holds the latest satellite nutrient readings; nil when the
	// blackbox has not analyzed this field yet.
	NPK           *analysis.NPKLevels `json:"npk,omitempty"`
	NPKConfidence float64             `json:"npk_confidence,omitempty"`
}

// FieldStore looks up field records.
type FieldStore interface {
	GetField(ctx context.Context, id string) (*Field, error)
	ListFields(ctx context.Context) ([]Field, error)
}

// WeatherProvider returns the daily forecast for a location.
type WeatherProvider interface {
	Forecast(ctx context.Context, lat, lon float64) ([]analysis.ForecastDay, error)
}

// DiseaseProvider returns a field's disease detection history.
type DiseaseProvider interface {
	Detections(ctx context.Context, fieldID string) ([]analysis.DiseaseDetection, error)
}

// warmConcurrency bounds parallel analysis builds during cache warming.
const warmConcurrency = 4

// Service orchestrates analysis building and recommendation generation.
type Service struct {
	fields   FieldStore
	weather  WeatherProvider
	disease  DiseaseProvider
	cache    Cache
	engine   *rules.Engine
	regional *regional.Service
	logger   logging.Logger
	metrics  *prometheus.AppMetrics
	group    singleflight.Group
	clock    func() time.Time
}

// NewService wires the orchestrator.  metrics may be nil.
func NewService(
	fields FieldStore,
	weather WeatherProvider,
	disease DiseaseProvider,
	cache Cache,
	engine *rules.Engine,
	reg *regional.Service,
	logger logging.Logger,
	metrics *prometheus.AppMetrics,
) *Service {
	return &Service{
		fields:   fields,
		weather:  weather,
		disease:  disease,
		cache:    cache,
		engine:   engine,
		regional: reg,
		logger:   logger.Named("market"),
		metrics:  metrics,
		clock:    time.Now,
	}
}

// AnalyzeField returns the field's analysis, serving from cache when fresh.
// Concurrent requests for the same field share a single build.
func (s *Service) AnalyzeField(ctx context.Context, fieldID string) (*analysis.FieldAnalysis, error) {
	if fa, ok := s.cache.Get(ctx, fieldID); ok {
		return fa, nil
	}

	v, err, _ := s.group.Do(fieldID, func() (interface{}, error) {
		// Re-check under singleflight; a concurrent caller may have just
		// filled the cache.
		if fa, ok := s.cache.Get(ctx, fieldID); ok {
			return fa, nil
		}
		fa, err := s.buildAnalysis(ctx, fieldID)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, fieldID, fa)
		return fa, nil
	})
	if err != nil {
		s.countAnalysis("error")
		return nil, err
	}
	return v.(*analysis.FieldAnalysis), nil
}

// RefreshAnalysis drops the field's cached analysis and rebuilds it from the
// current collaborator data.
func (s *Service) RefreshAnalysis(ctx context.Context, fieldID string) (*analysis.FieldAnalysis, error) {
	s.cache.Invalidate(ctx, fieldID)
	return s.AnalyzeField(ctx, fieldID)
}

// buildAnalysis fuses field record, disease history and weather forecast
// into one FieldAnalysis.  Collaborator failures degrade gracefully: the
// affected signal is omitted and the rest of the analysis still ships.
func (s *Service) buildAnalysis(ctx context.Context, fieldID string) (*analysis.FieldAnalysis, error) {
	start := s.clock()

	field, err := s.fields.GetField(ctx, fieldID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	fa := &analysis.FieldAnalysis{
		FieldID:         field.ID,
		FieldName:       field.Name,
		Region:          field.Region,
		CropType:        field.CropType,
		NPKDeficiencies: map[string]analysis.NPKDeficiency{},
		AnalyzedAt:      now,
	}
	if fa.Region == "" {
		fa.Region = regional.GenericRegion
	}

	if field.NPK != nil {
		fa.NPKDeficiencies = analysis.DeriveNPKDeficiencies(*field.NPK, field.NPKConfidence)
	}

	if detections, err := s.disease.Detections(ctx, fieldID); err != nil {
		s.logger.Warn("disease history unavailable, continuing without it",
			logging.String("field_id", fieldID), logging.Err(err))
	} else {
		fa.DiseaseHistory = analysis.DeriveDiseaseHistory(detections, now)
	}

	if forecast, err := s.weather.Forecast(ctx, field.Latitude, field.Longitude); err != nil {
		s.logger.Warn("weather forecast unavailable, continuing without it",
			logging.String("field_id", fieldID), logging.Err(err))
	} else {
		fa.WeatherRisks = analysis.DeriveWeatherRisks(forecast)
	}

	fa.GrowthStage = analysis.EstimateGrowthStage(field.GrowthStageOverride, field.PlantingDate, field.CropType, now)
	fa.ComputeDataQuality()

	s.countAnalysis("success")
	if s.metrics != nil {
		s.metrics.AnalysisDuration.WithLabelValues("build").Observe(s.clock().Sub(start).Seconds())
	}
	s.logger.Info("field analysis built",
		logging.String("field_id", fieldID),
		logging.Float64("data_quality", fa.DataQualityScore))
	return fa, nil
}

// AnalyzeAllFields analyzes every stored field.  Per-field failures are
// logged and skipped; results come back sorted by field ID.
func (s *Service) AnalyzeAllFields(ctx context.Context) ([]*analysis.FieldAnalysis, error) {
	fields, err := s.fields.ListFields(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var results []*analysis.FieldAnalysis

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, f := range fields {
		fieldID := f.ID
		g.Go(func() error {
			fa, err := s.AnalyzeField(gctx, fieldID)
			if err != nil {
				s.logger.Warn("skipping field, analysis failed",
					logging.String("field_id", fieldID), logging.Err(err))
				return nil
			}
			mu.Lock()
			results = append(results, fa)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].FieldID < results[j].FieldID })
	return results, nil
}

// WarmCache pre-builds analyses for the given fields with bounded
// concurrency.  Individual failures are logged, not fatal.  When the cache
// backend has a fixed capacity, only that many fields are warmed; the rest
// would immediately evict each other.
func (s *Service) WarmCache(ctx context.Context, fieldIDs []string) error {
	if bounded, ok := s.cache.(interface{ Capacity() int }); ok {
		if max := bounded.Capacity(); max > 0 && len(fieldIDs) > max {
			s.logger.Warn("warm list truncated to cache capacity",
				logging.Int("requested", len(fieldIDs)),
				logging.Int("capacity", max))
			fieldIDs = fieldIDs[:max]
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, id := range fieldIDs {
		fieldID := id
		g.Go(func() error {
			if _, err := s.AnalyzeField(gctx, fieldID); err != nil {
				s.logger.Warn("cache warm failed for field",
					logging.String("field_id", fieldID), logging.Err(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// GenerateRecommendations runs the full pipeline for one field: rule
// evaluation, regional availability filtering, monsoon timing adjustment,
// urgency sort, dedup.
func (s *Service) GenerateRecommendations(ctx context.Context, fieldID string) ([]recommendation.Recommendation, error) {
	fa, err := s.AnalyzeField(ctx, fieldID)
	if err != nil {
		return nil, err
	}

	recs := s.engine.Evaluate(fa)
	if s.metrics != nil {
		s.metrics.RuleEvaluationsTotal.WithLabelValues().Inc()
		s.metrics.RuleMatchesTotal.WithLabelValues().Add(float64(len(recs)))
	}
	recs = s.regional.FilterByAvailability(fa.Region, recs)
	recs = s.regional.AdjustMonsoonTiming(fa.Region, recs, s.clock())
	recommendation.SortByUrgency(recs)
	recs = recommendation.Deduplicate(recs)

	if s.metrics != nil {
		s.metrics.RecommendationsGenerated.WithLabelValues(fa.Region).Observe(float64(len(recs)))
	}
	s.logger.Info("recommendations generated",
		logging.String("field_id", fieldID),
		logging.String("region", fa.Region),
		logging.Int("count", len(recs)))
	return recs, nil
}

// FieldRecommendations pairs a field with its recommendation list, for
// batch responses.
type FieldRecommendations struct {
	FieldID         string                          `json:"field_id"`
	Recommendations []recommendation.Recommendation `json:"recommendations"`
}

// GenerateAllRecommendations runs the recommendation pipeline for every
// stored field.  Per-field failures are logged and skipped; results come
// back sorted by field ID.
func (s *Service) GenerateAllRecommendations(ctx context.Context) ([]FieldRecommendations, error) {
	fields, err := s.fields.ListFields(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var results []FieldRecommendations

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, f := range fields {
		fieldID := f.ID
		g.Go(func() error {
			recs, err := s.GenerateRecommendations(gctx, fieldID)
			if err != nil {
				s.logger.Warn("skipping field, recommendation pipeline failed",
					logging.String("field_id", fieldID), logging.Err(err))
				return nil
			}
			mu.Lock()
			results = append(results, FieldRecommendations{FieldID: fieldID, Recommendations: recs})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].FieldID < results[j].FieldID })
	return results, nil
}

// RecommendationsByCategory narrows the pipeline output to one category.
func (s *Service) RecommendationsByCategory(ctx context.Context, fieldID, category string) ([]recommendation.Recommendation, error) {
	recs, err := s.GenerateRecommendations(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	return recommendation.FilterByCategory(recs, category), nil
}

// RecommendationsByPriority narrows the pipeline output to one priority tier.
func (s *Service) RecommendationsByPriority(ctx context.Context, fieldID, priority string) ([]recommendation.Recommendation, error) {
	recs, err := s.GenerateRecommendations(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	return recommendation.FilterByPriority(recs, priority), nil
}

// InvalidateDataSource bumps a source's version token, forcing rebuilds.
func (s *Service) InvalidateDataSource(ctx context.Context, source string) (string, error) {
	token, err := s.cache.UpdateDataSourceVersion(ctx, source)
	if err != nil {
		return "", err
	}
	return token, nil
}

// DataSourceVersions exposes the current version tokens.
func (s *Service) DataSourceVersions(ctx context.Context) map[string]string {
	return s.cache.Versions(ctx)
}

func (s *Service) countAnalysis(status string) {
	if s.metrics != nil {
		s.metrics.AnalysesTotal.WithLabelValues(status).Inc()
	}
}
