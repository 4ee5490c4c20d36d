package prometheus

// AppMetrics is the full metric surface of the recommendation engine.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Analysis pipeline
	AnalysesTotal    CounterVec
	AnalysisDuration HistogramVec

	// Context cache
	CacheHitsTotal      CounterVec
	CacheMissesTotal    CounterVec
	CacheEvictionsTotal CounterVec
	CacheEntries        GaugeVec
	CacheInvalidations  CounterVec

	// Rule engine
	RulesLoaded              GaugeVec
	RuleEvaluationsTotal     CounterVec
	RuleMatchesTotal         CounterVec
	RecommendationsGenerated HistogramVec

	// Collaborators
	CollaboratorRequestsTotal   CounterVec
	CollaboratorRequestDuration HistogramVec
}

var (
	defaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	defaultAnalysisDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 15, 30}
	defaultRecommendationBuckets   = []float64{0, 1, 2, 3, 5, 8, 13, 21}
)

// NewAppMetrics registers every application metric on the collector.
func NewAppMetrics(collector Collector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal:   collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", defaultHTTPDurationBuckets, "method", "path"),
		HTTPActiveRequests:  collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method"),

		AnalysesTotal:    collector.RegisterCounter("field_analyses_total", "Field analyses built", "status"),
		AnalysisDuration: collector.RegisterHistogram("field_analysis_duration_seconds", "Field analysis build duration", defaultAnalysisDurationBuckets, "source"),

		CacheHitsTotal:      collector.RegisterCounter("context_cache_hits_total", "Context cache hits", "backend"),
		CacheMissesTotal:    collector.RegisterCounter("context_cache_misses_total", "Context cache misses", "backend", "reason"),
		CacheEvictionsTotal: collector.RegisterCounter("context_cache_evictions_total", "Context cache evictions", "backend"),
		CacheEntries:        collector.RegisterGauge("context_cache_entries", "Context cache entry count", "backend"),
		CacheInvalidations:  collector.RegisterCounter("context_cache_invalidations_total", "Data source version bumps", "source"),

		RulesLoaded:              collector.RegisterGauge("rules_loaded", "Rules in the active rule set", "state"),
		RuleEvaluationsTotal:     collector.RegisterCounter("rule_evaluations_total", "Rule evaluations against analyses"),
		RuleMatchesTotal:         collector.RegisterCounter("rule_matches_total", "Rules that matched an analysis"),
		RecommendationsGenerated: collector.RegisterHistogram("recommendations_generated", "Recommendations per request after filtering", defaultRecommendationBuckets, "region"),

		CollaboratorRequestsTotal:   collector.RegisterCounter("collaborator_requests_total", "Collaborator requests", "collaborator", "status"),
		CollaboratorRequestDuration: collector.RegisterHistogram("collaborator_request_duration_seconds", "Collaborator request duration", defaultHTTPDurationBuckets, "collaborator"),
	}
}
