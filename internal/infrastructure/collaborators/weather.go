// Package collaborators holds clients for the sibling services the engine
// consumes: the weather forecaster and the disease detector, plus an
// in-memory field store for demos and tests.
package collaborators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/plantsaathi/market-intelligence/internal/application/market"
	"github.com/plantsaathi/market-intelligence/internal/config"
	"github.com/plantsaathi/market-intelligence/internal/domain/analysis"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

const defaultTimeout = 10 * time.Second

// WeatherClient fetches daily forecasts from the weather collaborator.
type WeatherClient struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

var _ market.WeatherProvider = (*WeatherClient)(nil)

// NewWeatherClient builds a client from collaborator config.  metrics may be
// nil.
func NewWeatherClient(cfg config.CollaboratorConfig, logger logging.Logger, metrics *prometheus.AppMetrics) *WeatherClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WeatherClient{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("weather_client"),
		metrics: metrics,
	}
}

type forecastResponse struct {
	Forecast []analysis.ForecastDay `json:"forecast"`
}

// Forecast returns the daily forecast for a location.
func (c *WeatherClient) Forecast(ctx context.Context, lat, lon float64) ([]analysis.ForecastDay, error) {
	endpoint := fmt.Sprintf("%s/api/v1/forecast?lat=%s&lon=%s",
		c.baseURL,
		url.QueryEscape(fmt.Sprintf("%.4f", lat)),
		url.QueryEscape(fmt.Sprintf("%.4f", lon)))

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeWeatherUnavailable, "failed to build forecast request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.count("error")
		return nil, errors.Wrap(err, errors.CodeWeatherUnavailable, "weather collaborator unreachable")
	}
	defer resp.Body.Close()
	c.observe(start)

	if resp.StatusCode != http.StatusOK {
		c.count("error")
		return nil, errors.Newf(errors.CodeWeatherUnavailable, "weather collaborator returned %d", resp.StatusCode)
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.count("error")
		return nil, errors.Wrap(err, errors.CodeWeatherUnavailable, "invalid forecast payload")
	}

	c.count("success")
	return body.Forecast, nil
}

func (c *WeatherClient) count(status string) {
	if c.metrics != nil {
		c.metrics.CollaboratorRequestsTotal.WithLabelValues("weather", status).Inc()
	}
}

func (c *WeatherClient) observe(start time.Time) {
	if c.metrics != nil {
		c.metrics.CollaboratorRequestDuration.WithLabelValues("weather").Observe(time.Since(start).Seconds())
	}
}
