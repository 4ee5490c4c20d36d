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

// DiseaseClient fetches detection history from the disease collaborator.
type DiseaseClient struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

var _ market.DiseaseProvider = (*DiseaseClient)(nil)

func NewDiseaseClient(cfg config.CollaboratorConfig, logger logging.Logger, metrics *prometheus.AppMetrics) *DiseaseClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &DiseaseClient{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("disease_client"),
		metrics: metrics,
	}
}

type detectionsResponse struct {
	Detections []analysis.DiseaseDetection `json:"detections"`
}

// Detections returns the field's disease detection history.  A field the
// collaborator has never seen comes back as an empty history, not an error.
func (c *DiseaseClient) Detections(ctx context.Context, fieldID string) ([]analysis.DiseaseDetection, error) {
	endpoint := fmt.Sprintf("%s/api/v1/fields/%s/detections", c.baseURL, url.PathEscape(fieldID))

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDiseaseUnavailable, "failed to build detections request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.count("error")
		return nil, errors.Wrap(err, errors.CodeDiseaseUnavailable, "disease collaborator unreachable")
	}
	defer resp.Body.Close()
	c.observe(start)

	if resp.StatusCode == http.StatusNotFound {
		c.count("success")
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.count("error")
		return nil, errors.Newf(errors.CodeDiseaseUnavailable, "disease collaborator returned %d", resp.StatusCode)
	}

	var body detectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.count("error")
		return nil, errors.Wrap(err, errors.CodeDiseaseUnavailable, "invalid detections payload")
	}

	c.count("success")
	return body.Detections, nil
}

func (c *DiseaseClient) count(status string) {
	if c.metrics != nil {
		c.metrics.CollaboratorRequestsTotal.WithLabelValues("disease", status).Inc()
	}
}

func (c *DiseaseClient) observe(start time.Time) {
	if c.metrics != nil {
		c.metrics.CollaboratorRequestDuration.WithLabelValues("disease").Observe(time.Since(start).Seconds())
	}
}
