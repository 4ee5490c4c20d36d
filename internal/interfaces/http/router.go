// Package http wires the gin router and the HTTP server lifecycle.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plantsaathi/market-intelligence/internal/application/market"
	"github.com/plantsaathi/market-intelligence/internal/domain/catalog"
	"github.com/plantsaathi/market-intelligence/internal/domain/regional"
	"github.com/plantsaathi/market-intelligence/internal/domain/rules"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/plantsaathi/market-intelligence/internal/interfaces/http/handlers"
	"github.com/plantsaathi/market-intelligence/internal/interfaces/http/middleware"
)

// RouterDeps carries everything the API surface needs.
type RouterDeps struct {
	Market   *market.Service
	Catalog  *catalog.Service
	Regional *regional.Service
	Engine   *rules.Engine
	Logger   logging.Logger

	// Metrics and MetricsHandler may be nil; the /metrics route is only
	// mounted when a handler is supplied.
	Metrics        *prometheus.AppMetrics
	MetricsHandler http.Handler

	// Health checks for /readyz (database, redis).
	Health *handlers.HealthHandler

	// Mode is the gin mode: debug, release or test.
	Mode string
}

// NewRouter assembles the full route table.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogging(deps.Logger))
	r.Use(middleware.Metrics(deps.Metrics))

	health := deps.Health
	if health == nil {
		health = handlers.NewHealthHandler()
	}
	health.Register(r)

	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	v1 := r.Group("/api/v1")
	handlers.NewMarketHandler(deps.Market).Register(v1)
	handlers.NewCatalogHandler(deps.Catalog).Register(v1)
	handlers.NewRegionalHandler(deps.Regional).Register(v1)
	handlers.NewRulesHandler(deps.Engine, deps.Metrics).Register(v1)

	return r
}
