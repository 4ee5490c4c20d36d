package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plantsaathi/market-intelligence/internal/application/market"
)

// MarketHandler serves field analyses and recommendations.
type MarketHandler struct {
	svc *market.Service
}

func NewMarketHandler(svc *market.Service) *MarketHandler {
	return &MarketHandler{svc: svc}
}

func (h *MarketHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/fields/:id/analysis", h.getAnalysis)
	rg.POST("/fields/:id/analysis/refresh", h.refreshAnalysis)
	rg.GET("/fields/:id/recommendations", h.getRecommendations)
	rg.GET("/analyses", h.getAllAnalyses)
	rg.POST("/recommendations/batch", h.batchRecommendations)
	rg.GET("/datasources", h.getDataSourceVersions)
	rg.POST("/datasources/:source/bump", h.bumpDataSource)
	rg.POST("/cache/warm", h.warmCache)
}

func (h *MarketHandler) getAnalysis(c *gin.Context) {
	fa, err := h.svc.AnalyzeField(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fa)
}

func (h *MarketHandler) refreshAnalysis(c *gin.Context) {
	fa, err := h.svc.RefreshAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fa)
}

func (h *MarketHandler) batchRecommendations(c *gin.Context) {
	results, err := h.svc.GenerateAllRecommendations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": results})
}

func (h *MarketHandler) getRecommendations(c *gin.Context) {
	ctx := c.Request.Context()
	fieldID := c.Param("id")

	var (
		recs interface{}
		err  error
	)
	switch {
	case c.Query("category") != "":
		recs, err = h.svc.RecommendationsByCategory(ctx, fieldID, c.Query("category"))
	case c.Query("priority") != "":
		recs, err = h.svc.RecommendationsByPriority(ctx, fieldID, c.Query("priority"))
	default:
		recs, err = h.svc.GenerateRecommendations(ctx, fieldID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"field_id": fieldID, "recommendations": recs})
}

func (h *MarketHandler) getAllAnalyses(c *gin.Context) {
	analyses, err := h.svc.AnalyzeAllFields(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": analyses})
}

func (h *MarketHandler) getDataSourceVersions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"versions": h.svc.DataSourceVersions(c.Request.Context())})
}

func (h *MarketHandler) bumpDataSource(c *gin.Context) {
	source := c.Param("source")
	token, err := h.svc.InvalidateDataSource(c.Request.Context(), source)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": source, "version": token})
}

type warmRequest struct {
	FieldIDs []string `json:"field_ids" binding:"required"`
}

func (h *MarketHandler) warmCache(c *gin.Context) {
	var req warmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "field_ids is required")
		return
	}
	if err := h.svc.WarmCache(c.Request.Context(), req.FieldIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"warmed": len(req.FieldIDs)})
}
