package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plantsaathi/market-intelligence/internal/domain/regional"
)

// RegionalHandler serves per-state intelligence lookups.
type RegionalHandler struct {
	regional *regional.Service
}

func NewRegionalHandler(reg *regional.Service) *RegionalHandler {
	return &RegionalHandler{regional: reg}
}

func (h *RegionalHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/regions/:state", h.getRegion)
}

func (h *RegionalHandler) getRegion(c *gin.Context) {
	state := c.Param("state")
	data := h.regional.RegionalData(state)
	c.JSON(http.StatusOK, gin.H{
		"requested":            state,
		"region":               data,
		"months_until_monsoon": h.regional.MonthsUntilMonsoon(state, time.Now()),
	})
}
