package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plantsaathi/market-intelligence/internal/domain/rules"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

// RulesHandler exposes rule set CRUD and bulk import/export.
type RulesHandler struct {
	engine  *rules.Engine
	metrics *prometheus.AppMetrics
}

func NewRulesHandler(engine *rules.Engine, metrics *prometheus.AppMetrics) *RulesHandler {
	return &RulesHandler{engine: engine, metrics: metrics}
}

// syncRulesGauge republishes the enabled/disabled rule counts after any
// mutation of the active set.
func (h *RulesHandler) syncRulesGauge() {
	if h.metrics == nil {
		return
	}
	var enabled, disabled float64
	for _, r := range h.engine.Rules() {
		if r.Enabled {
			enabled++
		} else {
			disabled++
		}
	}
	h.metrics.RulesLoaded.WithLabelValues("enabled").Set(enabled)
	h.metrics.RulesLoaded.WithLabelValues("disabled").Set(disabled)
}

func (h *RulesHandler) Register(rg *gin.RouterGroup) {
	h.syncRulesGauge()

	rg.GET("/rules", h.list)
	rg.POST("/rules", h.add)
	rg.GET("/rules/:id", h.get)
	rg.PUT("/rules/:id", h.update)
	rg.DELETE("/rules/:id", h.remove)
	rg.POST("/rules/:id/enable", h.enable)
	rg.POST("/rules/:id/disable", h.disable)

	// Whole-document import/export; the export round-trips through import.
	rg.GET("/ruleset", h.export)
	rg.PUT("/ruleset", h.replace)
}

func (h *RulesHandler) list(c *gin.Context) {
	all := h.engine.Rules()
	c.JSON(http.StatusOK, gin.H{"rules": all, "count": len(all)})
}

func (h *RulesHandler) get(c *gin.Context) {
	rule, err := h.engine.Rule(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *RulesHandler) add(c *gin.Context) {
	var rule rules.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		respondInvalid(c, "malformed rule document")
		return
	}
	if err := h.engine.AddRule(rule); err != nil {
		respondError(c, err)
		return
	}
	h.syncRulesGauge()
	c.JSON(http.StatusCreated, rule)
}

func (h *RulesHandler) update(c *gin.Context) {
	var rule rules.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		respondInvalid(c, "malformed rule document")
		return
	}
	if rule.RuleID != c.Param("id") {
		respondInvalid(c, "rule_id in body does not match URL")
		return
	}
	if err := h.engine.UpdateRule(rule); err != nil {
		respondError(c, err)
		return
	}
	h.syncRulesGauge()
	c.JSON(http.StatusOK, rule)
}

func (h *RulesHandler) remove(c *gin.Context) {
	if err := h.engine.RemoveRule(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	h.syncRulesGauge()
	c.Status(http.StatusNoContent)
}

func (h *RulesHandler) enable(c *gin.Context) {
	h.setEnabled(c, true)
}

func (h *RulesHandler) disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *RulesHandler) setEnabled(c *gin.Context, enabled bool) {
	if err := h.engine.SetEnabled(c.Param("id"), enabled); err != nil {
		respondError(c, err)
		return
	}
	h.syncRulesGauge()
	c.JSON(http.StatusOK, gin.H{"rule_id": c.Param("id"), "enabled": enabled})
}

func (h *RulesHandler) export(c *gin.Context) {
	data, err := h.engine.ExportJSON()
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (h *RulesHandler) replace(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.CodeRuleLoadFailed, "failed to read rules document"))
		return
	}
	if err := h.engine.LoadJSON(data); err != nil {
		respondError(c, err)
		return
	}
	h.syncRulesGauge()
	c.JSON(http.StatusOK, gin.H{"rules": len(h.engine.Rules())})
}
