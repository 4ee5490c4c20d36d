package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/plantsaathi/market-intelligence/internal/domain/catalog"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

// CatalogHandler serves product catalog lookups and searches.
type CatalogHandler struct {
	catalog *catalog.Service
}

func NewCatalogHandler(cat *catalog.Service) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

func (h *CatalogHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/catalog", h.search)
	rg.GET("/catalog/:id", h.getProduct)
	rg.GET("/catalog/:id/alternatives", h.getAlternatives)
}

func (h *CatalogHandler) search(c *gin.Context) {
	q := catalog.Query{
		Nutrient:         c.Query("nutrient"),
		Disease:          c.Query("disease"),
		WeatherCondition: c.Query("weather"),
		GrowthStage:      c.Query("growth_stage"),
		Category:         c.Query("category"),
		Region:           c.Query("region"),
		EcoFriendlyOnly:  c.Query("eco_friendly") == "true",
	}
	if raw := c.Query("max_price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondInvalid(c, "max_price must be a number")
			return
		}
		q.MaxPrice = &price
	}
	if raw := c.Query("min_sustainability"); raw != "" {
		rating, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondInvalid(c, "min_sustainability must be a number")
			return
		}
		q.MinSustainable = &rating
	}

	products := h.catalog.Search(q)
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *CatalogHandler) getProduct(c *gin.Context) {
	entry, ok := h.catalog.GetByID(c.Param("id"))
	if !ok {
		respondError(c, errors.Newf(errors.CodeProductNotFound, "product %s not found", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *CatalogHandler) getAlternatives(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.catalog.GetByID(id); !ok {
		respondError(c, errors.Newf(errors.CodeProductNotFound, "product %s not found", id))
		return
	}

	var alternatives []catalog.Entry
	if c.Query("budget") == "true" {
		alternatives = h.catalog.BudgetAlternatives(id)
	} else {
		alternatives = h.catalog.Alternatives(id)
	}
	c.JSON(http.StatusOK, gin.H{"product_id": id, "alternatives": alternatives})
}
