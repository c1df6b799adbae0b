package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"oliv/internal/model"

	"github.com/gin-gonic/gin"
)

// PriceService is the price table and predictor behind the price endpoints
type PriceService interface {
	GetPriceRange(ctx context.Context, area, propertyType string, bedrooms *int) *model.PriceStat
	PredictPrice(ctx context.Context, f model.PriceFeatures) (float64, bool)
	PredictorEnabled() bool
}

// PriceHandler handles price lookups and predictions
type PriceHandler struct {
	prices PriceService
}

// NewPriceHandler creates a new price handler
func NewPriceHandler(prices PriceService) *PriceHandler {
	return &PriceHandler{prices: prices}
}

// Stats handles GET /api/v1/price-stats?area=&property_type=&bedrooms=
func (h *PriceHandler) Stats(c *gin.Context) {
	area := strings.TrimSpace(c.Query("area"))
	propertyType := strings.TrimSpace(c.Query("property_type"))
	if area == "" || propertyType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "area and property_type are required"})
		return
	}

	var bedrooms *int
	if raw := strings.TrimSpace(c.Query("bedrooms")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bedrooms"})
			return
		}
		bedrooms = &n
	}

	stat := h.prices.GetPriceRange(c.Request.Context(), area, propertyType, bedrooms)
	c.JSON(http.StatusOK, model.PriceStatsResponse{Found: stat != nil, Stat: stat})
}

// Predict handles POST /api/v1/predict
func (h *PriceHandler) Predict(c *gin.Context) {
	if !h.prices.PredictorEnabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Price model is not loaded"})
		return
	}

	var f model.PriceFeatures
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	price, ok := h.prices.PredictPrice(c.Request.Context(), f)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Could not produce a prediction"})
		return
	}

	c.JSON(http.StatusOK, model.PredictResponse{PredictedPrice: price})
}
