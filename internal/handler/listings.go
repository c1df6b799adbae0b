package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"oliv/internal/model"

	"github.com/gin-gonic/gin"
)

// ListingFinder is the listing source behind the direct search endpoint
type ListingFinder interface {
	FindListings(ctx context.Context, q model.ListingQuery) []model.Listing
}

// ListingHandler handles direct listing searches
type ListingHandler struct {
	listings ListingFinder
}

// NewListingHandler creates a new listing handler
func NewListingHandler(listings ListingFinder) *ListingHandler {
	return &ListingHandler{listings: listings}
}

// Search handles POST /api/v1/listings/search
func (h *ListingHandler) Search(c *gin.Context) {
	startTime := time.Now()

	var q model.ListingQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	q.Location = strings.TrimSpace(q.Location)
	if q.Location == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location is required"})
		return
	}
	if q.Bedrooms != nil && *q.Bedrooms < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bedrooms must not be negative"})
		return
	}

	results := h.listings.FindListings(c.Request.Context(), q)
	if results == nil {
		results = []model.Listing{}
	}

	c.JSON(http.StatusOK, model.ListingSearchResponse{
		Results: results,
		Total:   len(results),
		Took:    time.Since(startTime).Milliseconds(),
	})
}
