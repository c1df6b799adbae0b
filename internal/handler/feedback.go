package handler

import (
	"context"
	"errors"
	"net/http"

	"oliv/internal/model"
	"oliv/internal/repository"

	"github.com/gin-gonic/gin"
)

// FeedbackStore records user reactions to a turn
type FeedbackStore interface {
	LogFeedback(ctx context.Context, turnID, action string) error
}

// FeedbackHandler handles feedback-related HTTP requests
type FeedbackHandler struct {
	store FeedbackStore
}

// NewFeedbackHandler creates a new feedback handler. A nil store answers 503.
func NewFeedbackHandler(store FeedbackStore) *FeedbackHandler {
	return &FeedbackHandler{
		store: store,
	}
}

// Submit handles POST /api/v1/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Feedback requires a database"})
		return
	}

	var req model.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// Log feedback
	err := h.store.LogFeedback(c.Request.Context(), req.TurnID, req.Action)
	if errors.Is(err, repository.ErrTurnNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Turn not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log feedback: " + err.Error()})
		return
	}

	response := model.FeedbackResponse{
		Success: true,
		Message: "Feedback logged successfully",
	}

	c.JSON(http.StatusOK, response)
}
