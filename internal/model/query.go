package model

// ChatRequest represents one user message
type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse represents the assistant reply for one turn
type ChatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Intent    Intent `json:"intent"`
	Took      int64  `json:"took_ms"` // Response time in milliseconds
}

// ListingSearchResponse represents a direct listing search result
type ListingSearchResponse struct {
	Results []Listing `json:"results"`
	Total   int       `json:"total"`
	Took    int64     `json:"took_ms"`
}

// PriceStatsResponse wraps a price table lookup
type PriceStatsResponse struct {
	Found bool       `json:"found"`
	Stat  *PriceStat `json:"stat,omitempty"`
}

// PredictResponse represents a price prediction
type PredictResponse struct {
	PredictedPrice float64 `json:"predicted_price"`
}

// FeedbackRequest represents user feedback on a turn
type FeedbackRequest struct {
	TurnID string `json:"turn_id" binding:"required,uuid"`
	Action string `json:"action" binding:"required,oneof=helpful not_helpful contacted"`
}

// FeedbackResponse represents feedback response
type FeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
