package model

import "strings"

// Intent is the closed set of request categories the dispatcher routes on
type Intent string

const (
	IntentPriceCheck      Intent = "price_check"
	IntentSearchListings  Intent = "search_listings"
	IntentMarketTrend     Intent = "market_trend"
	IntentScheduleViewing Intent = "schedule_viewing"
	IntentNone            Intent = "none"
)

// Intents lists every intent in dispatch-table order
var Intents = []Intent{
	IntentPriceCheck,
	IntentSearchListings,
	IntentMarketTrend,
	IntentScheduleViewing,
	IntentNone,
}

// ParseIntent maps free text to an Intent. Anything unrecognised is IntentNone.
func ParseIntent(s string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, in := range Intents {
		if string(in) == normalized {
			return in
		}
	}
	return IntentNone
}

func (i Intent) String() string {
	if i == "" {
		return string(IntentNone)
	}
	return string(i)
}

// ParsedQuery represents the structured fields extracted from one user message
type ParsedQuery struct {
	Intent       Intent   `json:"intent"`
	Location     *string  `json:"location,omitempty"`
	PropertyType *string  `json:"property_type,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Budget       *float64 `json:"budget,omitempty"`
	Timeframe    *string  `json:"timeframe,omitempty"`
}

// UnknownQuery is the all-absent result used whenever extraction fails
func UnknownQuery() ParsedQuery {
	return ParsedQuery{Intent: IntentNone}
}
