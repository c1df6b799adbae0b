package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultPropertyType is assumed when location and bedrooms are known but the type is not
const DefaultPropertyType = "apartment"

// ConversationContext is the sticky, session-scoped memory of extracted fields
type ConversationContext struct {
	Location     *string  `json:"location,omitempty"`
	PropertyType *string  `json:"property_type,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Budget       *float64 `json:"budget,omitempty"`
	Timeframe    *string  `json:"timeframe,omitempty"`
}

// Merge folds a parsed query into the context. Present fields overwrite, absent fields never clear.
func (c *ConversationContext) Merge(q ParsedQuery) {
	if s := trimmed(q.Location); s != nil {
		c.Location = s
	}
	if s := trimmed(q.PropertyType); s != nil {
		c.PropertyType = s
	}
	if q.Bedrooms != nil && *q.Bedrooms >= 0 {
		b := *q.Bedrooms
		c.Bedrooms = &b
	}
	if q.Budget != nil && *q.Budget > 0 {
		b := *q.Budget
		c.Budget = &b
	}
	if s := trimmed(q.Timeframe); s != nil {
		c.Timeframe = s
	}
}

// ResolvedContext is the per-turn view of the context with defaults applied.
// It is never written back to the session.
type ResolvedContext struct {
	Location     string
	PropertyType string
	Bedrooms     int
	Budget       *float64
	Timeframe    string

	HasLocation     bool
	HasPropertyType bool
	HasBedrooms     bool
}

// Resolve applies the per-turn defaults: bedrooms fall back to studio, and
// property type falls back to apartment once location and bedrooms are known.
func (c ConversationContext) Resolve() ResolvedContext {
	r := ResolvedContext{Budget: c.Budget}
	if c.Location != nil {
		r.Location = *c.Location
		r.HasLocation = true
	}
	if c.Bedrooms != nil {
		r.Bedrooms = *c.Bedrooms
		r.HasBedrooms = true
	}
	if c.PropertyType != nil {
		r.PropertyType = *c.PropertyType
		r.HasPropertyType = true
	} else if r.HasLocation && r.HasBedrooms {
		r.PropertyType = DefaultPropertyType
		r.HasPropertyType = true
	}
	if c.Timeframe != nil {
		r.Timeframe = *c.Timeframe
	}
	return r
}

// BedroomLabel returns the lookup label for this turn's bedroom count
func (r ResolvedContext) BedroomLabel() string {
	return BedroomLabel(&r.Bedrooms)
}

// BedroomPhrase is the human wording used in replies ("2-bedroom", "studio")
func (r ResolvedContext) BedroomPhrase() string {
	if r.Bedrooms == 0 {
		return "studio"
	}
	return fmt.Sprintf("%d-bedroom", r.Bedrooms)
}

// BedroomLabel normalizes a bedroom count to the price table label.
// nil and 0 are both "Studio".
func BedroomLabel(bedrooms *int) string {
	if bedrooms == nil || *bedrooms == 0 {
		return "Studio"
	}
	return fmt.Sprintf("%d B/R", *bedrooms)
}

// Value implements driver.Valuer interface
func (c ConversationContext) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner interface
func (c *ConversationContext) Scan(value interface{}) error {
	if value == nil {
		*c = ConversationContext{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), c)
	}
	return json.Unmarshal(bytes, c)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "none") || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}
