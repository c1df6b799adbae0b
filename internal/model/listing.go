package model

// Listing is one externally sourced candidate property. Price is free display text.
type Listing struct {
	Name     string `json:"name"`
	Link     string `json:"link,omitempty"`
	Price    string `json:"price,omitempty"`
	Features string `json:"features,omitempty"`
}

// PriceStat is one pre-aggregated row of the historical price table
type PriceStat struct {
	Area         string  `json:"area" db:"area"`
	PropertyType string  `json:"property_type" db:"property_type"`
	BedroomLabel string  `json:"bedroom_label" db:"bedroom_label"`
	MinPrice     float64 `json:"min_price" db:"min_price"`
	MaxPrice     float64 `json:"max_price" db:"max_price"`
	MedianPrice  float64 `json:"median_price" db:"median_price"`
	MedianArea   float64 `json:"median_area" db:"median_area"`
}

// PriceFeatures is the predictor input. Absent fields take the predictor defaults.
type PriceFeatures struct {
	Area         *string  `json:"area,omitempty"`
	PropertyType *string  `json:"property_type,omitempty"`
	Size         *float64 `json:"size,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Parking      *int     `json:"parking,omitempty"`
}

// ListingQuery describes a listing search
type ListingQuery struct {
	Location      string   `json:"location" binding:"required"`
	PropertyType  string   `json:"property_type,omitempty"`
	Bedrooms      *int     `json:"bedrooms,omitempty"`
	MaxPrice      *float64 `json:"max_price,omitempty"`
	ExactLocation bool     `json:"exact_location,omitempty"`
}
