package service

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"oliv/internal/model"
)

// Defaults substituted for absent predictor inputs. An absent bedroom count becomes 1,
// which biases estimates for studios the user did not label; kept for compatibility
// with the trained artifact.
const (
	DefaultPredictArea         = "UNKNOWN_AREA"
	DefaultPredictPropertyType = "UNKNOWN_TYPE"
	DefaultPredictSize         = 80.0
	DefaultPredictBedrooms     = 1
	DefaultPredictParking      = 1
)

// Regressor evaluates a fitted model on one aligned feature row
type Regressor interface {
	Predict(row []float64) float64
}

// LinearModel is a fitted ordinary least squares model
type LinearModel struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

func (m *LinearModel) Predict(row []float64) float64 {
	y := m.Intercept
	for i, x := range row {
		y += m.Coefficients[i] * x
	}
	return y
}

// Predictor turns PriceFeatures into a price estimate using a pre-fit model
type Predictor struct {
	model   Regressor
	columns []string
}

// NewPredictor wraps a fitted model and its training column order
func NewPredictor(m Regressor, columns []string) *Predictor {
	return &Predictor{model: m, columns: append([]string(nil), columns...)}
}

// LoadPredictor reads the model and column artifacts. Both are JSON files.
func LoadPredictor(modelPath, columnsPath string) (*Predictor, error) {
	var columns []string
	if err := readJSONFile(columnsPath, &columns); err != nil {
		return nil, fmt.Errorf("loading training columns: %w", err)
	}
	var lm LinearModel
	if err := readJSONFile(modelPath, &lm); err != nil {
		return nil, fmt.Errorf("loading pricing model: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("training column list is empty")
	}
	if len(lm.Coefficients) != len(columns) {
		return nil, fmt.Errorf("model has %d coefficients for %d training columns", len(lm.Coefficients), len(columns))
	}
	return NewPredictor(&lm, columns), nil
}

// DisabledPredictor returns a predictor on which every call fails
func DisabledPredictor() *Predictor {
	return &Predictor{}
}

// Enabled reports whether a model is loaded
func (p *Predictor) Enabled() bool {
	return p != nil && p.model != nil
}

// PredictPrice returns the estimate and whether it could be computed
func (p *Predictor) PredictPrice(f model.PriceFeatures) (float64, bool) {
	if !p.Enabled() {
		return 0, false
	}
	row := AlignRow(EncodeFeatures(f), p.columns)
	y := p.model.Predict(row)
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, false
	}
	return y, true
}

// EncodeFeatures applies the defaults and one-hot encodes the categorical inputs
// the same way the training frame was encoded (prefix "<COLUMN>_", plus a "_nan" indicator).
func EncodeFeatures(f model.PriceFeatures) map[string]float64 {
	area := DefaultPredictArea
	if f.Area != nil {
		area = *f.Area
	}
	propertyType := DefaultPredictPropertyType
	if f.PropertyType != nil {
		propertyType = *f.PropertyType
	}
	size := DefaultPredictSize
	if f.Size != nil {
		size = *f.Size
	}
	bedrooms := DefaultPredictBedrooms
	if f.Bedrooms != nil {
		bedrooms = *f.Bedrooms
	}
	parking := DefaultPredictParking
	if f.Parking != nil {
		parking = *f.Parking
	}

	return map[string]float64{
		"ACTUAL_AREA":                  size,
		"BEDROOMS":                     float64(bedrooms),
		"PARKING":                      float64(parking),
		"AREA_EN_" + area:              1,
		"AREA_EN_nan":                  0,
		"PROP_TYPE_EN_" + propertyType: 1,
		"PROP_TYPE_EN_nan":             0,
	}
}

// AlignRow orders encoded values by the training columns.
// Columns the row lacks are 0; encoded values with no training column are dropped.
func AlignRow(encoded map[string]float64, columns []string) []float64 {
	row := make([]float64, len(columns))
	for i, col := range columns {
		row[i] = encoded[col]
	}
	return row
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
