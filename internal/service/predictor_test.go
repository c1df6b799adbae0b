package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"oliv/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColumns = []string{
	"ACTUAL_AREA", "BEDROOMS", "PARKING",
	"AREA_EN_Dubai Marina", "AREA_EN_UNKNOWN_AREA", "AREA_EN_nan",
	"PROP_TYPE_EN_apartment", "PROP_TYPE_EN_UNKNOWN_TYPE", "PROP_TYPE_EN_nan",
}

func testModel() *LinearModel {
	return &LinearModel{
		Intercept:    100000,
		Coefficients: []float64{10000, 50000, 20000, 300000, -50000, 0, 25000, 0, 0},
	}
}

func TestEncodeFeaturesDefaults(t *testing.T) {
	encoded := EncodeFeatures(model.PriceFeatures{})

	assert.Equal(t, 80.0, encoded["ACTUAL_AREA"])
	assert.Equal(t, 1.0, encoded["BEDROOMS"])
	assert.Equal(t, 1.0, encoded["PARKING"])
	assert.Equal(t, 1.0, encoded["AREA_EN_UNKNOWN_AREA"])
	assert.Equal(t, 1.0, encoded["PROP_TYPE_EN_UNKNOWN_TYPE"])
	assert.Equal(t, 0.0, encoded["AREA_EN_nan"])
}

func TestAlignRow(t *testing.T) {
	encoded := EncodeFeatures(model.PriceFeatures{
		Area:         strPtr("Dubai Marina"),
		PropertyType: strPtr("apartment"),
		Size:         floatPtr(95),
		Bedrooms:     intPtr(2),
		Parking:      intPtr(1),
	})
	encoded["AREA_EN_Somewhere Unseen"] = 1

	row := AlignRow(encoded, testColumns)

	assert.Equal(t, []float64{95, 2, 1, 1, 0, 0, 1, 0, 0}, row)
}

func TestPredictPriceWithEmptyFeatures(t *testing.T) {
	p := NewPredictor(testModel(), testColumns)

	price, ok := p.PredictPrice(model.PriceFeatures{})

	require.True(t, ok)
	// 100000 + 80*10000 + 1*50000 + 1*20000 - 50000
	assert.InDelta(t, 920000, price, 0.001)
}

func TestPredictPriceDisabled(t *testing.T) {
	_, ok := DisabledPredictor().PredictPrice(model.PriceFeatures{})
	assert.False(t, ok)

	var nilPredictor *Predictor
	assert.False(t, nilPredictor.Enabled())
}

func TestLoadPredictor(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	columnsPath := filepath.Join(dir, "columns.json")

	require.NoError(t, os.WriteFile(columnsPath, []byte(`["ACTUAL_AREA", "BEDROOMS"]`), 0o644))
	require.NoError(t, os.WriteFile(modelPath, []byte(`{"intercept": 1000, "coefficients": [10, 100]}`), 0o644))

	p, err := LoadPredictor(modelPath, columnsPath)
	require.NoError(t, err)
	price, ok := p.PredictPrice(model.PriceFeatures{Size: floatPtr(50), Bedrooms: intPtr(3)})
	require.True(t, ok)
	assert.InDelta(t, 1800, price, 0.001)

	require.NoError(t, os.WriteFile(modelPath, []byte(`{"intercept": 1000, "coefficients": [10]}`), 0o644))
	_, err = LoadPredictor(modelPath, columnsPath)
	assert.Error(t, err)

	_, err = LoadPredictor(filepath.Join(dir, "missing.json"), columnsPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPriceServiceGetPriceRange(t *testing.T) {
	stat := &model.PriceStat{Area: "Dubai Marina", PropertyType: "apartment", BedroomLabel: "2 B/R", MedianPrice: 2100000}
	svc := NewPriceService(fakePriceTable{"Dubai Marina|apartment|2 B/R": stat}, nil, nil)
	ctx := context.Background()

	assert.Equal(t, stat, svc.GetPriceRange(ctx, "Dubai Marina", "apartment", intPtr(2)))
	// lookups are idempotent
	assert.Equal(t, svc.GetPriceRange(ctx, "Dubai Marina", "apartment", intPtr(2)), svc.GetPriceRange(ctx, "Dubai Marina", "apartment", intPtr(2)))
	assert.Nil(t, svc.GetPriceRange(ctx, "dubai marina", "apartment", intPtr(2)))
	assert.Nil(t, svc.GetPriceRange(ctx, "Dubai Marina", "apartment", nil))
	assert.False(t, svc.PredictorEnabled())

	assert.Nil(t, NewPriceService(nil, nil, nil).GetPriceRange(ctx, "Dubai Marina", "apartment", intPtr(2)))
}
