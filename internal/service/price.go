package service

import (
	"context"

	"oliv/internal/logger"
	"oliv/internal/model"

	"go.uber.org/zap"
)

// PriceTable is a source of pre-aggregated historical price statistics
type PriceTable interface {
	GetPriceStat(ctx context.Context, area, propertyType, bedroomLabel string) (*model.PriceStat, error)
}

// PriceService combines the historical price table with the price predictor
type PriceService struct {
	table     PriceTable
	predictor *Predictor
	logger    *zap.Logger
}

// NewPriceService creates a new price service. predictor may be disabled.
func NewPriceService(table PriceTable, predictor *Predictor, log *zap.Logger) *PriceService {
	if predictor == nil {
		predictor = DisabledPredictor()
	}
	return &PriceService{
		table:     table,
		predictor: predictor,
		logger:    logger.OrNop(log).Named("price"),
	}
}

// GetPriceRange looks up the historical range for an exact (area, type, bedrooms) key.
// nil means no matching row or an unavailable table.
func (s *PriceService) GetPriceRange(ctx context.Context, area, propertyType string, bedrooms *int) *model.PriceStat {
	if s.table == nil {
		return nil
	}
	label := model.BedroomLabel(bedrooms)
	stat, err := s.table.GetPriceStat(ctx, area, propertyType, label)
	if err != nil {
		s.logger.Warn("price table lookup failed",
			zap.String("area", area),
			zap.String("property_type", propertyType),
			zap.String("bedroom_label", label),
			zap.Error(err))
		return nil
	}
	return stat
}

// PredictPrice returns a point estimate, or false when the predictor cannot produce one
func (s *PriceService) PredictPrice(ctx context.Context, f model.PriceFeatures) (float64, bool) {
	price, ok := s.predictor.PredictPrice(f)
	if !ok {
		s.logger.Debug("price prediction unavailable", zap.Bool("predictor_enabled", s.predictor.Enabled()))
	}
	return price, ok
}

// PredictorEnabled reports whether a model artifact is loaded
func (s *PriceService) PredictorEnabled() bool {
	return s.predictor.Enabled()
}
