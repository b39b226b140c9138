package forecast

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/chative-shop-assistant/pkg/catalog"
)

type Assessment struct {
	Class            Level
	Confidence       float64
	Probabilities    [3]float64
	InsufficientData bool
	Features         Features
}

// ProbabilityMap keys the class distribution by level name.
func (a Assessment) ProbabilityMap() map[string]float64 {
	out := make(map[string]float64, len(Levels))
	for i, l := range Levels {
		out[string(l)] = round(a.Probabilities[i], 4)
	}
	return out
}

type Oracle interface {
	Predict(ctx context.Context, product catalog.Product, quantity int) (Assessment, error)
}

var _ Oracle = (*Service)(nil)

type Service struct {
	history *catalog.SalesHistory
	model   *Model
}

func NewService(history *catalog.SalesHistory, model *Model) *Service {
	if model == nil {
		model = DefaultModel()
	}
	if history == nil {
		history = catalog.NewSalesHistory(nil)
	}
	return &Service{history: history, model: model}
}

func (s *Service) Predict(ctx context.Context, product catalog.Product, quantity int) (Assessment, error) {
	if err := ctx.Err(); err != nil {
		return Assessment{}, err
	}

	features := BuildFeatures(s.history.Series(product.Name), product.CurrentStock, product.AvgDailySales, quantity)
	probs := s.model.Probabilities(features.Vector())

	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}

	out := Assessment{
		Class:            Levels[best],
		Confidence:       probs[best],
		Probabilities:    probs,
		InsufficientData: features.Insufficient(),
		Features:         features,
	}
	if out.InsufficientData {
		out.Confidence /= 2
		log.Debug().Str("product", product.Name).Int("history_days", features.HistoryDays).Msg("forecasting with insufficient sales history")
	}
	return out, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(finite(v)*p) / p
}

// Round rounds v to places decimals, mapping non-finite values to zero.
func Round(v float64, places int) float64 {
	return round(v, places)
}
