package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tanpawarit/chative-shop-assistant/pkg/catalog"
	"github.com/tanpawarit/chative-shop-assistant/pkg/forecast"
)

const sampleProductNames = 10

type AvailabilityResult struct {
	Status              string             `json:"status"`
	ProductName         string             `json:"product_name"`
	UnitsRequested      int                `json:"units_requested"`
	CurrentStock        int                `json:"current_stock"`
	AvgDailySales       float64            `json:"avg_daily_sales"`
	DaysUntilStockout   float64            `json:"days_until_stockout"`
	PredictedStockLevel string             `json:"predicted_stock_level"`
	Confidence          float64            `json:"confidence"`
	ClassProbabilities  map[string]float64 `json:"class_probabilities"`
	CanFulfill          bool               `json:"can_fulfill"`
	InsufficientData    bool               `json:"insufficient_data"`
	Message             string             `json:"message"`
}

func NewCheckAvailability(c *catalog.Catalog, oracle forecast.Oracle) Capability {
	desc := Descriptor{
		Name:        CapabilityCheckAvailability,
		Description: "Check whether a product can fulfil an order of the requested quantity and forecast its stock level.",
		Scope:       scopeFor(CapabilityCheckAvailability),
		Params: []Param{
			{Name: "product_name", Description: "Name of the product to check"},
			{Name: "quantity", Description: "Number of units the customer wants"},
		},
	}
	return New(desc, func(ctx context.Context, args Args) (string, error) {
		name := args.Get("product_name")
		quantity, err := parseQuantity(args.Get("quantity"))
		if err != nil {
			return ErrorPayload{
				Status:     "error",
				Message:    fmt.Sprintf("Invalid quantity %q: %v", args.Get("quantity"), err),
				Suggestion: "Provide the quantity as a whole number, for example 3.",
			}.String(), nil
		}

		product, err := c.Find(name)
		if errors.Is(err, catalog.ErrProductNotFound) {
			return ErrorPayload{
				Status:     "error",
				Message:    fmt.Sprintf("Product '%s' not found in catalog.", name),
				Suggestion: "Ask the customer to pick one of the available products.",
				Available:  c.Names(sampleProductNames),
			}.String(), nil
		}
		if err != nil {
			return "", err
		}

		assessment, err := oracle.Predict(ctx, product, quantity)
		if err != nil {
			return "", fmt.Errorf("forecast %s: %w", product.Name, err)
		}

		canFulfill := quantity > 0 && quantity <= product.CurrentStock
		out := AvailabilityResult{
			Status:              "success",
			ProductName:         product.Name,
			UnitsRequested:      quantity,
			CurrentStock:        product.CurrentStock,
			AvgDailySales:       forecast.Round(product.AvgDailySales, 2),
			DaysUntilStockout:   forecast.Round(forecast.DaysUntilStockout(float64(product.CurrentStock), product.AvgDailySales), 1),
			PredictedStockLevel: string(assessment.Class),
			Confidence:          forecast.Round(assessment.Confidence, 4),
			ClassProbabilities:  assessment.ProbabilityMap(),
			CanFulfill:          canFulfill,
			InsufficientData:    assessment.InsufficientData,
			Message:             availabilityMessage(product, quantity, canFulfill),
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return "", fmt.Errorf("marshal availability: %w", err)
		}
		return string(raw), nil
	})
}

// parseQuantity accepts whole numbers, including integral floats like "3.0".
func parseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not a number")
	}
	if f != math.Trunc(f) {
		return 0, errors.New("not a whole number")
	}
	if math.Abs(f) > math.MaxInt32 {
		return 0, errors.New("out of range")
	}
	return int(f), nil
}

func availabilityMessage(p catalog.Product, quantity int, canFulfill bool) string {
	switch {
	case quantity <= 0:
		return fmt.Sprintf("Requested quantity must be at least 1. %s has %d units in stock.", p.Name, p.CurrentStock)
	case canFulfill:
		return fmt.Sprintf("%d units of %s are available.", quantity, p.Name)
	default:
		return fmt.Sprintf("Only %d units of %s are in stock, %d requested.", p.CurrentStock, p.Name, quantity)
	}
}
