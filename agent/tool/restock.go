package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/tanpawarit/chative-shop-assistant/pkg/catalog"
	"github.com/tanpawarit/chative-shop-assistant/pkg/forecast"
)

type RestockItem struct {
	ProductName           string  `json:"product_name"`
	CurrentStock          int     `json:"current_stock"`
	AvgDailySales         float64 `json:"avg_daily_sales"`
	DaysUntilStockout     float64 `json:"days_until_stockout"`
	SuggestedReorderUnits int     `json:"suggested_reorder_units"`
	PredictedStockLevel   string  `json:"predicted_stock_level"`
}

type RestockReport struct {
	Status        string        `json:"status"`
	ThresholdDays float64       `json:"threshold_days"`
	Products      []RestockItem `json:"products"`
}

// NewRestockReport lists products whose stock covers fewer days than the
// threshold, most urgent first.
func NewRestockReport(c *catalog.Catalog, oracle forecast.Oracle) Capability {
	desc := Descriptor{
		Name:        CapabilityRestockReport,
		Description: "List products that will run out of stock within the given number of days.",
		Scope:       scopeFor(CapabilityRestockReport),
		Params: []Param{
			{Name: "threshold_days", Description: "Report products with fewer days of stock than this"},
		},
	}
	return New(desc, func(ctx context.Context, args Args) (string, error) {
		threshold, err := strconv.ParseFloat(args.Get("threshold_days"), 64)
		if err != nil || threshold <= 0 || math.IsInf(threshold, 0) || math.IsNaN(threshold) {
			return ErrorPayload{
				Status:     "error",
				Message:    fmt.Sprintf("Invalid threshold_days %q.", args.Get("threshold_days")),
				Suggestion: "Provide a positive number of days, for example 14.",
			}.String(), nil
		}

		report := RestockReport{Status: "success", ThresholdDays: threshold, Products: []RestockItem{}}
		for _, p := range c.Products() {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			demand := math.Max(p.AvgDailySales, forecast.MinDailySales)
			days := forecast.DaysUntilStockout(float64(p.CurrentStock), p.AvgDailySales)
			if days >= threshold {
				continue
			}
			needed := int(math.Ceil(threshold*demand)) - p.CurrentStock
			item := RestockItem{
				ProductName:           p.Name,
				CurrentStock:          p.CurrentStock,
				AvgDailySales:         forecast.Round(p.AvgDailySales, 2),
				DaysUntilStockout:     forecast.Round(days, 1),
				SuggestedReorderUnits: max(needed, 0),
			}
			if a, err := oracle.Predict(ctx, p, item.SuggestedReorderUnits); err == nil {
				item.PredictedStockLevel = string(a.Class)
			} else if errors.Is(err, context.Canceled) {
				return "", err
			}
			report.Products = append(report.Products, item)
		}
		sort.SliceStable(report.Products, func(i, j int) bool {
			return report.Products[i].DaysUntilStockout < report.Products[j].DaysUntilStockout
		})

		raw, err := json.Marshal(report)
		if err != nil {
			return "", fmt.Errorf("marshal restock report: %w", err)
		}
		return string(raw), nil
	})
}
