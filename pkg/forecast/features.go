package forecast

import "math"

const (
	// MinDailySales guards stock cover computations against zero demand.
	MinDailySales = 0.1
	// MinHistoryDays is the shortest sales window treated as reliable.
	MinHistoryDays = 7
	maxCoverDays   = 365
)

var FeatureNames = []string{
	"lag_1",
	"lag_7",
	"rolling_mean_7",
	"rolling_mean_30",
	"rolling_std_7",
	"velocity_ratio",
	"trend_ratio",
	"current_stock",
	"avg_daily_sales",
	"requested_quantity",
	"stock_cover_days",
	"request_to_stock_ratio",
}

type Features struct {
	Lag1                float64
	Lag7                float64
	RollingMean7        float64
	RollingMean30       float64
	RollingStd7         float64
	VelocityRatio       float64
	TrendRatio          float64
	CurrentStock        float64
	AvgDailySales       float64
	RequestedQuantity   float64
	StockCoverDays      float64
	RequestToStockRatio float64
	HistoryDays         int
}

// Vector returns the features in FeatureNames order.
func (f Features) Vector() []float64 {
	return []float64{
		f.Lag1,
		f.Lag7,
		f.RollingMean7,
		f.RollingMean30,
		f.RollingStd7,
		f.VelocityRatio,
		f.TrendRatio,
		f.CurrentStock,
		f.AvgDailySales,
		f.RequestedQuantity,
		f.StockCoverDays,
		f.RequestToStockRatio,
	}
}

func (f Features) Insufficient() bool {
	return f.HistoryDays < MinHistoryDays
}

// BuildFeatures derives model inputs from a daily sales series (oldest first).
// Any non-finite intermediate value becomes zero.
func BuildFeatures(series []float64, currentStock int, avgDailySales float64, quantity int) Features {
	clean := make([]float64, len(series))
	for i, v := range series {
		clean[i] = finite(v)
	}

	f := Features{HistoryDays: len(clean)}
	if n := len(clean); n > 0 {
		f.Lag1 = clean[n-1]
		if n >= 7 {
			f.Lag7 = clean[n-7]
		}
	}
	last7 := tail(clean, 7)
	f.RollingMean7 = mean(last7)
	f.RollingMean30 = mean(tail(clean, 30))
	f.RollingStd7 = stddev(last7)
	f.VelocityRatio = safeDiv(f.RollingMean7, f.RollingMean30)
	f.TrendRatio = safeDiv(f.Lag1, f.RollingMean7)

	avg := finite(avgDailySales)
	if avg <= 0 && len(clean) > 0 {
		avg = f.RollingMean30
	}
	f.AvgDailySales = math.Max(avg, 0)

	stock := math.Max(float64(currentStock), 0)
	f.CurrentStock = stock
	f.RequestedQuantity = math.Max(float64(quantity), 0)
	f.StockCoverDays = math.Min(DaysUntilStockout(stock, f.AvgDailySales), maxCoverDays)
	f.RequestToStockRatio = safeDiv(f.RequestedQuantity, math.Max(stock, 1))

	return f.sanitized()
}

// DaysUntilStockout divides stock by a demand rate floored at MinDailySales.
func DaysUntilStockout(stock, avgDailySales float64) float64 {
	return finite(finite(stock) / math.Max(finite(avgDailySales), MinDailySales))
}

func (f Features) sanitized() Features {
	f.Lag1 = finite(f.Lag1)
	f.Lag7 = finite(f.Lag7)
	f.RollingMean7 = finite(f.RollingMean7)
	f.RollingMean30 = finite(f.RollingMean30)
	f.RollingStd7 = finite(f.RollingStd7)
	f.VelocityRatio = finite(f.VelocityRatio)
	f.TrendRatio = finite(f.TrendRatio)
	f.CurrentStock = finite(f.CurrentStock)
	f.AvgDailySales = finite(f.AvgDailySales)
	f.RequestedQuantity = finite(f.RequestedQuantity)
	f.StockCoverDays = finite(f.StockCoverDays)
	f.RequestToStockRatio = finite(f.RequestToStockRatio)
	return f
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func safeDiv(a, b float64) float64 {
	if math.Abs(b) < 1e-9 {
		return 0
	}
	return finite(a / b)
}

func tail(s []float64, n int) []float64 {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

func stddev(s []float64) float64 {
	if len(s) < 2 {
		return 0
	}
	m := mean(s)
	acc := 0.0
	for _, v := range s {
		d := v - m
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(s)))
}
