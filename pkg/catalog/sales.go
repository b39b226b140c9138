package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// SalesHistory holds daily unit sales per product, oldest first.
type SalesHistory struct {
	series map[string][]float64
}

func NewSalesHistory(series map[string][]float64) *SalesHistory {
	h := &SalesHistory{series: make(map[string][]float64, len(series))}
	for name, s := range series {
		h.series[normalize(name)] = append([]float64(nil), s...)
	}
	return h
}

// Series returns the daily sales of product, empty when unknown.
func (h *SalesHistory) Series(product string) []float64 {
	if h == nil {
		return nil
	}
	return append([]float64(nil), h.series[normalize(product)]...)
}

type salesPoint struct {
	date  time.Time
	units float64
}

// LoadSalesCSV reads a history file with date, product_name and units_sold
// columns. A missing file yields an empty history.
func LoadSalesCSV(path string) (*SalesHistory, error) {
	if strings.TrimSpace(path) == "" {
		return NewSalesHistory(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewSalesHistory(nil), nil
		}
		return nil, fmt.Errorf("open sales history: %w", err)
	}
	defer f.Close()
	return ReadSalesCSV(f)
}

func ReadSalesCSV(r io.Reader) (*SalesHistory, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read sales header: %w", err)
	}
	cols := indexColumns(header)
	for _, name := range []string{"date", "product_name", "units_sold"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	points := make(map[string][]salesPoint)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read sales line %d: %w", line, err)
		}
		row := csvRow{cols: cols, record: record}
		name := normalize(row.str("product_name"))
		if name == "" {
			continue
		}
		date, err := time.Parse("2006-01-02", row.str("date"))
		if err != nil {
			continue
		}
		points[name] = append(points[name], salesPoint{date: date, units: row.float("units_sold")})
	}

	series := make(map[string][]float64, len(points))
	for name, ps := range points {
		sort.SliceStable(ps, func(i, j int) bool {
			return ps[i].date.Before(ps[j].date)
		})
		s := make([]float64, len(ps))
		for i, p := range ps {
			s[i] = p.units
		}
		series[name] = s
	}
	return &SalesHistory{series: series}, nil
}
