package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrMissingColumn   = errors.New("catalogue column is missing")
)

type Product struct {
	Name           string
	Category       string
	Price          float64
	Description    string
	Specifications string
	OrderCount     int
	CurrentStock   int
	AvgDailySales  float64
}

// Catalog is an immutable, ordered product list.
type Catalog struct {
	products []Product
}

func New(products []Product) *Catalog {
	return &Catalog{products: append([]Product(nil), products...)}
}

func (c *Catalog) Products() []Product {
	if c == nil {
		return nil
	}
	return append([]Product(nil), c.products...)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.products)
}

// Names returns up to limit product names in catalogue order; limit <= 0
// returns all of them.
func (c *Catalog) Names(limit int) []string {
	if c == nil {
		return nil
	}
	n := len(c.products)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, 0, n)
	for _, p := range c.products[:n] {
		out = append(out, p.Name)
	}
	return out
}

// UniqueNames returns every distinct product name in catalogue order.
func (c *Catalog) UniqueNames() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(c.products))
	out := make([]string, 0, len(c.products))
	for _, p := range c.products {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p.Name)
	}
	return out
}

// Find matches query against product names case-insensitively: exact match
// first, then substring, then every query token contained in the name.
func (c *Catalog) Find(query string) (Product, error) {
	q := normalize(query)
	if c == nil || q == "" {
		return Product{}, ErrProductNotFound
	}

	for _, p := range c.products {
		if normalize(p.Name) == q {
			return p, nil
		}
	}
	for _, p := range c.products {
		if strings.Contains(normalize(p.Name), q) {
			return p, nil
		}
	}

	tokens := strings.Fields(q)
	for _, p := range c.products {
		name := normalize(p.Name)
		matched := true
		for _, tok := range tokens {
			if !strings.Contains(name, tok) {
				matched = false
				break
			}
		}
		if matched {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("%w: %q", ErrProductNotFound, query)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

var requiredColumns = []string{"product_name"}

// LoadCSV reads a catalogue file. Only product_name is mandatory; numeric
// cells that fail to parse are read as zero.
func LoadCSV(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

func ReadCSV(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalogue header: %w", err)
	}
	cols := indexColumns(header)
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	var products []Product
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalogue line %d: %w", line, err)
		}
		row := csvRow{cols: cols, record: record}
		name := row.str("product_name")
		if name == "" {
			continue
		}
		products = append(products, Product{
			Name:           name,
			Category:       row.str("category"),
			Price:          row.float("price"),
			Description:    row.str("description"),
			Specifications: row.str("specifications"),
			OrderCount:     row.count("order_count"),
			CurrentStock:   row.count("current_stock"),
			AvgDailySales:  row.float("avg_daily_sales"),
		})
	}
	return New(products), nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if key == "name" {
			key = "product_name"
		}
		cols[key] = i
	}
	return cols
}

type csvRow struct {
	cols   map[string]int
	record []string
}

func (r csvRow) str(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

// maxCount bounds integer columns so conversions stay well defined.
const maxCount = math.MaxInt32

// float reads a numeric cell. Unparsable and non-finite values read as 0.
func (r csvRow) float(col string) float64 {
	return parseFinite(r.str(col))
}

// count reads a non-negative integer cell, truncating fractions.
func (r csvRow) count(col string) int {
	v := r.float(col)
	switch {
	case v <= 0:
		return 0
	case v >= maxCount:
		return maxCount
	default:
		return int(v)
	}
}

func parseFinite(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
