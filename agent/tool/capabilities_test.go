package tool

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	"github.com/tanpawarit/chative-shop-assistant/pkg/catalog"
	"github.com/tanpawarit/chative-shop-assistant/pkg/forecast"
	"github.com/tanpawarit/chative-shop-assistant/pkg/vectordb"
)

type fakeSearcher struct {
	matches []vectordb.Match
	err     error
	queries []string
	k       int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) ([]vectordb.Match, error) {
	f.queries = append(f.queries, query)
	f.k = k
	return f.matches, f.err
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Product{
		{Name: "Wireless Mouse", Category: "Accessories", Price: 29.99, CurrentStock: 50, AvgDailySales: 2},
		{Name: "Mechanical Keyboard", Category: "Accessories", Price: 89, CurrentStock: 3, AvgDailySales: 1.5},
		{Name: "USB-C Hub", Category: "Accessories", Price: 39, CurrentStock: 0, AvgDailySales: 0},
	})
}

func newTestDispatcher(t *testing.T, scope contractx.Scope, s Searcher) *Dispatcher {
	t.Helper()
	reg, err := NewShopRegistry(ShopDeps{
		Catalog:  testCatalog(),
		Oracle:   forecast.NewService(nil, nil),
		Searcher: s,
		TopK:     3,
	})
	if err != nil {
		t.Fatalf("NewShopRegistry() error = %v", err)
	}
	return NewDispatcher(reg, scope)
}

func TestCheckAvailabilityMatchesCaseInsensitively(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, contractx.ScopeGeneral, &fakeSearcher{})
	out, err := d.Invoke(context.Background(), CapabilityCheckAvailability, map[string]string{"product_name": "mouse", "quantity": "3"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	var res AvailabilityResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("payload is not JSON: %q", out)
	}
	if res.Status != "success" || res.ProductName != "Wireless Mouse" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !res.CanFulfill || res.UnitsRequested != 3 || res.CurrentStock != 50 {
		t.Fatalf("unexpected availability: %+v", res)
	}
	if res.DaysUntilStockout != 25 {
		t.Fatalf("DaysUntilStockout = %v, want 25", res.DaysUntilStockout)
	}
	switch forecast.Level(res.PredictedStockLevel) {
	case forecast.LevelLow, forecast.LevelMedium, forecast.LevelHigh:
	default:
		t.Fatalf("unexpected class %q", res.PredictedStockLevel)
	}
	sum := 0.0
	for _, p := range res.ClassProbabilities {
		sum += p
	}
	if len(res.ClassProbabilities) != 3 || sum < 0.999 || sum > 1.001 {
		t.Fatalf("class probabilities = %v", res.ClassProbabilities)
	}
	if !res.InsufficientData {
		t.Fatalf("no sales history must be flagged as insufficient")
	}
}

func TestCheckAvailabilityUnknownProduct(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, contractx.ScopeGeneral, &fakeSearcher{})
	out, err := d.Invoke(context.Background(), CapabilityCheckAvailability, map[string]string{"product_name": "laptop stand", "quantity": "1"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	var payload ErrorPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("payload is not JSON: %q", out)
	}
	if payload.Status != "error" || len(payload.Available) != 3 || len(payload.Available) > 10 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestCheckAvailabilityEdgeQuantities(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, contractx.ScopeGeneral, &fakeSearcher{})
	cases := []struct {
		product  string
		quantity string
		fulfil   bool
	}{
		{product: "Wireless Mouse", quantity: "0", fulfil: false},
		{product: "Wireless Mouse", quantity: "-4", fulfil: false},
		{product: "Wireless Mouse", quantity: "50", fulfil: true},
		{product: "Wireless Mouse", quantity: "5.0", fulfil: true},
		{product: "mechanical keyboard", quantity: "4", fulfil: false},
		{product: "usb-c hub", quantity: "1", fulfil: false},
	}
	for _, tc := range cases {
		out, err := d.Invoke(context.Background(), CapabilityCheckAvailability, map[string]string{"product_name": tc.product, "quantity": tc.quantity})
		if err != nil {
			t.Fatalf("Invoke(%s, %s) error = %v", tc.product, tc.quantity, err)
		}
		var res AvailabilityResult
		if err := json.Unmarshal([]byte(out), &res); err != nil || res.Status != "success" {
			t.Fatalf("Invoke(%s, %s) payload = %q", tc.product, tc.quantity, out)
		}
		if res.CanFulfill != tc.fulfil {
			t.Fatalf("Invoke(%s, %s) can_fulfill = %v, want %v", tc.product, tc.quantity, res.CanFulfill, tc.fulfil)
		}
	}
}

func TestCheckAvailabilityZeroDemandIsGuarded(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, contractx.ScopeGeneral, &fakeSearcher{})
	out, _ := d.Invoke(context.Background(), CapabilityCheckAvailability, map[string]string{"product_name": "USB-C Hub", "quantity": "1"})

	var res AvailabilityResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("payload is not JSON: %q", out)
	}
	if res.DaysUntilStockout != 0 || res.AvgDailySales != 0 {
		t.Fatalf("unexpected zero demand result: %+v", res)
	}
}

func TestCheckAvailabilityInvalidQuantity(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, contractx.ScopeGeneral, &fakeSearcher{})
	out, err := d.Invoke(context.Background(), CapabilityCheckAvailability, map[string]string{"product_name": "mouse", "quantity": "a few"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	var payload ErrorPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil || payload.Status != "error" || payload.Suggestion == "" {
		t.Fatalf("unexpected payload: %q", out)
	}
}

func TestRetrieveDocuments(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{matches: []vectordb.Match{
		{Document: &schema.Document{Content: "Product Name: Wireless Mouse", MetaData: map[string]any{vectordb.MetaProductName: "Wireless Mouse"}}, Score: 0.912345},
		{Document: &schema.Document{Content: "Following are the available products"}, Score: 0.5},
	}}
	d := newTestDispatcher(t, contractx.ScopeGeneral, s)

	out, err := d.Invoke(context.Background(), CapabilityRetrieveDocuments, map[string]string{"query": " wireless mouse "})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	var docs []RetrievedDocument
	if err := json.Unmarshal([]byte(out), &docs); err != nil {
		t.Fatalf("payload is not JSON: %q", out)
	}
	if len(docs) != 2 || docs[0].ProductName != "Wireless Mouse" || docs[0].Score != 0.9123 {
		t.Fatalf("unexpected docs: %+v", docs)
	}
	if s.k != 3 || s.queries[0] != "wireless mouse" {
		t.Fatalf("unexpected search call k=%d queries=%v", s.k, s.queries)
	}
}

func TestRetrieveDocumentsFailures(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, contractx.ScopeGeneral, &fakeSearcher{})
	out, _ := d.Invoke(context.Background(), CapabilityRetrieveDocuments, map[string]string{"query": "mouse"})
	var payload ErrorPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil || payload.Status != "error" {
		t.Fatalf("empty index payload = %q", out)
	}

	d = newTestDispatcher(t, contractx.ScopeGeneral, &fakeSearcher{err: errors.New("embedder down")})
	out, err := d.Invoke(context.Background(), CapabilityRetrieveDocuments, map[string]string{"query": "mouse"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil || payload.Status != "error" {
		t.Fatalf("search failure payload = %q", out)
	}
}

func TestRestockReportIsStaffOnly(t *testing.T) {
	t.Parallel()

	general := newTestDispatcher(t, contractx.ScopeGeneral, &fakeSearcher{})
	if _, err := general.Invoke(context.Background(), CapabilityRestockReport, map[string]string{"threshold_days": "7"}); !errors.Is(err, contractx.ErrUnknownCapability) {
		t.Fatalf("general scope reached restock_report: %v", err)
	}

	staff := newTestDispatcher(t, contractx.ScopeStaff, &fakeSearcher{})
	out, err := staff.Invoke(context.Background(), CapabilityRestockReport, map[string]string{"threshold_days": "7"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	var report RestockReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("payload is not JSON: %q", out)
	}
	if len(report.Products) != 2 {
		t.Fatalf("unexpected products: %+v", report.Products)
	}
	if report.Products[0].ProductName != "USB-C Hub" || report.Products[1].ProductName != "Mechanical Keyboard" {
		t.Fatalf("products not ordered by urgency: %+v", report.Products)
	}
	if report.Products[1].SuggestedReorderUnits != 8 {
		t.Fatalf("SuggestedReorderUnits = %d, want 8", report.Products[1].SuggestedReorderUnits)
	}

	if _, err := staff.Invoke(context.Background(), CapabilityCheckAvailability, map[string]string{"product_name": "mouse", "quantity": "1"}); !errors.Is(err, contractx.ErrUnknownCapability) {
		t.Fatalf("staff scope reached general capability: %v", err)
	}
}

func TestRestockReportInvalidThreshold(t *testing.T) {
	t.Parallel()

	staff := newTestDispatcher(t, contractx.ScopeStaff, &fakeSearcher{})
	out, _ := staff.Invoke(context.Background(), CapabilityRestockReport, map[string]string{"threshold_days": "-1"})
	var payload ErrorPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil || payload.Status != "error" {
		t.Fatalf("unexpected payload: %q", out)
	}
}

func TestCheckAvailabilityDirtyCatalogueNumbers(t *testing.T) {
	t.Parallel()

	raw := "product_name,category,price,description,specifications,order_count,current_stock,avg_daily_sales\n" +
		"Wireless Mouse,Accessories,NaN,d,s,1,NaN,Inf\n"
	c, err := catalog.ReadCSV(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	reg, err := NewShopRegistry(ShopDeps{Catalog: c, Searcher: &fakeSearcher{}})
	if err != nil {
		t.Fatalf("NewShopRegistry() error = %v", err)
	}

	out, err := NewDispatcher(reg, contractx.ScopeGeneral).Invoke(context.Background(), CapabilityCheckAvailability,
		map[string]string{"product_name": "Wireless Mouse", "quantity": "2"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	var res AvailabilityResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("payload is not JSON: %q", out)
	}
	if res.CurrentStock != 0 || res.AvgDailySales != 0 || res.CanFulfill {
		t.Fatalf("non-finite cells should read as zero: %+v", res)
	}
	if math.IsNaN(res.DaysUntilStockout) || math.IsInf(res.DaysUntilStockout, 0) || res.DaysUntilStockout < 0 {
		t.Fatalf("days until stockout must be finite and non-negative: %v", res.DaysUntilStockout)
	}
	if strings.Contains(res.Message, "-") {
		t.Fatalf("message reports negative values: %q", res.Message)
	}
}
