package tool

import (
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	"github.com/tanpawarit/chative-shop-assistant/pkg/catalog"
	"github.com/tanpawarit/chative-shop-assistant/pkg/forecast"
)

const (
	CapabilityRetrieveDocuments = "retrieve_documents"
	CapabilityCheckAvailability = "check_availability"
	CapabilityRestockReport     = "restock_report"
)

// ShopDeps are the collaborators of the shop capabilities.
type ShopDeps struct {
	Catalog  *catalog.Catalog
	Oracle   forecast.Oracle
	Searcher Searcher
	TopK     int
}

// NewShopRegistry declares every shop capability. Registration order is the
// order tools are offered to the model.
func NewShopRegistry(deps ShopDeps) (*Registry, error) {
	if deps.Searcher == nil {
		return nil, errors.New("shop registry: searcher is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.New(nil)
	}
	if deps.Oracle == nil {
		deps.Oracle = forecast.NewService(nil, nil)
	}

	reg := NewRegistry()
	for _, c := range []Capability{
		NewRetrieveDocuments(deps.Searcher, deps.TopK),
		NewCheckAvailability(deps.Catalog, deps.Oracle),
		NewRestockReport(deps.Catalog, deps.Oracle),
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("shop registry: %w", err)
		}
	}
	return reg, nil
}

func scopeFor(name string) contractx.Scope {
	if name == CapabilityRestockReport {
		return contractx.ScopeStaff
	}
	return contractx.ScopeGeneral
}
