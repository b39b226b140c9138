package vectordb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/tanpawarit/chative-shop-assistant/pkg/catalog"
)

const (
	MetaKind        = "kind"
	MetaProductName = "product_name"
	MetaCategory    = "category"

	KindProduct     = "product"
	KindProductList = "product_list"
)

// BuildDocuments converts every catalogue row into a retrievable chunk and
// appends one aggregate record listing all product names.
func BuildDocuments(c *catalog.Catalog) []*schema.Document {
	products := c.Products()
	docs := make([]*schema.Document, 0, len(products)+1)
	for i, p := range products {
		docs = append(docs, &schema.Document{
			ID:      "product-" + strconv.Itoa(i),
			Content: productChunk(p),
			MetaData: map[string]any{
				MetaKind:        KindProduct,
				MetaProductName: p.Name,
				MetaCategory:    p.Category,
			},
		})
	}
	if len(products) > 0 {
		docs = append(docs, &schema.Document{
			ID:       "product-list",
			Content:  "Following are the available products in system:\n " + strings.Join(c.UniqueNames(), ", "),
			MetaData: map[string]any{MetaKind: KindProductList},
		})
	}
	return docs
}

func productChunk(p catalog.Product) string {
	return fmt.Sprintf(
		"Product Name: %s\n Category: %s\n Price: %s\n Description: %s\n Specifications: %s\n Order Count: %d",
		p.Name,
		p.Category,
		strconv.FormatFloat(p.Price, 'f', -1, 64),
		p.Description,
		p.Specifications,
		p.OrderCount,
	)
}
