package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tanpawarit/chative-shop-assistant/pkg/forecast"
	"github.com/tanpawarit/chative-shop-assistant/pkg/vectordb"
)

type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]vectordb.Match, error)
}

type RetrievedDocument struct {
	Content     string  `json:"content"`
	Score       float64 `json:"score"`
	ProductName string  `json:"product_name,omitempty"`
}

func NewRetrieveDocuments(s Searcher, topK int) Capability {
	if topK <= 0 {
		topK = vectordb.DefaultTopK
	}
	desc := Descriptor{
		Name:        CapabilityRetrieveDocuments,
		Description: "Retrieve product information from the vector database based on user query.",
		Scope:       scopeFor(CapabilityRetrieveDocuments),
		Params: []Param{
			{Name: "query", Description: "Search query to find relevant products"},
		},
	}
	return New(desc, func(ctx context.Context, args Args) (string, error) {
		matches, err := s.Search(ctx, args.Get("query"), topK)
		if err != nil {
			return "", fmt.Errorf("search products: %w", err)
		}
		if len(matches) == 0 {
			return ErrorPayload{
				Status:     "error",
				Message:    "No product information is indexed yet.",
				Suggestion: "Build the vector database with POST /create_vectorDB and retry.",
			}.String(), nil
		}

		out := make([]RetrievedDocument, 0, len(matches))
		for _, m := range matches {
			doc := RetrievedDocument{Content: m.Document.Content, Score: forecast.Round(m.Score, 4)}
			if name, ok := m.Document.MetaData[vectordb.MetaProductName].(string); ok {
				doc.ProductName = name
			}
			out = append(out, doc)
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return "", fmt.Errorf("marshal search results: %w", err)
		}
		return string(raw), nil
	})
}
