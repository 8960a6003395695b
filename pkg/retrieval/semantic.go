package retrieval

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"

	"github.com/finagent-io/finagent/pkg/config"
)

// financeDocClass is the Weaviate class holding the finance knowledge
// corpus (concept explainers, analyst reports, regulation summaries).
const financeDocClass = "FinanceDocument"

// WeaviateIndex implements SemanticIndex against a Weaviate instance.
type WeaviateIndex struct {
	client *weaviate.Client
}

// NewWeaviateIndex connects to the configured Weaviate host. Returns nil
// (not an error) when no host is configured; semantic search is then
// skipped in the source preference order.
func NewWeaviateIndex(cfg config.RetrievalConfig) (*WeaviateIndex, error) {
	if cfg.WeaviateHost == "" {
		return nil, nil
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.WeaviateHost,
		Scheme: cfg.WeaviateScheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return &WeaviateIndex{client: client}, nil
}

// Search runs a nearText similarity query over the corpus.
func (w *WeaviateIndex) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 3
	}

	nearText := w.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	resp, err := w.client.GraphQL().Get().
		WithClassName(financeDocClass).
		WithFields(
			graphql.Field{Name: "title"},
			graphql.Field{Name: "content"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
		).
		WithNearText(nearText).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("semantic search failed: %s", resp.Errors[0].Message)
	}

	return decodeDocuments(resp.Data), nil
}

func decodeDocuments(data map[string]wmodels.JSONObject) []Document {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	hits, ok := get[financeDocClass].([]any)
	if !ok {
		return nil
	}

	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		fields, ok := h.(map[string]any)
		if !ok {
			continue
		}
		doc := Document{}
		if title, ok := fields["title"].(string); ok {
			doc.Title = title
		}
		if content, ok := fields["content"].(string); ok {
			doc.Content = content
		}
		if additional, ok := fields["_additional"].(map[string]any); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				doc.Score = certainty
			}
		}
		docs = append(docs, doc)
	}
	return docs
}
