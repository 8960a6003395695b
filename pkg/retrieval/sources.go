// Package retrieval implements the single-shot lookup stage and its
// collaborators: structured product lookup, semantic document search,
// web search, and market-data quotes. For every collaborator an empty
// result is valid and non-error; errors mean the source itself failed.
package retrieval

import "context"

// Document is a hit from the semantic knowledge corpus.
type Document struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SemanticIndex searches the knowledge corpus by similarity.
type SemanticIndex interface {
	Search(ctx context.Context, query string, limit int) ([]Document, error)
}

// WebResult is a hit from live web search.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearcher queries a live web search API.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]WebResult, error)
}

// Quote is a market-data snapshot for one ticker.
type Quote struct {
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
	Change float64 `json:"change_pct"`
	AsOf   string  `json:"as_of"`
}

// MarketData fetches live quotes. A nil quote with nil error means the
// ticker is unknown to the source.
type MarketData interface {
	Quote(ctx context.Context, ticker string) (*Quote, error)
}

// NewsResult is a news item used as debate evidence.
type NewsResult = WebResult

// NewsSearcher is the news-flavored view of web search the debate engine
// uses for per-round evidence.
type NewsSearcher interface {
	SearchNews(ctx context.Context, query string, limit int) ([]NewsResult, error)
}
