package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/finagent-io/finagent/pkg/config"
)

// HTTPWebSearcher implements WebSearcher and NewsSearcher against a
// JSON search API (Tavily-style: POST /search with query and topic).
type HTTPWebSearcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPWebSearcher builds the web search adapter. Returns nil when no
// base URL is configured, which disables the web search fallback.
func NewHTTPWebSearcher(cfg config.RetrievalConfig) *HTTPWebSearcher {
	if cfg.WebSearchURL == "" {
		return nil
	}
	return &HTTPWebSearcher{
		baseURL: cfg.WebSearchURL,
		apiKey:  os.Getenv(cfg.WebSearchKeyEnv),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Search implements WebSearcher.
func (s *HTTPWebSearcher) Search(ctx context.Context, query string, limit int) ([]WebResult, error) {
	return s.search(ctx, query, "general", limit)
}

// SearchNews implements NewsSearcher.
func (s *HTTPWebSearcher) SearchNews(ctx context.Context, query string, limit int) ([]NewsResult, error) {
	return s.search(ctx, query, "news", limit)
}

func (s *HTTPWebSearcher) search(ctx context.Context, query, topic string, limit int) ([]WebResult, error) {
	if limit <= 0 {
		limit = 3
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("topic", topic)
	params.Set("max_results", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search returned status %d", resp.StatusCode)
	}

	var body struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]WebResult, 0, len(body.Results))
	for _, r := range body.Results {
		results = append(results, WebResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}
	return results, nil
}
