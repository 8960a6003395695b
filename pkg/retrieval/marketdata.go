package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/finagent-io/finagent/pkg/config"
)

// HTTPMarketData implements MarketData against a JSON quote API
// (GET /quote?symbol=TICKER).
type HTTPMarketData struct {
	baseURL string
	client  *http.Client
}

// NewHTTPMarketData builds the quote adapter. Returns nil when no base
// URL is configured, which disables live quotes.
func NewHTTPMarketData(cfg config.RetrievalConfig) *HTTPMarketData {
	if cfg.MarketDataURL == "" {
		return nil
	}
	return &HTTPMarketData{
		baseURL: cfg.MarketDataURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Quote fetches a live quote. An unknown ticker returns (nil, nil).
func (m *HTTPMarketData) Quote(ctx context.Context, ticker string) (*Quote, error) {
	params := url.Values{}
	params.Set("symbol", ticker)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		m.baseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	if quote.Ticker == "" {
		quote.Ticker = ticker
	}
	return &quote, nil
}
