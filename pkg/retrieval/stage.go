package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finagent-io/finagent/pkg/llm"
	"github.com/finagent-io/finagent/pkg/services"
	"github.com/finagent-io/finagent/pkg/session"
)

// Stage answers narrow factual queries in a single pass. Sources are
// consulted in preference order: the structured product catalog first,
// the semantic corpus second, live web search last. A ticker-shaped
// query goes to market data directly. The stage does not loop or retry
// across sources beyond that single ordered walk.
type Stage struct {
	client  llm.Client
	catalog services.ProductCatalog
	index   SemanticIndex
	web     WebSearcher
	market  MarketData
	logger  *slog.Logger
}

// NewStage wires the retrieval stage. index, web, and market may be nil
// when the corresponding source is not configured; the stage skips
// absent sources.
func NewStage(client llm.Client, catalog services.ProductCatalog, index SemanticIndex, web WebSearcher, market MarketData) *Stage {
	return &Stage{
		client:  client,
		catalog: catalog,
		index:   index,
		web:     web,
		market:  market,
		logger:  slog.With("component", "retrieval"),
	}
}

const planPrompt = `You are the lookup planner for a financial advisory AI.
Decide how to answer the user's factual query. Pick ONE kind:

- "quote": the user wants a live price or quote for a specific ticker.
  Extract the ticker symbol (e.g. "AAPL", "NVDA").
- "product": the user wants investment products (funds, ETFs, deposits)
  filtered by keyword or category, possibly sorted by fees or returns.
- "knowledge": a definition, concept, or general factual question.

Respond with ONLY valid JSON:
{"kind": "quote"|"product"|"knowledge", "ticker": "", "keyword": "", "category": "", "sort": ""|"fees_asc"|"return_desc"}`

type lookupPlan struct {
	Kind     string `json:"kind"`
	Ticker   string `json:"ticker"`
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
	Sort     string `json:"sort"`
}

// Run executes the single-shot lookup for the latest user turn and
// returns the answer text. Empty results from every source produce an
// honest "not found" answer, not an error; only total stage failure
// (the composition call itself) surfaces as an error.
func (s *Stage) Run(ctx context.Context, st *session.State) (string, error) {
	query := st.LatestUserTurn()

	plan, err := s.plan(ctx, query)
	if err != nil {
		s.logger.Warn("Lookup planning failed, treating as knowledge query", "error", err)
		plan = lookupPlan{Kind: "knowledge"}
	}

	evidence := s.gather(ctx, st, query, plan)
	if evidence == "" {
		return "I could not find anything matching that in the product catalog, " +
			"my reference materials, or a web search. Could you rephrase or " +
			"give me a ticker or product name?", nil
	}

	return s.compose(ctx, query, evidence)
}

func (s *Stage) plan(ctx context.Context, query string) (lookupPlan, error) {
	var plan lookupPlan
	err := llm.CompleteJSON(ctx, s.client, llm.Request{
		System:      planPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: query}},
		Temperature: 0,
	}, &plan)
	return plan, err
}

// gather walks the sources in preference order and returns formatted
// evidence. A failing source is logged, recorded as a session caveat,
// and skipped; the walk continues with the next source.
func (s *Stage) gather(ctx context.Context, st *session.State, query string, plan lookupPlan) string {
	if plan.Kind == "quote" && plan.Ticker != "" {
		if text := s.fetchQuote(ctx, st, plan.Ticker); text != "" {
			return text
		}
	}

	if plan.Kind == "product" {
		if text := s.searchProducts(ctx, st, plan); text != "" {
			return text
		}
	}

	if s.index != nil {
		docs, err := s.index.Search(ctx, query, 3)
		if err != nil {
			s.logger.Warn("Semantic search degraded", "error", err)
			st.AddCaveat("knowledge corpus was unavailable for this lookup")
		} else if len(docs) > 0 {
			var sb strings.Builder
			sb.WriteString("Reference material:\n")
			for _, d := range docs {
				fmt.Fprintf(&sb, "- %s: %s\n", d.Title, d.Content)
			}
			return sb.String()
		}
	}

	if s.web != nil {
		results, err := s.web.Search(ctx, query, 3)
		if err != nil {
			s.logger.Warn("Web search degraded", "error", err)
			st.AddCaveat("web search was unavailable for this lookup")
		} else if len(results) > 0 {
			var sb strings.Builder
			sb.WriteString("Web search results:\n")
			for _, r := range results {
				fmt.Fprintf(&sb, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
			}
			return sb.String()
		}
	}

	return ""
}

func (s *Stage) fetchQuote(ctx context.Context, st *session.State, ticker string) string {
	if s.market == nil {
		return ""
	}
	quote, err := s.market.Quote(ctx, ticker)
	if err != nil {
		s.logger.Warn("Quote lookup degraded", "ticker", ticker, "error", err)
		st.AddCaveat("live market data was unavailable for this lookup")
		return ""
	}
	if quote == nil {
		return fmt.Sprintf("Ticker %q is not known to the market data source.", ticker)
	}
	return fmt.Sprintf("Live quote for %s: price %.2f, change %.2f%% (as of %s).",
		quote.Ticker, quote.Price, quote.Change, quote.AsOf)
}

func (s *Stage) searchProducts(ctx context.Context, st *session.State, plan lookupPlan) string {
	if s.catalog == nil {
		return ""
	}
	products, err := s.catalog.Search(ctx, services.ProductQuery{
		Keyword:  plan.Keyword,
		Category: plan.Category,
		Sort:     services.ProductSort(plan.Sort),
	})
	if err != nil {
		s.logger.Warn("Product catalog degraded", "error", err)
		st.AddCaveat("product catalog was unavailable for this lookup")
		return ""
	}
	if len(products) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Matching products:\n")
	for _, p := range products {
		fmt.Fprintf(&sb, "- %s (%s, %s): risk %s, fee %.2f%%, expected return %.2f%% — %s\n",
			p.Name, p.Code, p.Group, p.RiskCategory, p.Fee, p.ExpectedReturn, p.Description)
	}
	return sb.String()
}

const composePrompt = `You are a financial information assistant. Answer the
user's question using ONLY the evidence provided. Be concise and factual.
If the evidence does not fully answer the question, say what is missing.
Do not give personalized investment advice here; this is a factual lookup.`

func (s *Stage) compose(ctx context.Context, query, evidence string) (string, error) {
	answer, err := s.client.Complete(ctx, llm.Request{
		System: composePrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Question: %s\n\nEvidence:\n%s", query, evidence),
		}},
		Temperature: 0.3,
	})
	if err != nil {
		// The evidence itself is still useful; degrade to returning it
		// directly rather than failing the turn.
		s.logger.Warn("Answer composition failed, returning raw evidence", "error", err)
		return "Here is what I found:\n\n" + evidence, nil
	}
	return answer, nil
}
