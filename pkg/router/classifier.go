package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/finagent-io/finagent/pkg/llm"
	"github.com/finagent-io/finagent/pkg/models"
)

// Intent is the coarse classification of what the user wants this turn.
type Intent string

const (
	// IntentLookup is a narrow factual query: a price, a product, a
	// definition.
	IntentLookup Intent = "lookup"
	// IntentAdvisory is a comparative or risk/opportunity judgment call
	// ("should I buy X").
	IntentAdvisory Intent = "advisory"
	// IntentReport signals readiness to finalize ("write it up").
	IntentReport Intent = "report"
	// IntentProfile is an explicit request to change stored profile data.
	IntentProfile Intent = "profile"
	// IntentUnclear means the classifier could not commit to a reading.
	IntentUnclear Intent = "unclear"
)

// Classifier decides the intent of the latest turn given the recent
// conversation. Injected so router unit tests run with a deterministic
// stub instead of a live completion call.
type Classifier interface {
	Classify(ctx context.Context, window []models.Turn, latest string) (Intent, error)
}

const classifierPrompt = `You are the intent router for a financial advisory AI.
Given the recent conversation and the user's latest input, pick ONE intent:

- "lookup": narrow factual query — a price, a single metric, a product
  search, a definition ("price of Apple", "what is an ETF").
- "advisory": a judgment call needing analysis of both risks and
  opportunities ("should I buy Nvidia", "compare Nvidia vs Tesla",
  "is X a good investment", or agreeing to deeper analysis).
- "report": the user wants the final write-up ("write the report",
  "summarize now", "give me the conclusion", approving report generation).
- "profile": an explicit request to change stored personal data
  ("change my income", "update my risk level").
- "unclear": none of the above fits confidently.

Respond with ONLY valid JSON: {"intent": "...", "reason": "..."}`

// LLMClassifier implements Classifier on the completion service.
type LLMClassifier struct {
	client llm.Client
}

// NewLLMClassifier creates the production intent classifier.
func NewLLMClassifier(client llm.Client) *LLMClassifier {
	return &LLMClassifier{client: client}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, window []models.Turn, latest string) (Intent, error) {
	var sb strings.Builder
	for _, t := range window {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
	}
	fmt.Fprintf(&sb, "\nLatest user input: %q", latest)

	var out struct {
		Intent string `json:"intent"`
		Reason string `json:"reason"`
	}
	err := llm.CompleteJSON(ctx, c.client, llm.Request{
		System:      classifierPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		Temperature: 0,
	}, &out)
	if err != nil {
		return IntentUnclear, err
	}

	switch Intent(out.Intent) {
	case IntentLookup, IntentAdvisory, IntentReport, IntentProfile, IntentUnclear:
		return Intent(out.Intent), nil
	default:
		return IntentUnclear, nil
	}
}
