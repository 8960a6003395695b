// Package debate runs the fixed-round, three-stance debate protocol and
// the judge that seals it with a verdict. The number of rounds and the
// stance set never vary at runtime; a failed stance call degrades to a
// placeholder argument, never to a shorter debate.
package debate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finagent-io/finagent/pkg/config"
	"github.com/finagent-io/finagent/pkg/llm"
	"github.com/finagent-io/finagent/pkg/models"
	"github.com/finagent-io/finagent/pkg/retrieval"
	"github.com/finagent-io/finagent/pkg/session"
)

// Engine executes the debate protocol for one topic.
type Engine struct {
	cfg    *config.Config
	client llm.Client
	news   retrieval.NewsSearcher
	market retrieval.MarketData
	logger *slog.Logger
}

// New wires the debate engine. news and market may be nil; rounds then
// argue from the conversation and profile alone.
func New(cfg *config.Config, client llm.Client, news retrieval.NewsSearcher, market retrieval.MarketData) *Engine {
	return &Engine{
		cfg:    cfg,
		client: client,
		news:   news,
		market: market,
		logger: slog.With("component", "debate"),
	}
}

// Run executes all rounds for the topic, seals the record with a
// verdict, and returns it. The record on the session state accumulates
// rounds as they complete, so a cancellation mid-protocol leaves the
// completed rounds visible but the record unsealed. Only a complete
// round is ever appended; an in-flight round interrupted by ctx is
// discarded.
func (e *Engine) Run(ctx context.Context, st *session.State, topic string) (*models.DebateRecord, error) {
	record := &models.DebateRecord{Topic: topic}
	st.Debate = record

	rounds := e.cfg.Debate.Rounds
	e.logger.Info("Starting debate", "topic", topic, "rounds", rounds)

	for n := 1; n <= rounds; n++ {
		if err := ctx.Err(); err != nil {
			return record, err
		}

		evidence, refs := e.gatherEvidence(ctx, topic)
		round, err := e.runRound(ctx, st, record, n, rounds, evidence, refs)
		if err != nil {
			return record, err
		}
		record.Rounds = append(record.Rounds, round)
		e.logger.Info("Round complete", "round", n, "phase", round.Phase)
	}

	verdict, err := e.judge(ctx, st, record)
	if err != nil {
		e.logger.Warn("Judge failed, sealing as inconclusive", "error", err)
		verdict = &models.Verdict{
			Recommendation: "inconclusive",
			Rationale:      "The judge could not produce a verdict; the recorded arguments stand on their own.",
			Confidence:     0,
		}
	}

	record.Verdict = verdict
	record.Sealed = true
	record.SealedAt = time.Now()
	e.logger.Info("Debate sealed",
		"topic", topic, "recommendation", verdict.Recommendation, "confidence", verdict.Confidence)

	if e.cfg.Debate.SuggestFollowUp {
		e.raiseFollowUp(ctx, st, record)
	}
	return record, nil
}

// phaseFor maps a round number onto the protocol phase. The penultimate
// round is the evidence deep dive; everything between opening and the
// deep dive is rebuttal.
func phaseFor(n, total int) models.DebatePhase {
	switch {
	case n == 1:
		return models.PhaseOpening
	case n == total:
		return models.PhaseClosing
	case n == total-1:
		return models.PhaseDeepDive
	default:
		return models.PhaseRebuttal
	}
}

// runRound produces one complete round: all stances argue concurrently
// against the same snapshot of the prior transcript, and the results are
// assembled in StanceOrder regardless of completion order. Stance
// goroutines only read session state; caveats for degraded stances are
// recorded after the round settles.
func (e *Engine) runRound(ctx context.Context, st *session.State, record *models.DebateRecord, n, total int, evidence string, refs []string) (models.Round, error) {
	phase := phaseFor(n, total)
	transcript := formatTranscript(record)

	results := make(map[models.Stance]models.Argument, len(models.StanceOrder))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, stance := range models.StanceOrder {
		wg.Add(1)
		go func(stance models.Stance) {
			defer wg.Done()
			arg := e.stanceArgument(ctx, st, stance, phase, record.Topic, transcript, evidence)
			mu.Lock()
			results[stance] = arg
			mu.Unlock()
		}(stance)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return models.Round{}, err
	}

	round := models.Round{Number: n, Phase: phase}
	for _, stance := range models.StanceOrder {
		arg := results[stance]
		if arg.IsPlaceholder() {
			st.AddCaveat(fmt.Sprintf("the %s stance was unavailable in part of the debate", stance))
		} else {
			arg.EvidenceRefs = refs
		}
		round.Arguments = append(round.Arguments, arg)
	}
	return round, nil
}

// stanceArgument calls one stance once, retries once on failure, and
// degrades to the placeholder after the second failure. Malformed or
// failed output is never partially recorded.
func (e *Engine) stanceArgument(ctx context.Context, st *session.State, stance models.Stance, phase models.DebatePhase, topic, transcript, evidence string) models.Argument {
	for attempt := 0; attempt < 2; attempt++ {
		text, err := e.callStance(ctx, st, stance, phase, topic, transcript, evidence)
		if err == nil {
			return models.Argument{Stance: stance, Text: text}
		}
		if errors.Is(err, context.Canceled) {
			break
		}
		e.logger.Warn("Stance call failed",
			"stance", stance, "attempt", attempt+1, "error", err)
	}
	return models.Argument{Stance: stance, Text: models.PlaceholderArgument}
}

var stancePersona = map[models.Stance]string{
	models.StanceBull: "You argue the opportunity case: growth drivers, " +
		"catalysts, and upside scenarios. Steelman the investment.",
	models.StanceBear: "You argue the risk case: valuation concerns, " +
		"downside scenarios, and what could go wrong. Steelman the caution.",
	models.StanceBalanced: "You weigh both sides: where the bull and bear " +
		"are each right, and what actually decides the question.",
}

var phaseInstruction = map[models.DebatePhase]string{
	models.PhaseOpening:  "Give your opening argument on the topic.",
	models.PhaseRebuttal: "Rebut the strongest points made against your view in the transcript so far.",
	models.PhaseDeepDive: "Go deep on the evidence: cite the specific data points that matter most to your case.",
	models.PhaseClosing:  "Give your closing statement: your single strongest takeaway for this user.",
}

func (e *Engine) callStance(ctx context.Context, st *session.State, stance models.Stance, phase models.DebatePhase, topic, transcript, evidence string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Debate.StanceTimeout)
	defer cancel()

	system := fmt.Sprintf(
		"You are the %s analyst in a structured investment debate.\n%s\n%s\nKeep it under 150 words.",
		stance, stancePersona[stance], phaseInstruction[phase])

	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\n", topic)
	if profile := formatProfile(st.Profile); profile != "" {
		fmt.Fprintf(&sb, "Investor profile:\n%s\n", profile)
	}
	if evidence != "" {
		fmt.Fprintf(&sb, "Fresh evidence:\n%s\n", evidence)
	}
	if transcript != "" {
		fmt.Fprintf(&sb, "Debate so far:\n%s\n", transcript)
	}

	return e.client.Complete(callCtx, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		Temperature: 0.7,
	})
}

// gatherEvidence fetches fresh context for one round. It returns the
// prompt text and the citation refs (news URLs, quote tickers) that the
// round's arguments carry. Evidence failures degrade silently; the round
// proceeds on the transcript alone.
func (e *Engine) gatherEvidence(ctx context.Context, topic string) (string, []string) {
	var (
		sb   strings.Builder
		refs []string
	)

	if e.news != nil {
		items, err := e.news.SearchNews(ctx, topic, 3)
		if err != nil {
			e.logger.Warn("News evidence unavailable", "error", err)
		}
		for _, item := range items {
			fmt.Fprintf(&sb, "- %s: %s\n", item.Title, item.Snippet)
			if item.URL != "" {
				refs = append(refs, item.URL)
			}
		}
	}

	if e.market != nil {
		for _, ticker := range tickerCandidates(topic) {
			quote, err := e.market.Quote(ctx, ticker)
			if err != nil || quote == nil {
				continue
			}
			fmt.Fprintf(&sb, "- %s quote: %.2f (%.2f%%) as of %s\n",
				quote.Ticker, quote.Price, quote.Change, quote.AsOf)
			refs = append(refs, "quote:"+quote.Ticker)
		}
	}
	return sb.String(), refs
}

// tickerCandidates pulls uppercase symbol-shaped tokens out of the topic
// ("NVDA vs AMD" yields both).
func tickerCandidates(topic string) []string {
	var out []string
	for _, tok := range strings.Fields(topic) {
		tok = strings.Trim(tok, ".,!?()")
		if len(tok) < 2 || len(tok) > 5 {
			continue
		}
		if strings.ToUpper(tok) == tok && strings.IndexFunc(tok, func(r rune) bool {
			return r < 'A' || r > 'Z'
		}) == -1 {
			out = append(out, tok)
		}
	}
	if len(out) > 2 {
		out = out[:2]
	}
	return out
}

func formatTranscript(record *models.DebateRecord) string {
	var sb strings.Builder
	for _, round := range record.Rounds {
		fmt.Fprintf(&sb, "Round %d (%s):\n", round.Number, round.Phase)
		for _, arg := range round.Arguments {
			if arg.IsPlaceholder() {
				fmt.Fprintf(&sb, "  [%s]: (no argument recorded)\n", arg.Stance)
				continue
			}
			fmt.Fprintf(&sb, "  [%s]: %s\n", arg.Stance, arg.Text)
		}
	}
	return sb.String()
}

func formatProfile(profile *models.Profile) string {
	if profile == nil || len(profile.Values) == 0 {
		return ""
	}
	var sb strings.Builder
	for key, value := range profile.Values {
		fmt.Fprintf(&sb, "- %s: %v\n", key, value)
	}
	return sb.String()
}

// raiseFollowUp offers one related next step after the verdict. Failure
// to produce a suggestion is not an error; the debate already succeeded.
func (e *Engine) raiseFollowUp(ctx context.Context, st *session.State, record *models.DebateRecord) {
	if st.PendingSuggestion != nil {
		return
	}

	var out struct {
		Topic string `json:"topic"`
		Text  string `json:"text"`
	}
	err := llm.CompleteJSON(ctx, e.client, llm.Request{
		System: "Suggest ONE natural follow-up analysis after this investment debate, " +
			"such as a peer comparison or a related asset. Respond with ONLY valid JSON: " +
			`{"topic": "<short topic>", "text": "<one-sentence offer phrased as a question>"}`,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: fmt.Sprintf(
			"Debate topic: %s\nVerdict: %s — %s",
			record.Topic, record.Verdict.Recommendation, record.Verdict.Rationale)}},
		Temperature: 0.5,
	}, &out)
	if err != nil || out.Topic == "" || out.Text == "" {
		e.logger.Warn("Follow-up suggestion skipped", "error", err)
		return
	}

	sug := &models.Suggestion{
		ID:          uuid.New().String(),
		Topic:       out.Topic,
		Text:        out.Text,
		Destination: models.DestDebate,
		RaisedAt:    time.Now(),
	}
	if err := st.RaiseSuggestion(sug); err != nil {
		e.logger.Warn("Could not raise follow-up suggestion", "error", err)
	}
}
