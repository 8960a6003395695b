package debate

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finagent-io/finagent/pkg/config"
	"github.com/finagent-io/finagent/pkg/llm"
	"github.com/finagent-io/finagent/pkg/models"
	"github.com/finagent-io/finagent/pkg/retrieval"
	"github.com/finagent-io/finagent/pkg/session"
)

// scriptClient routes completion calls by the system prompt so one stub
// can play the stances, the judge, and the follow-up suggester.
type scriptClient struct {
	mu         sync.Mutex
	stance     func(stance models.Stance, attempt int) (string, error)
	judge      func(call int) (string, error)
	attempts   map[models.Stance]int
	judgeCalls int
}

func newScriptClient() *scriptClient {
	c := &scriptClient{attempts: make(map[models.Stance]int)}
	c.stance = func(stance models.Stance, _ int) (string, error) {
		return string(stance) + " argument", nil
	}
	c.judge = func(_ int) (string, error) {
		return `{"recommendation": "cautious buy",
			"rationale": "The bull case on growth outweighs the bear case on valuation; the balanced view tips it.",
			"confidence": 0.72}`, nil
	}
	return c
}

func (c *scriptClient) Complete(_ context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case strings.Contains(req.System, "judge of a structured investment debate"):
		c.judgeCalls++
		return c.judge(c.judgeCalls)
	case strings.Contains(req.System, "analyst in a structured investment debate"):
		for _, stance := range models.StanceOrder {
			if strings.HasPrefix(req.System, "You are the "+string(stance)) {
				c.attempts[stance]++
				return c.stance(stance, c.attempts[stance])
			}
		}
		return "", llm.ErrCallFailed
	default:
		// Follow-up suggestion call.
		return `{"topic": "AMD comparison", "text": "Want me to compare this against AMD?"}`, nil
	}
}

type stubNews struct{}

func (stubNews) SearchNews(_ context.Context, _ string, _ int) ([]retrieval.NewsResult, error) {
	return []retrieval.NewsResult{{
		Title:   "Nvidia earnings beat",
		URL:     "https://news.example.com/nvda-earnings",
		Snippet: "Data center revenue up.",
	}}, nil
}

type stubMarket struct{}

func (stubMarket) Quote(_ context.Context, ticker string) (*retrieval.Quote, error) {
	return &retrieval.Quote{Ticker: ticker, Price: 901.5, Change: 1.2, AsOf: "2026-08-27"}, nil
}

func testEngine(t *testing.T, client llm.Client, followUp bool) (*Engine, *session.State) {
	t.Helper()
	cfg, err := config.Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)
	cfg.Debate.SuggestFollowUp = followUp

	st := &session.State{Profile: models.NewProfile("user-1")}
	st.Profile.Values["risk_tolerance_level"] = "moderate"
	return New(cfg, client, nil, nil), st
}

func TestPhaseFor(t *testing.T) {
	assert.Equal(t, models.PhaseOpening, phaseFor(1, 5))
	assert.Equal(t, models.PhaseRebuttal, phaseFor(2, 5))
	assert.Equal(t, models.PhaseRebuttal, phaseFor(3, 5))
	assert.Equal(t, models.PhaseDeepDive, phaseFor(4, 5))
	assert.Equal(t, models.PhaseClosing, phaseFor(5, 5))

	// Minimal protocol still has distinct opening and closing.
	assert.Equal(t, models.PhaseOpening, phaseFor(1, 2))
	assert.Equal(t, models.PhaseClosing, phaseFor(2, 2))
}

func TestRunCompletesAllRounds(t *testing.T) {
	client := newScriptClient()
	e, st := testEngine(t, client, false)

	record, err := e.Run(context.Background(), st, "should I buy Nvidia")
	require.NoError(t, err)

	require.Len(t, record.Rounds, 5)
	wantPhases := []models.DebatePhase{
		models.PhaseOpening, models.PhaseRebuttal, models.PhaseRebuttal,
		models.PhaseDeepDive, models.PhaseClosing,
	}
	for i, round := range record.Rounds {
		assert.Equal(t, i+1, round.Number)
		assert.Equal(t, wantPhases[i], round.Phase)
		require.Len(t, round.Arguments, 3, "every stance contributes every round")
		for j, arg := range round.Arguments {
			assert.Equal(t, models.StanceOrder[j], arg.Stance, "arguments keep stance order")
			assert.False(t, arg.IsPlaceholder())
		}
	}

	assert.True(t, record.Sealed)
	assert.False(t, record.SealedAt.IsZero())
	require.NotNil(t, record.Verdict)
	assert.Equal(t, "cautious buy", record.Verdict.Recommendation)
	assert.InDelta(t, 0.72, record.Verdict.Confidence, 0.001)
	assert.Same(t, record, st.Debate)
}

func TestFailedStanceDegradesToPlaceholder(t *testing.T) {
	client := newScriptClient()
	client.stance = func(stance models.Stance, _ int) (string, error) {
		if stance == models.StanceBear {
			return "", llm.ErrTimeout
		}
		return string(stance) + " argument", nil
	}
	client.judge = func(_ int) (string, error) {
		// The bear never argued, so the rationale must not cite it.
		return `{"recommendation": "buy",
			"rationale": "The bull case is strong and the balanced view concurs.",
			"confidence": 0.6}`, nil
	}
	e, st := testEngine(t, client, false)

	record, err := e.Run(context.Background(), st, "should I buy Nvidia")
	require.NoError(t, err)

	require.Len(t, record.Rounds, 5)
	for _, round := range record.Rounds {
		require.Len(t, round.Arguments, 3, "a failed stance still occupies its slot")
		assert.True(t, round.Arguments[1].IsPlaceholder())
		assert.Equal(t, models.StanceBear, round.Arguments[1].Stance)
	}
	// Each round retried the bear once before degrading.
	assert.Equal(t, 10, client.attempts[models.StanceBear])
	assert.True(t, record.Sealed)
	assert.NotEmpty(t, st.Caveats)
}

func TestConcurrentStanceFailuresRecordCaveats(t *testing.T) {
	client := newScriptClient()
	client.stance = func(stance models.Stance, _ int) (string, error) {
		if stance == models.StanceBalanced {
			return "balanced argument", nil
		}
		return "", llm.ErrTimeout
	}
	e, st := testEngine(t, client, false)

	record, err := e.Run(context.Background(), st, "should I buy Nvidia")
	require.NoError(t, err)
	require.True(t, record.Sealed)

	for _, round := range record.Rounds {
		assert.True(t, round.Arguments[0].IsPlaceholder())
		assert.True(t, round.Arguments[1].IsPlaceholder())
		assert.False(t, round.Arguments[2].IsPlaceholder())
	}
	// Two stances degrading in the same round still yield exactly one
	// caveat each, recorded once for the whole debate.
	assert.Len(t, st.Caveats, 2)
}

func TestArgumentsCarryEvidenceRefs(t *testing.T) {
	client := newScriptClient()
	client.stance = func(stance models.Stance, _ int) (string, error) {
		if stance == models.StanceBear {
			return "", llm.ErrCallFailed
		}
		return string(stance) + " argument", nil
	}
	e, st := testEngine(t, client, false)
	e.news = stubNews{}
	e.market = stubMarket{}

	record, err := e.Run(context.Background(), st, "should I buy NVDA")
	require.NoError(t, err)

	for _, round := range record.Rounds {
		for _, arg := range round.Arguments {
			if arg.IsPlaceholder() {
				assert.Empty(t, arg.EvidenceRefs, "a placeholder cites nothing")
				continue
			}
			assert.Contains(t, arg.EvidenceRefs, "https://news.example.com/nvda-earnings")
			assert.Contains(t, arg.EvidenceRefs, "quote:NVDA")
		}
	}
}

func TestJudgeFailureSealsInconclusive(t *testing.T) {
	client := newScriptClient()
	client.judge = func(_ int) (string, error) {
		return "", llm.ErrCallFailed
	}
	e, st := testEngine(t, client, false)

	record, err := e.Run(context.Background(), st, "should I buy Nvidia")
	require.NoError(t, err)

	assert.True(t, record.Sealed, "a failed judge still seals the debate")
	require.NotNil(t, record.Verdict)
	assert.Equal(t, "inconclusive", record.Verdict.Recommendation)
	assert.Zero(t, record.Verdict.Confidence)
	assert.Equal(t, 2, client.judgeCalls, "judge is retried once before degrading")
}

func TestIncompleteVerdictIsReRequestedOnce(t *testing.T) {
	client := newScriptClient()
	client.judge = func(call int) (string, error) {
		if call == 1 {
			// Ignores the balanced stance entirely.
			return `{"recommendation": "buy", "rationale": "The bull case beats the bear case.", "confidence": 0.8}`, nil
		}
		return `{"recommendation": "buy",
			"rationale": "The bull case beats the bear case, and the balanced view agrees on entry timing.",
			"confidence": 0.8}`, nil
	}
	e, st := testEngine(t, client, false)

	record, err := e.Run(context.Background(), st, "should I buy Nvidia")
	require.NoError(t, err)

	assert.Equal(t, 2, client.judgeCalls)
	assert.True(t, record.Sealed)
	assert.Contains(t, record.Verdict.Rationale, "balanced")
}

func TestPersistentlyIncompleteVerdictSealsInconclusive(t *testing.T) {
	client := newScriptClient()
	client.judge = func(_ int) (string, error) {
		return `{"recommendation": "buy", "rationale": "Just buy it.", "confidence": 0.9}`, nil
	}
	e, st := testEngine(t, client, false)

	record, err := e.Run(context.Background(), st, "should I buy Nvidia")
	require.NoError(t, err)

	assert.Equal(t, 2, client.judgeCalls)
	assert.Equal(t, "inconclusive", record.Verdict.Recommendation)
}

func TestCancellationLeavesRecordUnsealed(t *testing.T) {
	client := newScriptClient()
	e, st := testEngine(t, client, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	record, err := e.Run(ctx, st, "should I buy Nvidia")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, record.Sealed)
	assert.Empty(t, record.Rounds, "no partial round is recorded")
}

func TestSealedDebateRaisesFollowUpSuggestion(t *testing.T) {
	client := newScriptClient()
	e, st := testEngine(t, client, true)

	record, err := e.Run(context.Background(), st, "should I buy Nvidia")
	require.NoError(t, err)
	require.True(t, record.Sealed)

	require.NotNil(t, st.PendingSuggestion)
	assert.Equal(t, "AMD comparison", st.PendingSuggestion.Topic)
	assert.Equal(t, models.DestDebate, st.PendingSuggestion.Destination)
	assert.NotEmpty(t, st.PendingSuggestion.ID)
}

func TestCompletenessIssues(t *testing.T) {
	argued := []models.Stance{models.StanceBull, models.StanceBalanced}

	t.Run("valid verdict has no issues", func(t *testing.T) {
		v := &models.Verdict{
			Recommendation: "hold",
			Rationale:      "The bull case is offset by the balanced view.",
			Confidence:     0.5,
		}
		assert.Empty(t, completenessIssues(v, argued))
	})

	t.Run("missing stance reference", func(t *testing.T) {
		v := &models.Verdict{Recommendation: "hold", Rationale: "The bull case wins.", Confidence: 0.5}
		issues := completenessIssues(v, argued)
		require.Len(t, issues, 1)
		assert.Contains(t, issues[0], "balanced")
	})

	t.Run("confidence out of range", func(t *testing.T) {
		v := &models.Verdict{
			Recommendation: "hold",
			Rationale:      "The bull case is offset by the balanced view.",
			Confidence:     1.4,
		}
		assert.NotEmpty(t, completenessIssues(v, argued))
	})

	t.Run("empty fields", func(t *testing.T) {
		issues := completenessIssues(&models.Verdict{}, nil)
		assert.Len(t, issues, 2)
	})
}

func TestTickerCandidates(t *testing.T) {
	assert.Equal(t, []string{"NVDA", "AMD"}, tickerCandidates("NVDA vs AMD, which one?"))
	assert.Empty(t, tickerCandidates("should i buy nvidia"))
	assert.Empty(t, tickerCandidates("I want a comparison"), "single letters and lowercase are skipped")
}
