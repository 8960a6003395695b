package debate

import (
	"context"
	"fmt"
	"strings"

	"github.com/finagent-io/finagent/pkg/llm"
	"github.com/finagent-io/finagent/pkg/models"
	"github.com/finagent-io/finagent/pkg/session"
)

const judgePrompt = `You are the judge of a structured investment debate between
bull, bear, and balanced analysts. Weigh every recorded argument and produce a
verdict tailored to the investor profile.

Rules:
- Your rationale must explicitly engage each stance that actually argued,
  naming it ("the bull case...", "the bear case...", "the balanced view...").
- A stance marked "(no argument recorded)" must NOT be invented or cited.
- Confidence is a number between 0 and 1.

Respond with ONLY valid JSON:
{"recommendation": "...", "rationale": "...", "confidence": 0.0}`

// judge produces the verdict for a finished debate. The first structurally
// incomplete verdict triggers exactly one re-request with the defects
// named; a second defective verdict (or a second call failure) surfaces
// as an error and the caller seals the record as inconclusive.
func (e *Engine) judge(ctx context.Context, st *session.State, record *models.DebateRecord) (*models.Verdict, error) {
	argued := arguedStances(record)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\n", record.Topic)
	if profile := formatProfile(st.Profile); profile != "" {
		fmt.Fprintf(&sb, "Investor profile:\n%s\n", profile)
	}
	fmt.Fprintf(&sb, "Full transcript:\n%s", formatTranscript(record))

	request := llm.Request{
		System:      judgePrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		Temperature: 0.2,
	}

	verdict, err := e.callJudge(ctx, request)
	if err != nil {
		verdict, err = e.callJudge(ctx, request)
		if err != nil {
			return nil, err
		}
	}

	if issues := completenessIssues(verdict, argued); len(issues) > 0 {
		e.logger.Warn("Verdict structurally incomplete, re-requesting", "issues", issues)
		request.Messages = append(request.Messages,
			llm.Message{Role: llm.RoleAssistant, Content: fmt.Sprintf("%+v", *verdict)},
			llm.Message{Role: llm.RoleUser, Content: "Your verdict was incomplete: " +
				strings.Join(issues, "; ") + ". Produce a corrected verdict, same JSON format."},
		)
		verdict, err = e.callJudge(ctx, request)
		if err != nil {
			return nil, err
		}
		if issues := completenessIssues(verdict, argued); len(issues) > 0 {
			return nil, fmt.Errorf("verdict incomplete after re-request: %s", strings.Join(issues, "; "))
		}
	}
	return verdict, nil
}

func (e *Engine) callJudge(ctx context.Context, req llm.Request) (*models.Verdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Debate.JudgeTimeout)
	defer cancel()

	var verdict models.Verdict
	if err := llm.CompleteJSON(callCtx, e.client, req, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

// arguedStances returns the stances that contributed at least one real
// (non-placeholder) argument across the debate.
func arguedStances(record *models.DebateRecord) []models.Stance {
	seen := make(map[models.Stance]bool)
	for _, round := range record.Rounds {
		for _, arg := range round.Arguments {
			if !arg.IsPlaceholder() {
				seen[arg.Stance] = true
			}
		}
	}
	var out []models.Stance
	for _, stance := range models.StanceOrder {
		if seen[stance] {
			out = append(out, stance)
		}
	}
	return out
}

// completenessIssues performs the structural check on a candidate
// verdict: non-empty fields, confidence in range, and a rationale that
// engages every stance that actually argued.
func completenessIssues(v *models.Verdict, argued []models.Stance) []string {
	var issues []string
	if strings.TrimSpace(v.Recommendation) == "" {
		issues = append(issues, "recommendation is empty")
	}
	if strings.TrimSpace(v.Rationale) == "" {
		issues = append(issues, "rationale is empty")
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		issues = append(issues, "confidence outside [0,1]")
	}

	rationale := strings.ToLower(v.Rationale)
	for _, stance := range argued {
		if !strings.Contains(rationale, string(stance)) {
			issues = append(issues, fmt.Sprintf("rationale does not address the %s case", stance))
		}
	}
	return issues
}
