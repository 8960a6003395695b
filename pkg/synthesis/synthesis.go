// Package synthesis produces the final advisory report from a sealed
// debate record and the user profile. Every claim in the report must
// carry a grounding citation that resolves against the session: [R<n>]
// for debate round n, [profile:<field>] for a set profile field.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/finagent-io/finagent/pkg/llm"
	"github.com/finagent-io/finagent/pkg/models"
	"github.com/finagent-io/finagent/pkg/retrieval"
	"github.com/finagent-io/finagent/pkg/services"
	"github.com/finagent-io/finagent/pkg/session"
)

// Stage assembles, grounds, and persists advisory reports.
type Stage struct {
	client llm.Client
	index  retrieval.SemanticIndex
	store  services.ReportStore
	logger *slog.Logger
}

// New wires the synthesis stage. index and store may be nil; compliance
// notes and persistence are then skipped.
func New(client llm.Client, index retrieval.SemanticIndex, store services.ReportStore) *Stage {
	return &Stage{
		client: client,
		index:  index,
		store:  store,
		logger: slog.With("component", "synthesis"),
	}
}

const reportPrompt = `You are writing the final advisory report for a financial
advisory AI, based on a completed internal debate.

Structure: a short summary, the recommendation, the key reasoning from each
side of the debate, risks, and next steps. Address the user directly.

Grounding rules (mandatory):
- Every factual claim taken from the debate carries a citation [R<n>]
  where n is the round number it came from.
- Every personalization ("given your risk tolerance...") carries a
  citation [profile:<field_name>] naming the profile field it relies on.
- Do not state anything you cannot cite this way.

Write plain text (no markdown headers), under 400 words.`

// Run produces the report for the sealed debate on the session, saves
// it, and clears the active topic. A report whose citations do not all
// resolve is regenerated once; if the regeneration still fails the
// check, the report is delivered with an explicit reliability note
// instead of being withheld.
func (s *Stage) Run(ctx context.Context, st *session.State) (string, error) {
	record := st.SealedDebate()
	if record == nil {
		return "", fmt.Errorf("synthesis requires a sealed debate")
	}

	text, err := s.generate(ctx, st, record, "")
	if err != nil {
		return "", fmt.Errorf("report generation failed: %w", err)
	}

	if issues := groundingIssues(text, st, record); len(issues) > 0 {
		s.logger.Warn("Report grounding failed, regenerating", "issues", issues)
		regenerated, err := s.generate(ctx, st, record,
			"Your previous draft had grounding problems: "+strings.Join(issues, "; ")+
				". Every claim needs a resolvable citation. Rewrite the report.")
		if err == nil && len(groundingIssues(regenerated, st, record)) == 0 {
			text = regenerated
		} else {
			st.AddCaveat("parts of this report could not be verified against the debate record")
			text += "\n\nNote: some statements above could not be traced back to " +
				"the debate record and should be treated with caution."
		}
	}

	if caveats := st.Caveats; len(caveats) > 0 {
		text += "\n\nCaveats:\n"
		for _, c := range caveats {
			text += "- " + c + "\n"
		}
	}

	if note := s.complianceNote(ctx, record.Topic); note != "" {
		text += "\n" + note
	}

	if s.store != nil {
		metadata := map[string]any{
			"rounds":     len(record.Rounds),
			"confidence": record.Verdict.Confidence,
			"verdict":    record.Verdict.Recommendation,
		}
		if _, err := s.store.Save(ctx, st.Profile.UserID, record.Topic, text, metadata); err != nil {
			s.logger.Error("Failed to persist report", "error", err)
		}
	}

	// The topic is concluded; the next advisory question starts fresh.
	st.ActiveTopic = ""
	return text, nil
}

func (s *Stage) generate(ctx context.Context, st *session.State, record *models.DebateRecord, correction string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\n", record.Topic)

	if len(st.Profile.Values) > 0 {
		sb.WriteString("Investor profile (citable fields):\n")
		for key, value := range st.Profile.Values {
			fmt.Fprintf(&sb, "- %s: %v\n", key, value)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Debate transcript (citable rounds):\n")
	for _, round := range record.Rounds {
		fmt.Fprintf(&sb, "Round %d (%s):\n", round.Number, round.Phase)
		for _, arg := range round.Arguments {
			if arg.IsPlaceholder() {
				continue
			}
			fmt.Fprintf(&sb, "  [%s]: %s\n", arg.Stance, arg.Text)
		}
	}
	fmt.Fprintf(&sb, "\nVerdict: %s (confidence %.2f)\nRationale: %s\n",
		record.Verdict.Recommendation, record.Verdict.Confidence, record.Verdict.Rationale)

	messages := []llm.Message{{Role: llm.RoleUser, Content: sb.String()}}
	if correction != "" {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: correction})
	}

	return s.client.Complete(ctx, llm.Request{
		System:      reportPrompt,
		Messages:    messages,
		Temperature: 0.4,
	})
}

var (
	roundCitation   = regexp.MustCompile(`\[R(\d+)\]`)
	profileCitation = regexp.MustCompile(`\[profile:([a-z0-9_]+)\]`)
)

// groundingIssues validates that every citation in the report resolves:
// round citations must name an existing round, profile citations a field
// that is actually set. A report with no citations at all is ungrounded
// by definition.
func groundingIssues(text string, st *session.State, record *models.DebateRecord) []string {
	var issues []string

	roundRefs := roundCitation.FindAllStringSubmatch(text, -1)
	profileRefs := profileCitation.FindAllStringSubmatch(text, -1)
	if len(roundRefs) == 0 && len(profileRefs) == 0 {
		return []string{"report contains no grounding citations"}
	}

	for _, m := range roundRefs {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(record.Rounds) {
			issues = append(issues, fmt.Sprintf("citation %s does not match any round", m[0]))
		}
	}
	for _, m := range profileRefs {
		if !st.Profile.IsSet(m[1]) {
			issues = append(issues, fmt.Sprintf("citation %s names an unset profile field", m[0]))
		}
	}
	return issues
}

// complianceNote pulls the most relevant regulatory disclaimer from the
// knowledge corpus. Absence of the corpus or of a hit falls back to the
// standing disclaimer.
func (s *Stage) complianceNote(ctx context.Context, topic string) string {
	const fallback = "This report is for informational purposes only and is " +
		"not a solicitation to buy or sell any security."

	if s.index == nil {
		return fallback
	}
	docs, err := s.index.Search(ctx, "compliance disclaimer "+topic, 1)
	if err != nil {
		s.logger.Warn("Compliance lookup unavailable", "error", err)
		return fallback
	}
	if len(docs) == 0 {
		return fallback
	}
	return docs[0].Content
}
