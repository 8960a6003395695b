// Package interview implements the slot-filling stage that collects the
// user profile. Extraction is constrained to the configured field
// registry; values that fail domain validation are rejected without
// mutating anything, and re-sending the same invalid value is rejected
// identically.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finagent-io/finagent/pkg/config"
	"github.com/finagent-io/finagent/pkg/llm"
	"github.com/finagent-io/finagent/pkg/models"
	"github.com/finagent-io/finagent/pkg/services"
	"github.com/finagent-io/finagent/pkg/session"
)

// Result is the interview stage's outcome for one turn.
type Result struct {
	// ResponseText is the question (or acknowledgment) shown to the user.
	ResponseText string
	// Complete is true once every required field is set or deferred.
	Complete bool
	// RestoredQuery is the advisory question that triggered the
	// interview, surfaced again once the profile is usable.
	RestoredQuery string
}

// Stage runs the profile interview.
type Stage struct {
	cfg    *config.Config
	client llm.Client
	store  services.ProfileStore
	logger *slog.Logger
}

// New wires the interview stage. store may be nil in tests; persistence
// is then skipped.
func New(cfg *config.Config, client llm.Client, store services.ProfileStore) *Stage {
	return &Stage{
		cfg:    cfg,
		client: client,
		store:  store,
		logger: slog.With("component", "interview"),
	}
}

// extraction is what the extraction call returns: candidate field
// values plus fields the user explicitly declined to answer.
type extraction struct {
	Values   map[string]any `json:"values"`
	Declined []string       `json:"declined"`
}

// Run processes one interview turn: extract candidate values from the
// latest user input, validate and apply the good ones, then either ask
// for the next missing fields or report completion.
func (s *Stage) Run(ctx context.Context, st *session.State) (Result, error) {
	latest := st.LatestUserTurn()

	ext, err := s.extract(ctx, st, latest)
	if err != nil {
		s.logger.Warn("Field extraction failed", "error", err)
		// Nothing was written; ask again rather than failing the turn.
		return s.nextQuestion(st, "I didn't quite catch that. "), nil
	}

	var rejected []string
	delta := make(map[string]any)
	for name, value := range ext.Values {
		spec, err := s.cfg.FieldSpec(name)
		if err != nil {
			// Extraction hallucinated a field outside the registry.
			s.logger.Warn("Dropping unknown extracted field", "field", name)
			continue
		}
		if err := spec.Validate(value); err != nil {
			s.logger.Info("Rejecting invalid field value", "field", name, "error", err)
			rejected = append(rejected, s.rejectionMessage(spec, value))
			continue
		}
		delta[name] = value
	}

	var newlyDeferred []string
	for _, name := range ext.Declined {
		if _, err := s.cfg.FieldSpec(name); err != nil {
			continue
		}
		if st.Profile.IsDeferred(name) || st.Profile.IsSet(name) {
			continue
		}
		newlyDeferred = append(newlyDeferred, name)
	}

	s.apply(ctx, st, delta, newlyDeferred)

	prefix := s.acknowledgment(delta, rejected)

	if missing := s.missingRequired(st.Profile); len(missing) > 0 {
		return s.nextQuestion(st, prefix), nil
	}

	// Interview complete. Restore the advisory question that was parked
	// when the profile was found incomplete, if any.
	restored := st.PendingQuery
	st.PendingQuery = ""
	msg := prefix + "Your profile is complete."
	if restored != "" {
		msg += fmt.Sprintf(" Now, back to your question: %q.", restored)
	}
	return Result{ResponseText: msg, Complete: true, RestoredQuery: restored}, nil
}

// apply writes validated values and deferrals to the session profile and
// the backing store. Invalid values never reach this point.
func (s *Stage) apply(ctx context.Context, st *session.State, delta map[string]any, deferred []string) {
	for name, value := range delta {
		st.Profile.Values[name] = value
		st.BumpProfile()
	}
	for _, name := range deferred {
		st.Profile.Deferred = append(st.Profile.Deferred, name)
		st.BumpProfile()
		st.AddCaveat(fmt.Sprintf("profile field %q was skipped by the user", name))
	}

	if s.store != nil && (len(delta) > 0 || len(deferred) > 0) {
		if err := s.store.Upsert(ctx, st.Profile.UserID, delta, st.Profile.Deferred); err != nil {
			s.logger.Error("Failed to persist profile delta", "error", err)
			st.AddCaveat("profile changes could not be saved and may not survive this session")
		}
	}
}

const extractPrompt = `You are the profile interviewer for a financial advisory AI.
Extract profile field values from the user's latest message. Only use the
fields listed below; never invent field names. If the user explicitly
refuses or skips a field ("I'd rather not say", "skip that"), list it
under "declined" instead.

Fields:
%s

Respond with ONLY valid JSON:
{"values": {"<field>": <value>, ...}, "declined": ["<field>", ...]}
Use an empty object/array when nothing applies.`

func (s *Stage) extract(ctx context.Context, st *session.State, latest string) (extraction, error) {
	var fields strings.Builder
	for _, f := range s.cfg.ProfileFields {
		fmt.Fprintf(&fields, "- %s (%s", f.Name, f.Kind)
		if len(f.Domain) > 0 {
			fmt.Fprintf(&fields, ", one of: %s", strings.Join(f.Domain, ", "))
		}
		fields.WriteString(")\n")
	}

	var sb strings.Builder
	for _, t := range st.Window(4) {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
	}
	fmt.Fprintf(&sb, "\nLatest user message: %q", latest)

	var ext extraction
	err := llm.CompleteJSON(ctx, s.client, llm.Request{
		System:      fmt.Sprintf(extractPrompt, fields.String()),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		Temperature: 0,
	}, &ext)
	return ext, err
}

// nextQuestion builds the next interview prompt covering at most two
// missing fields, so the user is never hit with a full questionnaire.
func (s *Stage) nextQuestion(st *session.State, prefix string) Result {
	missing := s.missingRequired(st.Profile)
	if len(missing) == 0 {
		return Result{ResponseText: prefix + "Your profile is complete.", Complete: true}
	}

	batch := missing
	if len(batch) > 2 {
		batch = batch[:2]
	}

	var questions []string
	for _, name := range batch {
		spec, err := s.cfg.FieldSpec(name)
		if err != nil {
			continue
		}
		q := fmt.Sprintf("What is your %s?", strings.ReplaceAll(name, "_", " "))
		if spec.Prompt != "" {
			q = fmt.Sprintf("Could you tell me your %s?", spec.Prompt)
		}
		if len(spec.Domain) > 0 {
			q += fmt.Sprintf(" (options: %s)", strings.Join(spec.Domain, ", "))
		}
		questions = append(questions, q)
	}

	return Result{ResponseText: prefix + strings.Join(questions, " ")}
}

func (s *Stage) missingRequired(profile *models.Profile) []string {
	var missing []string
	for _, name := range s.cfg.RequiredProfileFields() {
		if !profile.IsSet(name) && !profile.IsDeferred(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func (s *Stage) rejectionMessage(spec models.FieldSpec, value any) string {
	if spec.Kind == models.FieldKindEnum {
		return fmt.Sprintf("%v is not a valid %s; please pick one of: %s.",
			value, strings.ReplaceAll(spec.Name, "_", " "), strings.Join(spec.Domain, ", "))
	}
	return fmt.Sprintf("I couldn't use %v for %s.",
		value, strings.ReplaceAll(spec.Name, "_", " "))
}

func (s *Stage) acknowledgment(delta map[string]any, rejected []string) string {
	var parts []string
	if len(delta) > 0 {
		parts = append(parts, "Got it, noted.")
	}
	parts = append(parts, rejected...)
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + " "
}
