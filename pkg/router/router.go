// Package router decides which stage handles each allowed turn. It reads
// the full session state (conversation window, profile completeness,
// pending suggestion, active topic) and never mutates anything except
// resolving a pending suggestion, which is part of routing itself.
package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/finagent-io/finagent/pkg/config"
	"github.com/finagent-io/finagent/pkg/guardrail"
	"github.com/finagent-io/finagent/pkg/models"
	"github.com/finagent-io/finagent/pkg/session"
)

// Decision is the router's output for one turn.
type Decision struct {
	Destination models.Destination
	// Reason is a short human-readable trace of which rule fired.
	Reason string
	// AcceptedSuggestion is set when rule 1 resolved a pending
	// suggestion with an accept.
	AcceptedSuggestion *models.Suggestion
}

// Router implements the priority-ordered routing rules with loop
// prevention.
type Router struct {
	cfg        *config.Config
	classifier Classifier
	logger     *slog.Logger
}

// New creates a router.
func New(cfg *config.Config, classifier Classifier) *Router {
	return &Router{
		cfg:        cfg,
		classifier: classifier,
		logger:     slog.With("component", "router"),
	}
}

// Route picks the destination for the latest turn. Rules apply in
// priority order, first match wins:
//
//  1. Resolve a pending suggestion on a direct accept/decline.
//  2. An interview in progress captures the turn.
//  3. Missing required profile fields on an advice request → interview.
//  4. Narrow factual query → retrieval.
//  5. Judgment call → debate.
//  6. Sealed debate + readiness signal → synthesis.
//  7. Otherwise clarify, the loop-prevention backstop.
//
// The loop-prevention invariant is applied to the candidate before it is
// returned: repeating the previous destination with no new information
// escalates to clarify.
func (r *Router) Route(ctx context.Context, st *session.State, tag guardrail.DomainTag) Decision {
	latest := st.LatestUserTurn()
	decision := r.route(ctx, st, tag, latest)

	// Loop prevention: the same destination twice in a row with an
	// unchanged fingerprint means the ambiguous input would silently
	// re-trigger the same stage. Ask instead of guessing. An interview
	// in progress is exempt: the answer itself is new information, even
	// before extraction bumps the profile version.
	fp := st.Fingerprint()
	if decision.Destination == st.LastDestination &&
		decision.Destination != models.DestClarify &&
		fp == st.LastFingerprint &&
		!(decision.Destination == models.DestInterview && r.interviewInProgress(st)) {
		r.logger.Info("Loop prevention triggered",
			"repeated_destination", decision.Destination)
		decision = Decision{
			Destination: models.DestClarify,
			Reason:      "no new information since identical routing decision",
		}
	}

	st.LastDestination = decision.Destination
	st.LastFingerprint = st.Fingerprint()

	r.logger.Info("Routed turn",
		"destination", decision.Destination, "reason", decision.Reason)
	return decision
}

func (r *Router) route(ctx context.Context, st *session.State, tag guardrail.DomainTag, latest string) Decision {
	// Rule 1: resolve a pending suggestion on direct accept/decline,
	// without re-classifying intent from scratch.
	if st.PendingSuggestion != nil {
		switch resolveSuggestion(latest) {
		case models.SuggestionAccepted:
			sug := st.ClearSuggestion()
			st.ActiveTopic = sug.Topic
			return Decision{
				Destination:        sug.Destination,
				Reason:             "accepted pending suggestion",
				AcceptedSuggestion: sug,
			}
		case models.SuggestionDeclined:
			st.ClearSuggestion()
			// Declining the follow-up returns to the active topic's
			// next step: the write-up, if a sealed debate exists.
			if st.SealedDebate() != nil {
				return Decision{
					Destination: models.DestSynthesis,
					Reason:      "declined suggestion; sealed debate ready for write-up",
				}
			}
			return Decision{
				Destination: models.DestClarify,
				Reason:      "declined suggestion; asking what to do next",
			}
		}
		// Ignored: the suggestion stays pending and normal rules apply.
	}

	// Rule 2: an interview in progress captures the turn before any
	// intent classification. The reply is the answer to the pending
	// question, however it reads in isolation.
	if r.interviewInProgress(st) {
		return Decision{Destination: models.DestInterview, Reason: "interview in progress"}
	}

	// Explicit profile changes skip the classifier.
	if tag == guardrail.TagProfileUpdate {
		return Decision{Destination: models.DestInterview, Reason: "explicit profile update"}
	}

	// Small talk gets a lightweight retrieval answer rather than a
	// full advisory flow.
	if tag == guardrail.TagGeneralChat {
		return Decision{Destination: models.DestRetrieval, Reason: "general chat"}
	}

	intent, err := r.classifier.Classify(ctx, st.Window(r.cfg.Session.ContextWindow), latest)
	if err != nil {
		r.logger.Warn("Intent classification failed", "error", err)
		intent = IntentUnclear
	}

	// Rule 3: advice requires a usable profile.
	if intent == IntentAdvisory || intent == IntentReport {
		if missing := r.missingRequiredFields(st.Profile); len(missing) > 0 {
			// Remember the question so it can be restored after the
			// interview completes.
			if intent == IntentAdvisory && st.PendingQuery == "" {
				st.PendingQuery = latest
			}
			return Decision{
				Destination: models.DestInterview,
				Reason:      "required profile fields missing",
			}
		}
	}

	switch intent {
	case IntentProfile:
		return Decision{Destination: models.DestInterview, Reason: "profile change request"}
	case IntentLookup:
		// Rule 4.
		return Decision{Destination: models.DestRetrieval, Reason: "narrow factual query"}
	case IntentAdvisory:
		// Rule 5.
		return Decision{Destination: models.DestDebate, Reason: "judgment call"}
	case IntentReport:
		// Rule 6: synthesis needs a sealed record to anchor the report;
		// without one the request is ambiguous.
		if st.SealedDebate() != nil {
			return Decision{Destination: models.DestSynthesis, Reason: "user ready for write-up"}
		}
		return Decision{Destination: models.DestClarify, Reason: "write-up requested without sealed debate"}
	default:
		// Rule 7.
		return Decision{Destination: models.DestClarify, Reason: "ambiguous intent"}
	}
}

// interviewInProgress reports whether the session is mid slot-filling:
// required fields are still missing and the previous turn either parked
// an advisory question or was itself routed to the interview.
func (r *Router) interviewInProgress(st *session.State) bool {
	if len(r.missingRequiredFields(st.Profile)) == 0 {
		return false
	}
	return st.PendingQuery != "" || st.LastDestination == models.DestInterview
}

// missingRequiredFields returns required fields that are neither set nor
// explicitly deferred.
func (r *Router) missingRequiredFields(profile *models.Profile) []string {
	var missing []string
	for _, name := range r.cfg.RequiredProfileFields() {
		if !profile.IsSet(name) && !profile.IsDeferred(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// acceptPhrases and declinePhrases drive the keyword fast path for
// suggestion resolution. Anything else counts as "ignored" and falls
// through to normal routing.
var acceptPhrases = []string{
	"yes", "yes please", "sure", "ok", "okay", "go ahead", "do it",
	"sounds good", "please do", "let's do it", "proceed",
}

var declinePhrases = []string{
	"no", "no thanks", "nope", "skip", "not now", "don't", "no need",
	"just the report", "skip it", "pass",
}

func resolveSuggestion(latest string) models.SuggestionResolution {
	normalized := strings.ToLower(strings.TrimSpace(strings.TrimRight(latest, ".!?")))
	for _, p := range acceptPhrases {
		if normalized == p {
			return models.SuggestionAccepted
		}
	}
	for _, p := range declinePhrases {
		if normalized == p {
			return models.SuggestionDeclined
		}
	}
	return models.SuggestionIgnored
}
