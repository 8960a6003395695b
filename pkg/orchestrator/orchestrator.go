// Package orchestrator drives the per-turn pipeline: guardrail, router,
// and the routed stage. It owns the session lifecycle and the turn lock,
// so stage implementations can mutate session state without their own
// synchronization.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finagent-io/finagent/pkg/config"
	"github.com/finagent-io/finagent/pkg/guardrail"
	"github.com/finagent-io/finagent/pkg/interview"
	"github.com/finagent-io/finagent/pkg/models"
	"github.com/finagent-io/finagent/pkg/retrieval"
	"github.com/finagent-io/finagent/pkg/router"
	"github.com/finagent-io/finagent/pkg/services"
	"github.com/finagent-io/finagent/pkg/session"
	"github.com/finagent-io/finagent/pkg/synthesis"
)

// DebateEngine is the debate stage contract. The concrete engine lives
// in pkg/debate; the orchestrator depends on the interface so turn
// handling tests can stub a multi-minute protocol.
type DebateEngine interface {
	Run(ctx context.Context, st *session.State, topic string) (*models.DebateRecord, error)
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	cfg       *config.Config
	sessions  *session.Manager
	guard     *guardrail.Guardrail
	router    *router.Router
	interview *interview.Stage
	retrieval *retrieval.Stage
	debate    DebateEngine
	synthesis *synthesis.Stage
	profiles  services.ProfileStore
	logger    *slog.Logger
}

// New assembles the orchestrator from its stages.
func New(
	cfg *config.Config,
	sessions *session.Manager,
	guard *guardrail.Guardrail,
	rt *router.Router,
	iv *interview.Stage,
	rv *retrieval.Stage,
	db DebateEngine,
	sy *synthesis.Stage,
	profiles services.ProfileStore,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		sessions:  sessions,
		guard:     guard,
		router:    rt,
		interview: iv,
		retrieval: rv,
		debate:    db,
		synthesis: sy,
		profiles:  profiles,
		logger:    slog.With("component", "orchestrator"),
	}
}

// Sessions exposes the session manager for the API layer.
func (o *Orchestrator) Sessions() *session.Manager {
	return o.sessions
}

// HandleTurn processes one inbound user message. An empty sessionID
// starts a new session seeded with the user's stored profile. A turn
// arriving while the session is mid-turn is rejected with
// session.ErrTurnInProgress rather than queued.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID, sessionID, message string) (*models.TurnResult, error) {
	sess, err := o.resolveSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	st, err := sess.TryAcquire()
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	st.AppendTurn(models.RoleUser, message)

	result := &models.TurnResult{SessionID: sess.ID}
	window := st.Window(o.cfg.Session.ContextWindow)

	st.Stage = models.StageGuardrail
	decision := o.guard.Check(ctx, message, window)
	if !decision.Allowed {
		st.AppendTurn(models.RoleAssistant, guardrail.RefusalText)
		result.ResponseText = guardrail.RefusalText
		result.StageExecuted = models.StageGuardrail
		return result, nil
	}

	st.Stage = models.StageRouting
	route := o.router.Route(ctx, st, decision.DomainTag)

	response, stage, err := o.dispatch(ctx, st, route)
	if err != nil {
		st.Stage = models.StageGuardrail
		return nil, err
	}

	// A fresh suggestion raised this turn is offered together with the
	// stage's answer.
	if sug := st.PendingSuggestion; sug != nil && route.Destination == models.DestDebate {
		response += "\n\n" + sug.Text
	}

	st.AppendTurn(models.RoleAssistant, response)
	st.Stage = models.StageGuardrail

	result.ResponseText = response
	result.StageExecuted = stage
	if stage == models.StageDebate {
		result.DebateRecord = st.Debate
	}
	return result, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, st *session.State, route router.Decision) (string, models.Stage, error) {
	switch route.Destination {
	case models.DestInterview:
		st.Stage = models.StageInterview
		res, err := o.interview.Run(ctx, st)
		if err != nil {
			return "", models.StageInterview, err
		}
		return res.ResponseText, models.StageInterview, nil

	case models.DestRetrieval:
		st.Stage = models.StageRetrieval
		answer, err := o.retrieval.Run(ctx, st)
		return answer, models.StageRetrieval, err

	case models.DestDebate:
		st.Stage = models.StageDebate
		topic := st.ActiveTopic
		if topic == "" {
			topic = st.LatestUserTurn()
			st.ActiveTopic = topic
		}
		record, err := o.debate.Run(ctx, st, topic)
		if err != nil {
			return "", models.StageDebate, fmt.Errorf("debate failed: %w", err)
		}
		return o.verdictSummary(record), models.StageDebate, nil

	case models.DestSynthesis:
		st.Stage = models.StageSynthesis
		report, err := o.synthesis.Run(ctx, st)
		return report, models.StageSynthesis, err

	default:
		// Clarify keeps the stage machine parked at routing.
		return o.clarification(route), models.StageRouting, nil
	}
}

// verdictSummary is the conversational answer after a sealed debate; the
// full report is produced by synthesis when the user asks for it.
func (o *Orchestrator) verdictSummary(record *models.DebateRecord) string {
	v := record.Verdict
	if v.Recommendation == "inconclusive" {
		return fmt.Sprintf("I ran a full analysis of %q but could not reach a "+
			"confident conclusion. I can still write up the arguments from both "+
			"sides if you want the report.", record.Topic)
	}
	return fmt.Sprintf("After weighing the arguments on %q: %s (confidence %.0f%%). %s "+
		"Say the word and I'll write up the full report.",
		record.Topic, v.Recommendation, v.Confidence*100, v.Rationale)
}

func (o *Orchestrator) clarification(route router.Decision) string {
	if route.Reason == "write-up requested without sealed debate" {
		return "I don't have a completed analysis to write up yet. " +
			"Ask me an investment question first and I'll run the analysis."
	}
	return "I want to make sure I help with the right thing. Are you after a " +
		"quick fact, an investment recommendation, or an update to your profile?"
}

// resolveSession loads an existing session or creates one seeded with
// the stored profile. A missing stored profile is the normal first-run
// case, not an error.
func (o *Orchestrator) resolveSession(ctx context.Context, userID, sessionID string) (*session.Session, error) {
	if sessionID != "" {
		return o.sessions.Get(sessionID)
	}
	if userID == "" {
		return nil, errors.New("user_id is required to start a session")
	}

	var profile *models.Profile
	if o.profiles != nil {
		stored, err := o.profiles.Get(ctx, userID)
		switch {
		case err == nil:
			profile = stored
		case errors.Is(err, services.ErrNotFound):
			// First contact; the interview will fill the profile.
		default:
			o.logger.Warn("Could not load stored profile, starting empty",
				"user_id", userID, "error", err)
		}
	}

	sess := o.sessions.Create(userID, profile)
	o.logger.Info("Session created", "session_id", sess.ID, "user_id", userID)
	return sess, nil
}
