// Package session holds the per-session conversation state and the
// in-memory session manager. One State instance exists per session key;
// the manager hands out sessions whose turn processing is serialized, so
// no two stages ever mutate the same State concurrently.
package session

import (
	"errors"
	"time"

	"github.com/finagent-io/finagent/pkg/models"
)

// ErrSuggestionPending is returned when a new suggestion is raised while
// one is already outstanding.
var ErrSuggestionPending = errors.New("session: a suggestion is already pending")

// Fingerprint captures the state inputs the router treats as "new
// information". Two equal fingerprints mean nothing routable changed
// between turns.
type Fingerprint struct {
	ProfileVersion int
	SuggestionID   string
	ActiveTopic    string
}

// State is the shared, append-only record threading all stages together.
// All mutation happens under the owning Session's turn lock.
type State struct {
	// Turns is the authoritative, insertion-ordered context window.
	Turns []models.Turn

	// Profile is mutated only by the interview stage.
	Profile *models.Profile
	// ProfileVersion increments on every successful field write.
	ProfileVersion int

	// ActiveTopic is the advisory question under discussion; set by the
	// router, cleared by synthesis.
	ActiveTopic string

	// Debate is the current (or latest sealed) debate record.
	Debate *models.DebateRecord

	// PendingSuggestion is the single outstanding follow-up offer.
	PendingSuggestion *models.Suggestion

	// Stage is the pipeline position; single-valued at any observation
	// point.
	Stage models.Stage

	// LastDestination and LastFingerprint feed the router's
	// loop-prevention check.
	LastDestination models.Destination
	LastFingerprint Fingerprint

	// PendingQuery preserves an advisory question that arrived before
	// the profile was complete; restored once the interview finishes.
	PendingQuery string

	// Caveats accumulates documented gaps (deferred fields, degraded
	// lookups) that synthesis must surface in the report.
	Caveats []string
}

// AppendTurn appends a turn to the conversation history.
func (s *State) AppendTurn(role models.TurnRole, content string) {
	s.Turns = append(s.Turns, models.Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// LatestUserTurn returns the content of the most recent user turn.
func (s *State) LatestUserTurn() string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == models.RoleUser {
			return s.Turns[i].Content
		}
	}
	return ""
}

// Window returns the trailing n turns (the bounded context given to the
// guardrail and router classifiers).
func (s *State) Window(n int) []models.Turn {
	if n <= 0 || len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// RaiseSuggestion records a pending suggestion. Only one may be
// outstanding at a time.
func (s *State) RaiseSuggestion(sug *models.Suggestion) error {
	if s.PendingSuggestion != nil {
		return ErrSuggestionPending
	}
	s.PendingSuggestion = sug
	return nil
}

// ClearSuggestion resolves the pending suggestion and returns it.
func (s *State) ClearSuggestion() *models.Suggestion {
	sug := s.PendingSuggestion
	s.PendingSuggestion = nil
	return sug
}

// BumpProfile records that a profile field was written.
func (s *State) BumpProfile() {
	s.ProfileVersion++
}

// AddCaveat records a documented gap for synthesis, deduplicated.
func (s *State) AddCaveat(caveat string) {
	for _, c := range s.Caveats {
		if c == caveat {
			return
		}
	}
	s.Caveats = append(s.Caveats, caveat)
}

// Fingerprint snapshots the router's new-information inputs.
func (s *State) Fingerprint() Fingerprint {
	fp := Fingerprint{
		ProfileVersion: s.ProfileVersion,
		ActiveTopic:    s.ActiveTopic,
	}
	if s.PendingSuggestion != nil {
		fp.SuggestionID = s.PendingSuggestion.ID
	}
	return fp
}

// SealedDebate returns the debate record if it is sealed for the active
// topic, else nil.
func (s *State) SealedDebate() *models.DebateRecord {
	if s.Debate != nil && s.Debate.Sealed {
		return s.Debate
	}
	return nil
}
