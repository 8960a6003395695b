package models

import "time"

// Stance is one of the fixed debate viewpoints.
type Stance string

const (
	StanceBull     Stance = "bull"
	StanceBear     Stance = "bear"
	StanceBalanced Stance = "balanced"
)

// StanceOrder is the deterministic turn order within a round, so that
// rebuttals can reference the immediately preceding stance's argument.
var StanceOrder = []Stance{StanceBull, StanceBear, StanceBalanced}

// PlaceholderArgument is recorded for a stance whose call failed after
// exhausting retries. The round still counts the stance.
const PlaceholderArgument = "unavailable"

// DebatePhase names the position of a round within the protocol.
type DebatePhase string

const (
	PhaseOpening  DebatePhase = "opening"
	PhaseRebuttal DebatePhase = "rebuttal"
	PhaseDeepDive DebatePhase = "deep_dive"
	PhaseClosing  DebatePhase = "closing"
)

// Argument is a single stance's contribution to a round.
type Argument struct {
	Stance       Stance   `json:"stance"`
	Text         string   `json:"text"`
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
}

// IsPlaceholder reports whether this argument stands in for a failed
// stance call.
func (a Argument) IsPlaceholder() bool {
	return a.Text == PlaceholderArgument
}

// Round is one completed debate round: exactly one argument per stance,
// in StanceOrder.
type Round struct {
	Number    int         `json:"number"`
	Phase     DebatePhase `json:"phase"`
	Arguments []Argument  `json:"arguments"`
}

// Verdict is the judge's synthesized conclusion of a sealed debate.
type Verdict struct {
	Recommendation string  `json:"recommendation"`
	Rationale      string  `json:"rationale"`
	Confidence     float64 `json:"confidence"`
}

// DebateRecord accumulates rounds for a topic and, once sealed, becomes
// immutable with the verdict attached.
type DebateRecord struct {
	Topic    string    `json:"topic"`
	Rounds   []Round   `json:"rounds"`
	Sealed   bool      `json:"sealed"`
	Verdict  *Verdict  `json:"verdict,omitempty"`
	SealedAt time.Time `json:"sealed_at,omitzero"`
}
