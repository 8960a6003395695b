package models

import "time"

// TurnRole identifies the speaker of a conversation turn.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
	RoleSystem    TurnRole = "system"
)

// Turn is a single entry in the session conversation history.
// The ordered turn slice is the authoritative context window.
type Turn struct {
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Stage identifies the pipeline stage currently executing for a session.
// Exactly one stage is active at any observation point.
type Stage string

const (
	StageGuardrail Stage = "guardrail"
	StageRouting   Stage = "routing"
	StageInterview Stage = "interview"
	StageRetrieval Stage = "retrieval"
	StageDebate    Stage = "debate"
	StageSynthesis Stage = "synthesis"
)

// Destination is a routing decision produced by the router.
type Destination string

const (
	DestInterview Destination = "interview"
	DestRetrieval Destination = "retrieval"
	DestDebate    Destination = "debate"
	DestSynthesis Destination = "synthesis"
	DestClarify   Destination = "clarify"
)

// Suggestion is a proposed follow-up action awaiting user accept/decline.
// At most one suggestion may be outstanding per session.
type Suggestion struct {
	ID          string      `json:"id"`
	Topic       string      `json:"topic"`
	Text        string      `json:"text"`
	Destination Destination `json:"destination"`
	RaisedAt    time.Time   `json:"raised_at"`
}

// SuggestionResolution describes how the latest user turn resolves a
// pending suggestion.
type SuggestionResolution string

const (
	SuggestionAccepted SuggestionResolution = "accepted"
	SuggestionDeclined SuggestionResolution = "declined"
	SuggestionIgnored  SuggestionResolution = "ignored"
)
