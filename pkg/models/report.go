package models

import "time"

// Report is a persisted advisory write-up produced by the synthesis stage.
type Report struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Topic     string         `json:"topic"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TurnResult is the orchestrator's answer for one inbound user turn.
type TurnResult struct {
	SessionID     string        `json:"session_id"`
	ResponseText  string        `json:"response_text"`
	StageExecuted Stage         `json:"stage_executed"`
	DebateRecord  *DebateRecord `json:"debate_record,omitempty"`
}
