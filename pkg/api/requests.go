package api

// ChatRequest is the HTTP request body for POST /api/v1/chat. SessionID
// is empty on the first turn; subsequent turns must carry the ID from
// the previous response.
type ChatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// UpdateProfileRequest is the HTTP request body for PUT /api/v1/profile/:userID.
// Values are validated against the configured field registry before any
// write happens.
type UpdateProfileRequest struct {
	Values map[string]any `json:"values"`
}
