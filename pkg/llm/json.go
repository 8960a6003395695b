package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// CompleteJSON runs a completion and unmarshals the response into out.
// Markdown code fences around the JSON body are stripped first; several
// providers wrap structured output in ```json blocks regardless of
// instructions. A parse failure is reported as MalformedOutputError so
// callers can apply their retry-then-discard policy.
func CompleteJSON(ctx context.Context, c Client, req Request, out any) error {
	raw, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}

	cleaned := StripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &MalformedOutputError{Raw: raw, Err: err}
	}
	return nil
}

// StripFences removes a surrounding markdown code fence, if present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
