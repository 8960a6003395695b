package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	response string
	err      error
}

func (s *stubClient) Complete(_ context.Context, _ Request) (string, error) {
	return s.response, s.err
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain JSON untouched", input: `{"a":1}`, expected: `{"a":1}`},
		{name: "json fence stripped", input: "```json\n{\"a\":1}\n```", expected: `{"a":1}`},
		{name: "bare fence stripped", input: "```\n{\"a\":1}\n```", expected: `{"a":1}`},
		{name: "surrounding whitespace trimmed", input: "  {\"a\":1}\n", expected: `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripFences(tt.input))
		})
	}
}

func TestCompleteJSON(t *testing.T) {
	type verdict struct {
		Recommendation string  `json:"recommendation"`
		Confidence     float64 `json:"confidence"`
	}

	t.Run("parses fenced output", func(t *testing.T) {
		client := &stubClient{response: "```json\n{\"recommendation\":\"hold\",\"confidence\":0.7}\n```"}
		var out verdict
		require.NoError(t, CompleteJSON(context.Background(), client, Request{}, &out))
		assert.Equal(t, "hold", out.Recommendation)
		assert.InDelta(t, 0.7, out.Confidence, 0.001)
	})

	t.Run("malformed output keeps raw text", func(t *testing.T) {
		client := &stubClient{response: "I think you should buy."}
		var out verdict
		err := CompleteJSON(context.Background(), client, Request{}, &out)
		require.Error(t, err)
		assert.True(t, IsMalformed(err))

		var m *MalformedOutputError
		require.ErrorAs(t, err, &m)
		assert.Equal(t, "I think you should buy.", m.Raw)
	})

	t.Run("transport error passes through unmodified", func(t *testing.T) {
		client := &stubClient{err: ErrCallFailed}
		var out verdict
		err := CompleteJSON(context.Background(), client, Request{}, &out)
		assert.ErrorIs(t, err, ErrCallFailed)
		assert.False(t, IsMalformed(err))
	})
}
