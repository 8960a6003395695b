package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finagent-io/finagent/pkg/config"
	"github.com/finagent-io/finagent/pkg/guardrail"
	"github.com/finagent-io/finagent/pkg/interview"
	"github.com/finagent-io/finagent/pkg/llm"
	"github.com/finagent-io/finagent/pkg/models"
	"github.com/finagent-io/finagent/pkg/orchestrator"
	"github.com/finagent-io/finagent/pkg/retrieval"
	"github.com/finagent-io/finagent/pkg/router"
	"github.com/finagent-io/finagent/pkg/services"
	"github.com/finagent-io/finagent/pkg/session"
	"github.com/finagent-io/finagent/pkg/synthesis"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedClient admits every turn and classifies it as a lookup, so
// chat requests complete without external services.
type scriptedClient struct{}

func (scriptedClient) Complete(_ context.Context, req llm.Request) (string, error) {
	switch {
	case strings.Contains(req.System, "security and domain guardrail"):
		return `{"allowed": true, "domain_tag": "finance", "reason": "test"}`, nil
	case strings.Contains(req.System, "intent router"):
		return `{"intent": "lookup", "reason": "test"}`, nil
	case strings.Contains(req.System, "lookup planner"):
		return `{"kind": "knowledge"}`, nil
	default:
		return "test answer", nil
	}
}

type fixedIndex struct{}

func (fixedIndex) Search(_ context.Context, _ string, _ int) ([]retrieval.Document, error) {
	return []retrieval.Document{{Title: "doc", Content: "content"}}, nil
}

type noopDebate struct{}

func (noopDebate) Run(_ context.Context, _ *session.State, topic string) (*models.DebateRecord, error) {
	return &models.DebateRecord{Topic: topic, Sealed: true, SealedAt: time.Now(),
		Verdict: &models.Verdict{Recommendation: "hold", Rationale: "test", Confidence: 0.5}}, nil
}

func testServer(t *testing.T) (*Server, *orchestrator.Orchestrator) {
	t.Helper()
	cfg, err := config.Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)

	client := scriptedClient{}
	sessions := session.NewManager(time.Hour)
	orch := orchestrator.New(
		cfg,
		sessions,
		guardrail.New(client),
		router.New(cfg, router.NewLLMClassifier(client)),
		interview.New(cfg, client, nil),
		retrieval.NewStage(client, nil, fixedIndex{}, nil, nil),
		noopDebate{},
		synthesis.New(client, nil, nil),
		nil,
	)
	return NewServer(cfg, orch, nil, nil, nil), orch
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
}

func TestChatValidation(t *testing.T) {
	s, _ := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: `{}`},
		{name: "missing message", body: `{"user_id": "u1"}`},
		{name: "missing identity", body: `{"message": "hi"}`},
		{name: "malformed json", body: `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/v1/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestChatTurnRoundTrip(t *testing.T) {
	s, _ := testServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/chat",
		`{"user_id": "u1", "message": "what is an ETF?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, models.StageRetrieval, result.StageExecuted)
	assert.Equal(t, "test answer", result.ResponseText)

	// Second turn on the returned session.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/chat",
		`{"session_id": "`+result.SessionID+`", "message": "and a bond?"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatUnknownSessionIs404(t *testing.T) {
	s, _ := testServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/chat",
		`{"session_id": "ghost", "message": "hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatBusySessionIs409(t *testing.T) {
	s, orch := testServer(t)
	sess := orch.Sessions().Create("u1", nil)
	_, err := sess.TryAcquire()
	require.NoError(t, err)
	defer sess.Release()

	rec := doRequest(t, s, http.MethodPost, "/api/v1/chat",
		`{"session_id": "`+sess.ID+`", "message": "hi"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionAdministration(t *testing.T) {
	s, orch := testServer(t)
	sess := orch.Sessions().Create("u1", nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list SessionListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Contains(t, list.Sessions, sess.ID)

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/sessions/"+sess.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/sessions/"+sess.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type memProfileStore struct {
	upserts []map[string]any
}

func (m *memProfileStore) Get(_ context.Context, _ string) (*models.Profile, error) {
	return nil, services.ErrNotFound
}

func (m *memProfileStore) Upsert(_ context.Context, _ string, delta map[string]any, _ []string) error {
	m.upserts = append(m.upserts, delta)
	return nil
}

func TestUpdateProfileValidatesAgainstRegistry(t *testing.T) {
	s, _ := testServer(t)
	store := &memProfileStore{}
	s.profiles = store

	rec := doRequest(t, s, http.MethodPut, "/api/v1/profile/u1",
		`{"values": {"favorite_color": "green"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/v1/profile/u1",
		`{"values": {"risk_tolerance_level": "yolo"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.upserts, "an invalid request never writes")

	rec = doRequest(t, s, http.MethodPut, "/api/v1/profile/u1",
		`{"values": {"risk_tolerance_level": "moderate"}}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, store.upserts, 1)
}

func TestProfileEndpointsWithoutStore(t *testing.T) {
	s, _ := testServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/profile/u1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/v1/profile/u1",
		`{"values": {"risk_tolerance_level": "moderate"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
