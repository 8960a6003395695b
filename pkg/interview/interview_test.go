package interview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finagent-io/finagent/pkg/config"
	"github.com/finagent-io/finagent/pkg/llm"
	"github.com/finagent-io/finagent/pkg/models"
	"github.com/finagent-io/finagent/pkg/session"
)

type stubClient struct {
	response string
	err      error
}

func (s *stubClient) Complete(_ context.Context, _ llm.Request) (string, error) {
	return s.response, s.err
}

type recordingStore struct {
	deltas    []map[string]any
	deferreds [][]string
	err       error
}

func (r *recordingStore) Get(_ context.Context, _ string) (*models.Profile, error) {
	return nil, nil
}

func (r *recordingStore) Upsert(_ context.Context, _ string, delta map[string]any, deferred []string) error {
	r.deltas = append(r.deltas, delta)
	r.deferreds = append(r.deferreds, deferred)
	return r.err
}

func setup(t *testing.T, response string) (*Stage, *session.State, *recordingStore) {
	t.Helper()
	cfg, err := config.Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)

	store := &recordingStore{}
	stage := New(cfg, &stubClient{response: response}, store)
	st := &session.State{Profile: models.NewProfile("user-1")}
	return stage, st, store
}

func TestValidValueIsAppliedAndPersisted(t *testing.T) {
	stage, st, store := setup(t, `{"values": {"risk_tolerance_level": "moderate"}, "declined": []}`)
	st.AppendTurn(models.RoleUser, "I'd say moderate risk")

	res, err := stage.Run(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, "moderate", st.Profile.Values["risk_tolerance_level"])
	assert.Equal(t, 1, st.ProfileVersion)
	assert.False(t, res.Complete)
	assert.NotEmpty(t, res.ResponseText, "next question is asked")

	require.Len(t, store.deltas, 1)
	assert.Equal(t, map[string]any{"risk_tolerance_level": "moderate"}, store.deltas[0])
}

func TestInvalidEnumValueIsRejectedWithoutMutation(t *testing.T) {
	stage, st, store := setup(t, `{"values": {"risk_tolerance_level": "yolo"}, "declined": []}`)
	st.AppendTurn(models.RoleUser, "yolo risk please")

	res, err := stage.Run(context.Background(), st)
	require.NoError(t, err)

	assert.False(t, st.Profile.IsSet("risk_tolerance_level"))
	assert.Zero(t, st.ProfileVersion, "a rejected value never bumps the profile")
	assert.Empty(t, store.deltas, "nothing is persisted")
	assert.Contains(t, res.ResponseText, "yolo")
	assert.Contains(t, res.ResponseText, "conservative", "rejection names the valid options")

	// Re-sending the same invalid value behaves identically.
	st.AppendTurn(models.RoleUser, "yolo risk please")
	res2, err := stage.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Zero(t, st.ProfileVersion)
	assert.Empty(t, store.deltas)
	assert.Equal(t, res.ResponseText, res2.ResponseText)
}

func TestUnknownExtractedFieldIsDropped(t *testing.T) {
	stage, st, store := setup(t, `{"values": {"favorite_color": "green"}, "declined": []}`)
	st.AppendTurn(models.RoleUser, "green")

	_, err := stage.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Zero(t, st.ProfileVersion)
	assert.Empty(t, store.deltas)
}

func TestDeclinedFieldIsDeferredWithCaveat(t *testing.T) {
	stage, st, store := setup(t, `{"values": {}, "declined": ["income_bracket"]}`)
	st.AppendTurn(models.RoleUser, "I'd rather not share my income")

	_, err := stage.Run(context.Background(), st)
	require.NoError(t, err)

	assert.True(t, st.Profile.IsDeferred("income_bracket"))
	assert.Equal(t, 1, st.ProfileVersion, "a deferral is new information")
	require.Len(t, st.Caveats, 1)
	assert.Contains(t, st.Caveats[0], "income_bracket")
	require.Len(t, store.deferreds, 1)
	assert.Equal(t, []string{"income_bracket"}, store.deferreds[0])
}

func TestCompletionRestoresPendingQuery(t *testing.T) {
	stage, st, _ := setup(t, `{"values": {"preferred_style": "direct"}, "declined": []}`)
	st.PendingQuery = "Should I buy Nvidia?"

	// Everything but the last field is already collected.
	for _, name := range stage.cfg.RequiredProfileFields() {
		if name != "preferred_style" {
			st.Profile.Values[name] = "set"
		}
	}
	st.AppendTurn(models.RoleUser, "keep it direct")

	res, err := stage.Run(context.Background(), st)
	require.NoError(t, err)

	assert.True(t, res.Complete)
	assert.Equal(t, "Should I buy Nvidia?", res.RestoredQuery)
	assert.Empty(t, st.PendingQuery)
	assert.Contains(t, res.ResponseText, "Should I buy Nvidia?")
}

func TestExtractionFailureAsksAgain(t *testing.T) {
	cfg, err := config.Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)
	stage := New(cfg, &stubClient{err: llm.ErrTimeout}, nil)

	st := &session.State{Profile: models.NewProfile("user-1")}
	st.AppendTurn(models.RoleUser, "something garbled")

	res, err := stage.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Zero(t, st.ProfileVersion)
	assert.Contains(t, res.ResponseText, "didn't quite catch")
}

func TestQuestionsAreBatchedInPairs(t *testing.T) {
	stage, st, _ := setup(t, `{"values": {}, "declined": []}`)
	st.AppendTurn(models.RoleUser, "hi, set up my profile")

	res, err := stage.Run(context.Background(), st)
	require.NoError(t, err)

	// The first two registry fields are asked, no more.
	assert.Contains(t, res.ResponseText, "name")
	assert.Contains(t, res.ResponseText, "age")
	assert.NotContains(t, res.ResponseText, "income")
}

func TestStoreFailureAddsCaveatButKeepsSessionValue(t *testing.T) {
	stage, st, store := setup(t, `{"values": {"risk_tolerance_level": "moderate"}, "declined": []}`)
	store.err = assert.AnError
	st.AppendTurn(models.RoleUser, "moderate")

	_, err := stage.Run(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, "moderate", st.Profile.Values["risk_tolerance_level"])
	require.NotEmpty(t, st.Caveats)
	assert.Contains(t, st.Caveats[0], "could not be saved")
}
