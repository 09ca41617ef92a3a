package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockflow-core-poc-v1/server/internal/interview/metrics"
	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	"github.com/mockflow-core-poc-v1/server/internal/interview/session"
	"github.com/mockflow-core-poc-v1/server/internal/interview/stage"
)

type fakeRunner struct {
	reply model.Reply
	err   error
	texts []string
}

func (f *fakeRunner) Invoke(_ context.Context, sess *session.Session, text string) (model.Reply, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return model.Reply{}, f.err
	}
	r := f.reply
	r.Stage = sess.Snapshot().Stage
	return r, nil
}

// summaryStore keeps summaries in memory and drops turns.
type summaryStore struct {
	mu        sync.Mutex
	summaries map[string]model.Summary
}

func (m *summaryStore) AddTurn(context.Context, string, model.Turn) error { return nil }

func (m *summaryStore) LoadTranscript(context.Context, string) ([]model.Turn, error) {
	return nil, nil
}

func (m *summaryStore) LoadRecent(context.Context, string, int) ([]model.Turn, error) {
	return nil, nil
}

func (m *summaryStore) SaveSummary(_ context.Context, s model.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[s.SessionID] = s
	return nil
}

func (m *summaryStore) LoadSummary(_ context.Context, id string) (*model.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

type testServer struct {
	echo    *echo.Echo
	manager *session.Manager
	hub     *Hub
	runner  *fakeRunner
	clock   *session.ManualClock
}

func newTestServer(t *testing.T, maxConcurrent int) *testServer {
	t.Helper()
	catalog, err := stage.New([]stage.Stage{
		{Name: "intro", TimeLimit: time.Minute, MinInteractions: 1, Ack: "Welcome {candidate_name}."},
		{Name: "deep_dive", Label: "Deep dive", TimeLimit: time.Minute, MinInteractions: 1, Ack: "Let's go deeper."},
		{Name: "wrap_up", TimeLimit: time.Minute},
	}, 0, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	reg := prometheus.NewRegistry()
	clock := session.NewManualClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	store := &summaryStore{summaries: map[string]model.Summary{}}
	manager := session.NewManager(session.Options{
		Catalog:        catalog,
		Clock:          clock,
		Speaker:        NewHubSpeaker(hub),
		Notifier:       NewHubNotifier(hub),
		Transcripts:    store,
		Recorder:       metrics.NewPrometheusRecorder(reg),
		Logger:         zerolog.Nop(),
		EndedRetention: time.Hour,
	}, maxConcurrent)

	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = manager.Shutdown(shutdownCtx)
		cancel()
	})

	runner := &fakeRunner{reply: model.Reply{Text: "Tell me more."}}
	e := echo.New()
	NewHandler(Options{
		Manager:     manager,
		Hub:         hub,
		Runner:      runner,
		Transcripts: store,
		Gatherer:    reg,
		Version:     "test",
	}).RegisterRoutes(e)

	return &testServer{echo: e, manager: manager, hub: hub, runner: runner, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) create(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/sessions", `{"candidate_name":"Ada","job_role":"SRE"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func (s *testServer) dial(t *testing.T, id string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.echo)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/" + id + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return ws
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/v1/sessions", `{"job_role":"SRE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/sessions", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := s.create(t)
	rec = s.do(t, http.MethodGet, "/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, id, snap.SessionID)
	assert.Equal(t, "intro", snap.Stage)
	assert.Equal(t, 3, snap.StageCount)
	assert.False(t, snap.Ended)

	rec = s.do(t, http.MethodGet, "/v1/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransitionEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	id := s.create(t)
	path := "/v1/sessions/" + id + "/transition"

	rec := s.do(t, http.MethodPost, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, path, `{"believed_stage":"deep_dive"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "stale_stage", decode(t, rec)["reason"])

	rec = s.do(t, http.MethodPost, path, `{"believed_stage":"intro","reason":"done"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "deep_dive", body["to"])
	assert.Equal(t, session.KindRequested, body["kind"])

	rec = s.do(t, http.MethodPost, path, `{"force":true,"reason":"operator"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.KindForced, decode(t, rec)["kind"])

	rec = s.do(t, http.MethodPost, path, `{"force":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_next_stage", decode(t, rec)["reason"])
}

func TestInteractionEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	id := s.create(t)
	path := "/v1/sessions/" + id + "/interactions"

	rec := s.do(t, http.MethodPost, path, `{"question":"Why SRE?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res session.InteractionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 0, res.Remaining)

	rec = s.do(t, http.MethodPost, path, `{"question":"why sre"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate", decode(t, rec)["reason"])

	rec = s.do(t, http.MethodPost, path, `{"question":"  ?  "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSkipEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	id := s.create(t)
	path := "/v1/sessions/" + id + "/skip"

	rec := s.do(t, http.MethodPost, path, `{"target_stage_name":"intro"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_skip", decode(t, rec)["reason"])

	rec = s.do(t, http.MethodPost, path, `{"target_stage_name":"Wrap_Up"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "wrap_up", decode(t, rec)["target_stage_name"])

	rec = s.do(t, http.MethodPost, "/v1/sessions/"+id+"/transition", `{"believed_stage":"intro"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "wrap_up", body["to"])
	assert.Equal(t, session.KindSkipped, body["kind"])
}

func TestTurnEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	id := s.create(t)

	rec := s.do(t, http.MethodPost, "/v1/sessions/"+id+"/turns", `{"text":"Hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var reply model.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "Tell me more.", reply.Text)
	assert.Equal(t, "intro", reply.Stage)
	assert.Equal(t, []string{"Hello"}, s.runner.texts)

	s.runner.err = session.ErrSessionEnded
	rec = s.do(t, http.MethodPost, "/v1/sessions/"+id+"/turns", `{"text":"Hello"}`)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestTurnEndpointWithoutInterviewer(t *testing.T) {
	s := newTestServer(t, 0)
	id := s.create(t)

	e := echo.New()
	NewHandler(Options{Manager: s.manager, Hub: s.hub}).RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id+"/turns", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEndSession(t *testing.T) {
	s := newTestServer(t, 0)
	id := s.create(t)

	rec := s.do(t, http.MethodDelete, "/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp EndSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Snapshot.Ended)
	assert.Equal(t, session.ReasonClientEnded, resp.Summary.EndedBy)
	assert.Equal(t, "Ada", resp.Summary.CandidateName)

	rec = s.do(t, http.MethodGet, "/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ended"])

	rec = s.do(t, http.MethodPost, "/v1/sessions/"+id+"/interactions", `{"question":"Still there?"}`)
	assert.Contains(t, []int{http.StatusNotFound, http.StatusGone}, rec.Code)
}

func TestGetSessionAfterRetentionServesStoredSummary(t *testing.T) {
	s := newTestServer(t, 0)
	id := s.create(t)

	rec := s.do(t, http.MethodDelete, "/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Eventually(t, func() bool { return s.manager.EndedLen() == 1 }, time.Second, 5*time.Millisecond)

	s.clock.Advance(2 * time.Hour)
	_, err := s.manager.Lookup(id)
	require.ErrorIs(t, err, session.ErrSessionNotFound)

	rec = s.do(t, http.MethodGet, "/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ArchivedSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.SessionID)
	assert.True(t, resp.Ended)
	assert.Equal(t, session.ReasonClientEnded, resp.Summary.EndedBy)
	assert.Equal(t, "Ada", resp.Summary.CandidateName)

	rec = s.do(t, http.MethodGet, "/v1/sessions/never-existed", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionCapacity(t *testing.T) {
	s := newTestServer(t, 1)
	s.create(t)

	rec := s.do(t, http.MethodPost, "/v1/sessions", `{"candidate_name":"Bob"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 0)
	id := s.create(t)
	rec := s.do(t, http.MethodPost, "/v1/sessions/"+id+"/transition", `{"force":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode(t, rec)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, float64(1), health["active_sessions"])
	assert.Equal(t, float64(0), health["ended_sessions"])
	assert.Equal(t, float64(0), health["connections"])

	ws := s.dial(t, id)
	require.Eventually(t, func() bool { return s.hub.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)
	rec = s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, float64(1), decode(t, rec)["connections"])
	_ = ws.Close()

	rec = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `interview_transitions_total{from="intro",kind="forced",to="deep_dive"} 1`)
	assert.Contains(t, rec.Body.String(), "interview_active_sessions 1")
}

func readFrames(t *testing.T, ws *websocket.Conn, want ...string) map[string]map[string]any {
	t.Helper()
	seen := map[string]map[string]any{}
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for len(seen) < len(want) {
		var frame map[string]any
		require.NoError(t, ws.ReadJSON(&frame))
		typ, _ := frame["type"].(string)
		for _, w := range want {
			if typ == w {
				seen[typ] = frame
			}
		}
	}
	return seen
}

func TestWebSocketSideband(t *testing.T) {
	s := newTestServer(t, 0)
	id := s.create(t)

	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/" + id + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return s.hub.HasActiveConnections(id) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.WriteJSON(SkipStageMessage{Type: TypeSkipStage, TargetStageName: "nowhere"}))
	frames := readFrames(t, ws, TypeError)
	assert.Equal(t, ErrorCodeRejected, frames[TypeError]["code"])

	require.NoError(t, ws.WriteJSON(SkipStageMessage{Type: TypeSkipStage, TargetStageName: "wrap_up"}))
	frames = readFrames(t, ws, TypeSkipQueued)
	assert.Equal(t, "wrap_up", frames[TypeSkipQueued]["target_stage_name"])

	rec := s.do(t, http.MethodPost, "/v1/sessions/"+id+"/transition", `{"force":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	frames = readFrames(t, ws, TypeStageChange, TypeSpeak)
	assert.Equal(t, "deep_dive", frames[TypeStageChange]["stage"])
	assert.Equal(t, true, frames[TypeStageChange]["forced"])
	assert.Equal(t, "Let's go deeper.", frames[TypeSpeak]["text"])

	rec = s.do(t, http.MethodDelete, "/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	frames = readFrames(t, ws, TypeSessionEnd)
	assert.Equal(t, session.ReasonClientEnded, frames[TypeSessionEnd]["reason"])
}

func TestWebSocketUnknownSession(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(t, http.MethodGet, "/v1/sessions/missing/ws", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHubSpeakerWithoutListener(t *testing.T) {
	hub := NewHub()
	err := NewHubSpeaker(hub).Speak(context.Background(), "s1", "hello")
	assert.ErrorIs(t, err, model.ErrSpeakerBusy)
}

type recordingNotifier struct {
	events []model.Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, ev model.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestFanoutNotifier(t *testing.T) {
	ok := &recordingNotifier{}
	broken := &recordingNotifier{err: assert.AnError}
	err := FanoutNotifier{ok, nil, broken}.Notify(context.Background(), model.Event{Type: TypeStageChange})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, ok.events, 1)
	assert.Len(t, broken.events, 1)
}
