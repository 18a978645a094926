package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleet-monitor-backend/internal/chat"
	"fleet-monitor-backend/internal/config"
	"fleet-monitor-backend/internal/eventlog"
	"fleet-monitor-backend/internal/fleet"
	"fleet-monitor-backend/internal/types"
)

const listing = `{"flights":[
	{"id":"F-01","displayName":"Falcon","components":[{"id":"c1","status":"Good"}]},
	{"id":"F-02","displayName":"Hawk","components":[{"id":"c2","status":"Critical"}]}
]}`

type fakeDispatcher struct {
	reply string
	err   error
	got   []types.ChatRequest
	ids   []string
}

func (f *fakeDispatcher) Handle(ctx context.Context, req types.ChatRequest) (string, error) {
	f.got = append(f.got, req)
	f.ids = append(f.ids, eventlog.RequestID(ctx))
	return f.reply, f.err
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(context.Context) error { return f.err }

type testEnv struct {
	srv   *Server
	cfg   config.Config
	llm   *fakeDispatcher
	agent *fakeDispatcher
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		AllowedOrigin: "*",
		DataDir:       filepath.Join(dir, "data"),
		FlightsFile:   filepath.Join(dir, "data", "flights.json"),
		OverridesDir:  filepath.Join(dir, "data", "flights"),
		LogsDir:       filepath.Join(dir, "data", "logs"),
		PublicDir:     filepath.Join(dir, "public"),
	}
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.PublicDir, 0o755))
	require.NoError(t, os.WriteFile(cfg.FlightsFile, []byte(listing), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PublicDir, "index.html"), []byte("<html>fleet</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PublicDir, "app.js"), []byte("console.log(1)"), 0o644))

	env := &testEnv{cfg: cfg, llm: &fakeDispatcher{reply: "llm"}, agent: &fakeDispatcher{reply: "agent"}}
	opts := Options{
		Config: cfg,
		Logger: zap.NewNop(),
		Fleet:  fleet.NewCache(fleet.NewFileStore(cfg.FlightsFile, cfg.OverridesDir), zap.NewNop()),
		LLM:    env.llm,
		Agent:  env.agent,
	}
	for _, m := range mutate {
		m(&opts)
	}
	env.srv = NewServer(opts)
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndRequestID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	_, err := uuid.Parse(rec.Header().Get("X-Request-Id"))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-Id", id)
	rec = httptest.NewRecorder()
	env.srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get("X-Request-Id"))
}

func TestHealthReportsDatabase(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.DB = fakeHealth{} })
	rec := env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok"}`, rec.Body.String())

	env = newTestEnv(t, func(o *Options) { o.DB = fakeHealth{err: errors.New("connection refused")} })
	rec = env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","database":"unreachable"}`, rec.Body.String())
}

func TestAppConfig(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/app-config", "")
	assert.JSONEq(t, `{"neuroSanSummaryProjectConfigured":false,"neuroSanSummaryProjectName":null}`, rec.Body.String())

	env.srv.cfg.Neuro = config.NeuroConfig{SummaryProjectName: "squadron_agent", APIToken: "secret"}
	rec = env.do(t, http.MethodGet, "/api/app-config", "")
	assert.JSONEq(t, `{"neuroSanSummaryProjectConfigured":true,"neuroSanSummaryProjectName":"squadron_agent"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestFleetRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/flights", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, listing, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/fleet-summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode(t, rec)
	assert.EqualValues(t, 2, summary["total"])
	assert.EqualValues(t, 1, summary["operationalCount"])
	assert.EqualValues(t, 50, summary["operationalPct"])
	assert.Equal(t, []any{"F-02"}, summary["criticalIds"])

	rec = env.do(t, http.MethodGet, "/api/flights/F-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Falcon", decode(t, rec)["displayName"])

	rec = env.do(t, http.MethodGet, "/api/flights/F-99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "flight not found", decode(t, rec)["error"])

	rec = env.do(t, http.MethodGet, "/api/flights/..", "")
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestPutFlightWritesOverride(t *testing.T) {
	env := newTestEnv(t)
	// prime the cache so the write has to invalidate it
	env.do(t, http.MethodGet, "/api/fleet-summary", "")

	rec := env.do(t, http.MethodPut, "/api/flights/F-02", `{"id":"F-02","displayName":"Hawk II","components":[{"id":"c2","status":"Good"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"saved":true}`, rec.Body.String())

	b, err := os.ReadFile(filepath.Join(env.cfg.OverridesDir, "F-02.json"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "Hawk II")

	rec = env.do(t, http.MethodGet, "/api/flights/F-02", "")
	assert.Equal(t, "Hawk II", decode(t, rec)["displayName"])

	rec = env.do(t, http.MethodPut, "/api/flights/F-02", `{broken`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/flights/bad%20id", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTunerAndGestureLog(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/tuner", "")
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/tuner", `{"threshold":0.6,"smoothing":3}`)
	assert.JSONEq(t, `{"saved":true}`, rec.Body.String())
	rec = env.do(t, http.MethodGet, "/api/tuner", "")
	assert.JSONEq(t, `{"threshold":0.6,"smoothing":3}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/gesture-log", `{"gesture":"swipe"}`)
	assert.JSONEq(t, `{"saved":true}`, rec.Body.String())
	b, err := os.ReadFile(filepath.Join(env.cfg.LogsDir, "gesture.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"payload":{"gesture":"swipe"}`)
	assert.True(t, strings.HasSuffix(string(b), "\n"))
}

func TestSummaryCacheRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/ai-summary-cache", "")
	assert.JSONEq(t, `{}`, rec.Body.String())

	for _, body := range []string{`{}`, `{"summary":null}`, `{"summary":42}`, `[]`} {
		rec = env.do(t, http.MethodPost, "/api/ai-summary-cache", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "invalid-summary", decode(t, rec)["error"])
	}

	rec = env.do(t, http.MethodPost, "/api/ai-summary-cache", `{"summary":"all good","backend":"neurosan","project":"","stats":{"total":2}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	saved := decode(t, rec)
	assert.Equal(t, true, saved["saved"])
	assert.NotZero(t, saved["ts"])

	rec = env.do(t, http.MethodGet, "/api/ai-summary-cache", "")
	got := decode(t, rec)
	assert.Equal(t, "all good", got["summary"])
	assert.Equal(t, "neurosan", got["backend"])
	assert.Nil(t, got["project"])
	assert.Equal(t, map[string]any{"total": float64(2)}, got["stats"])
	assert.Equal(t, saved["ts"], got["ts"])
}

func TestChatRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/ai-chat", `{"message":"hi","flightId":"F-01","bypassLocal":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"llm"}`, rec.Body.String())
	require.Len(t, env.llm.got, 1)
	assert.Equal(t, "F-01", env.llm.got[0].TargetID())
	assert.True(t, env.llm.got[0].BypassLocal)

	rec = env.do(t, http.MethodPost, "/api/neurosan-chat", `{"message":"status","summaryMode":true}`)
	assert.JSONEq(t, `{"reply":"agent"}`, rec.Body.String())
	require.Len(t, env.agent.got, 1)
	assert.True(t, env.agent.got[0].SummaryMode)

	// malformed bodies reach the dispatcher as an empty request
	env.do(t, http.MethodPost, "/api/neurosan-chat", `{"message":5}`)
	require.Len(t, env.agent.got, 2)
	assert.Empty(t, env.agent.got[1].Message)
	env.do(t, http.MethodPost, "/api/neurosan-chat", `not json`)
	require.Len(t, env.agent.got, 3)
	assert.Equal(t, types.ChatRequest{}, env.agent.got[2])
}

func TestChatIgnoresMistypedOptionalFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/neurosan-chat",
		`{"message":"status","history":"x","summaryMode":"true","carId":"F-02"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.agent.got, 1)
	got := env.agent.got[0]
	assert.Equal(t, "status", got.Message)
	assert.Nil(t, got.History)
	assert.False(t, got.SummaryMode)
	assert.Equal(t, "F-02", got.TargetID())
}

func TestChatDispatcherSeesRequestID(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/api/ai-chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("X-Request-Id", id)
	rec := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.llm.ids, 1)
	assert.Equal(t, id, env.llm.ids[0])
	assert.Equal(t, id, rec.Header().Get("X-Request-Id"))
}

func TestChatErrorRendering(t *testing.T) {
	env := newTestEnv(t)

	env.agent.err = &chat.Error{
		Kind:    chat.KindUnknownAgent,
		Status:  http.StatusBadRequest,
		Code:    "unknown-agent",
		Project: "P1",
		Message: "Unknown Neuro-SAN agent 'P1' (404).",
	}
	rec := env.do(t, http.MethodPost, "/api/neurosan-chat", `{"message":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"unknown-agent","project":"P1","message":"Unknown Neuro-SAN agent 'P1' (404)."}`, rec.Body.String())

	env.agent.err = &chat.Error{Kind: chat.KindUpstreamHTTP, Status: http.StatusBadGateway, Code: "ai-service-error", Detail: map[string]any{"error": "boom"}}
	rec = env.do(t, http.MethodPost, "/api/neurosan-chat", `{"message":"x"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"ai-service-error","detail":{"error":"boom"}}`, rec.Body.String())

	env.llm.err = errors.New("unexpected")
	rec = env.do(t, http.MethodPost, "/api/ai-chat", `{"message":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "ai-chat-failed", decode(t, rec)["error"])
}

func TestChatThroughAgentDispatcher(t *testing.T) {
	env := newTestEnv(t)
	calls := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer backend.Close()

	env.srv = NewServer(Options{
		Config: env.cfg,
		Fleet:  env.srv.fleet,
		LLM:    env.llm,
		Agent: chat.NewAgentDispatcher(chat.AgentOptions{
			Config: config.NeuroConfig{APIURL: backend.URL, ProjectName: "P1"},
			Fleet:  env.srv.fleet,
		}),
	})

	rec := env.do(t, http.MethodPost, "/api/neurosan-chat", `{"message":"status"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "unknown-agent", body["error"])
	assert.Equal(t, "P1", body["project"])
	assert.Equal(t, 1, calls)

	rec = env.do(t, http.MethodPost, "/api/neurosan-chat", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `Missing or invalid "message" in request body`, decode(t, rec)["error"])
}

func TestStaticFallback(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/dashboard/F-01", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>fleet</html>", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode(t, rec)["error"])
}
