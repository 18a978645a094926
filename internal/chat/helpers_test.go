package chat

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleet-monitor-backend/internal/fleet"
)

const testListing = `{"flights":[
	{"id":"F-01","displayName":"Falcon","components":[{"id":"c1","componentName":"Engine","status":"Good"}]},
	{"id":"F-02","displayName":"Hawk","components":[{"id":"c2","componentName":"Radar","status":"Warning","priorityLevel":"HIGH"}]},
	{"id":"F-03","displayName":"Eagle","components":[{"id":"c3","componentName":"Hydraulics","status":"Critical","faultCode":"HYD-7","maintenanceDue":"2024-05-01","priorityLevel":"CRITICAL"}]}
]}`

func testCache(t *testing.T) *fleet.Cache {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "flights.json")
	require.NoError(t, os.WriteFile(root, []byte(testListing), 0o644))
	return fleet.NewCache(fleet.NewFileStore(root, filepath.Join(dir, "flights")), zap.NewNop())
}

type recordedCall struct {
	Path string
	Auth string
	Body map[string]any
}

// fakeBackend records every request and delegates the response to
// respond, which receives the 1-based call number.
type fakeBackend struct {
	*httptest.Server

	mu      sync.Mutex
	calls   []recordedCall
	respond func(n int, w http.ResponseWriter, r *http.Request)
}

func newFakeBackend(t *testing.T, respond func(n int, w http.ResponseWriter, r *http.Request)) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{respond: respond}
	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		fb.mu.Lock()
		fb.calls = append(fb.calls, recordedCall{Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})
		n := len(fb.calls)
		fb.mu.Unlock()
		fb.respond(n, w, r)
	}))
	t.Cleanup(fb.Close)
	return fb
}

func (fb *fakeBackend) Calls() []recordedCall {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]recordedCall(nil), fb.calls...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
