package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytdle/internal/history"
	"ytdle/internal/queue"
)

type fakeController struct {
	paused  atomic.Bool
	cancels atomic.Int32
	skips   atomic.Int32
}

func (f *fakeController) Pause()                    { f.paused.Store(true) }
func (f *fakeController) Resume()                   { f.paused.Store(false) }
func (f *fakeController) Cancel()                   { f.cancels.Add(1) }
func (f *fakeController) SkipCurrent()              { f.skips.Add(1) }
func (f *fakeController) IsPaused() bool            { return f.paused.Load() }
func (f *fakeController) Counts() (int, int)        { return 3, 1 }
func (f *fakeController) BatchID() string           { return "batch-1" }
func (f *fakeController) InFlight() int             { return 2 }
func (f *fakeController) QueueSnapshot() []queue.Item {
	return []queue.Item{{Index: 5, URL: "https://example/pending"}}
}
func (f *fakeController) CheckNetwork() bool    { return true }
func (f *fakeController) NetworkStatus() string { return "Online" }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testToken = "secret-token"

func newTestServer(t *testing.T) (*ControlServer, *fakeController, *history.Store) {
	t.Helper()
	store, err := history.NewStore(discard(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctrl := &fakeController{}
	events := NewEventBuffer()
	events.Append("INFO", "engine started")
	audit := NewAuditLogger(discard())
	t.Cleanup(audit.Close)

	return NewControlServer(ctrl, store, audit, events, testToken, discard()), ctrl, store
}

func doRequest(t *testing.T, s *ControlServer, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:54321"
	if token != "" {
		req.Header.Set("X-YTDLE-Token", token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/v1/status", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, s, http.MethodGet, "/v1/status", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, s, http.MethodGet, "/v1/status", testToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoopbackOnly(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	req.Header.Set("X-YTDLE-Token", testToken)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStatus(t *testing.T) {
	s, ctrl, _ := newTestServer(t)
	ctrl.Pause()

	w := doRequest(t, s, http.MethodGet, "/v1/status", testToken)
	require.Equal(t, http.StatusOK, w.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "batch-1", resp.BatchID)
	assert.Equal(t, 3, resp.Success)
	assert.Equal(t, 1, resp.Failed)
	assert.True(t, resp.Paused)
	assert.Equal(t, 2, resp.InFlight)
	assert.Equal(t, "Online", resp.Network)
	require.Len(t, resp.Queue, 1)
	assert.Equal(t, "https://example/pending", resp.Queue[0].URL)
}

func TestControlActions(t *testing.T) {
	s, ctrl, _ := newTestServer(t)

	for _, action := range []string{"pause", "resume", "cancel", "skip"} {
		w := doRequest(t, s, http.MethodPost, "/v1/control/"+action, testToken)
		assert.Equal(t, http.StatusOK, w.Code, action)
	}
	assert.False(t, ctrl.IsPaused(), "resume after pause")
	assert.EqualValues(t, 1, ctrl.cancels.Load())
	assert.EqualValues(t, 1, ctrl.skips.Load())

	w := doRequest(t, s, http.MethodPost, "/v1/control/explode", testToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	s, _, store := newTestServer(t)
	require.NoError(t, store.AddCompleted("https://example/ok", "OK", "mp3", "192k", "/o/ok.mp3"))
	require.NoError(t, store.AddFailed("https://example/bad", "Bad", "mp4", "Best", "video unavailable", 2))

	w := doRequest(t, s, http.MethodGet, "/v1/history", testToken)
	require.Equal(t, http.StatusOK, w.Code)
	var recs []history.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	assert.Len(t, recs, 2)

	w = doRequest(t, s, http.MethodGet, "/v1/history?filter=failed", testToken)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "https://example/bad", recs[0].URL)

	w = doRequest(t, s, http.MethodGet, "/v1/history?q=ok", testToken)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "https://example/ok", recs[0].URL)

	w = doRequest(t, s, http.MethodGet, "/v1/history/stats", testToken)
	var st history.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.EqualValues(t, 2, st.Total)
	assert.EqualValues(t, 1, st.Completed)

	w = doRequest(t, s, http.MethodGet, "/v1/history/export", testToken)
	body := w.Body.String()
	assert.Contains(t, body, "# Failed: video unavailable")
	assert.Contains(t, body, "# Retry count: 2")
	assert.Contains(t, body, "https://example/bad\n\n")
	assert.NotContains(t, body, "https://example/ok")

	w = doRequest(t, s, http.MethodPost, "/v1/history/clear?filter=failed", testToken)
	require.Equal(t, http.StatusOK, w.Code)
	var cleared map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cleared))
	assert.EqualValues(t, 1, cleared["cleared"])
}

func TestEventsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/v1/events", testToken)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []EventEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "engine started", entries[0].Message)
}

func TestEventBufferRing(t *testing.T) {
	b := NewEventBuffer()
	for i := 0; i < eventBufferSize+10; i++ {
		b.Append("INFO", "line")
	}
	all := b.Recent(0)
	assert.Len(t, all, eventBufferSize)

	top := b.Recent(5)
	assert.Len(t, top, 5)
}
