package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"webAgent/internal/config"
	"webAgent/internal/database"
	"webAgent/internal/delegate"
	"webAgent/internal/logger"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type memoryStore struct {
	episodes []database.Episode
	cycles   map[uint][]database.Cycle
}

func (s *memoryStore) GetEpisodeByID(_ context.Context, id uint) (*database.Episode, error) {
	for i := range s.episodes {
		if s.episodes[i].ID == id {
			return &s.episodes[i], nil
		}
	}
	return nil, fmt.Errorf("эпизод %d: %w", id, database.ErrNotFound)
}

func (s *memoryStore) ListEpisodes(_ context.Context, limit, offset int) ([]database.Episode, error) {
	if offset >= len(s.episodes) {
		return nil, nil
	}
	end := min(offset+limit, len(s.episodes))
	return s.episodes[offset:end], nil
}

func (s *memoryStore) ListCycles(_ context.Context, id uint) ([]database.Cycle, error) {
	return s.cycles[id], nil
}

func newTestServer(t *testing.T, store Store, runner delegate.Runner) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := &logger.Zap{Logger: zaptest.NewLogger(t)}
	return New(config.App{Host: "127.0.0.1", Port: "0"}, log, store, runner).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil, nil)
	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRunEpisodeRoundTripsThroughHTTPDelegate(t *testing.T) {
	var got delegate.Request
	runner := delegate.RunnerFunc(func(_ context.Context, req delegate.Request) delegate.Response {
		got = req
		return delegate.Response{Status: delegate.StatusSucceeded, Output: map[string]any{"price": "10"}}
	})
	srv := httptest.NewServer(newTestServer(t, nil, runner))
	defer srv.Close()

	d := delegate.NewHTTPDelegate(srv.URL)
	resp, err := d.Delegate(context.Background(), delegate.Request{
		ID:   "req-1",
		URL:  "https://shop.example.com",
		Task: "узнать цену",
		Args: map[string]any{"item": "чайник"},
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.ID)
	assert.Equal(t, delegate.StatusSucceeded, resp.Status)
	assert.Equal(t, map[string]any{"price": "10"}, resp.Output)
	assert.Equal(t, "узнать цену", got.Task)
	assert.Equal(t, "чайник", got.Args["item"])
}

func TestRunEpisodeValidation(t *testing.T) {
	called := false
	runner := delegate.RunnerFunc(func(context.Context, delegate.Request) delegate.Response {
		called = true
		return delegate.Response{}
	})
	h := newTestServer(t, nil, runner)

	w := do(t, h, http.MethodPost, delegate.EpisodesPath, []byte(`{"url": "https://example.com"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, delegate.EpisodesPath, []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)
}

func TestEpisodeReads(t *testing.T) {
	store := &memoryStore{
		episodes: []database.Episode{
			{ID: 1, URL: "https://a.example.com", Task: "a", Status: database.StatusSucceeded},
			{ID: 2, URL: "https://b.example.com", Task: "b", Status: database.StatusFailed},
		},
		cycles: map[uint][]database.Cycle{2: {{EpisodeID: 2, CycleNo: 1, Script: "scroll(\"down\", \"\")"}}},
	}
	h := newTestServer(t, store, nil)

	w := do(t, h, http.MethodGet, delegate.EpisodesPath+"?limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []database.Episode
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, uint(2), list[0].ID)

	w = do(t, h, http.MethodGet, delegate.EpisodesPath+"/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Episode database.Episode `json:"episode"`
		Cycles  []database.Cycle `json:"cycles"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "b", detail.Episode.Task)
	require.Len(t, detail.Cycles, 1)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, delegate.EpisodesPath+"/9", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, delegate.EpisodesPath+"/x", nil).Code)
}

func TestReadsWithoutStore(t *testing.T) {
	h := newTestServer(t, nil, nil)
	w := do(t, h, http.MethodGet, delegate.EpisodesPath, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
