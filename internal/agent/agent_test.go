package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"webAgent/internal/browser"
	"webAgent/internal/browser/browsertest"
	"webAgent/internal/database"
	"webAgent/internal/delegate"
	"webAgent/internal/env"
	"webAgent/internal/logger"
	"webAgent/internal/sanitizer"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sessionFactory struct {
	sessions []*browsertest.Session
	err      error
}

func (f *sessionFactory) NewSession(context.Context) (browser.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	frame := browsertest.NewFrame("", "https://shop.example/",
		browsertest.Node{Tag: "BUTTON", XPath: "/html/body/button"},
		browsertest.Node{Tag: "INPUT", XPath: "/html/body/input"},
	)
	s := browsertest.NewSession(browsertest.NewPage("about:blank", frame))
	f.sessions = append(f.sessions, s)
	return s, nil
}

// scripted отдает ответы по очереди, последний повторяется.
type scripted struct {
	mu      sync.Mutex
	replies []reply
	calls   int
	seen    []*env.Observation
}

type reply struct {
	code string
	err  error
}

func (p *scripted) NextAction(_ context.Context, _ Task, obs *env.Observation) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, obs)
	r := p.replies[min(p.calls, len(p.replies)-1)]
	p.calls++
	return r.code, r.err
}

func testLogger(t *testing.T) *logger.Zap {
	return &logger.Zap{Logger: zaptest.NewLogger(t)}
}

func newTestAgent(t *testing.T, policy Policy, rec Recorder, cfg Config) (*Agent, *sessionFactory) {
	t.Helper()
	sf := &sessionFactory{}
	cfg.RetryDelay = time.Millisecond
	return New(sf, policy, rec, nil, testLogger(t), cfg), sf
}

func TestRunSucceeds(t *testing.T) {
	policy := &scripted{replies: []reply{
		{code: `input_text(1, "ноутбук", True, "Ввожу запрос")`},
		{code: `finish(True, {"price": 10}, "Цена найдена")`},
	}}
	ag, sf := newTestAgent(t, policy, nil, Config{})

	result, err := ag.Run(context.Background(), Task{URL: "https://shop.example/", Description: "Узнай цену"})
	require.NoError(t, err)

	assert.True(t, result.Succeeded())
	assert.Equal(t, map[string]any{"price": int64(10)}, result.Output)
	assert.Equal(t, 2, result.Cycles)
	assert.Empty(t, result.Diagnostic)

	require.Len(t, sf.sessions, 1)
	assert.True(t, sf.sessions[0].Closed())
	assert.Equal(t, []string{"https://shop.example/"}, sf.sessions[0].Gotos)

	require.Len(t, policy.seen, 2)
	assert.Zero(t, policy.seen[0].State.Cycle)
	assert.Equal(t, []string{"Ввожу запрос"}, policy.seen[1].State.Log)
}

func TestRunFinishFailed(t *testing.T) {
	policy := &scripted{replies: []reply{{code: `finish(False, None, "Товара нет в наличии")`}}}
	ag, _ := newTestAgent(t, policy, nil, Config{})

	result, err := ag.Run(context.Background(), Task{URL: "https://shop.example/"})
	require.NoError(t, err)
	assert.Equal(t, env.StatusFailed, result.Status)
	assert.Equal(t, "Товара нет в наличии", result.Diagnostic)
}

func TestRunExhaustsCycles(t *testing.T) {
	policy := &scripted{replies: []reply{{code: `scroll("down", "Листаю")`}}}
	ag, _ := newTestAgent(t, policy, nil, Config{MaxCycles: 3})

	result, err := ag.Run(context.Background(), Task{URL: "https://shop.example/"})
	require.NoError(t, err)

	assert.Equal(t, env.StatusFailed, result.Status)
	assert.Equal(t, 3, result.Cycles)
	assert.Equal(t, 3, policy.calls)
	assert.Contains(t, result.Diagnostic, ErrCyclesExhausted.Error())
}

func TestRunRetriesTransientPolicyErrors(t *testing.T) {
	policy := &scripted{replies: []reply{
		{err: fmt.Errorf("ошибка запроса к OpenAI: %w", &openai.APIError{HTTPStatusCode: 429, Message: "Too many requests"})},
		{code: `finish(True, "ok")`},
	}}
	ag, _ := newTestAgent(t, policy, nil, Config{})

	result, err := ag.Run(context.Background(), Task{URL: "https://shop.example/"})
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, 2, policy.calls)
}

func TestRunStopsOnCriticalPolicyError(t *testing.T) {
	policy := &scripted{replies: []reply{{err: errors.New("invalid api key")}}}
	ag, sf := newTestAgent(t, policy, nil, Config{})

	result, err := ag.Run(context.Background(), Task{URL: "https://shop.example/"})
	require.Error(t, err)
	assert.Equal(t, 1, policy.calls)
	assert.Equal(t, env.StatusFailed, result.Status)
	assert.Contains(t, result.Diagnostic, "invalid api key")
	assert.True(t, sf.sessions[0].Closed())
}

func TestRunBrowserFailure(t *testing.T) {
	ag := New(&sessionFactory{err: errors.New("chromium not installed")}, &scripted{}, nil, nil, testLogger(t), Config{})

	result, err := ag.Run(context.Background(), Task{URL: "https://shop.example/"})
	require.Error(t, err)
	assert.Equal(t, env.StatusFailed, result.Status)
}

func TestRunEpisode(t *testing.T) {
	policy := &scripted{replies: []reply{{code: `finish(True, "код 4242")`}}}
	ag, _ := newTestAgent(t, policy, nil, Config{})

	var runner delegate.Runner = ag
	resp := runner.RunEpisode(context.Background(), delegate.Request{ID: "req-1", URL: "https://mail.example/", Task: "Найди код"})
	assert.Equal(t, delegate.Response{ID: "req-1", Status: delegate.StatusSucceeded, Output: "код 4242"}, resp)

	failing := &scripted{replies: []reply{{err: errors.New("invalid api key")}}}
	ag, _ = newTestAgent(t, failing, nil, Config{})
	resp = ag.RunEpisode(context.Background(), delegate.Request{ID: "req-2", URL: "https://mail.example/"})
	assert.Equal(t, delegate.StatusFailed, resp.Status)
	assert.Contains(t, resp.Diagnostic, "invalid api key")
}

type memoryStore struct {
	mu       sync.Mutex
	episodes map[uint]*database.Episode
	cycles   []database.Cycle
	statuses []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{episodes: make(map[uint]*database.Episode)}
}

func (s *memoryStore) CreateEpisode(_ context.Context, e *database.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uint(len(s.episodes) + 1)
	cp := *e
	s.episodes[e.ID] = &cp
	return nil
}

func (s *memoryStore) UpdateEpisodeStatus(_ context.Context, id uint, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	s.episodes[id].Status = status
	return nil
}

func (s *memoryStore) CreateCycle(_ context.Context, c *database.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, *c)
	return nil
}

func (s *memoryStore) FinishEpisode(_ context.Context, id uint, status, output, diagnostic string, cycles int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.episodes[id]
	e.Status, e.Output, e.Diagnostic, e.Cycles = status, output, diagnostic, cycles
	return nil
}

func TestDBRecorder(t *testing.T) {
	store := newMemoryStore()
	dir := t.TempDir()
	rec := NewDBRecorder(store, sanitizer.New(), dir, zap.NewNop())

	policy := &scripted{replies: []reply{
		{code: `input_text(1, "hunter22", True, "Ввожу пароль")`},
		{code: `finish(True, {"order": "A-17"}, "Заказ оформлен")`},
	}}
	ag, _ := newTestAgent(t, policy, rec, Config{})

	task := Task{
		URL:         "https://shop.example/",
		Description: "Купи чайник",
		Args:        map[string]any{"password": "hunter22", "city": "Казань"},
	}
	result, err := ag.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, uint(1), result.EpisodeID)

	episode := store.episodes[1]
	assert.Equal(t, database.StatusSucceeded, episode.Status)
	assert.Equal(t, `{"order":"A-17"}`, episode.Output)
	assert.Equal(t, 2, episode.Cycles)
	assert.NotContains(t, episode.Args, "hunter22")
	assert.Contains(t, episode.Args, "Казань")

	require.Len(t, store.cycles, 2)
	first := store.cycles[0]
	assert.Equal(t, 1, first.CycleNo)
	assert.NotContains(t, first.Script, "hunter22")
	assert.Equal(t, "Ввожу пароль", first.Log)
	assert.Equal(t, 2, first.Elements)

	data, err := os.ReadFile(first.ScreenshotPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestDBRecorderExistingEpisode(t *testing.T) {
	store := newMemoryStore()
	rec := NewDBRecorder(store, sanitizer.New(), "", zap.NewNop())
	require.NoError(t, store.CreateEpisode(context.Background(), &database.Episode{URL: "https://shop.example/", Status: database.StatusPending}))

	task := &Task{ID: 1, URL: "https://shop.example/"}
	require.NoError(t, rec.StartEpisode(context.Background(), task))
	assert.Equal(t, uint(1), task.ID)
	assert.Equal(t, []string{database.StatusRunning}, store.statuses)
	assert.Len(t, store.episodes, 1)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{errors.New("dial tcp: connection refused"), ErrorTypeRetryable},
		{&openai.APIError{HTTPStatusCode: 503, Message: "overloaded"}, ErrorTypeRetryable},
		{fmt.Errorf("ошибка запроса к OpenAI: %w", &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}), ErrorTypeRetryable},
		{&openai.APIError{HTTPStatusCode: 401, Message: "Incorrect API key provided"}, ErrorTypeCritical},
		{&openai.APIError{HTTPStatusCode: 400, Message: "max_tokens is too large: 5000"}, ErrorTypeCritical},
		{errors.New("context length exceeded: 15000 tokens"), ErrorTypeCritical},
		{context.Canceled, ErrorTypeCritical},
		{errors.New("invalid api key"), ErrorTypeCritical},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestRetryActionGivesUp(t *testing.T) {
	calls := 0
	err := retryAction(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errors.New("timeout")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}
