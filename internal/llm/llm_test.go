package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"webAgent/internal/agent"
	"webAgent/internal/config"
	"webAgent/internal/env"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		err  error
	}{
		{
			name: "python block after marker",
			in:   "Reasoning:\nНужно открыть корзину.\n\nCode:\n```python\nactions.click(3, \"Открываю корзину\")\n```",
			want: `actions.click(3, "Открываю корзину")`,
		},
		{
			name: "plain block",
			in:   "Reasoning:\nЗаполняю форму.\nCode:\n```\ninput_text(1, \"a\", True, \"Имя\")\ninput_text(2, \"b\", True, \"Фамилия\")\n```\n",
			want: "input_text(1, \"a\", True, \"Имя\")\ninput_text(2, \"b\", True, \"Фамилия\")",
		},
		{
			name: "no marker takes last block",
			in:   "```\nscroll(\"up\", \"x\")\n```\nлучше так:\n```\nscroll(\"down\", \"Листаю\")\n```",
			want: `scroll("down", "Листаю")`,
		},
		{
			name: "inline block",
			in:   "Code: ```finish(True, None, \"ok\")```",
			want: `finish(True, None, "ok")`,
		},
		{
			name: "missing",
			in:   "Я не знаю, что делать",
			err:  ErrNoCode,
		},
		{
			name: "empty block",
			in:   "Code:\n```python\n```",
			err:  ErrNoCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCode(tt.in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type llmLog struct {
	episodeID *uint
	cycle     *int
	prompt    string
	response  string
	tokens    int
}

type memoryLogger struct {
	mu   sync.Mutex
	logs []llmLog
}

func (m *memoryLogger) LogLLMRequest(_ context.Context, episodeID *uint, cycleNo *int, _, prompt, response, _ string, tokens int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, llmLog{episodeID: episodeID, cycle: cycleNo, prompt: prompt, response: response, tokens: tokens})
	return nil
}

func fakeOpenAI(t *testing.T, content string, requests *[]map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err == nil && requests != nil {
			*requests = append(*requests, req)
		}

		resp := map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o",
			"choices": []any{map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 1200, "completion_tokens": 30, "total_tokens": 1230},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, logger Logger) *Client {
	oc := openai.DefaultConfig("sk-test")
	oc.BaseURL = srv.URL + "/v1"
	return NewClientWithConfig(oc, config.OpenAI{Model: "gpt-4o", MaxTokens: 500}, logger, zap.NewNop())
}

func TestNextAction(t *testing.T) {
	var requests []map[string]any
	srv := fakeOpenAI(t, "Reasoning:\nВвожу пароль.\n\nCode:\n```python\ninput_text(4, \"hunter22\", True, \"Ввожу пароль\")\n```", &requests)
	logs := &memoryLogger{}
	client := newTestClient(srv, logs)

	task := agent.Task{
		ID:          7,
		URL:         "https://shop.example/",
		Description: "Войди в аккаунт",
		Args:        map[string]any{"password": "hunter22"},
	}
	obs := &env.Observation{
		URL:        "https://shop.example/login",
		Error:      "",
		Screenshot: []byte{0x89, 'P', 'N', 'G'},
		State:      env.Snapshot{Cycle: 2, Log: []string{"Открываю форму входа"}},
	}

	code, err := client.NextAction(context.Background(), task, obs)
	require.NoError(t, err)
	assert.Equal(t, `input_text(4, "hunter22", True, "Ввожу пароль")`, code)

	require.Len(t, requests, 1)
	req := requests[0]
	assert.Equal(t, "gpt-4o", req["model"])
	messages := req["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])

	parts := messages[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	text := parts[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "https://shop.example/login")
	assert.Contains(t, text, "Войди в аккаунт")
	assert.Contains(t, text, "Открываю форму входа")
	assert.Contains(t, text, "hunter22", "модель должна видеть аргументы задачи")
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.True(t, strings.HasPrefix(image["url"].(string), "data:image/png;base64,"))
	assert.Equal(t, "high", image["detail"])

	require.Len(t, logs.logs, 1)
	entry := logs.logs[0]
	require.NotNil(t, entry.episodeID)
	assert.Equal(t, uint(7), *entry.episodeID)
	assert.Equal(t, 2, *entry.cycle)
	assert.Equal(t, 1230, entry.tokens)
	assert.NotContains(t, entry.prompt, "hunter22")
	assert.NotContains(t, entry.response, "hunter22")
}

func TestNextActionWithoutCode(t *testing.T) {
	srv := fakeOpenAI(t, "Страница еще грузится.", nil)
	client := newTestClient(srv, nil)

	_, err := client.NextAction(context.Background(), agent.Task{URL: "https://shop.example/"}, &env.Observation{})
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 3600)

	require.NoError(t, rl.Wait(context.Background(), 100))
	requests, tokens := rl.Stats()
	assert.Zero(t, requests)
	assert.InDelta(t, 3500, tokens, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rl.Wait(ctx, 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "превышен лимит запросов")
}

func TestRateLimiterConsumeTokens(t *testing.T) {
	rl := NewRateLimiter(60, 1000)
	rl.ConsumeTokens(600)
	_, tokens := rl.Stats()
	assert.InDelta(t, 400, tokens, 5)

	// запрос больше бюджета ограничивается бюджетом, а не падает сразу
	rl = NewRateLimiter(60, 1000)
	require.NoError(t, rl.Wait(context.Background(), 5000))
}
