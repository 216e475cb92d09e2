package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"webAgent/internal/agent"
	"webAgent/internal/database"
	"webAgent/internal/env"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memoryStore struct {
	episodes []database.Episode
	cycles   map[uint][]database.Cycle
	logs     map[uint][]database.LlmLog
}

func (s *memoryStore) CreateEpisode(_ context.Context, e *database.Episode) error {
	e.ID = uint(len(s.episodes) + 1)
	s.episodes = append(s.episodes, *e)
	return nil
}

func (s *memoryStore) GetEpisodeByID(_ context.Context, id uint) (*database.Episode, error) {
	for i := range s.episodes {
		if s.episodes[i].ID == id {
			return &s.episodes[i], nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memoryStore) ListEpisodes(_ context.Context, _, _ int) ([]database.Episode, error) {
	return s.episodes, nil
}

func (s *memoryStore) ListCycles(_ context.Context, id uint) ([]database.Cycle, error) {
	return s.cycles[id], nil
}

func (s *memoryStore) ListLlmLogs(_ context.Context, id uint) ([]database.LlmLog, error) {
	return s.logs[id], nil
}

type recordingRunner struct {
	tasks  []agent.Task
	result agent.Result
	err    error
}

func (r *recordingRunner) Run(_ context.Context, task agent.Task) (agent.Result, error) {
	r.tasks = append(r.tasks, task)
	return r.result, r.err
}

func TestParseTask(t *testing.T) {
	task, err := ParseTask(`https://example.com купить билет --args {"login": "user", "n": 2}`)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", task.URL)
	assert.Equal(t, "купить билет", task.Description)
	assert.Equal(t, "user", task.Args["login"])

	task, err = ParseTask("https://example.com найти цену")
	require.NoError(t, err)
	assert.Nil(t, task.Args)

	_, err = ParseTask("https://example.com")
	assert.ErrorIs(t, err, errTaskSyntax)

	_, err = ParseTask("https://example.com задача --args {broken")
	assert.Error(t, err)
}

func TestTaskCreateStoresSanitizedArgs(t *testing.T) {
	store := &memoryStore{}
	runner := &recordingRunner{result: agent.Result{Status: env.StatusSucceeded, Cycles: 2}}
	var out bytes.Buffer
	h := NewTaskHandler(store, runner, &out, zaptest.NewLogger(t))
	ctx := context.Background()

	h.Create(ctx, `https://example.com войти --args {"login": "user", "password": "hunter2"}`)
	require.Len(t, store.episodes, 1)
	assert.Equal(t, database.StatusPending, store.episodes[0].Status)
	assert.NotContains(t, store.episodes[0].Args, "hunter2")
	assert.Contains(t, out.String(), "Создан эпизод #1")

	h.Run(ctx, "1")
	require.Len(t, runner.tasks, 1)
	task := runner.tasks[0]
	assert.Equal(t, uint(1), task.ID)
	assert.Equal(t, "hunter2", task.Args["password"])
	assert.Contains(t, out.String(), "Задача выполнена за 2")
}

func TestTaskCreateWithoutStoreRunsImmediately(t *testing.T) {
	runner := &recordingRunner{result: agent.Result{Status: env.StatusFailed, Diagnostic: "достигнут лимит циклов (3)"}}
	var out bytes.Buffer
	h := NewTaskHandler(nil, runner, &out, zaptest.NewLogger(t))

	h.Create(context.Background(), "https://example.com задача")
	require.Len(t, runner.tasks, 1)
	assert.Zero(t, runner.tasks[0].ID)
	assert.Contains(t, out.String(), "достигнут лимит циклов (3)")

	out.Reset()
	h.List(context.Background())
	assert.Contains(t, out.String(), "База данных не настроена")
}

func TestTaskRunErrors(t *testing.T) {
	store := &memoryStore{}
	runner := &recordingRunner{err: errors.New("браузер недоступен")}
	var out bytes.Buffer
	h := NewTaskHandler(store, runner, &out, zaptest.NewLogger(t))
	ctx := context.Background()

	h.Run(ctx, "abc")
	assert.Contains(t, out.String(), "Неверный ID")

	h.Run(ctx, "7")
	assert.Contains(t, out.String(), "Эпизод не найден")
	assert.Empty(t, runner.tasks)

	h.Create(ctx, "https://example.com задача")
	h.Run(ctx, "1")
	assert.Contains(t, out.String(), "браузер недоступен")
}

func TestShowPrintsCycles(t *testing.T) {
	store := &memoryStore{
		episodes: []database.Episode{{ID: 1, URL: "https://example.com", Task: "найти", Status: database.StatusFailed, Diagnostic: "нет кнопки"}},
		cycles: map[uint][]database.Cycle{1: {
			{CycleNo: 1, Script: "click(3, \"Нажимаю\")", Log: "Нажимаю", URL: "https://example.com", Elements: 12},
			{CycleNo: 2, Script: "click(99, \"Снова\")", Error: "элемент не размечен на странице"},
		}},
	}
	var out bytes.Buffer
	NewShowHandler(store, &out, zaptest.NewLogger(t)).Show(context.Background(), "1")

	s := out.String()
	assert.Contains(t, s, "Эпизод #1")
	assert.Contains(t, s, "нет кнопки")
	assert.Contains(t, s, "[Цикл 1]")
	assert.Contains(t, s, "click(3")
	assert.Contains(t, s, "элемент не размечен")
}

func TestLogsPrintsResponses(t *testing.T) {
	cycle := 1
	store := &memoryStore{logs: map[uint][]database.LlmLog{
		1: {{CycleNo: &cycle, Model: "gpt-4o", TokensUsed: 1500, ResponseText: "Code:\nscroll(\"down\", \"Листаю\")"}},
	}}
	var out bytes.Buffer
	h := NewLogsHandler(store, &out, zaptest.NewLogger(t))

	h.Show(context.Background(), "1")
	assert.Contains(t, out.String(), "gpt-4o")
	assert.Contains(t, out.String(), "scroll(")

	out.Reset()
	h.Show(context.Background(), "2")
	assert.Contains(t, out.String(), "Логи не найдены")
}
