package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"webAgent/internal/database"
	"webAgent/internal/env"
	"webAgent/internal/sanitizer"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Recorder сохраняет ход эпизода. Ошибки записи не прерывают эпизод.
type Recorder interface {
	// StartEpisode заводит эпизод и выставляет task.ID. Для задачи с уже
	// известным ID только переводит ее в running.
	StartEpisode(ctx context.Context, task *Task) error
	RecordCycle(ctx context.Context, episodeID uint, script string, obs *env.Observation) error
	FinishEpisode(ctx context.Context, episodeID uint, result Result) error
}

type NopRecorder struct{}

func (NopRecorder) StartEpisode(context.Context, *Task) error { return nil }
func (NopRecorder) RecordCycle(context.Context, uint, string, *env.Observation) error {
	return nil
}
func (NopRecorder) FinishEpisode(context.Context, uint, Result) error { return nil }

// EpisodeStore - часть репозитория, нужная для записи эпизода.
type EpisodeStore interface {
	CreateEpisode(ctx context.Context, e *database.Episode) error
	UpdateEpisodeStatus(ctx context.Context, id uint, status string) error
	CreateCycle(ctx context.Context, c *database.Cycle) error
	FinishEpisode(ctx context.Context, id uint, status, output, diagnostic string, cycles int) error
}

// DBRecorder пишет эпизоды в базу, а снимки экрана на диск. Все тексты
// проходят через санитайзер, дополненный секретами из аргументов задачи.
type DBRecorder struct {
	store         EpisodeStore
	sanitizer     *sanitizer.DataSanitizer
	screenshotDir string
	log           *zap.Logger

	mu      sync.Mutex
	secrets map[uint]*sanitizer.DataSanitizer
}

func NewDBRecorder(store EpisodeStore, s *sanitizer.DataSanitizer, screenshotDir string, log *zap.Logger) *DBRecorder {
	return &DBRecorder{
		store:         store,
		sanitizer:     s,
		screenshotDir: screenshotDir,
		log:           log.With(zap.String("comp", "recorder")),
		secrets:       make(map[uint]*sanitizer.DataSanitizer),
	}
}

func (r *DBRecorder) StartEpisode(ctx context.Context, task *Task) error {
	s := r.sanitizer.WithSecrets(task.Args)

	if task.ID != 0 {
		r.remember(task.ID, s)
		return r.store.UpdateEpisodeStatus(ctx, task.ID, database.StatusRunning)
	}

	args, err := json.Marshal(r.sanitizer.SanitizeArgs(task.Args))
	if err != nil {
		return fmt.Errorf("ошибка сериализации аргументов: %w", err)
	}
	episode := &database.Episode{
		URL:    task.URL,
		Task:   s.Sanitize(task.Description),
		Args:   string(args),
		Status: database.StatusRunning,
	}
	if err := r.store.CreateEpisode(ctx, episode); err != nil {
		return err
	}
	task.ID = episode.ID
	r.remember(task.ID, s)
	return nil
}

func (r *DBRecorder) RecordCycle(ctx context.Context, episodeID uint, script string, obs *env.Observation) error {
	if episodeID == 0 {
		return nil
	}
	s := r.sanitizerFor(episodeID)

	shotPath, err := r.saveScreenshot(episodeID, obs.State.Cycle, obs.Screenshot)
	if err != nil {
		r.log.Warn("Не удалось сохранить снимок экрана", zap.Uint("episode_id", episodeID), zap.Error(err))
	}

	return r.store.CreateCycle(ctx, &database.Cycle{
		EpisodeID:      episodeID,
		CycleNo:        obs.State.Cycle,
		Script:         s.Sanitize(script),
		URL:            obs.URL,
		Error:          s.Sanitize(obs.Error),
		Log:            strings.Join(s.SanitizeLines(obs.State.Log), "\n"),
		Elements:       obs.Registry.Len(),
		ScreenshotPath: shotPath,
	})
}

func (r *DBRecorder) FinishEpisode(ctx context.Context, episodeID uint, result Result) error {
	if episodeID == 0 {
		return nil
	}
	s := r.sanitizerFor(episodeID)
	r.forget(episodeID)

	output := ""
	if result.Output != nil {
		data, err := json.Marshal(result.Output)
		if err != nil {
			return fmt.Errorf("ошибка сериализации результата: %w", err)
		}
		output = s.Sanitize(string(data))
	}

	status := database.StatusFailed
	if result.Succeeded() {
		status = database.StatusSucceeded
	}
	return r.store.FinishEpisode(ctx, episodeID, status, output, s.Sanitize(result.Diagnostic), result.Cycles)
}

func (r *DBRecorder) saveScreenshot(episodeID uint, cycle int, shot []byte) (string, error) {
	if r.screenshotDir == "" || len(shot) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(r.screenshotDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("episode_%d_cycle_%03d_%s.png", episodeID, cycle, uuid.NewString()[:8])
	path := filepath.Join(r.screenshotDir, name)
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (r *DBRecorder) remember(id uint, s *sanitizer.DataSanitizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets[id] = s
}

func (r *DBRecorder) forget(id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.secrets, id)
}

func (r *DBRecorder) sanitizerFor(id uint) *sanitizer.DataSanitizer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.secrets[id]; ok {
		return s
	}
	return r.sanitizer
}
