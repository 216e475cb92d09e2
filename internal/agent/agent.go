package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"webAgent/internal/delegate"
	"webAgent/internal/env"
	"webAgent/internal/logger"

	"go.uber.org/zap"
)

// Agent гоняет эпизоды. Каждый эпизод получает собственную сессию браузера,
// поэтому один Agent можно вызывать из нескольких горутин.
type Agent struct {
	sessions SessionFactory
	policy   Policy
	recorder Recorder
	delegate delegate.Delegate
	cfg      Config
	log      *logger.Zap
}

// New создает агента. Без recorder эпизоды не сохраняются, без delegate
// действие act возвращает ошибку.
func New(sessions SessionFactory, policy Policy, recorder Recorder, d delegate.Delegate, log *logger.Zap, cfg Config) *Agent {
	if cfg.MaxCycles == 0 {
		cfg.MaxCycles = 40
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}

	return &Agent{
		sessions: sessions,
		policy:   policy,
		recorder: recorder,
		delegate: d,
		cfg:      cfg,
		log:      log,
	}
}

// contextFields создаёт набор контекстных полей для логирования
func (a *Agent) contextFields(episodeID uint, cycle int, fields ...zap.Field) []zap.Field {
	result := make([]zap.Field, 0, len(fields)+2)
	if episodeID != 0 {
		result = append(result, zap.Uint("episode_id", episodeID))
	}
	if cycle > 0 {
		result = append(result, zap.Int("cycle", cycle))
	}
	return append(result, fields...)
}

// Run выполняет эпизод до finish или лимита циклов. Ошибка возвращается
// при сбое инфраструктуры (браузер, политика, отмена), Result заполнен всегда.
func (a *Agent) Run(ctx context.Context, task Task) (Result, error) {
	if err := a.recorder.StartEpisode(ctx, &task); err != nil {
		a.log.Warn("Не удалось сохранить эпизод", zap.Error(err))
	}

	a.log.Info("Старт эпизода", a.contextFields(task.ID, 0,
		zap.String("url", task.URL),
		zap.String("task", task.Description))...)

	result, err := a.run(ctx, task)
	result.EpisodeID = task.ID
	if err != nil {
		result.Status = env.StatusFailed
		result.Diagnostic = err.Error()
		a.log.Error("Эпизод прерван", a.contextFields(task.ID, result.Cycles, zap.Error(err))...)
	} else {
		a.log.Info("Эпизод завершен", a.contextFields(task.ID, result.Cycles,
			zap.Stringer("status", result.Status),
			zap.Any("output", result.Output))...)
	}

	// запись итога не должна зависеть от отмены эпизода
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if rerr := a.recorder.FinishEpisode(finishCtx, task.ID, result); rerr != nil {
		a.log.Warn("Не удалось сохранить итог эпизода", a.contextFields(task.ID, 0, zap.Error(rerr))...)
	}
	return result, err
}

func (a *Agent) run(ctx context.Context, task Task) (Result, error) {
	session, err := a.sessions.NewSession(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("ошибка запуска браузера: %w", err)
	}

	environment := env.New(session, a.delegate, a.cfg.Env, a.log.Logger)
	defer func() {
		if err := environment.Close(); err != nil {
			a.log.Warn("Ошибка закрытия сессии браузера", a.contextFields(task.ID, 0, zap.Error(err))...)
		}
	}()

	obs, err := environment.Reset(ctx, task.URL)
	if err != nil {
		return Result{}, fmt.Errorf("ошибка сброса среды: %w", err)
	}

	for !obs.Done() && obs.State.Cycle < a.cfg.MaxCycles {
		cycle := obs.State.Cycle + 1

		code, err := a.nextAction(ctx, task, obs)
		if err != nil {
			return resultOf(environment.State()), fmt.Errorf("ошибка политики: %w", err)
		}

		obs, err = environment.Step(ctx, code)
		if err != nil {
			return resultOf(environment.State()), fmt.Errorf("ошибка цикла %d: %w", cycle, err)
		}

		if err := a.recorder.RecordCycle(ctx, task.ID, code, obs); err != nil {
			a.log.Warn("Не удалось сохранить цикл", a.contextFields(task.ID, cycle, zap.Error(err))...)
		}
		a.logCycle(task.ID, obs)
	}

	result := resultOf(environment.State())
	if obs.Done() {
		if result.Status == env.StatusFailed {
			result.Diagnostic = strings.Join(obs.State.Log, "; ")
		}
		return result, nil
	}

	a.log.Warn("Эпизод не завершился за отведенные циклы", a.contextFields(task.ID, obs.State.Cycle, zap.Int("max_cycles", a.cfg.MaxCycles))...)
	environment.Fail(nil)
	result = resultOf(environment.State())
	result.Diagnostic = fmt.Sprintf("%v (%d)", ErrCyclesExhausted, a.cfg.MaxCycles)
	return result, nil
}

func (a *Agent) nextAction(ctx context.Context, task Task, obs *env.Observation) (string, error) {
	var code string
	err := retryAction(ctx, a.cfg.Retries, a.cfg.RetryDelay, func() error {
		c, e := a.policy.NextAction(ctx, task, obs)
		if e != nil {
			a.log.Warn("Ошибка политики", a.contextFields(task.ID, obs.State.Cycle+1,
				zap.Error(e),
				zap.Stringer("error_type", classifyError(e)))...)
			return e
		}
		code = c
		return nil
	})
	return code, err
}

func (a *Agent) logCycle(episodeID uint, obs *env.Observation) {
	fields := a.contextFields(episodeID, obs.State.Cycle,
		zap.String("url", obs.URL),
		zap.Int("elements", obs.Registry.Len()),
		zap.Strings("log", obs.State.Log),
	)
	if obs.Error != "" {
		a.log.Warn("Цикл завершился с ошибкой действия", append(fields, zap.String("error", obs.Error))...)
		return
	}
	a.log.Info("Цикл выполнен", fields...)
}

func resultOf(s env.Snapshot) Result {
	return Result{Status: s.Status, Output: s.Output, Cycles: s.Cycle}
}

// RunEpisode выполняет подзадачу, пришедшую от другого агента.
func (a *Agent) RunEpisode(ctx context.Context, req delegate.Request) delegate.Response {
	result, err := a.Run(ctx, Task{URL: req.URL, Description: req.Task, Args: req.Args})

	resp := delegate.Response{ID: req.ID, Output: result.Output, Diagnostic: result.Diagnostic}
	if err == nil && result.Succeeded() {
		resp.Status = delegate.StatusSucceeded
		return resp
	}
	resp.Status = delegate.StatusFailed
	return resp
}
