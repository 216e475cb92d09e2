package env

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webAgent/internal/browser"
	"webAgent/internal/delegate"
	"webAgent/internal/marker"
	"webAgent/internal/script"

	"go.uber.org/zap"
)

type Config struct {
	NetworkIdleTimeout time.Duration
	SettleDelay        time.Duration
	HighlightPause     time.Duration
	ResetTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.NetworkIdleTimeout == 0 {
		c.NetworkIdleTimeout = 5 * time.Second
	}
	if c.ResetTimeout == 0 {
		c.ResetTimeout = 30 * time.Second
	}
	return c
}

// Environment ведет один эпизод в собственном контексте браузера. Только
// Environment решает, какая вкладка текущая.
type Environment struct {
	session  browser.Session
	marker   *marker.Marker
	delegate delegate.Delegate
	cfg      Config
	log      *zap.Logger

	state    *State
	registry *marker.Registry
}

func New(session browser.Session, d delegate.Delegate, cfg Config, log *zap.Logger) *Environment {
	return &Environment{
		session:  session,
		marker:   marker.New(log),
		delegate: d,
		cfg:      cfg.withDefaults(),
		log:      log.With(zap.String("comp", "env")),
	}
}

// Reset открывает url, обнуляет состояние эпизода и возвращает первое наблюдение.
func (e *Environment) Reset(ctx context.Context, url string) (*Observation, error) {
	if err := e.session.Goto(ctx, url); err != nil {
		return nil, err
	}

	page := e.session.Page()
	e.log.Info("Ожидание загрузки страницы", zap.String("url", url))
	if err := page.WaitForNetworkIdle(e.cfg.ResetTimeout); err != nil {
		// страница может бесконечно тянуть трафик, тогда хватит события load
		e.log.Warn("Сеть не успокоилась, жду load", zap.Error(err))
		if err := page.WaitForLoad(e.cfg.ResetTimeout); err != nil {
			return nil, fmt.Errorf("страница %s не загрузилась: %w", url, err)
		}
	}

	e.registry.Invalidate()
	e.state = NewState()
	return e.observe(ctx)
}

// Step выполняет один цикл: сценарий, снятие меток, ожидание сети,
// переход на новую вкладку, новая разметка и снимок. Ошибка действия не
// прерывает цикл и попадает в Observation.Error.
func (e *Environment) Step(ctx context.Context, src string) (*Observation, error) {
	if e.state == nil {
		return nil, errors.New("эпизод не начат: сначала вызовите Reset")
	}

	e.state.ClearLog()
	page := e.session.Page()
	actions := newActions(page, e.registry, e.state, e.delegate, e.cfg.HighlightPause, e.log)

	execErr := e.execute(ctx, actions, src)

	e.marker.Unmark(page.Frames())
	e.registry.Invalidate()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.waitQuiet(page)

	adopted, err := e.session.AdoptNewestPage()
	if err != nil {
		e.log.Warn("Не удалось проверить новые вкладки", zap.Error(err))
	}
	if adopted {
		page = e.session.Page()
		e.log.Info("Переход на новую вкладку", zap.String("url", page.URL()))
		e.waitQuiet(page)
	}

	if err := sleep(ctx, e.cfg.SettleDelay); err != nil {
		return nil, err
	}

	e.state.nextCycle()
	obs, err := e.observe(ctx)
	if err != nil {
		return nil, err
	}
	if execErr != nil {
		obs.Error = execErr.Error()
	}
	return obs, nil
}

// ActionError - сбой строки сценария. Текст ошибки попадает в Observation.Error.
type ActionError struct {
	Source string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("Ошибка выполнения сценария. Строка: %q. Ошибка: %q", e.Source, e.Err.Error())
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func (e *Environment) execute(ctx context.Context, actions *Actions, src string) *ActionError {
	e.log.Info("Выполнение сценария", zap.String("script", src))

	calls, err := script.Parse(src, Vocabulary)
	if err != nil {
		var serr *script.Error
		if errors.As(err, &serr) {
			return &ActionError{Source: serr.Source, Err: serr.Err}
		}
		return &ActionError{Source: src, Err: err}
	}

	for _, call := range calls {
		if err := actions.Dispatch(ctx, call); err != nil {
			ae := &ActionError{Source: call.Source, Err: err}
			e.log.Warn("Ошибка действия", zap.String("line", call.Source), zap.Error(err))
			return ae
		}
	}
	return nil
}

func (e *Environment) waitQuiet(page browser.Page) {
	if err := page.WaitForNetworkIdle(e.cfg.NetworkIdleTimeout); err != nil {
		e.log.Warn("Сеть не успокоилась за отведенное время", zap.Duration("timeout", e.cfg.NetworkIdleTimeout), zap.Error(err))
	}
}

func (e *Environment) observe(ctx context.Context) (*Observation, error) {
	page := e.session.Page()

	registry, err := e.marker.Mark(ctx, page.Frames())
	if err != nil {
		return nil, err
	}
	shot, err := page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("ошибка снимка страницы: %w", err)
	}

	e.registry = registry
	snap := e.state.Snapshot()
	e.log.Info("Наблюдение готово",
		zap.Int("cycle", snap.Cycle),
		zap.String("url", page.URL()),
		zap.Int("elements", registry.Len()),
	)

	return &Observation{
		URL:        page.URL(),
		Screenshot: shot,
		Registry:   registry,
		State:      snap,
	}, nil
}

// State - текущее состояние эпизода.
func (e *Environment) State() Snapshot {
	if e.state == nil {
		return Snapshot{}
	}
	return e.state.Snapshot()
}

// Fail завершает эпизод неуспехом, например по исчерпанию циклов.
func (e *Environment) Fail(output any) {
	if e.state != nil {
		e.state.Fail(output)
	}
}

func (e *Environment) Close() error {
	e.registry.Invalidate()
	return e.session.Close()
}
