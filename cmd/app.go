package main

import (
	"fmt"
	"os"

	"webAgent/internal/agent"
	"webAgent/internal/browser"
	"webAgent/internal/config"
	"webAgent/internal/database"
	"webAgent/internal/delegate"
	"webAgent/internal/env"
	"webAgent/internal/llm"
	"webAgent/internal/logger"
	"webAgent/internal/migrations"
	"webAgent/internal/sanitizer"

	"go.uber.org/zap"
)

// app держит общие зависимости всех подкоманд.
type app struct {
	cfg      *config.Cfg
	log      *logger.Zap
	db       *database.Database
	repo     *database.EpisodeRepository
	launcher *browser.Launcher
	policy   agent.Policy
	agent    *agent.Agent
}

func newApp(cfg *config.Cfg, log *logger.Zap) (*app, error) {
	a := &app{cfg: cfg, log: log}

	if cfg.Database.Enabled() {
		if err := migrations.Run(cfg, log); err != nil {
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		db, err := database.New(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		a.db = db
		a.repo = database.NewEpisodeRepository(db.DB)
	} else {
		log.Warn("DB_HOST не задан, эпизоды не сохраняются")
	}

	if cfg.OpenAI.KeyAI != "" {
		var llmLogger llm.Logger
		if a.repo != nil {
			llmLogger = a.repo
		}
		a.policy = llm.NewClient(cfg.OpenAI, llmLogger, log.Logger)
	} else {
		log.Warn("OPENAI_API_KEY не задан, выполнение эпизодов недоступно")
	}

	if cfg.Browser.BrowsersPath != "" {
		_ = os.Setenv("PLAYWRIGHT_BROWSERS_PATH", cfg.Browser.BrowsersPath)
	}
	launcher, err := browser.NewLauncher(browser.Config{
		Headless: cfg.Browser.Headless,
		Channel:  cfg.Browser.Channel,
		Viewport: browser.Viewport{
			Width:  cfg.Browser.ViewportWidth,
			Height: cfg.Browser.ViewportHeight,
		},
		Geolocation: browser.Geolocation{
			Latitude:  cfg.Browser.Latitude,
			Longitude: cfg.Browser.Longitude,
		},
		DeviceScale: cfg.Browser.DeviceScale,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.launcher = launcher

	var recorder agent.Recorder = agent.NopRecorder{}
	if a.repo != nil {
		recorder = agent.NewDBRecorder(a.repo, sanitizer.New(), cfg.Episode.ScreenshotDir, log.Logger)
	}

	d, err := newDelegate(cfg.Delegate)
	if err != nil {
		a.Close()
		return nil, err
	}

	if a.policy != nil {
		a.agent = agent.New(launcher, a.policy, recorder, d, log, agent.Config{
			MaxCycles: cfg.Episode.MaxCycles,
			Env:       a.envConfig(),
		})
	}
	return a, nil
}

func (a *app) envConfig() env.Config {
	return env.Config{
		NetworkIdleTimeout: a.cfg.Episode.NetworkIdleTimeout,
		SettleDelay:        a.cfg.Episode.SettleDelay,
		HighlightPause:     a.cfg.Episode.HighlightPause,
	}
}

func newDelegate(cfg config.Delegate) (delegate.Delegate, error) {
	if cfg.Mode == "http" {
		return delegate.NewHTTPDelegate(cfg.URL), nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("не удалось определить путь к бинарнику: %w", err)
	}
	return &delegate.ProcessDelegate{Executable: exe, Args: []string{"delegate"}}, nil
}

// requireAgent возвращает ошибку, если эпизоды нельзя выполнять.
func (a *app) requireAgent() error {
	if a.agent == nil {
		return fmt.Errorf("OPENAI_API_KEY не задан")
	}
	return nil
}

func (a *app) Close() {
	if a.launcher != nil {
		if err := a.launcher.Close(); err != nil {
			a.log.Warn("Ошибка остановки браузера", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close(a.log)
	}
}
