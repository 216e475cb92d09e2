package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Launcher владеет процессом playwright и браузером. Каждому эпизоду
// выдается собственный контекст через NewSession.
type Launcher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	cfg     Config
}

func NewLauncher(cfg Config) (*Launcher, error) {
	if cfg.NavigateTimeout == 0 {
		cfg.NavigateTimeout = 60 * time.Second
	}
	if cfg.Viewport.Width == 0 || cfg.Viewport.Height == 0 {
		cfg.Viewport = Viewport{Width: 1600, Height: 900}
	}
	if cfg.DeviceScale == 0 {
		cfg.DeviceScale = 1
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("запуск playwright: %w", err)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     []string{"--no-sandbox", "--disable-dev-shm-usage"},
	}
	if cfg.Channel != "" {
		opts.Channel = playwright.String(cfg.Channel)
	}

	br, err := pw.Chromium.Launch(opts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("запуск chromium: %w", err)
	}

	return &Launcher{pw: pw, browser: br, cfg: cfg}, nil
}

// NewSession создает изолированный контекст (куки и хранилище не делятся
// между эпизодами) с фиксированным окном, геолокацией и масштабом.
func (l *Launcher) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := l.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  l.cfg.Viewport.Width,
			Height: l.cfg.Viewport.Height,
		},
		Geolocation: &playwright.Geolocation{
			Latitude:  l.cfg.Geolocation.Latitude,
			Longitude: l.cfg.Geolocation.Longitude,
		},
		Permissions:       []string{"geolocation"},
		DeviceScaleFactor: playwright.Float(l.cfg.DeviceScale),
	})
	if err != nil {
		return nil, fmt.Errorf("создание контекста: %w", err)
	}

	// Скрипт ставится на контекст, чтобы его получили и новые вкладки.
	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(overrideFileChooserJS)}); err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("установка init script: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("создание страницы: %w", err)
	}

	return &session{context: bctx, page: page, cfg: l.cfg}, nil
}

func (l *Launcher) Close() error {
	if l.browser != nil {
		if err := l.browser.Close(); err != nil {
			return err
		}
	}
	if l.pw != nil {
		return l.pw.Stop()
	}
	return nil
}
