package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Cfg struct {
	Database   Database
	Logger     Logger
	OpenAI     OpenAI
	Browser    Browser
	Episode    Episode
	Migrations Migrations
	App        App
	Delegate   Delegate
}

type Database struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

// Enabled сообщает, настроено ли подключение к БД.
// Без DB_HOST агент работает без сохранения эпизодов.
func (d Database) Enabled() bool {
	return d.Host != ""
}

func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

func (d Database) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type Migrations struct {
	Path string
}

type Logger struct {
	Env   string
	Level string
	File  string
}

type OpenAI struct {
	KeyAI             string
	Model             string
	MaxTokens         int
	RequestsPerMinute int
	TokensPerHour     int
}

// Browser задает параметры запуска браузера и контекста эпизода.
// Размер окна, геолокация и масштаб фиксируются при сбросе эпизода.
type Browser struct {
	Headless       bool
	Channel        string
	BrowsersPath   string
	ViewportWidth  int
	ViewportHeight int
	Latitude       float64
	Longitude      float64
	DeviceScale    float64
}

type Episode struct {
	MaxCycles          int
	NetworkIdleTimeout time.Duration
	SettleDelay        time.Duration
	HighlightPause     time.Duration
	ScreenshotDir      string
}

type App struct {
	Host string
	Port string
}

type Delegate struct {
	Mode string // process | http
	URL  string
}

func Load() (*Cfg, error) {
	_ = godotenv.Load()

	cfg := &Cfg{
		Database: Database{
			Host:     os.Getenv("DB_HOST"),
			Port:     env("DB_PORT", "5432"),
			Name:     os.Getenv("DB_NAME"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASS"),
		},
		Logger: Logger{
			Env:   env("ENV", "dev"),
			Level: env("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		OpenAI: OpenAI{
			KeyAI:             os.Getenv("OPENAI_API_KEY"),
			Model:             env("OPENAI_MODEL", "gpt-4o"),
			MaxTokens:         envInt("OPENAI_MAX_TOKENS", 2000),
			RequestsPerMinute: envInt("OPENAI_RPM", 60),
			TokensPerHour:     envInt("OPENAI_TPH", 90000),
		},
		Browser: Browser{
			Headless:       envBool("PW_HEADLESS"),
			Channel:        env("PW_CHANNEL", ""),
			BrowsersPath:   env("PLAYWRIGHT_BROWSERS_PATH", ""),
			ViewportWidth:  envInt("PW_VIEWPORT_WIDTH", 1600),
			ViewportHeight: envInt("PW_VIEWPORT_HEIGHT", 900),
			Latitude:       envFloat("PW_GEO_LAT", 37.785834),
			Longitude:      envFloat("PW_GEO_LON", -122.417168),
			DeviceScale:    envFloat("PW_DEVICE_SCALE", 1),
		},
		Episode: Episode{
			MaxCycles:          envInt("EPISODE_MAX_CYCLES", 40),
			NetworkIdleTimeout: envDuration("EPISODE_NETWORK_IDLE_TIMEOUT", 5*time.Second),
			SettleDelay:        envDuration("EPISODE_SETTLE_DELAY", 2*time.Second),
			HighlightPause:     envDuration("EPISODE_HIGHLIGHT_PAUSE", time.Second),
			ScreenshotDir:      env("EPISODE_SCREENSHOT_DIR", "./screenshots"),
		},
		Migrations: Migrations{
			Path: env("MIGRATIONS_PATH", "file://migrations"),
		},
		App: App{
			Host: env("APP_HOST", "127.0.0.1"),
			Port: env("APP_PORT", "8080"),
		},
		Delegate: Delegate{
			Mode: env("DELEGATE_MODE", "process"),
			URL:  env("DELEGATE_URL", ""),
		},
	}

	if cfg.Episode.MaxCycles <= 0 {
		return nil, fmt.Errorf("EPISODE_MAX_CYCLES должен быть положительным, получено %d", cfg.Episode.MaxCycles)
	}
	if cfg.Delegate.Mode != "process" && cfg.Delegate.Mode != "http" {
		return nil, fmt.Errorf("неизвестный DELEGATE_MODE: %q", cfg.Delegate.Mode)
	}
	if cfg.Delegate.Mode == "http" && cfg.Delegate.URL == "" {
		return nil, fmt.Errorf("DELEGATE_URL обязателен для DELEGATE_MODE=http")
	}

	return cfg, nil
}

func env(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func envFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// envDuration принимает как "5s", так и число миллисекунд.
func envDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "true" || v == "1" || v == "yes"
}
