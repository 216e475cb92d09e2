// Package agent ведет эпизод: сбрасывает среду, спрашивает у политики
// сценарий на каждый цикл и останавливается на итоге или лимите циклов.
package agent

import (
	"context"
	"time"

	"webAgent/internal/browser"
	"webAgent/internal/env"
)

// Task - задача эпизода. Args передаются политике как есть и могут
// содержать учетные данные.
type Task struct {
	ID          uint
	URL         string
	Description string
	Args        map[string]any
}

// Policy решает, какой сценарий выполнить по наблюдению.
type Policy interface {
	NextAction(ctx context.Context, task Task, obs *env.Observation) (string, error)
}

// SessionFactory создает изолированный контекст браузера на эпизод.
type SessionFactory interface {
	NewSession(ctx context.Context) (browser.Session, error)
}

type Config struct {
	MaxCycles  int           // Лимит циклов, после которого эпизод считается неуспешным
	Retries    int           // Попытки вызова политики при временных ошибках
	RetryDelay time.Duration // Базовая задержка между попытками
	Env        env.Config
}

// Result - итог эпизода. Diagnostic объясняет неуспех, не связанный с finish.
type Result struct {
	EpisodeID  uint
	Status     env.Status
	Output     any
	Cycles     int
	Diagnostic string
}

func (r Result) Succeeded() bool {
	return r.Status == env.StatusSucceeded
}
