// Package database хранит эпизоды, циклы и логи запросов к LLM в PostgreSQL
// через GORM.
package database

import "time"

// Статусы эпизода.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Episode - одна задача агента от сброса среды до итога.
type Episode struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	URL        string    `gorm:"type:text;not null" json:"url"`
	Task       string    `gorm:"type:text;not null" json:"task"`
	Args       string    `gorm:"type:text" json:"args,omitempty"`   // JSON аргументов, уже очищенный от секретов
	Status     string    `gorm:"type:varchar(32);not null;default:'pending'" json:"status"`
	Output     string    `gorm:"type:text" json:"output,omitempty"` // JSON результата finish
	Diagnostic string    `gorm:"type:text" json:"diagnostic,omitempty"`
	Cycles     int       `gorm:"not null;default:0" json:"cycles"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Cycle - один цикл эпизода: сценарий политики и то, что из него вышло.
type Cycle struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	EpisodeID      uint      `gorm:"index;not null" json:"episode_id"`
	CycleNo        int       `gorm:"not null" json:"cycle_no"`
	Script         string    `gorm:"type:text" json:"script"`
	URL            string    `gorm:"type:text" json:"url"`
	Error          string    `gorm:"type:text" json:"error,omitempty"`
	Log            string    `gorm:"type:text" json:"log,omitempty"` // строки лога через \n
	Elements       int       `gorm:"not null;default:0" json:"elements"`
	ScreenshotPath string    `gorm:"type:text" json:"screenshot_path,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// LlmLog - запрос к модели и ее ответ.
type LlmLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EpisodeID    *uint     `gorm:"index" json:"episode_id,omitempty"`
	CycleNo      *int      `json:"cycle_no,omitempty"`
	Role         string    `gorm:"type:varchar(16);not null" json:"role"`
	PromptText   string    `gorm:"type:text;not null" json:"prompt_text"`
	ResponseText string    `gorm:"type:text" json:"response_text"`
	Model        string    `gorm:"type:varchar(64)" json:"model"`
	TokensUsed   int       `json:"tokens_used"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
