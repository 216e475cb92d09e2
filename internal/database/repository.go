package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("запись не найдена")

type EpisodeRepository struct {
	db *gorm.DB
}

func NewEpisodeRepository(db *gorm.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

func (r *EpisodeRepository) CreateEpisode(ctx context.Context, e *Episode) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *EpisodeRepository) GetEpisodeByID(ctx context.Context, id uint) (*Episode, error) {
	var e Episode
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("эпизод %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &e, nil
}

func (r *EpisodeRepository) ListEpisodes(ctx context.Context, limit, offset int) ([]Episode, error) {
	var episodes []Episode
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Offset(offset).Find(&episodes).Error; err != nil {
		return nil, err
	}
	return episodes, nil
}

func (r *EpisodeRepository) UpdateEpisodeStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&Episode{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// FinishEpisode записывает итог эпизода одним UPDATE.
func (r *EpisodeRepository) FinishEpisode(ctx context.Context, id uint, status, output, diagnostic string, cycles int) error {
	return r.db.WithContext(ctx).Model(&Episode{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"output":     output,
			"diagnostic": diagnostic,
			"cycles":     cycles,
		}).Error
}

func (r *EpisodeRepository) CreateCycle(ctx context.Context, c *Cycle) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *EpisodeRepository) ListCycles(ctx context.Context, episodeID uint) ([]Cycle, error) {
	var cycles []Cycle
	if err := r.db.WithContext(ctx).Where("episode_id = ?", episodeID).Order("cycle_no ASC").Find(&cycles).Error; err != nil {
		return nil, err
	}
	return cycles, nil
}

// LogLLMRequest сохраняет обмен с моделью. Тексты должны приходить уже очищенными.
func (r *EpisodeRepository) LogLLMRequest(ctx context.Context, episodeID *uint, cycleNo *int, role, promptText, responseText, model string, tokensUsed int) error {
	return r.db.WithContext(ctx).Create(&LlmLog{
		EpisodeID:    episodeID,
		CycleNo:      cycleNo,
		Role:         role,
		PromptText:   promptText,
		ResponseText: responseText,
		Model:        model,
		TokensUsed:   tokensUsed,
	}).Error
}

func (r *EpisodeRepository) ListLlmLogs(ctx context.Context, episodeID uint) ([]LlmLog, error) {
	var logs []LlmLog
	if err := r.db.WithContext(ctx).Where("episode_id = ?", episodeID).Order("id ASC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
