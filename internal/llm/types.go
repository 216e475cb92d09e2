// Package llm - политика агента на основе OpenAI: по снимку страницы и
// состоянию эпизода модель пишет сценарий следующего цикла.
package llm

import "context"

// Logger определяет интерфейс для логирования LLM запросов.
type Logger interface {
	// LogLLMRequest сохраняет информацию о запросе к LLM в базу данных.
	LogLLMRequest(ctx context.Context, episodeID *uint, cycleNo *int, role, promptText, responseText, model string, tokensUsed int) error
}
