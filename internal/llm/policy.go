package llm

import (
	"context"
	"errors"

	"webAgent/internal/agent"
	"webAgent/internal/env"

	jsoniter "github.com/json-iterator/go"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NextAction спрашивает у модели сценарий следующего цикла.
func (c *Client) NextAction(ctx context.Context, task agent.Task, obs *env.Observation) (string, error) {
	messages, prompt, err := buildMessages(task, obs)
	if err != nil {
		return "", err
	}

	resp, err := c.createChatCompletionWithRateLimit(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: 1,
	})
	if err != nil {
		return "", err
	}

	content := resp.Choices[0].Message.Content
	c.logRequest(ctx, task, obs.State.Cycle, prompt, content, resp.Usage.TotalTokens)
	c.log.Debug("Ответ модели", zap.Int("cycle", obs.State.Cycle), zap.Int("tokens", resp.Usage.TotalTokens))

	code, err := ExtractCode(content)
	if errors.Is(err, ErrNoCode) {
		c.log.Warn("В ответе модели нет сценария", zap.Int("cycle", obs.State.Cycle))
	}
	return code, err
}

func (c *Client) logRequest(ctx context.Context, task agent.Task, cycle int, prompt, response string, tokens int) {
	if c.logger == nil {
		return
	}
	s := c.sanitizer.WithSecrets(task.Args)

	var episodeID *uint
	if task.ID != 0 {
		id := task.ID
		episodeID = &id
	}
	if err := c.logger.LogLLMRequest(ctx, episodeID, &cycle, openai.ChatMessageRoleAssistant,
		s.Sanitize(prompt), s.Sanitize(response), c.model, tokens); err != nil {
		c.log.Warn("Не удалось сохранить лог LLM", zap.Error(err))
	}
}
