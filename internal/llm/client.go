package llm

import (
	"context"
	"errors"
	"fmt"

	"webAgent/internal/config"
	"webAgent/internal/sanitizer"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// imageTokens - грубая цена снимка экрана в detail=high.
const imageTokens = 1100

var ErrEmptyResponse = errors.New("пустой ответ от OpenAI")

type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	logger      Logger
	sanitizer   *sanitizer.DataSanitizer
	rateLimiter *RateLimiter
	log         *zap.Logger
}

func NewClient(cfg config.OpenAI, logger Logger, log *zap.Logger) *Client {
	return NewClientWithConfig(openai.DefaultConfig(cfg.KeyAI), cfg, logger, log)
}

// NewClientWithConfig позволяет задать свой BaseURL, например для прокси.
func NewClientWithConfig(oc openai.ClientConfig, cfg config.OpenAI, logger Logger, log *zap.Logger) *Client {
	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
		sanitizer:   sanitizer.New(),
		rateLimiter: NewRateLimiter(cfg.RequestsPerMinute, cfg.TokensPerHour),
		log:         log.With(zap.String("comp", "llm")),
	}
}

func estimateTokens(req openai.ChatCompletionRequest) int {
	// ~4 символа на токен
	n := req.MaxTokens
	for _, msg := range req.Messages {
		n += len(msg.Content) / 4
		for _, part := range msg.MultiContent {
			switch part.Type {
			case openai.ChatMessagePartTypeText:
				n += len(part.Text) / 4
			case openai.ChatMessagePartTypeImageURL:
				n += imageTokens
			}
		}
	}
	return n
}

// createChatCompletionWithRateLimit выполняет запрос с проверкой rate limit
func (c *Client) createChatCompletionWithRateLimit(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	estimated := estimateTokens(req)
	if err := c.rateLimiter.Wait(ctx, estimated); err != nil {
		return openai.ChatCompletionResponse{}, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return resp, fmt.Errorf("ошибка запроса к OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return resp, ErrEmptyResponse
	}

	if resp.Usage.TotalTokens > estimated {
		c.rateLimiter.ConsumeTokens(resp.Usage.TotalTokens - estimated)
	}
	return resp, nil
}
