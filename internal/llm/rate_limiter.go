package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter ограничивает число запросов в минуту и токенов в час.
type RateLimiter struct {
	requestsPerMinute int
	tokensPerHour     int

	requests *rate.Limiter
	tokens   *rate.Limiter
}

func NewRateLimiter(requestsPerMinute, tokensPerHour int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if tokensPerHour <= 0 {
		tokensPerHour = 90000
	}

	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		tokensPerHour:     tokensPerHour,
		requests:          rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
		tokens:            rate.NewLimiter(rate.Limit(float64(tokensPerHour)/3600), tokensPerHour),
	}
}

// Wait ждет слот под запрос и оценку его токенов. Запрос больше
// часового бюджета ждет весь бюджет.
func (rl *RateLimiter) Wait(ctx context.Context, tokens int) error {
	if err := rl.requests.Wait(ctx); err != nil {
		return fmt.Errorf("превышен лимит запросов (%d RPM): %w", rl.requestsPerMinute, err)
	}
	n := min(max(tokens, 1), rl.tokens.Burst())
	if err := rl.tokens.WaitN(ctx, n); err != nil {
		return fmt.Errorf("превышен лимит токенов (%d TPH), требуется %d: %w", rl.tokensPerHour, tokens, err)
	}
	return nil
}

// ConsumeTokens списывает токены сверх оценки после ответа модели.
func (rl *RateLimiter) ConsumeTokens(tokens int) {
	if tokens <= 0 {
		return
	}
	rl.tokens.ReserveN(time.Now(), min(tokens, rl.tokens.Burst()))
}

// Stats возвращает текущую статистику лимитера
func (rl *RateLimiter) Stats() (requestsAvailable int, tokensAvailable int) {
	return int(rl.requests.Tokens()), int(rl.tokens.Tokens())
}
