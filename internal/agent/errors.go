package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

type ErrorType int

const (
	ErrorTypeRetryable ErrorType = iota
	ErrorTypeCritical
)

func (e ErrorType) String() string {
	switch e {
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeCritical:
		return "critical"
	default:
		return "unknown"
	}
}

var ErrCyclesExhausted = errors.New("достигнут лимит циклов")

var retryableMarkers = []string{
	"timeout",
	"connection",
	"rate limit",
	"превышен лимит",
	"сценарий не найден",
}

var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// classifyError делит ошибки политики на временные и критичные. Отмена
// контекста всегда критична, ответы OpenAI классифицируются по HTTP статусу.
func classifyError(err error) ErrorType {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeCritical
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusErrorType(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusErrorType(reqErr.HTTPStatusCode)
	}

	msg := strings.ToLower(err.Error())
	for _, m := range retryableMarkers {
		if strings.Contains(msg, m) {
			return ErrorTypeRetryable
		}
	}
	return ErrorTypeCritical
}

func statusErrorType(code int) ErrorType {
	if retryableStatuses[code] {
		return ErrorTypeRetryable
	}
	return ErrorTypeCritical
}

// retryAction повторяет fn с экспоненциальной задержкой, пока ошибка временная.
func retryAction(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if classifyError(err) == ErrorTypeCritical {
			return err
		}
	}

	return fmt.Errorf("после %d попыток: %w", maxRetries, lastErr)
}
