// Package delegate описывает передачу подзадачи другому экземпляру агента:
// запрос (URL, задача, аргументы) на входе, статус и результат на выходе.
package delegate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

var (
	ErrInsecureURL = errors.New("URL подзадачи должен начинаться с https://")
	ErrSameOrigin  = errors.New("подзадача не может работать на том же домене, что и агент; выполните задачу другими действиями")
)

type Request struct {
	ID   string         `json:"id"`
	URL  string         `json:"url"`
	Task string         `json:"task"`
	Args map[string]any `json:"args,omitempty"`
}

type Response struct {
	ID         string `json:"id"`
	Status     Status `json:"status"`
	Output     any    `json:"output,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Delegate передает подзадачу исполнителю. Ошибка означает сбой транспорта,
// неуспех самой подзадачи приходит в Response.Status.
type Delegate interface {
	Delegate(ctx context.Context, req Request) (Response, error)
}

// Runner выполняет подзадачу на стороне исполнителя.
type Runner interface {
	RunEpisode(ctx context.Context, req Request) Response
}

type RunnerFunc func(ctx context.Context, req Request) Response

func (f RunnerFunc) RunEpisode(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// FailedError - подзадача завершилась неуспехом. Diagnostic хранит
// сообщение исполнителя без изменений.
type FailedError struct {
	Status     Status
	Diagnostic string
}

func (e *FailedError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("подзадача завершилась со статусом %s", e.Status)
	}
	return fmt.Sprintf("подзадача завершилась со статусом %s: %s", e.Status, e.Diagnostic)
}

// CheckTarget проверяет, что подзадача уходит по https на другой хост.
func CheckTarget(currentURL, target string) error {
	if !strings.HasPrefix(target, "https://") {
		return ErrInsecureURL
	}
	t, err := url.Parse(target)
	if err != nil || t.Host == "" {
		return fmt.Errorf("некорректный URL подзадачи %q", target)
	}
	cur, err := url.Parse(currentURL)
	if err != nil {
		return fmt.Errorf("некорректный URL текущей страницы %q", currentURL)
	}
	if strings.EqualFold(t.Host, cur.Host) {
		return ErrSameOrigin
	}
	return nil
}

// Call проверяет цель, отправляет запрос и возвращает результат успешной
// подзадачи. Неуспех возвращается как *FailedError.
func Call(ctx context.Context, d Delegate, currentURL string, req Request) (any, error) {
	if err := CheckTarget(currentURL, req.URL); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	resp, err := d.Delegate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запуска подзадачи: %w", err)
	}
	if resp.Status != StatusSucceeded {
		return nil, &FailedError{Status: resp.Status, Diagnostic: resp.Diagnostic}
	}
	return resp.Output, nil
}
