package browser

import (
	"errors"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// ErrNoFileChooser означает, что действие прошло, но диалог выбора файлов не открылся.
var ErrNoFileChooser = errors.New("диалог выбора файлов не открылся")

const unstableMarker = "element is not stable"

// IsUnstableElement сообщает, что ошибка - таймаут ожидания, при котором
// элемент все еще двигался. Прочие таймауты сюда не попадают: решает
// последний вердикт проверки actionability в call log playwright.
func IsUnstableElement(err error) bool {
	if err == nil || !isTimeout(err) {
		return false
	}

	msg := err.Error()
	var pwErr *playwright.Error
	if errors.As(err, &pwErr) {
		msg = pwErr.Message
	}

	entries := callLog(msg)
	for i := len(entries) - 1; i >= 0; i-- {
		if isVerdict(entries[i]) {
			return strings.Contains(entries[i], unstableMarker)
		}
	}
	return false
}

// callLog вытаскивает записи лога вызова без маркеров списка и рамок "=====".
// Старые версии playwright печатали лог в рамке "=== logs ===" без заголовка
// "Call log:", тогда берется все после первой строки.
func callLog(msg string) []string {
	var body string
	if idx := strings.Index(msg, "Call log:"); idx >= 0 {
		body = msg[idx+len("Call log:"):]
	} else if idx := strings.Index(msg, "\n"); idx >= 0 {
		body = msg[idx+1:]
	}

	var entries []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if line == "" || strings.HasPrefix(line, "=") {
			continue
		}
		entries = append(entries, line)
	}
	return entries
}

var verdicts = []string{
	"element is not",
	"intercepts pointer events",
	"element was detached",
	"outside of the viewport",
	"not attached",
}

// isVerdict отличает причину неудачи от служебных строк повторов
// ("retrying click action", "waiting 100ms", "attempting click action").
func isVerdict(entry string) bool {
	for _, v := range verdicts {
		if strings.Contains(entry, v) {
			return true
		}
	}
	return false
}
