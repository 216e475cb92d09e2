package llm

import (
	"errors"
	"strings"
)

var ErrNoCode = errors.New("сценарий не найден в ответе модели")

const fence = "```"

// ExtractCode достает сценарий из блока кода после "Code:". Если метки нет,
// берется последний блок кода в ответе.
func ExtractCode(text string) (string, error) {
	rest := text
	if idx := strings.LastIndex(text, "Code:"); idx >= 0 {
		rest = text[idx+len("Code:"):]
	} else if idx := lastBlockStart(text); idx >= 0 {
		rest = text[idx:]
	} else {
		return "", ErrNoCode
	}

	start := strings.Index(rest, fence)
	if start < 0 {
		return "", ErrNoCode
	}
	body := rest[start+len(fence):]
	// язык блока: ```python
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "()") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}

	code := strings.TrimSpace(body)
	if code == "" {
		return "", ErrNoCode
	}
	return code, nil
}

// lastBlockStart - начало последнего открывающего ограничителя.
func lastBlockStart(text string) int {
	idx := -1
	open := false
	for off := 0; ; {
		i := strings.Index(text[off:], fence)
		if i < 0 {
			break
		}
		if !open {
			idx = off + i
		}
		open = !open
		off += i + len(fence)
	}
	return idx
}
