// Package sanitizer маскирует персональные данные перед записью в базу и логи.
package sanitizer

import (
	"fmt"
	"sort"
	"strings"
)

type DataSanitizer struct {
	rules []Rule
}

func New() *DataSanitizer {
	return &DataSanitizer{rules: defaultRules}
}

var sensitiveKeys = []string{
	"password", "пароль", "passwd", "token", "secret", "api_key", "apikey",
	"card", "cvv", "cvc", "expir", "session", "cookie",
}

// IsSensitiveKey сообщает, что аргумент задачи с таким именем нельзя сохранять.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// WithSecrets возвращает копию санитайзера, которая дополнительно
// вычищает строковые значения чувствительных аргументов задачи.
func (s *DataSanitizer) WithSecrets(args map[string]any) *DataSanitizer {
	var values []string
	collectSecrets(args, false, &values)
	if len(values) == 0 {
		return s
	}
	// длинные значения раньше коротких, чтобы не оставлять хвосты
	sort.Slice(values, func(i, j int) bool { return len(values[i]) > len(values[j]) })

	rules := make([]Rule, 0, len(s.rules)+1)
	rules = append(rules, secretRule{values: values})
	rules = append(rules, s.rules...)
	return &DataSanitizer{rules: rules}
}

func collectSecrets(v any, sensitive bool, out *[]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			collectSecrets(item, sensitive || IsSensitiveKey(k), out)
		}
	case []any:
		for _, item := range t {
			collectSecrets(item, sensitive, out)
		}
	case string:
		if sensitive && len(t) >= 3 {
			*out = append(*out, t)
		}
	case fmt.Stringer:
		if sensitive {
			collectSecrets(t.String(), sensitive, out)
		}
	}
}

func (r secretRule) Sanitize(text string) string {
	for _, v := range r.values {
		text = strings.ReplaceAll(text, v, "[FILTERED]")
	}
	return text
}

func (s *DataSanitizer) Sanitize(text string) string {
	if text == "" {
		return text
	}
	for _, rule := range s.rules {
		text = rule.Sanitize(text)
	}
	return text
}

func (s *DataSanitizer) SanitizeLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = s.Sanitize(line)
	}
	return out
}

// SanitizeArgs заменяет значения чувствительных ключей целиком, остальные
// строки пропускает через правила.
func (s *DataSanitizer) SanitizeArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if IsSensitiveKey(k) {
			out[k] = "[FILTERED]"
			continue
		}
		out[k] = s.sanitizeValue(v)
	}
	return out
}

func (s *DataSanitizer) sanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return s.Sanitize(t)
	case map[string]any:
		return s.SanitizeArgs(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = s.sanitizeValue(item)
		}
		return out
	}
	return v
}
