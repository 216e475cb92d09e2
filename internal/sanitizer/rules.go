package sanitizer

import "regexp"

type Rule interface {
	Sanitize(text string) string
}

type regexRule struct {
	patterns    []*regexp.Regexp
	replacement string
}

func (r regexRule) Sanitize(text string) string {
	for _, p := range r.patterns {
		text = p.ReplaceAllString(text, r.replacement)
	}
	return text
}

func compile(replacement string, exprs ...string) regexRule {
	r := regexRule{replacement: replacement}
	for _, e := range exprs {
		r.patterns = append(r.patterns, regexp.MustCompile(e))
	}
	return r
}

// Порядок важен: пароли и токены раньше телефонов, иначе длинные цифровые
// токены съест правило телефона.
var defaultRules = []Rule{
	compile(`${1}: [FILTERED]`,
		`(?i)(password|пароль)\s*[:=]\s*["']?([^"'\s]{3,})["']?`,
		`(?i)(passwd|pwd)\s*[:=]\s*["']?([^"'\s]{3,})["']?`,
	),
	compile(`${1}[FILTERED]`,
		`(?i)(token|токен)\s*[:=]\s*["']?([a-zA-Z0-9_-]{20,})["']?`,
		`(?i)(bearer\s+)([a-zA-Z0-9_-]{20,})`,
		`sk-[a-zA-Z0-9_-]{32,}`,
		`pk_[a-zA-Z0-9]{32,}`,
	),
	compile(`${1}: [FILTERED]`,
		`(?i)(api[_-]?key|api[_-]?secret|secret[_-]?key|access[_-]?token)\s*[:=]\s*["']?([a-zA-Z0-9_-]{20,})["']?`,
	),
	compile(`${1}[FILTERED]`,
		`(?i)(cookie\s*[:=]\s*["']?)([^"'\n]{10,})`,
		`(?i)(session[_-]?id\s*[:=]\s*["']?)([a-zA-Z0-9_-]{10,})`,
	),
	compile(`[FILTERED_CARD]`,
		`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`,
	),
	compile(`${1}: [FILTERED]`,
		`(?i)(cvv2?|cvc2?)\s*[:=]\s*["']?(\d{3,4})["']?`,
		`(?i)(expir\w*|срок)\s*[:=]\s*["']?(\d{2}[/-]\d{2,4})["']?`,
	),
	compile(`[FILTERED_EMAIL]`,
		`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`,
	),
	compile(`[FILTERED_PHONE]`,
		`\+7\s?\(?\d{3}\)?\s?\d{3}[-.\s]?\d{2}[-.\s]?\d{2}`,
		`\b8\s?\(?\d{3}\)?\s?\d{3}[-.\s]?\d{2}[-.\s]?\d{2}\b`,
		`(?i)(phone|телефон|тел\.?)\s*[:=]\s*["']?([+\d\s\-()]{7,})["']?`,
	),
	compile(`[FILTERED_ADDRESS]`,
		`(?i)(address|адрес)\s*[:=]\s*["']?([^"'\n]{10,})["']?`,
		`(?i)(улица|ул\.|проспект|пр-т|переулок|пер\.|бульвар|шоссе)\s+[А-Яа-яЁё\w\s-]+,\s*(?:д\.?|дом)\s*\d+`,
	),
}

// secretRule заменяет конкретные значения, например пароль из аргументов
// задачи, который модель переписывает в сценарий как есть.
type secretRule struct {
	values []string
}
