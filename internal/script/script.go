// Package script разбирает сценарий действий от политики. Сценарий - это
// вызовы действий по одному на строку с литеральными аргументами, например
//
//	actions.input_text(3, "hello", clear_before_input=True, log_message="Ввожу запрос")
//	actions.click(4, "Нажимаю поиск")
//
// Любой другой код отвергается: сценарий не исполняется, а разбирается.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var (
	ErrSyntax        = errors.New("синтаксическая ошибка")
	ErrUnknownAction = errors.New("неизвестное действие")
)

const actionsPrefix = "actions."

var json = jsoniter.Config{UseNumber: true}.Froze()

// Call - один разобранный вызов. Числа в Args и Kwargs приходят как
// json.Number, строки как string, списки как []any, объекты как map[string]any.
type Call struct {
	Line   int
	Source string
	Name   string
	Args   []any
	Kwargs map[string]any
}

// Error указывает на строку сценария, на которой произошел сбой.
type Error struct {
	Line   int
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("строка %d %q: %v", e.Line, e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// errIncomplete - вызов не закрыт до конца текста, он может продолжаться
// на следующей строке.
var errIncomplete = fmt.Errorf("%w: нет закрывающей \")\"", ErrSyntax)

// Parse разбирает сценарий. Пустые строки и комментарии "#" пропускаются.
// Вызов может занимать несколько строк, пока открыты скобки. Если actions
// не пуст, допускаются только перечисленные имена.
func Parse(src string, actions []string) ([]Call, error) {
	allowed := make(map[string]bool, len(actions))
	for _, a := range actions {
		allowed[a] = true
	}

	lines := strings.Split(src, "\n")
	var calls []Call
	for i := 0; i < len(lines); i++ {
		stmt := strings.TrimSpace(lines[i])
		if stmt == "" || strings.HasPrefix(stmt, "#") {
			continue
		}

		first := i + 1
		call, err := parseCall(stmt)
		for errors.Is(err, errIncomplete) && i+1 < len(lines) {
			i++
			stmt += "\n" + strings.TrimRight(lines[i], " \t\r")
			call, err = parseCall(stmt)
		}
		if err != nil {
			return nil, &Error{Line: first, Source: stmt, Err: err}
		}
		if len(allowed) > 0 && !allowed[call.Name] {
			return nil, &Error{Line: first, Source: stmt, Err: fmt.Errorf("%w: %s", ErrUnknownAction, call.Name)}
		}
		call.Line = first
		call.Source = stmt
		calls = append(calls, call)
	}
	return calls, nil
}

func parseCall(stmt string) (Call, error) {
	rest := strings.TrimPrefix(stmt, actionsPrefix)

	n := identLen(rest)
	if n == 0 {
		return Call{}, fmt.Errorf("%w: ожидалось имя действия", ErrSyntax)
	}
	name := rest[:n]
	rest = strings.TrimLeft(rest[n:], " \t")
	if !strings.HasPrefix(rest, "(") {
		return Call{}, fmt.Errorf("%w: ожидалась \"(\" после %s", ErrSyntax, name)
	}

	args, tail, err := splitArgs(rest[1:])
	if err != nil {
		return Call{}, err
	}
	tail = strings.TrimSpace(tail)
	if tail != "" && !strings.HasPrefix(tail, "#") {
		return Call{}, fmt.Errorf("%w: лишний текст после вызова: %q", ErrSyntax, tail)
	}

	call := Call{Name: name}
	for _, arg := range args {
		var value any
		if err := json.UnmarshalFromString(arg.literal, &value); err != nil {
			return Call{}, fmt.Errorf("%w: аргументы должны быть литералами: %v", ErrSyntax, err)
		}
		if arg.name == "" {
			if len(call.Kwargs) > 0 {
				return Call{}, fmt.Errorf("%w: позиционный аргумент после именованного", ErrSyntax)
			}
			call.Args = append(call.Args, value)
			continue
		}
		if _, dup := call.Kwargs[arg.name]; dup {
			return Call{}, fmt.Errorf("%w: аргумент %s передан дважды", ErrSyntax, arg.name)
		}
		if call.Kwargs == nil {
			call.Kwargs = make(map[string]any)
		}
		call.Kwargs[arg.name] = value
	}
	return call, nil
}

func identLen(s string) int {
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return i
		}
	}
	return len(s)
}

// rawArg - аргумент вызова, приведенный к JSON. name пуст у позиционных.
type rawArg struct {
	name    string
	literal string
}

// splitArgs читает аргументы до закрывающей скобки вызова и приводит каждый
// к JSON: строки в одинарных кавычках, True/False/None, name=value.
// Возвращает аргументы и текст после скобки.
func splitArgs(s string) ([]rawArg, string, error) {
	var (
		args  []rawArg
		name  string
		buf   []byte
		depth int
	)
	// fresh - в текущем аргументе еще нет значения
	fresh := func() bool {
		return len(bytes.TrimSpace(buf)) == 0
	}
	flush := func(last bool) error {
		lit := string(bytes.TrimSpace(buf))
		buf = buf[:0]
		if lit == "" {
			if name != "" {
				return fmt.Errorf("%w: нет значения для %s", ErrSyntax, name)
			}
			if last {
				return nil
			}
			return fmt.Errorf("%w: пустой аргумент", ErrSyntax)
		}
		args = append(args, rawArg{name: name, literal: lit})
		name = ""
		return nil
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '#':
			// комментарий до конца строки
			j := strings.IndexByte(s[i:], '\n')
			if j < 0 {
				return nil, "", errIncomplete
			}
			i += j
		case c == '"' || c == '\'':
			end, lit, err := readString(s, i)
			if err != nil {
				return nil, "", err
			}
			buf = append(buf, lit...)
			i = end
		case c == '(':
			return nil, "", fmt.Errorf("%w: вложенные вызовы запрещены", ErrSyntax)
		case c == '[' || c == '{':
			depth++
			buf = append(buf, c)
		case c == ']' || c == '}':
			depth--
			if depth < 0 {
				return nil, "", fmt.Errorf("%w: несбалансированные скобки", ErrSyntax)
			}
			// запятая перед закрывающей скобкой допустима, как в Python
			buf = append(dropTrailingComma(buf), c)
		case c == ',' && depth == 0:
			if err := flush(false); err != nil {
				return nil, "", err
			}
		case c == ')':
			if depth != 0 {
				return nil, "", fmt.Errorf("%w: несбалансированные скобки", ErrSyntax)
			}
			if err := flush(true); err != nil {
				return nil, "", err
			}
			return args, s[i+1:], nil
		case isIdentStart(c):
			n := identLen(s[i:])
			word := s[i : i+n]
			if depth == 0 && fresh() && isAssign(s[i+n:]) {
				if name != "" {
					return nil, "", fmt.Errorf("%w: допустимы только литералы, получено %q", ErrSyntax, word)
				}
				name = word
				i += n + strings.IndexByte(s[i+n:], '=')
				continue
			}
			switch word {
			case "True", "true":
				buf = append(buf, "true"...)
			case "False", "false":
				buf = append(buf, "false"...)
			case "None", "null":
				buf = append(buf, "null"...)
			default:
				return nil, "", fmt.Errorf("%w: допустимы только литералы, получено %q", ErrSyntax, word)
			}
			i += n - 1
		default:
			buf = append(buf, c)
		}
	}
	return nil, "", errIncomplete
}

func dropTrailingComma(buf []byte) []byte {
	trimmed := bytes.TrimRight(buf, " \t\r\n")
	if len(trimmed) > 0 && trimmed[len(trimmed)-1] == ',' {
		return trimmed[:len(trimmed)-1]
	}
	return buf
}

// isAssign сообщает, начинается ли s (после пробелов) с одиночного "=".
func isAssign(s string) bool {
	s = strings.TrimLeft(s, " \t")
	return strings.HasPrefix(s, "=") && !strings.HasPrefix(s, "==")
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// readString читает строковый литерал с позиции start и возвращает индекс
// закрывающей кавычки и литерал в двойных кавычках. Строка не может
// продолжаться на следующей строке сценария.
func readString(s string, start int) (int, string, error) {
	quote := s[start]
	var b strings.Builder
	b.WriteByte('"')

	for i := start + 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\n':
			return 0, "", fmt.Errorf("%w: незавершенная строка", ErrSyntax)
		case c == '\\':
			if i+1 >= len(s) {
				return 0, "", fmt.Errorf("%w: незавершенная строка", ErrSyntax)
			}
			next := s[i+1]
			if quote == '\'' && next == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			i++
		case c == quote:
			b.WriteByte('"')
			return i, b.String(), nil
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return 0, "", fmt.Errorf("%w: незавершенная строка", ErrSyntax)
}
