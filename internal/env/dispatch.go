package env

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"webAgent/internal/script"
)

// Vocabulary - имена действий, допустимые в сценарии.
var Vocabulary = []string{
	"click",
	"input_text",
	"combobox_select",
	"upload_files",
	"scroll",
	"finish",
	"act",
}

// parameters - имена аргументов действий по позициям.
var parameters = map[string][]string{
	"click":           {"element_id", "log_message", "force"},
	"input_text":      {"element_id", "text", "clear_before_input", "log_message"},
	"combobox_select": {"element_id", "option", "log_message"},
	"upload_files":    {"element_id", "files", "log_message"},
	"scroll":          {"direction", "log_message"},
	"finish":          {"did_succeed", "output", "reason"},
	"act":             {"url", "task", "log_message", "args"},
}

var parameterAliases = map[string]string{
	"item_id": "element_id",
	"success": "did_succeed",
}

// actArgsIndex - позиция аргументов подзадачи в act. Неизвестные именованные
// аргументы act собираются туда же.
const actArgsIndex = 3

type missingArg struct{}

// bindArgs раскладывает именованные аргументы по позициям.
func bindArgs(call script.Call) ([]any, error) {
	values := append([]any(nil), call.Args...)
	if len(call.Kwargs) == 0 {
		return values, nil
	}
	params, ok := parameters[call.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", script.ErrUnknownAction, call.Name)
	}

	var extra map[string]any
	for _, name := range slices.Sorted(maps.Keys(call.Kwargs)) {
		value := call.Kwargs[name]
		param := name
		if alias, ok := parameterAliases[name]; ok {
			param = alias
		}
		idx := slices.Index(params, param)
		if idx < 0 {
			if call.Name == "act" {
				if extra == nil {
					extra = make(map[string]any)
				}
				extra[name] = value
				continue
			}
			return nil, fmt.Errorf("%w: у %s нет аргумента %s", ErrInvalidArgument, call.Name, name)
		}
		if idx < len(values) && values[idx] != (missingArg{}) {
			return nil, fmt.Errorf("%w: аргумент %s у %s передан дважды", ErrInvalidArgument, param, call.Name)
		}
		for len(values) <= idx {
			values = append(values, missingArg{})
		}
		values[idx] = value
	}

	if extra != nil {
		for len(values) <= actArgsIndex {
			values = append(values, missingArg{})
		}
		if values[actArgsIndex] != (missingArg{}) && values[actArgsIndex] != nil {
			return nil, fmt.Errorf("%w: аргументы подзадачи act переданы дважды", ErrInvalidArgument)
		}
		values[actArgsIndex] = extra
	}

	for i, v := range values {
		if v == (missingArg{}) {
			return nil, fmt.Errorf("%w: %s, не передан аргумент %s", ErrInvalidArgument, call.Name, params[i])
		}
	}
	return values, nil
}

// Dispatch вызывает действие по разобранной строке сценария. Именованные
// аргументы сопоставляются с позициями по parameters.
func (a *Actions) Dispatch(ctx context.Context, call script.Call) error {
	values, err := bindArgs(call)
	if err != nil {
		return err
	}
	args := arguments{name: call.Name, values: values}

	switch call.Name {
	case "click":
		if err := args.count(2, 3); err != nil {
			return err
		}
		id, err := args.intArg(0)
		if err != nil {
			return err
		}
		msg, err := args.stringArg(1)
		if err != nil {
			return err
		}
		force := false
		if args.has(2) {
			if force, err = args.boolArg(2); err != nil {
				return err
			}
		}
		return a.Click(ctx, id, msg, force)

	case "input_text":
		if err := args.count(4, 4); err != nil {
			return err
		}
		id, err := args.intArg(0)
		if err != nil {
			return err
		}
		text, err := args.stringArg(1)
		if err != nil {
			return err
		}
		replace, err := args.boolArg(2)
		if err != nil {
			return err
		}
		msg, err := args.stringArg(3)
		if err != nil {
			return err
		}
		return a.InputText(ctx, id, text, replace, msg)

	case "combobox_select":
		if err := args.count(3, 3); err != nil {
			return err
		}
		id, err := args.intArg(0)
		if err != nil {
			return err
		}
		option, err := args.stringArg(1)
		if err != nil {
			return err
		}
		msg, err := args.stringArg(2)
		if err != nil {
			return err
		}
		return a.ComboboxSelect(ctx, id, option, msg)

	case "upload_files":
		if err := args.count(3, 3); err != nil {
			return err
		}
		id, err := args.intArg(0)
		if err != nil {
			return err
		}
		files, err := args.stringsArg(1)
		if err != nil {
			return err
		}
		msg, err := args.stringArg(2)
		if err != nil {
			return err
		}
		return a.UploadFiles(ctx, id, files, msg)

	case "scroll":
		if err := args.count(2, 2); err != nil {
			return err
		}
		direction, err := args.stringArg(0)
		if err != nil {
			return err
		}
		msg, err := args.stringArg(1)
		if err != nil {
			return err
		}
		return a.Scroll(ctx, direction, msg)

	case "finish":
		if err := args.count(1, 3); err != nil {
			return err
		}
		succeeded, err := args.boolArg(0)
		if err != nil {
			return err
		}
		var output any
		if args.has(1) {
			output = normalize(args.values[1])
		}
		reason := ""
		if args.has(2) {
			if reason, err = args.stringArg(2); err != nil {
				return err
			}
		}
		return a.Finish(succeeded, output, reason)

	case "act":
		if err := args.count(3, 4); err != nil {
			return err
		}
		url, err := args.stringArg(0)
		if err != nil {
			return err
		}
		task, err := args.stringArg(1)
		if err != nil {
			return err
		}
		msg, err := args.stringArg(2)
		if err != nil {
			return err
		}
		var kwargs map[string]any
		if args.has(3) {
			m, ok := normalize(args.values[3]).(map[string]any)
			if !ok && args.values[3] != nil {
				return args.invalid(3, "объект")
			}
			kwargs = m
		}
		_, err = a.Act(ctx, url, task, msg, kwargs)
		return err
	}

	return fmt.Errorf("%w: %s", script.ErrUnknownAction, call.Name)
}

type arguments struct {
	name   string
	values []any
}

func (a arguments) count(lo, hi int) error {
	if n := len(a.values); n < lo || n > hi {
		if lo == hi {
			return fmt.Errorf("%w: %s ожидает %d аргумент(ов), получено %d", ErrInvalidArgument, a.name, lo, n)
		}
		return fmt.Errorf("%w: %s ожидает от %d до %d аргументов, получено %d", ErrInvalidArgument, a.name, lo, hi, n)
	}
	return nil
}

func (a arguments) has(i int) bool {
	return i < len(a.values)
}

func (a arguments) invalid(i int, want string) error {
	return fmt.Errorf("%w: %s, аргумент %d должен быть типа %s, получено %v", ErrInvalidArgument, a.name, i+1, want, a.values[i])
}

func (a arguments) intArg(i int) (int, error) {
	switch v := a.values[i].(type) {
	case interface{ Int64() (int64, error) }:
		n, err := v.Int64()
		if err != nil {
			return 0, a.invalid(i, "целое")
		}
		return int(n), nil
	case int:
		return v, nil
	case string:
		// модели иногда передают номер строкой
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, a.invalid(i, "целое")
		}
		return n, nil
	}
	return 0, a.invalid(i, "целое")
}

func (a arguments) stringArg(i int) (string, error) {
	switch v := a.values[i].(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	}
	return "", a.invalid(i, "строка")
}

func (a arguments) boolArg(i int) (bool, error) {
	if v, ok := a.values[i].(bool); ok {
		return v, nil
	}
	return false, a.invalid(i, "bool")
}

func (a arguments) stringsArg(i int) ([]string, error) {
	switch v := a.values[i].(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, a.invalid(i, "список строк")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, a.invalid(i, "список строк")
}

// normalize превращает json.Number в int64 или float64, чтобы результат
// эпизода сериализовался числами.
func normalize(v any) any {
	switch t := v.(type) {
	case interface {
		Int64() (int64, error)
		Float64() (float64, error)
	}:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	}
	return v
}
