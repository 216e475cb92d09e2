package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"webAgent/internal/agent"
	"webAgent/internal/cli/ui"
	"webAgent/internal/database"
	"webAgent/internal/sanitizer"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errTaskSyntax = errors.New("формат: task <url> <описание> [--args <json>]")

// TaskHandler обрабатывает команды связанные с эпизодами
type TaskHandler struct {
	store     Store
	runner    Runner
	sanitizer *sanitizer.DataSanitizer
	out       io.Writer
	log       *zap.Logger

	// аргументы с секретами живут только в памяти процесса, в базе они очищены
	mu   sync.Mutex
	args map[uint]map[string]any
}

func NewTaskHandler(store Store, runner Runner, out io.Writer, log *zap.Logger) *TaskHandler {
	return &TaskHandler{
		store:     store,
		runner:    runner,
		sanitizer: sanitizer.New(),
		out:       out,
		log:       log,
		args:      make(map[uint]map[string]any),
	}
}

// ParseTask разбирает "<url> <описание> [--args <json>]".
func ParseTask(line string) (agent.Task, error) {
	line = strings.TrimSpace(line)
	rest, rawArgs, hasArgs := strings.Cut(line, "--args")

	url, description, _ := strings.Cut(strings.TrimSpace(rest), " ")
	description = strings.TrimSpace(description)
	if url == "" || description == "" {
		return agent.Task{}, errTaskSyntax
	}

	task := agent.Task{URL: url, Description: description}
	if hasArgs {
		if err := json.Unmarshal([]byte(strings.TrimSpace(rawArgs)), &task.Args); err != nil {
			return agent.Task{}, fmt.Errorf("некорректные аргументы: %w", err)
		}
	}
	return task, nil
}

// Create создает эпизод. Без базы эпизод сразу выполняется.
func (h *TaskHandler) Create(ctx context.Context, line string) {
	task, err := ParseTask(line)
	if err != nil {
		printErr(h.out, err)
		return
	}
	if h.store == nil {
		h.execute(ctx, task)
		return
	}

	args, err := json.Marshal(h.sanitizer.SanitizeArgs(task.Args))
	if err != nil {
		printErr(h.out, err)
		return
	}
	episode := database.Episode{
		URL:    task.URL,
		Task:   task.Description,
		Args:   string(args),
		Status: database.StatusPending,
	}
	if err := h.store.CreateEpisode(ctx, &episode); err != nil {
		h.log.Error("Ошибка создания эпизода", zap.Error(err))
		printErr(h.out, err)
		return
	}

	h.mu.Lock()
	h.args[episode.ID] = task.Args
	h.mu.Unlock()
	fmt.Fprintf(h.out, ui.ColorGreen+ui.IconCheckmark+" Создан эпизод #%d"+ui.ColorReset+"\n", episode.ID)
}

// List выводит список эпизодов
func (h *TaskHandler) List(ctx context.Context) {
	if !h.requireStore() {
		return
	}
	episodes, err := h.store.ListEpisodes(ctx, 50, 0)
	if err != nil {
		h.log.Error("Ошибка чтения эпизодов", zap.Error(err))
		printError(h.out, "Ошибка чтения эпизодов")
		return
	}
	fmt.Fprintln(h.out, "\n"+ui.ColorBold+ui.IconList+" Эпизоды:"+ui.ColorReset)
	fmt.Fprintln(h.out)
	for _, e := range episodes {
		icon, color, text := ui.FormatStatus(e.Status)
		fmt.Fprintf(h.out, "  "+ui.ColorBold+"#%d"+ui.ColorReset+" %s%s %s"+ui.ColorReset+"\n", e.ID, color, icon, text)
		fmt.Fprintf(h.out, "  "+ui.ColorGray+"└─"+ui.ColorReset+" %s "+ui.ColorGray+"(%s)"+ui.ColorReset+"\n", e.Task, e.URL)
		fmt.Fprintln(h.out)
	}
}

// Status показывает статус эпизода
func (h *TaskHandler) Status(ctx context.Context, idStr string) {
	if !h.requireStore() {
		return
	}
	id, ok := parseID(h.out, idStr)
	if !ok {
		return
	}
	e, err := h.store.GetEpisodeByID(ctx, id)
	if err != nil {
		printError(h.out, "Эпизод не найден")
		return
	}
	icon, color, text := ui.FormatStatus(e.Status)
	fmt.Fprintln(h.out)
	fmt.Fprintf(h.out, ui.ColorBold+"Эпизод #%d"+ui.ColorReset+" %s%s %s"+ui.ColorReset+"\n", e.ID, color, icon, text)
	fmt.Fprintf(h.out, "  "+ui.ColorCyan+ui.IconDocument+ui.ColorReset+" %s\n", e.Task)
	fmt.Fprintf(h.out, "  "+ui.ColorCyan+ui.IconGlobe+ui.ColorReset+" %s\n", e.URL)
	fmt.Fprintf(h.out, "  "+ui.ColorGray+ui.IconLoop+ui.ColorReset+" циклов: %d\n", e.Cycles)
	fmt.Fprintf(h.out, "  "+ui.ColorGray+ui.IconTime+ui.ColorReset+" %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(h.out)
}

// Run выполняет эпизод
func (h *TaskHandler) Run(ctx context.Context, idStr string) {
	if !h.requireStore() {
		return
	}
	id, ok := parseID(h.out, idStr)
	if !ok {
		return
	}
	e, err := h.store.GetEpisodeByID(ctx, id)
	if err != nil {
		printError(h.out, "Эпизод не найден")
		return
	}

	task := agent.Task{ID: e.ID, URL: e.URL, Description: e.Task}
	h.mu.Lock()
	args, known := h.args[e.ID]
	h.mu.Unlock()
	if known {
		task.Args = args
	} else if e.Args != "" {
		// после перезапуска доступны только очищенные аргументы
		if err := json.Unmarshal([]byte(e.Args), &task.Args); err != nil {
			h.log.Warn("Не удалось прочитать аргументы эпизода", zap.Uint("episode_id", e.ID), zap.Error(err))
		}
	}
	h.execute(ctx, task)
}

func (h *TaskHandler) execute(ctx context.Context, task agent.Task) {
	if h.runner == nil {
		printError(h.out, "Агент не инициализирован")
		return
	}
	if task.ID != 0 {
		fmt.Fprintf(h.out, ui.ColorCyan+ui.IconPlay+" Запуск эпизода #%d:"+ui.ColorReset+" %s\n", task.ID, task.Description)
	} else {
		fmt.Fprintf(h.out, ui.ColorCyan+ui.IconPlay+" Запуск:"+ui.ColorReset+" %s\n", task.Description)
	}

	result, err := h.runner.Run(ctx, task)
	switch {
	case err != nil:
		printErr(h.out, err)
	case result.Succeeded():
		fmt.Fprintf(h.out, ui.ColorGreen+ui.IconCheckmark+" Задача выполнена за %d цикл(ов)"+ui.ColorReset+"\n", result.Cycles)
		if result.Output != nil {
			fmt.Fprintf(h.out, "  "+ui.ColorCyan+ui.IconChat+" Результат:"+ui.ColorReset+" %v\n", result.Output)
		}
	default:
		fmt.Fprintf(h.out, ui.ColorRed+ui.IconCross+" Задача не выполнена:"+ui.ColorReset+" %s\n", result.Diagnostic)
	}
}

func (h *TaskHandler) requireStore() bool {
	if h.store == nil {
		printError(h.out, "База данных не настроена (DB_HOST)")
		return false
	}
	return true
}
