package commands

import (
	"context"
	"fmt"
	"io"

	"webAgent/internal/cli/ui"

	"go.uber.org/zap"
)

// LogsHandler обрабатывает команды просмотра логов
type LogsHandler struct {
	store Store
	out   io.Writer
	log   *zap.Logger
}

func NewLogsHandler(store Store, out io.Writer, log *zap.Logger) *LogsHandler {
	return &LogsHandler{
		store: store,
		out:   out,
		log:   log,
	}
}

// Show выводит LLM логи эпизода
func (h *LogsHandler) Show(ctx context.Context, idStr string) {
	if h.store == nil {
		printError(h.out, "База данных не настроена (DB_HOST)")
		return
	}
	id, ok := parseID(h.out, idStr)
	if !ok {
		return
	}

	logs, err := h.store.ListLlmLogs(ctx, id)
	if err != nil {
		h.log.Error("Ошибка получения логов", zap.Error(err))
		printError(h.out, "Ошибка получения логов")
		return
	}

	fmt.Fprintf(h.out, "\n"+ui.ColorBold+"=== "+ui.IconList+" LLM логи эпизода #%d ==="+ui.ColorReset+"\n", id)
	if len(logs) == 0 {
		fmt.Fprintln(h.out, ui.ColorGray+"Логи не найдены"+ui.ColorReset)
		return
	}

	for _, l := range logs {
		cycle := 0
		if l.CycleNo != nil {
			cycle = *l.CycleNo
		}
		fmt.Fprintf(h.out, ui.ColorGray+"[%s]"+ui.ColorReset+" "+ui.ColorCyan+"цикл %d"+ui.ColorReset+" %s, токенов: %d\n",
			l.CreatedAt.Format("15:04:05"), cycle, l.Model, l.TokensUsed)
		fmt.Fprintf(h.out, "  "+ui.ColorGray+"%s"+ui.ColorReset+"\n", ui.Truncate(l.ResponseText, 400))
	}
	fmt.Fprintln(h.out)
}
