package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"webAgent/internal/cli/ui"

	"go.uber.org/zap"
)

// ShowHandler обрабатывает команды просмотра деталей
type ShowHandler struct {
	store Store
	out   io.Writer
	log   *zap.Logger
}

func NewShowHandler(store Store, out io.Writer, log *zap.Logger) *ShowHandler {
	return &ShowHandler{
		store: store,
		out:   out,
		log:   log,
	}
}

// Show выводит детали эпизода со всеми циклами
func (h *ShowHandler) Show(ctx context.Context, idStr string) {
	if h.store == nil {
		printError(h.out, "База данных не настроена (DB_HOST)")
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

	_, _, statusText := ui.FormatStatus(e.Status)

	fmt.Fprintf(h.out, "\n"+ui.ColorBold+"=== Эпизод #%d ==="+ui.ColorReset+"\n", e.ID)
	fmt.Fprintf(h.out, ui.ColorCyan+ui.IconDocument+" Задача:"+ui.ColorReset+" %s\n", e.Task)
	fmt.Fprintf(h.out, ui.ColorCyan+ui.IconGlobe+" URL:"+ui.ColorReset+" %s\n", e.URL)
	fmt.Fprintf(h.out, ui.ColorCyan+ui.IconChart+" Статус:"+ui.ColorReset+" %s\n", statusText)
	if e.Output != "" {
		fmt.Fprintf(h.out, ui.ColorCyan+ui.IconChat+" Результат:"+ui.ColorReset+" %s\n", e.Output)
	}
	if e.Diagnostic != "" {
		fmt.Fprintf(h.out, ui.ColorRed+" Причина:"+ui.ColorReset+" %s\n", e.Diagnostic)
	}

	cycles, err := h.store.ListCycles(ctx, e.ID)
	if err != nil {
		h.log.Error("Ошибка получения циклов", zap.Error(err))
		printError(h.out, "Ошибка получения циклов")
		return
	}
	if len(cycles) == 0 {
		fmt.Fprintln(h.out, "\n"+ui.ColorGray+"Циклы не найдены"+ui.ColorReset)
		return
	}

	fmt.Fprintf(h.out, "\n"+ui.ColorYellow+ui.IconLoop+" Циклы (%d):"+ui.ColorReset+"\n", len(cycles))
	for _, c := range cycles {
		fmt.Fprintf(h.out, "\n"+ui.ColorBold+"[Цикл %d]"+ui.ColorReset+" "+ui.ColorGray+"%s, элементов: %d"+ui.ColorReset+"\n", c.CycleNo, c.URL, c.Elements)
		for _, line := range strings.Split(c.Script, "\n") {
			fmt.Fprintf(h.out, "  "+ui.ColorCyan+"%s"+ui.ColorReset+"\n", line)
		}
		if c.Log != "" {
			for _, line := range strings.Split(c.Log, "\n") {
				fmt.Fprintf(h.out, "  "+ui.ColorGreen+"[OK]"+ui.ColorReset+" %s\n", line)
			}
		}
		if c.Error != "" {
			fmt.Fprintf(h.out, "  "+ui.ColorRed+"[ОШИБКА]"+ui.ColorReset+" %s\n", c.Error)
		}
		if c.ScreenshotPath != "" {
			fmt.Fprintf(h.out, "  "+ui.ColorGray+"%s"+ui.ColorReset+"\n", c.ScreenshotPath)
		}
	}
	fmt.Fprintln(h.out)
}
