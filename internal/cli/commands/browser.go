package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"webAgent/internal/agent"
	"webAgent/internal/cli/ui"
	"webAgent/internal/env"
	"webAgent/internal/marker"

	"go.uber.org/zap"
)

// BrowserHandler открывает страницу и показывает размеченные элементы
type BrowserHandler struct {
	sessions agent.SessionFactory
	envCfg   env.Config
	readLine func() (string, error)
	out      io.Writer
	log      *zap.Logger
}

func NewBrowserHandler(sessions agent.SessionFactory, envCfg env.Config, readLine func() (string, error), out io.Writer, log *zap.Logger) *BrowserHandler {
	return &BrowserHandler{
		sessions: sessions,
		envCfg:   envCfg,
		readLine: readLine,
		out:      out,
		log:      log,
	}
}

// Open открывает URL, печатает элементы разметки и ждет Enter
func (h *BrowserHandler) Open(ctx context.Context, url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		printError(h.out, "Укажите URL: open <url>")
		return
	}
	if h.sessions == nil {
		printError(h.out, "Браузер не инициализирован")
		return
	}

	session, err := h.sessions.NewSession(ctx)
	if err != nil {
		printErr(h.out, err)
		return
	}
	e := env.New(session, nil, h.envCfg, h.log)
	defer func() {
		if err := e.Close(); err != nil {
			h.log.Warn("Ошибка закрытия сессии", zap.Error(err))
		}
	}()

	fmt.Fprintf(h.out, ui.ColorCyan+ui.IconGlobe+" Открываю %s..."+ui.ColorReset+"\n", url)
	obs, err := e.Reset(ctx, url)
	if err != nil {
		printErr(h.out, err)
		return
	}

	PrintElements(h.out, obs.Registry)

	fmt.Fprintln(h.out, ui.ColorGray+"Нажмите Enter, чтобы закрыть браузер"+ui.ColorReset)
	if h.readLine != nil {
		_, _ = h.readLine()
	}
}

// PrintElements выводит элементы разметки в виде [номер] тег ...
func PrintElements(w io.Writer, registry *marker.Registry) {
	elements := registry.Elements()
	fmt.Fprintf(w, "\n"+ui.ColorBold+ui.IconList+" Элементов: %d"+ui.ColorReset+"\n", len(elements))
	for _, el := range elements {
		fmt.Fprintf(w, "  "+ui.ColorYellow+"[%d]"+ui.ColorReset+" %s", el.ID, el.Tag)
		if el.FrameLabel != "" {
			fmt.Fprintf(w, " "+ui.ColorGray+"(%s)"+ui.ColorReset, el.FrameLabel)
		}
		if el.AriaLabel != "" {
			fmt.Fprintf(w, " %q", ui.Truncate(el.AriaLabel, 60))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}
