package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"webAgent/internal/agent"
	"webAgent/internal/cli/ui"
	"webAgent/internal/env"

	"go.uber.org/zap"
)

// LLMHandler проверяет ответ политики на одном наблюдении
type LLMHandler struct {
	sessions agent.SessionFactory
	policy   agent.Policy
	envCfg   env.Config
	out      io.Writer
	log      *zap.Logger
}

func NewLLMHandler(sessions agent.SessionFactory, policy agent.Policy, envCfg env.Config, out io.Writer, log *zap.Logger) *LLMHandler {
	return &LLMHandler{
		sessions: sessions,
		policy:   policy,
		envCfg:   envCfg,
		out:      out,
		log:      log,
	}
}

// TestPolicy открывает страницу и печатает сценарий первого цикла без выполнения
func (h *LLMHandler) TestPolicy(ctx context.Context, line string) {
	if h.policy == nil {
		printError(h.out, "LLM не настроен (OPENAI_API_KEY)")
		return
	}
	if h.sessions == nil {
		printError(h.out, "Браузер не инициализирован")
		return
	}
	task, err := ParseTask(line)
	if err != nil {
		printErr(h.out, err)
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

	obs, err := e.Reset(ctx, task.URL)
	if err != nil {
		printErr(h.out, err)
		return
	}

	fmt.Fprintf(h.out, ui.ColorCyan+ui.IconRobot+" Запрос к модели, элементов на странице: %d..."+ui.ColorReset+"\n", obs.Registry.Len())
	code, err := h.policy.NextAction(ctx, task, obs)
	if err != nil {
		printErr(h.out, err)
		return
	}

	fmt.Fprintln(h.out, "\n"+ui.ColorBold+ui.IconBulb+" Сценарий:"+ui.ColorReset)
	for _, l := range strings.Split(code, "\n") {
		fmt.Fprintf(h.out, "  "+ui.ColorCyan+"%s"+ui.ColorReset+"\n", l)
	}
	fmt.Fprintln(h.out)
}
