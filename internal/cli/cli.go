package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"webAgent/internal/agent"
	"webAgent/internal/cli/commands"
	"webAgent/internal/cli/ui"
	"webAgent/internal/env"
	"webAgent/internal/logger"

	"github.com/chzyer/readline"
)

// Deps - зависимости консоли. Store может быть nil, если база не настроена.
type Deps struct {
	Store    commands.Store
	Runner   commands.Runner
	Sessions agent.SessionFactory
	Policy   agent.Policy
	Env      env.Config
}

type CLI struct {
	log            *logger.Zap
	out            io.Writer
	rl             *readline.Instance
	stdin          *bufio.Reader
	taskHandler    *commands.TaskHandler
	showHandler    *commands.ShowHandler
	logsHandler    *commands.LogsHandler
	browserHandler *commands.BrowserHandler
	llmHandler     *commands.LLMHandler
}

func New(deps Deps, log *logger.Zap) *CLI {
	cli := &CLI{
		log:   log,
		out:   os.Stdout,
		stdin: bufio.NewReader(os.Stdin),
	}

	// Инициализация handlers
	cli.taskHandler = commands.NewTaskHandler(deps.Store, deps.Runner, cli.out, log.Logger)
	cli.showHandler = commands.NewShowHandler(deps.Store, cli.out, log.Logger)
	cli.logsHandler = commands.NewLogsHandler(deps.Store, cli.out, log.Logger)
	cli.browserHandler = commands.NewBrowserHandler(deps.Sessions, deps.Env, cli.readLine, cli.out, log.Logger)
	cli.llmHandler = commands.NewLLMHandler(deps.Sessions, deps.Policy, deps.Env, cli.out, log.Logger)

	// Инициализация readline
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     ".web-agent-history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Warn("Не удалось инициализировать readline, будет использован fallback режим")
	} else {
		cli.rl = rl
	}

	return cli
}

func (c *CLI) readLine() (string, error) {
	if c.rl != nil {
		return c.rl.Readline()
	}
	// Fallback для работы без readline
	fmt.Fprint(c.out, ui.ColorCyan+"> "+ui.ColorReset)
	line, err := c.stdin.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *CLI) closeReadline() {
	if c.rl != nil {
		c.rl.Close()
	}
}

// Run читает команды до exit, EOF или отмены контекста.
func (c *CLI) Run(ctx context.Context) {
	ui.PrintWelcome(c.out)
	defer c.closeReadline()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out, "\n"+ui.ColorCyan+ui.IconWave+" Получен сигнал завершения..."+ui.ColorReset)
			return
		default:
		}

		line, err := c.readLine()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return
			}
			continue
		} else if errors.Is(err, io.EOF) {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if !c.handleCommand(ctx, line) {
			return
		}
	}
}

// handleCommand возвращает false, когда консоль нужно закрыть.
func (c *CLI) handleCommand(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "exit":
		fmt.Fprintln(c.out, ui.ColorCyan+ui.IconWave+" До свидания!"+ui.ColorReset)
		return false
	case "clear":
		ui.ClearScreen()
	case "task":
		c.taskHandler.Create(ctx, arg)
	case "tasks":
		c.taskHandler.List(ctx)
	case "status":
		c.taskHandler.Status(ctx, arg)
	case "run":
		c.taskHandler.Run(ctx, arg)
	case "show":
		c.showHandler.Show(ctx, arg)
	case "logs":
		c.logsHandler.Show(ctx, arg)
	case "open":
		c.browserHandler.Open(ctx, arg)
	case "test-llm":
		c.llmHandler.TestPolicy(ctx, arg)
	default:
		ui.PrintHelp(c.out)
	}
	return true
}
