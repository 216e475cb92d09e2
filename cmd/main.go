package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"webAgent/internal/agent"
	"webAgent/internal/cli"
	"webAgent/internal/cli/ui"
	"webAgent/internal/config"
	"webAgent/internal/delegate"
	"webAgent/internal/logger"
	"webAgent/internal/server"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "webagent",
		Short:        "Агент, выполняющий задачи в браузере по снимкам экрана",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(a *app) error {
				deps := cli.Deps{
					Sessions: a.launcher,
					Policy:   a.policy,
					Env:      a.envConfig(),
				}
				if a.repo != nil {
					deps.Store = a.repo
				}
				if a.agent != nil {
					deps.Runner = a.agent
				}
				cli.New(deps, a.log).Run(cmd.Context())
				return nil
			})
		},
	}
	root.AddCommand(runCmd(), delegateCmd(), serveCmd())
	return root
}

// withApp поднимает зависимости на время команды. В режиме quiet в stderr
// попадают только ошибки: родительский процесс читает stderr как диагностику.
func withApp(cmd *cobra.Command, quiet bool, fn func(a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCfg := cfg.Logger
	if quiet {
		logCfg.Level = "error"
	}
	log, err := logger.New(logCfg.Env, logCfg.Level, logCfg.File)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := newApp(cfg, log)
	if err != nil {
		log.Error("Ошибка инициализации", zap.Error(err))
		return err
	}
	defer a.Close()

	return fn(a)
}

func runCmd() *cobra.Command {
	var (
		url      string
		task     string
		argsJSON string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Выполнить один эпизод и вывести результат",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := agent.Task{URL: url, Description: task}
			if argsJSON != "" {
				if err := json.Unmarshal([]byte(argsJSON), &t.Args); err != nil {
					return fmt.Errorf("некорректный --args: %w", err)
				}
			}
			return withApp(cmd, false, func(a *app) error {
				if err := a.requireAgent(); err != nil {
					return err
				}
				result, err := a.agent.Run(cmd.Context(), t)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if result.Succeeded() {
					fmt.Fprintf(out, ui.ColorGreen+ui.IconCheckmark+" Задача выполнена за %d цикл(ов)"+ui.ColorReset+"\n", result.Cycles)
				} else {
					fmt.Fprintf(out, ui.ColorRed+ui.IconCross+" Задача не выполнена:"+ui.ColorReset+" %s\n", result.Diagnostic)
				}
				if result.Output != nil {
					data, err := json.MarshalIndent(result.Output, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintln(out, string(data))
				}
				if !result.Succeeded() {
					return fmt.Errorf("эпизод завершился неуспехом")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "стартовый URL")
	cmd.Flags().StringVar(&task, "task", "", "текст задачи")
	cmd.Flags().StringVar(&argsJSON, "args", "", "аргументы задачи в JSON")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

// delegateCmd - сторона исполнителя для ProcessDelegate: запрос в stdin,
// ответ в stdout.
func delegateCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "delegate",
		Short:  "Выполнить подзадачу из stdin",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, true, func(a *app) error {
				if err := a.requireAgent(); err != nil {
					return err
				}
				return delegate.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a.agent)
			})
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(a *app) error {
				if err := a.requireAgent(); err != nil {
					return err
				}
				var store server.Store
				if a.repo != nil {
					store = a.repo
				}
				return server.New(a.cfg.App, a.log, store, a.agent).Run(cmd.Context())
			})
		},
	}
}
