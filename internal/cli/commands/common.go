package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"webAgent/internal/agent"
	"webAgent/internal/cli/ui"
	"webAgent/internal/database"
)

// Store - чтение и создание эпизодов для команд консоли.
type Store interface {
	CreateEpisode(ctx context.Context, e *database.Episode) error
	GetEpisodeByID(ctx context.Context, id uint) (*database.Episode, error)
	ListEpisodes(ctx context.Context, limit, offset int) ([]database.Episode, error)
	ListCycles(ctx context.Context, episodeID uint) ([]database.Cycle, error)
	ListLlmLogs(ctx context.Context, episodeID uint) ([]database.LlmLog, error)
}

// Runner выполняет эпизод, обычно это *agent.Agent.
type Runner interface {
	Run(ctx context.Context, task agent.Task) (agent.Result, error)
}

func parseID(w io.Writer, idStr string) (uint, bool) {
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id == 0 {
		printError(w, "Неверный ID эпизода")
		return 0, false
	}
	return uint(id), true
}

func printError(w io.Writer, msg string) {
	fmt.Fprintln(w, ui.ColorRed+ui.IconCross+" "+msg+ui.ColorReset)
}

func printErr(w io.Writer, err error) {
	fmt.Fprintf(w, ui.ColorRed+ui.IconCross+" Ошибка:"+ui.ColorReset+" %v\n", err)
}
