package delegate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ProcessDelegate запускает подзадачу отдельным процессом. Запрос пишется
// в stdin, ответ читается из stdout, stderr сохраняется как диагностика.
type ProcessDelegate struct {
	Executable string
	Args       []string
	Env        []string
}

func (p *ProcessDelegate) Delegate(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.Executable, p.Args...)
	if len(p.Env) > 0 {
		cmd.Env = p.Env
	}
	cmd.Stdin = bytes.NewReader(body)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	diagnostic := strings.TrimSpace(stderr.String())

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		if runErr != nil {
			return Response{ID: req.ID, Status: StatusFailed, Diagnostic: diagnosticOr(diagnostic, runErr.Error())}, nil
		}
		return Response{}, fmt.Errorf("некорректный ответ подзадачи: %w (stderr: %s)", err, diagnostic)
	}

	if resp.Status != StatusSucceeded && resp.Diagnostic == "" {
		resp.Diagnostic = diagnostic
	}
	if runErr != nil && resp.Status == StatusSucceeded {
		resp.Status = StatusFailed
		resp.Diagnostic = diagnosticOr(diagnostic, runErr.Error())
	}
	return resp, nil
}

func diagnosticOr(diagnostic, fallback string) string {
	if diagnostic != "" {
		return diagnostic
	}
	return fallback
}

// Serve обслуживает сторону исполнителя: читает запрос из in, выполняет его
// и пишет ответ в out.
func Serve(ctx context.Context, in io.Reader, out io.Writer, runner Runner) error {
	var req Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("ошибка чтения запроса: %w", err)
	}
	resp := runner.RunEpisode(ctx, req)
	resp.ID = req.ID
	return json.NewEncoder(out).Encode(resp)
}
