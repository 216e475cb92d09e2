package delegate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const EpisodesPath = "/api/episodes"

// HTTPDelegate отправляет подзадачу на сервер агента.
type HTTPDelegate struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPDelegate(baseURL string) *HTTPDelegate {
	return &HTTPDelegate{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Minute},
	}
}

func (h *HTTPDelegate) Delegate(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+EpisodesPath, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := h.Client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("ошибка запроса к %s: %w", h.BaseURL, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("сервер вернул %d: %s", res.StatusCode, strings.TrimSpace(string(data)))
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("некорректный ответ подзадачи: %w", err)
	}
	return resp, nil
}
