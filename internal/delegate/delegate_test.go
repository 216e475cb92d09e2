package delegate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDelegate struct {
	resp Response
	err  error
	got  []Request
}

func (s *stubDelegate) Delegate(_ context.Context, req Request) (Response, error) {
	s.got = append(s.got, req)
	return s.resp, s.err
}

func TestCheckTarget(t *testing.T) {
	tests := []struct {
		name    string
		current string
		target  string
		want    error
	}{
		{"other host", "https://shop.example/cart", "https://mail.example/inbox", nil},
		{"plain http", "https://shop.example/", "http://mail.example/", ErrInsecureURL},
		{"same host", "https://shop.example/cart", "https://shop.example/help", ErrSameOrigin},
		{"same host different case", "https://Shop.Example/", "https://shop.example/", ErrSameOrigin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTarget(tt.current, tt.target)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCallSuccess(t *testing.T) {
	d := &stubDelegate{resp: Response{Status: StatusSucceeded, Output: map[string]any{"code": "1234"}}}

	out, err := Call(context.Background(), d, "https://shop.example/", Request{URL: "https://mail.example/", Task: "найди код"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"code": "1234"}, out)
	require.Len(t, d.got, 1)
	assert.NotEmpty(t, d.got[0].ID)
}

func TestCallFailurePreservesDiagnostic(t *testing.T) {
	d := &stubDelegate{resp: Response{Status: StatusFailed, Diagnostic: "Traceback: login required"}}

	_, err := Call(context.Background(), d, "https://shop.example/", Request{URL: "https://mail.example/"})
	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "Traceback: login required", failed.Diagnostic)
}

func TestCallRefusesSameOriginWithoutDelegating(t *testing.T) {
	d := &stubDelegate{}
	_, err := Call(context.Background(), d, "https://shop.example/a", Request{URL: "https://shop.example/b"})
	assert.ErrorIs(t, err, ErrSameOrigin)
	assert.Empty(t, d.got)
}

func TestCallTransportError(t *testing.T) {
	d := &stubDelegate{err: errors.New("connection refused")}
	_, err := Call(context.Background(), d, "https://shop.example/", Request{URL: "https://mail.example/"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestServe(t *testing.T) {
	in := strings.NewReader(`{"id":"r1","url":"https://mail.example/","task":"t","args":{"k":"v"}}`)
	var out bytes.Buffer

	err := Serve(context.Background(), in, &out, RunnerFunc(func(_ context.Context, req Request) Response {
		assert.Equal(t, "v", req.Args["k"])
		return Response{Status: StatusSucceeded, Output: "ok"}
	}))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "r1", resp.ID)
	assert.Equal(t, StatusSucceeded, resp.Status)
	assert.Equal(t, "ok", resp.Output)
}

func TestHTTPDelegate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, EpisodesPath, r.URL.Path)
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Task == "boom" {
			http.Error(w, "internal", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(Response{ID: req.ID, Status: StatusFailed, Diagnostic: "captcha"})
	}))
	defer srv.Close()

	d := NewHTTPDelegate(srv.URL + "/")

	resp, err := d.Delegate(context.Background(), Request{ID: "x", Task: "t"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, "captcha", resp.Diagnostic)

	_, err = d.Delegate(context.Background(), Request{Task: "boom"})
	assert.ErrorContains(t, err, "500")
}

// TestHelperProcess играет роль дочернего процесса в тестах ProcessDelegate.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv("DELEGATE_HELPER")
	if mode == "" {
		return
	}
	switch mode {
	case "ok":
		_ = Serve(context.Background(), os.Stdin, os.Stdout, RunnerFunc(func(_ context.Context, req Request) Response {
			return Response{Status: StatusSucceeded, Output: req.Task}
		}))
	case "fail":
		fmt.Fprintln(os.Stderr, "страница недоступна")
		_ = Serve(context.Background(), os.Stdin, os.Stdout, RunnerFunc(func(context.Context, Request) Response {
			return Response{Status: StatusFailed}
		}))
	case "crash":
		fmt.Fprintln(os.Stderr, "panic: nil map")
		os.Exit(2)
	}
	os.Exit(0)
}

func helper(mode string) *ProcessDelegate {
	return &ProcessDelegate{
		Executable: os.Args[0],
		Args:       []string{"-test.run=^TestHelperProcess$"},
		Env:        append(os.Environ(), "DELEGATE_HELPER="+mode),
	}
}

func TestProcessDelegate(t *testing.T) {
	ctx := context.Background()

	resp, err := helper("ok").Delegate(ctx, Request{ID: "1", Task: "echo"})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, resp.Status)
	assert.Equal(t, "echo", resp.Output)

	resp, err = helper("fail").Delegate(ctx, Request{ID: "2"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, "страница недоступна", resp.Diagnostic)

	resp, err = helper("crash").Delegate(ctx, Request{ID: "3"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, "panic: nil map", resp.Diagnostic)
}
