package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

type session struct {
	mu      sync.RWMutex
	context playwright.BrowserContext
	page    playwright.Page
	cfg     Config
}

// getPage безопасно возвращает текущую страницу с read lock
func (s *session) getPage() playwright.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// setPage безопасно устанавливает страницу с write lock
func (s *session) setPage(page playwright.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = page
}

func (s *session) Page() Page {
	return &pwPage{page: s.getPage()}
}

func (s *session) Goto(ctx context.Context, url string) error {
	page := s.getPage()
	if page == nil {
		return fmt.Errorf("браузер не запущен")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
		Timeout:   playwright.Float(float64(s.cfg.NavigateTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("переход на %s: %w", url, err)
	}
	return nil
}

func (s *session) AdoptNewestPage() (bool, error) {
	pages := s.context.Pages()
	if len(pages) == 0 {
		return false, fmt.Errorf("в контексте не осталось открытых страниц")
	}

	newest := pages[len(pages)-1]
	current := s.getPage()
	if newest == current {
		return false, nil
	}

	if current != nil && !current.IsClosed() {
		_ = current.Close()
	}
	s.setPage(newest)
	return true, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.context != nil {
		return s.context.Close()
	}
	return nil
}

type pwPage struct {
	page playwright.Page
}

func (p *pwPage) URL() string {
	return p.page.URL()
}

func (p *pwPage) Frames() []Frame {
	var out []Frame
	var walk func(f playwright.Frame)
	walk = func(f playwright.Frame) {
		out = append(out, &pwFrame{frame: f})
		for _, child := range f.ChildFrames() {
			walk(child)
		}
	}
	walk(p.page.MainFrame())
	return out
}

func (p *pwPage) Evaluate(script string, arg ...any) (any, error) {
	return p.page.Evaluate(script, arg...)
}

func (p *pwPage) ExpectFileChooser(timeout time.Duration, action func() error) (FileChooser, error) {
	var actionErr error
	fc, err := p.page.ExpectFileChooser(func() error {
		actionErr = action()
		return actionErr
	}, playwright.PageExpectFileChooserOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if actionErr != nil {
		return nil, actionErr
	}
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w за %v: %w", ErrNoFileChooser, timeout, err)
		}
		return nil, err
	}
	return &pwFileChooser{chooser: fc}, nil
}

func (p *pwPage) Screenshot() ([]byte, error) {
	return p.page.Screenshot()
}

func (p *pwPage) Close() error {
	return p.page.Close()
}

type pwFrame struct {
	frame playwright.Frame
}

func (f *pwFrame) Name() string {
	return f.frame.Name()
}

func (f *pwFrame) URL() string {
	return f.frame.URL()
}

func (f *pwFrame) Evaluate(script string, arg ...any) (any, error) {
	return f.frame.Evaluate(script, arg...)
}

func (f *pwFrame) Locate(xpath string) Element {
	return &pwElement{locator: f.frame.Locator("xpath=" + xpath)}
}

type pwElement struct {
	locator playwright.Locator
}

func (e *pwElement) Click(opts ClickOptions) error {
	o := playwright.LocatorClickOptions{
		Force:       playwright.Bool(opts.Force),
		NoWaitAfter: playwright.Bool(opts.NoWaitAfter),
	}
	if opts.Timeout > 0 {
		o.Timeout = playwright.Float(float64(opts.Timeout.Milliseconds()))
	}
	return e.locator.Click(o)
}

func (e *pwElement) Fill(text string) error {
	return e.locator.Fill(text)
}

func (e *pwElement) Type(text string) error {
	return e.locator.PressSequentially(text)
}

func (e *pwElement) SelectOption(option string) error {
	_, err := e.locator.SelectOption(playwright.SelectOptionValues{
		ValuesOrLabels: &[]string{option},
	})
	return err
}

type pwFileChooser struct {
	chooser playwright.FileChooser
}

func (c *pwFileChooser) SetFiles(files []string) error {
	return c.chooser.SetFiles(files)
}

func (c *pwFileChooser) Dismiss() error {
	return c.chooser.SetFiles([]string{})
}

func isTimeout(err error) bool {
	if errors.Is(err, playwright.ErrTimeout) {
		return true
	}
	var pwErr *playwright.Error
	return errors.As(err, &pwErr) && pwErr.Name == "TimeoutError"
}
