// Package browsertest содержит управляемые фейки страницы, фреймов и
// элементов для тестов без браузера. Фрейм понимает встроенные скрипты
// пакета browser и ведет учет меток так же, как их ведет страница.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"webAgent/internal/browser"
)

type Node struct {
	Tag   string
	XPath string
}

type Frame struct {
	mu sync.Mutex

	FrameName string
	FrameURL  string
	Nodes     []Node
	// Err возвращается любым Evaluate, имитируя отсоединенный фрейм.
	Err error
	// MarkResult подменяет ответ скрипта разметки.
	MarkResult any
	// MarkErr возвращается скриптом разметки после того, как метки уже
	// нарисованы, как при исключении посреди обхода документа.
	MarkErr error

	overlays map[int]string
	elements map[string]*Element
	page     *Page
	marks    int
}

func NewFrame(name, url string, nodes ...Node) *Frame {
	return &Frame{FrameName: name, FrameURL: url, Nodes: nodes}
}

func (f *Frame) Name() string { return f.FrameName }
func (f *Frame) URL() string  { return f.FrameURL }

func (f *Frame) Evaluate(script string, arg ...any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if f.overlays == nil {
		f.overlays = make(map[int]string)
	}

	switch script {
	case browser.MarkElementsJS:
		f.marks++
		clear(f.overlays)
		if f.MarkResult != nil {
			return f.MarkResult, nil
		}
		start := arg[0].(int)
		out := make([]any, 0, len(f.Nodes))
		for i, n := range f.Nodes {
			id := start + i
			f.overlays[id] = browser.ColorDone
			out = append(out, map[string]any{"id": id, "tag": n.Tag, "class": "", "xpath": n.XPath, "html": "<" + n.Tag + ">"})
		}
		if f.MarkErr != nil {
			return nil, f.MarkErr
		}
		return out, nil
	case browser.RemoveMarksJS:
		n := len(f.overlays)
		clear(f.overlays)
		return n, nil
	case browser.HighlightJS:
		args := arg[0].(map[string]any)
		id := args["id"].(int)
		if _, ok := f.overlays[id]; !ok {
			return false, nil
		}
		f.overlays[id] = args["color"].(string)
		return true, nil
	}
	return nil, nil
}

// Overlays - число меток, оставленных в документе.
func (f *Frame) Overlays() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.overlays)
}

// OverlayColor - текущий цвет метки элемента.
func (f *Frame) OverlayColor(id int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlays[id]
}

// Marks - сколько раз запускалась разметка.
func (f *Frame) Marks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marks
}

func (f *Frame) Locate(xpath string) browser.Element {
	return f.Element(xpath)
}

// Element возвращает фейк элемента по XPath, создавая его при первом обращении.
func (f *Frame) Element(xpath string) *Element {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.elements == nil {
		f.elements = make(map[string]*Element)
	}
	el, ok := f.elements[xpath]
	if !ok {
		el = &Element{XPath: xpath}
		f.elements[xpath] = el
	}
	el.page = f.page
	return el
}

type Element struct {
	mu sync.Mutex

	XPath string
	// ClickErrs расходуются по одной на каждый Click.
	ClickErrs []error
	FillErr   error
	SelectErr error
	// OpensChooser - успешный клик открывает диалог выбора файлов.
	OpensChooser bool
	// OnClick вызывается после успешного клика.
	OnClick func()

	Clicks   []browser.ClickOptions
	Filled   []string
	Typed    []string
	Selected []string

	page *Page
}

func (e *Element) Click(opts browser.ClickOptions) error {
	e.mu.Lock()
	e.Clicks = append(e.Clicks, opts)
	var err error
	if len(e.ClickErrs) > 0 {
		err = e.ClickErrs[0]
		e.ClickErrs = e.ClickErrs[1:]
	}
	opens, hook, page := e.OpensChooser, e.OnClick, e.page
	e.mu.Unlock()

	if err != nil {
		return err
	}
	if opens && page != nil {
		page.openChooser()
	}
	if hook != nil {
		hook()
	}
	return nil
}

func (e *Element) Fill(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FillErr != nil {
		return e.FillErr
	}
	e.Filled = append(e.Filled, text)
	return nil
}

func (e *Element) Type(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Typed = append(e.Typed, text)
	return nil
}

func (e *Element) SelectOption(option string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.SelectErr != nil {
		return e.SelectErr
	}
	e.Selected = append(e.Selected, option)
	return nil
}

// ClickCount - число попыток клика.
func (e *Element) ClickCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Clicks)
}

type FileChooser struct {
	mu        sync.Mutex
	Files     []string
	Dismissed bool
	SetErr    error
}

func (c *FileChooser) SetFiles(files []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	c.Files = append([]string(nil), files...)
	return nil
}

func (c *FileChooser) Dismiss() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Dismissed = true
	return nil
}

type Page struct {
	mu sync.Mutex

	PageURL    string
	FrameList  []*Frame
	Shot       []byte
	IdleErr    error
	LoadErr    error
	ShotErr    error
	ChooserErr error

	Scrolls      []string
	IdleWaits    int
	Choosers     []*FileChooser
	ChooserWaits []time.Duration
	closed       bool
	pending      *FileChooser
}

func NewPage(url string, frames ...*Frame) *Page {
	p := &Page{PageURL: url, FrameList: frames, Shot: []byte("png")}
	for _, f := range frames {
		f.page = p
	}
	return p
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageURL
}

func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PageURL = url
}

func (p *Page) Frames() []browser.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]browser.Frame, len(p.FrameList))
	for i, f := range p.FrameList {
		out[i] = f
	}
	return out
}

func (p *Page) Evaluate(script string, arg ...any) (any, error) {
	if script == browser.ScrollJS {
		p.mu.Lock()
		p.Scrolls = append(p.Scrolls, arg[0].(string))
		p.mu.Unlock()
	}
	return nil, nil
}

func (p *Page) openChooser() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = &FileChooser{}
}

func (p *Page) ExpectFileChooser(timeout time.Duration, action func() error) (browser.FileChooser, error) {
	p.mu.Lock()
	p.pending = nil
	p.ChooserWaits = append(p.ChooserWaits, timeout)
	p.mu.Unlock()

	if err := action(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ChooserErr != nil {
		return nil, p.ChooserErr
	}
	if p.pending == nil {
		return nil, fmt.Errorf("%w за %v", browser.ErrNoFileChooser, timeout)
	}
	fc := p.pending
	p.pending = nil
	p.Choosers = append(p.Choosers, fc)
	return fc, nil
}

func (p *Page) Screenshot() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Shot, p.ShotErr
}

func (p *Page) WaitForNetworkIdle(time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.IdleWaits++
	return p.IdleErr
}

func (p *Page) WaitForLoad(time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.LoadErr
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Session держит вкладки эпизода. Последняя вкладка в Pages - самая новая.
type Session struct {
	mu sync.Mutex

	Pages   []*Page
	GotoErr error
	Gotos   []string

	current int
	closed  bool
}

func NewSession(pages ...*Page) *Session {
	return &Session{Pages: pages}
}

func (s *Session) Page() browser.Page {
	return s.Current()
}

// Current - текущая вкладка как фейк.
func (s *Session) Current() *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Pages[s.current]
}

// Open имитирует вкладку, открытую действием на странице.
func (s *Session) Open(p *Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pages = append(s.Pages, p)
}

func (s *Session) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gotos = append(s.Gotos, url)
	if s.GotoErr != nil {
		return s.GotoErr
	}
	s.Pages[s.current].SetURL(url)
	return nil
}

func (s *Session) AdoptNewestPage() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	newest := len(s.Pages) - 1
	if newest == s.current {
		return false, nil
	}
	_ = s.Pages[s.current].Close()
	s.current = newest
	return true, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
