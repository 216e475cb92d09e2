// Package browser оборачивает playwright-go в узкие интерфейсы, которыми
// пользуется среда агента: страница, фреймы, элементы по XPath и диалог
// выбора файлов. Реализация для тестов подменяется фейками.
package browser

import (
	"context"
	"time"
)

// Page - текущая вкладка эпизода.
type Page interface {
	URL() string
	// Frames возвращает главный фрейм и затем дочерние в порядке обхода дерева.
	Frames() []Frame
	Evaluate(script string, arg ...any) (any, error)
	// ExpectFileChooser выполняет action и ждет диалог выбора файлов не дольше timeout.
	// Ошибка action возвращается как есть. Если action прошел, а диалог не
	// появился, возвращается ошибка, оборачивающая ErrNoFileChooser.
	ExpectFileChooser(timeout time.Duration, action func() error) (FileChooser, error)
	Screenshot() ([]byte, error)
	WaitForNetworkIdle(timeout time.Duration) error
	WaitForLoad(timeout time.Duration) error
	Close() error
}

// Frame - документ внутри страницы. Фрейм принадлежит странице,
// элементы реестра только ссылаются на него.
type Frame interface {
	Name() string
	URL() string
	Evaluate(script string, arg ...any) (any, error)
	Locate(xpath string) Element
}

// Element разрешается лениво в момент действия.
type Element interface {
	Click(opts ClickOptions) error
	Fill(text string) error
	Type(text string) error
	SelectOption(option string) error
}

type FileChooser interface {
	SetFiles(files []string) error
	// Dismiss закрывает диалог без выбора файлов.
	Dismiss() error
}

// Session - изолированный контекст браузера одного эпизода.
type Session interface {
	Page() Page
	Goto(ctx context.Context, url string) error
	// AdoptNewestPage делает текущей самую новую вкладку, закрывая прежнюю.
	// Возвращает true, если текущая вкладка сменилась.
	AdoptNewestPage() (bool, error)
	Close() error
}

type ClickOptions struct {
	Force       bool
	NoWaitAfter bool
	Timeout     time.Duration
}

type Config struct {
	Headless        bool
	Channel         string
	Viewport        Viewport
	Geolocation     Geolocation
	DeviceScale     float64
	NavigateTimeout time.Duration
}

type Viewport struct {
	Width  int
	Height int
}

type Geolocation struct {
	Latitude  float64
	Longitude float64
}
