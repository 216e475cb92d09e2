package env

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webAgent/internal/browser"
	"webAgent/internal/delegate"
	"webAgent/internal/marker"

	"go.uber.org/zap"
)

var (
	ErrNotMarked             = marker.ErrNotMarked
	ErrUnexpectedFileChooser = errors.New("неожиданно открылся диалог выбора файлов: используйте upload_files() вместо click() для этого элемента")
	ErrInvalidDirection      = errors.New("direction должен быть 'up' или 'down'")
	ErrInvalidArgument       = errors.New("некорректный аргумент")
	ErrNoDelegate            = errors.New("делегирование подзадач не настроено")
)

const (
	clickChooserWait   = 1200 * time.Millisecond
	clickTimeout       = 5 * time.Second
	uploadChooserWait  = 2 * time.Second
	uploadClickTimeout = time.Second
)

const (
	ScrollUp   = "up"
	ScrollDown = "down"
)

// Actions исполняет словарь действий над реестром одного цикла. Каждое
// действие сначала пишет строку лога, чтобы намерение осталось в журнале
// даже при ошибке.
type Actions struct {
	page     browser.Page
	registry *marker.Registry
	state    *State
	delegate delegate.Delegate
	pause    time.Duration
	log      *zap.Logger
}

func newActions(page browser.Page, registry *marker.Registry, state *State, d delegate.Delegate, pause time.Duration, log *zap.Logger) *Actions {
	return &Actions{
		page:     page,
		registry: registry,
		state:    state,
		delegate: d,
		pause:    pause,
		log:      log,
	}
}

// Click кликает по элементу. Открывшийся диалог выбора файлов - ошибка
// вызывающего. Нестабильный элемент один раз кликается повторно с force
// без новой строки лога.
func (a *Actions) Click(ctx context.Context, id int, logMessage string, force bool) error {
	a.state.AppendLog(logMessage)
	return a.click(ctx, id, force)
}

func (a *Actions) click(ctx context.Context, id int, force bool) error {
	fc, err := a.page.ExpectFileChooser(a.chooserWait(clickChooserWait), func() error {
		return a.interact(ctx, id, func(el browser.Element) error {
			return el.Click(browser.ClickOptions{Force: force, Timeout: clickTimeout, NoWaitAfter: true})
		})
	})

	switch {
	case err == nil:
		if derr := fc.Dismiss(); derr != nil {
			a.log.Warn("Не удалось закрыть диалог выбора файлов", zap.Int("id", id), zap.Error(derr))
		}
		return ErrUnexpectedFileChooser
	case errors.Is(err, browser.ErrNoFileChooser):
		return nil
	case !force && browser.IsUnstableElement(err):
		a.log.Info("Элемент нестабилен, повторяю клик с force", zap.Int("id", id))
		return a.click(ctx, id, true)
	default:
		return err
	}
}

// InputText заменяет (replace=true) или дополняет содержимое поля.
// Для выпадающих списков нужен ComboboxSelect.
func (a *Actions) InputText(ctx context.Context, id int, text string, replace bool, logMessage string) error {
	a.state.AppendLog(logMessage)
	return a.interact(ctx, id, func(el browser.Element) error {
		if replace {
			return el.Fill(text)
		}
		return el.Type(text)
	})
}

func (a *Actions) ComboboxSelect(ctx context.Context, id int, option string, logMessage string) error {
	a.state.AppendLog(logMessage)
	return a.interact(ctx, id, func(el browser.Element) error {
		return el.SelectOption(option)
	})
}

// UploadFiles кликает по элементу, ожидая диалог выбора файлов, и передает
// в него файлы. Ошибка клика возвращается как есть. Если клик прошел,
// а диалог не открылся, возвращается ошибка с browser.ErrNoFileChooser.
func (a *Actions) UploadFiles(ctx context.Context, id int, files []string, logMessage string) error {
	a.state.AppendLog(logMessage)
	if len(files) == 0 {
		return fmt.Errorf("%w: список файлов пуст", ErrInvalidArgument)
	}

	// у каждой попытки свое ожидание диалога
	attempt := func(force bool) (browser.FileChooser, error) {
		return a.page.ExpectFileChooser(a.chooserWait(uploadChooserWait), func() error {
			return a.interact(ctx, id, func(el browser.Element) error {
				return el.Click(browser.ClickOptions{Force: force, Timeout: uploadClickTimeout})
			})
		})
	}

	fc, err := attempt(false)
	if err != nil && browser.IsUnstableElement(err) {
		a.log.Info("Элемент нестабилен, повторяю клик с force", zap.Int("id", id))
		fc, err = attempt(true)
	}
	if err != nil {
		return err
	}
	return fc.SetFiles(files)
}

// chooserWait отсчитывает ожидание диалога от конца паузы подсветки.
func (a *Actions) chooserWait(wait time.Duration) time.Duration {
	return a.pause + wait
}

// Scroll прокручивает окно на его высоту вверх или вниз.
func (a *Actions) Scroll(ctx context.Context, direction string, logMessage string) error {
	a.state.AppendLog(logMessage)
	if direction != ScrollUp && direction != ScrollDown {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.page.Evaluate(browser.ScrollJS, direction)
	return err
}

// Finish - единственный способ выставить итог эпизода.
func (a *Actions) Finish(succeeded bool, output any, reason string) error {
	if err := a.state.Finish(succeeded, output); err != nil {
		return err
	}
	a.state.AppendLog(reason)
	return nil
}

// Act передает подзадачу другому агенту. Цель должна быть https и на
// другом хосте, чтобы агенты не делили одну страницу.
func (a *Actions) Act(ctx context.Context, url, task, logMessage string, args map[string]any) (any, error) {
	if a.delegate == nil {
		return nil, ErrNoDelegate
	}
	if err := delegate.CheckTarget(a.page.URL(), url); err != nil {
		return nil, err
	}
	a.state.AppendLog(logMessage)

	output, err := delegate.Call(ctx, a.delegate, a.page.URL(), delegate.Request{URL: url, Task: task, Args: args})
	if err != nil {
		return nil, err
	}
	a.state.AppendLog(fmt.Sprintf("Подзадача выполнена, результат: %v", output))
	return output, nil
}

// interact подсвечивает элемент красным, выдерживает паузу, выполняет
// операцию и после успеха подсвечивает зеленым.
func (a *Actions) interact(ctx context.Context, id int, op func(browser.Element) error) error {
	el, err := a.registry.Lookup(id)
	if err != nil {
		return err
	}

	a.highlight(el, browser.ColorActing)
	if err := sleep(ctx, a.pause); err != nil {
		return err
	}
	if err := op(el.Locate()); err != nil {
		return err
	}
	a.highlight(el, browser.ColorDone)
	return nil
}

func (a *Actions) highlight(el marker.Element, color string) {
	if err := marker.Highlight(el, color); err != nil {
		a.log.Warn("Не удалось подсветить элемент", zap.Int("id", el.ID), zap.String("color", color), zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
