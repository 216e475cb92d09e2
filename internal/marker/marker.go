// Package marker размечает интерактивные элементы во всех фреймах страницы
// и собирает из них реестр номеров на один цикл.
package marker

import (
	"context"
	"fmt"

	"webAgent/internal/browser"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Marker struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Marker {
	return &Marker{log: log.With(zap.String("comp", "marker"))}
}

type markedElement struct {
	ID        int    `json:"id"`
	Tag       string `json:"tag"`
	Class     string `json:"class"`
	XPath     string `json:"xpath"`
	HTML      string `json:"html"`
	AriaLabel string `json:"ariaLabel"`
}

// Mark размечает фреймы по порядку со сквозной нумерацией. Фрейм, который
// не удалось разметить, дает ноль элементов и не сдвигает нумерацию.
func (m *Marker) Mark(ctx context.Context, frames []browser.Frame) (*Registry, error) {
	var elements []Element
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		label := FrameLabel(frame)
		found, err := m.markFrame(frame, len(elements))
		if err != nil {
			m.log.Warn("Не удалось разметить фрейм", zap.String("frame", label), zap.Error(err))
			continue
		}

		for i := range found {
			found[i].Frame = frame
			found[i].FrameLabel = label
		}
		elements = append(elements, found...)
	}

	m.log.Debug("Разметка завершена", zap.Int("elements", len(elements)), zap.Int("frames", len(frames)))
	return NewRegistry(elements), nil
}

func (m *Marker) markFrame(frame browser.Frame, offset int) ([]Element, error) {
	raw, err := frame.Evaluate(browser.MarkElementsJS, offset)
	if err != nil {
		// скрипт мог упасть, уже нарисовав часть меток
		m.unmarkFrame(frame)
		return nil, err
	}

	found, err := decode(raw)
	if err != nil {
		m.unmarkFrame(frame)
		return nil, err
	}

	for i, el := range found {
		if el.ID != offset+i {
			m.unmarkFrame(frame)
			return nil, fmt.Errorf("нарушена нумерация: ожидался %d, получен %d", offset+i, el.ID)
		}
		if el.XPath == "" {
			m.unmarkFrame(frame)
			return nil, fmt.Errorf("у элемента %d нет xpath", el.ID)
		}
	}
	return found, nil
}

func decode(raw any) ([]Element, error) {
	if raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации разметки: %w", err)
	}
	var marked []markedElement
	if err := json.Unmarshal(data, &marked); err != nil {
		return nil, fmt.Errorf("ошибка парсинга разметки: %w", err)
	}

	out := make([]Element, len(marked))
	for i, el := range marked {
		out[i] = Element{
			ID:        el.ID,
			Tag:       el.Tag,
			Class:     el.Class,
			XPath:     el.XPath,
			HTML:      el.HTML,
			AriaLabel: el.AriaLabel,
		}
	}
	return out, nil
}

// Unmark убирает метки со всех фреймов. Исчезнувшие фреймы пропускаются.
func (m *Marker) Unmark(frames []browser.Frame) {
	for _, frame := range frames {
		m.unmarkFrame(frame)
	}
}

func (m *Marker) unmarkFrame(frame browser.Frame) {
	if _, err := frame.Evaluate(browser.RemoveMarksJS); err != nil {
		m.log.Warn("Не удалось снять метки", zap.String("frame", FrameLabel(frame)), zap.Error(err))
	}
}

// FrameLabel - имя фрейма, а без имени его URL.
func FrameLabel(frame browser.Frame) string {
	if name := frame.Name(); name != "" {
		return name
	}
	return frame.URL()
}

// Highlight перекрашивает рамку и номер элемента.
func Highlight(el Element, color string) error {
	_, err := el.Frame.Evaluate(browser.HighlightJS, map[string]any{"id": el.ID, "color": color})
	return err
}
