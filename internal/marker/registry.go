package marker

import (
	"errors"
	"fmt"

	"webAgent/internal/browser"
)

// ErrNotMarked возвращается для номера, которого нет в текущей разметке,
// в том числе для номера из прошлого цикла.
var ErrNotMarked = errors.New("элемент не размечен на странице")

// Element - размеченный элемент. Узел DOM разрешается заново по XPath
// в момент действия.
type Element struct {
	ID         int
	Tag        string
	Class      string
	XPath      string
	HTML       string
	AriaLabel  string
	Frame      browser.Frame
	FrameLabel string
}

// Locate разрешает элемент в его фрейме.
func (e Element) Locate() browser.Element {
	return e.Frame.Locate(e.XPath)
}

// Registry хранит элементы одного цикла. Номер элемента совпадает с его
// индексом, поэтому после Invalidate любой поиск завершается ErrNotMarked.
type Registry struct {
	elements []Element
	valid    bool
}

func NewRegistry(elements []Element) *Registry {
	return &Registry{elements: elements, valid: true}
}

func (r *Registry) Lookup(id int) (Element, error) {
	if r == nil || !r.valid || id < 0 || id >= len(r.elements) {
		return Element{}, fmt.Errorf("%w: %d", ErrNotMarked, id)
	}
	return r.elements[id], nil
}

func (r *Registry) Len() int {
	if r == nil || !r.valid {
		return 0
	}
	return len(r.elements)
}

// Elements возвращает копию в порядке номеров.
func (r *Registry) Elements() []Element {
	if r == nil || !r.valid {
		return nil
	}
	out := make([]Element, len(r.elements))
	copy(out, r.elements)
	return out
}

func (r *Registry) Valid() bool {
	return r != nil && r.valid
}

// Invalidate вызывается при переходе к следующему циклу.
func (r *Registry) Invalidate() {
	if r != nil {
		r.valid = false
	}
}
