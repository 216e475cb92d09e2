package browser

import _ "embed"

// Скрипты, выполняемые внутри страницы. Метки элементов живут под id
// item_id_border__N и item_id_label__N.
var (
	// MarkElementsJS принимает начальный номер и возвращает метаданные
	// размеченных элементов. Старые метки удаляются перед разметкой.
	//go:embed js/mark_elements.js
	MarkElementsJS string

	//go:embed js/remove_marks.js
	RemoveMarksJS string

	//go:embed js/highlight.js
	HighlightJS string

	//go:embed js/scroll.js
	ScrollJS string

	// overrideFileChooserJS подменяет showOpenFilePicker скрытым input[type=file],
	// чтобы выбор файлов приходил событием filechooser.
	//go:embed js/override_file_chooser.js
	overrideFileChooserJS string
)

const (
	ColorActing = "red"
	ColorDone   = "green"
)
