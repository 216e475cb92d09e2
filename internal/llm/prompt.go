package llm

import (
	"encoding/base64"
	"fmt"
	"strings"

	"webAgent/internal/agent"
	"webAgent/internal/env"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = `Ты - агент, который управляет веб-страницей, чтобы выполнить задачу.
На каждом шаге ты получаешь снимок экрана и решаешь, какие действия выполнить дальше.

Доступные действия:
- click(element_id, log_message) - клик по элементу
- input_text(element_id, text, clear_before_input, log_message) - ввод текста. clear_before_input=True заменяет текст, False дописывает. Никогда не используй для выпадающих списков.
- combobox_select(element_id, option, log_message) - выбор значения в выпадающем списке
- upload_files(element_id, files, log_message) - используй вместо click, если клик должен открыть выбор файлов. files - список путей
- scroll(direction, log_message) - прокрутка на высоту окна, direction: "up" или "down"
- act(url, task, log_message, args) - передать подзадачу другому агенту на другом сайте (например, найти код подтверждения в почте). url должен начинаться с https://, args - объект с аргументами или null
- finish(did_succeed, output, reason) - задача завершена: did_succeed=True или False, output - результат (может быть null), reason - короткое объяснение

element_id - всегда целое число, он виден как зеленая метка с белым номером в левом верхнем углу элемента. Изучи все зеленые метки, прежде чем выбрать элемент.
Номера действуют только для текущего снимка: на следующем шаге они могут поменяться.
log_message - одно короткое предложение о том, что делает действие.

Правила сценария:
- каждый вызов начинается с новой строки; пока скобки не закрыты, вызов можно продолжить на следующих строках
- аргументы передаются по порядку или по имени, например input_text(3, "текст", clear_before_input=True, log_message="Ввожу"); именованные идут после позиционных
- аргументы только литералы: числа, строки в кавычках, True/False/None, списки и объекты JSON
- переменные, выражения и вложенные вызовы запрещены

ВАЖНО: РАЗРЕШЕН ТОЛЬКО ОДИН ВЫЗОВ, КРОМЕ ФОРМ, ГДЕ МОЖНО ЗАПОЛНИТЬ НЕСКОЛЬКО ПОЛЕЙ ПОДРЯД. ПОСЛЕ ЗАКРЫВАЮЩИХ "` + "```" + `" НИЧЕГО НЕ ПИШИ.
ВАЖНО: ИЩИ НА СНИМКАХ ПРИЗНАКИ ТОГО, КАКИЕ ЧАСТИ ЗАДАЧИ УЖЕ ВЫПОЛНЕНЫ. НАПРИМЕР, ЕСЛИ НУЖНО КУПИТЬ ТОВАР, ПРОВЕРЬ, ЧТО ОН УЖЕ В КОРЗИНЕ.

Формат ответа:

Reasoning:
Объяснение следующего действия, прежде всего по снимку экрана.

Code:
` + "```" + `
click(12, "Открываю корзину")
` + "```"

// userPrompt - текстовая часть сообщения пользователя.
func userPrompt(task agent.Task, obs *env.Observation) (string, error) {
	args := "{}"
	if len(task.Args) > 0 {
		data, err := json.MarshalIndent(task.Args, "", "    ")
		if err != nil {
			return "", fmt.Errorf("ошибка сериализации аргументов задачи: %w", err)
		}
		args = string(data)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ошибка выполнения:\n%s\n\n", obs.Error)
	fmt.Fprintf(&b, "URL:\n%s\n\n", obs.URL)
	fmt.Fprintf(&b, "Задача:\n%s\n\n", task.Description)
	fmt.Fprintf(&b, "Лог последних действий:\n%s\n\n", strings.Join(obs.State.Log, "\n"))
	fmt.Fprintf(&b, "Аргументы задачи:\n%s\n", args)
	return b.String(), nil
}

func buildMessages(task agent.Task, obs *env.Observation) ([]openai.ChatCompletionMessage, string, error) {
	text, err := userPrompt(task, obs)
	if err != nil {
		return nil, "", err
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: text}}
	if len(obs.Screenshot) > 0 {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(obs.Screenshot),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, MultiContent: parts},
	}, text, nil
}
