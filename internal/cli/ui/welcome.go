package ui

import (
	"fmt"
	"io"
	"os"
)

// PrintWelcome выводит приветствие и лого
func PrintWelcome(w io.Writer) {
	logoBytes, err := os.ReadFile("logo.txt")
	if err == nil {
		fmt.Fprintln(w, ColorCyan+string(logoBytes)+ColorReset)
	}
	fmt.Fprintln(w, ColorBold+IconRobot+" Web-Agent v0.2.0"+ColorReset)
	fmt.Fprintln(w, ColorGray+"Агент, который выполняет задачи на веб-страницах по снимкам экрана"+ColorReset)
	fmt.Fprintln(w, ColorGray+"Используется: Chromium (Playwright) + OpenAI"+ColorReset)
	fmt.Fprintln(w)
	PrintHelp(w)
	fmt.Fprintln(w, ColorCyan+IconBulb+" Совет:"+ColorReset+" Используйте "+ColorYellow+"open"+ColorReset+", чтобы посмотреть номера элементов, которые увидит агент")
	fmt.Fprintln(w)
}

// PrintHelp выводит список доступных команд
func PrintHelp(w io.Writer) {
	fmt.Fprintln(w, ColorYellow+IconList+" Доступные команды:"+ColorReset)
	fmt.Fprintln(w, "  "+ColorGreen+"task"+ColorReset+" <url> <текст> [--args <json>] - Создать эпизод")
	fmt.Fprintln(w, "  "+ColorGreen+"tasks"+ColorReset+"                      - Список эпизодов")
	fmt.Fprintln(w, "  "+ColorGreen+"run"+ColorReset+" <id>                   - Выполнить эпизод")
	fmt.Fprintln(w, "  "+ColorGreen+"status"+ColorReset+" <id>                - Статус эпизода")
	fmt.Fprintln(w, "  "+ColorGreen+"show"+ColorReset+" <id>                  - Циклы эпизода")
	fmt.Fprintln(w, "  "+ColorGreen+"logs"+ColorReset+" <id>                  - LLM логи эпизода")
	fmt.Fprintln(w, "  "+ColorGreen+"open"+ColorReset+" <url>                 - Разметить страницу и показать элементы")
	fmt.Fprintln(w, "  "+ColorGreen+"test-llm"+ColorReset+" <url> <текст>     - Показать сценарий первого цикла без выполнения")
	fmt.Fprintln(w, "  "+ColorGreen+"clear"+ColorReset+"                      - Очистить экран")
	fmt.Fprintln(w, "  "+ColorGreen+"exit"+ColorReset+"                       - Выход")
	fmt.Fprintln(w)
}
