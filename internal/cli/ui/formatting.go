package ui

import "fmt"

// FormatStatus возвращает иконку, цвет и текст для статуса эпизода
func FormatStatus(status string) (icon, color, text string) {
	switch status {
	case "succeeded":
		return IconCheckmark, ColorGreen, "выполнен"
	case "failed":
		return IconCross, ColorRed, "неуспех"
	case "running":
		return IconPlay, ColorCyan, "выполняется"
	case "pending":
		return IconClock, ColorYellow, "ожидает"
	default:
		return IconClock, ColorYellow, status
	}
}

// Truncate обрезает строку до n символов
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// ClearScreen очищает терминал
func ClearScreen() {
	fmt.Print("\033[H\033[2J")
}
