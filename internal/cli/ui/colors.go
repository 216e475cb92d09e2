package ui

// ANSI цвета вывода консоли
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
)

// Иконки статусов эпизода и разделов вывода
const (
	IconCheckmark = "✓"
	IconCross     = "✗"
	IconPlay      = "▶"
	IconClock     = "⏳"
	IconLoop      = "🔄"
	IconTime      = "🕐"
	IconRobot     = "🤖"
	IconDocument  = "📝"
	IconGlobe     = "🌐"
	IconList      = "📋"
	IconChart     = "📊"
	IconChat      = "💬"
	IconBulb      = "💡"
	IconWave      = "👋"
)
