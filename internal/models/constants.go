package models

const (
	// DefaultMaxBookingDays ограничивает длительность одной заявки
	DefaultMaxBookingDays = 7

	// DefaultSlotMinutes шаг выбора времени в интерфейсе
	DefaultSlotMinutes = 30

	// NotificationListLimit сколько последних уведомлений отдаём в колокольчик
	NotificationListLimit = 50

	// DefaultSubmitRateLimit заявок на пользователя в окне
	DefaultSubmitRateLimit = 10

	// DefaultSubmitRateWindow окно ограничения заявок, в секундах
	DefaultSubmitRateWindow = 60 * 60

	DefaultCurrencySymbol = "₩"
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)
