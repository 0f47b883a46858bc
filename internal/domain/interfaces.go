package domain

import (
	"context"
	"time"

	"devlend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ApproveFunc picks the resource to bind. It runs inside the store's write
// transaction with a consistent view of the booking, the available
// resources in listing order and the active bookings overlapping the
// booking's window (the booking itself excluded).
type ApproveFunc func(b *models.Booking, candidates []models.Resource, active []models.Booking) (int64, error)

type ResourceRepository interface {
	ListAvailableResources(ctx context.Context) ([]models.Resource, error)
	ListResourcesByLabel(ctx context.Context) ([]models.Resource, error)
	ListResources(ctx context.Context) ([]models.Resource, error)
	GetResource(ctx context.Context, id int64) (*models.Resource, error)
	CreateResource(ctx context.Context, r *models.Resource) error
	UpdateResourceStatus(ctx context.Context, id int64, status models.ResourceStatus) error
	ListGames(ctx context.Context, resourceID int64) ([]models.Game, error)
	CreateGame(ctx context.Context, g *models.Game) error
	DeleteGame(ctx context.Context, id int64) error
}

type BookingRepository interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListActiveBookings(ctx context.Context, start, end time.Time, resourceIDs []int64) ([]models.Booking, error)
	ApproveBooking(ctx context.Context, id int64, pick ApproveFunc) (*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, version int64, from, to models.BookingStatus) error
	ListBookingsByRequester(ctx context.Context, userID string) ([]models.Booking, error)
	ListBookings(ctx context.Context) ([]models.Booking, error)
	ListBookingsInRange(ctx context.Context, from, to time.Time) ([]models.Booking, error)
}

type NotificationRepository interface {
	CreateNotifications(ctx context.Context, notes []models.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID string, id int64) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

type UserRepository interface {
	UpsertUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUserName(ctx context.Context, id, name string) error
	ListUserIDsByRole(ctx context.Context, role models.Role) ([]string, error)
}

// Repository is the whole store as the services see it.
type Repository interface {
	ResourceRepository
	BookingRepository
	NotificationRepository
	UserRepository
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier delivers in-app notifications. Calls never fail from the
// caller's point of view.
type Notifier interface {
	Notify(ctx context.Context, userIDs []string, title, message, link string)
	NotifyAdmins(ctx context.Context, title, message, link string)
}

// RateLimiter counts hits per key in a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// TelegramService is what the admin bot needs from the chat API.
type TelegramService interface {
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendHTML(chatID int64, text string) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string) (tgbotapi.Message, error)
	SendDocument(chatID int64, name string, data []byte, caption string) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	Broadcast(chatIDs []int64, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type BookingService interface {
	CheckAvailability(ctx context.Context, start, end time.Time, resourceID *int64) (*models.Availability, error)
	SubmitBooking(ctx context.Context, actor models.Actor, req models.SubmitRequest) (*models.Booking, error)
	Approve(ctx context.Context, actor models.Actor, bookingID int64) (*models.Booking, error)
	Reject(ctx context.Context, actor models.Actor, bookingID int64) (*models.Booking, error)
	Pickup(ctx context.Context, actor models.Actor, bookingID int64) (*models.Booking, error)
	Return(ctx context.Context, actor models.Actor, bookingID int64) (*models.Booking, error)
	GetBooking(ctx context.Context, actor models.Actor, bookingID int64) (*models.Booking, error)
	ListMine(ctx context.Context, actor models.Actor) ([]models.Booking, error)
	ListAll(ctx context.Context, actor models.Actor) ([]models.Booking, error)
	ListInRange(ctx context.Context, actor models.Actor, from, to time.Time) ([]models.Booking, error)
	FormatFee(amount int64) string
}

type ResourceService interface {
	ListAvailable(ctx context.Context) ([]models.Resource, error)
	Get(ctx context.Context, id int64) (*models.Resource, error)
	SetStatus(ctx context.Context, actor models.Actor, id int64, status models.ResourceStatus) (*models.Resource, error)
	ListCatalogue(ctx context.Context) ([]models.Resource, error)
	Detail(ctx context.Context, id int64) (*models.ResourceDetail, error)
	ListAll(ctx context.Context, actor models.Actor) ([]models.Resource, error)
	Create(ctx context.Context, actor models.Actor, req models.CreateResourceRequest) (*models.Resource, error)
	AddGame(ctx context.Context, actor models.Actor, g models.Game) (*models.Game, error)
	DeleteGame(ctx context.Context, actor models.Actor, id int64) error
}

type NotificationService interface {
	Notifier
	List(ctx context.Context, actor models.Actor) ([]models.Notification, error)
	MarkRead(ctx context.Context, actor models.Actor, id int64) error
	MarkAllRead(ctx context.Context, actor models.Actor) error
	UnreadCount(ctx context.Context, actor models.Actor) (int, error)
}

type UserService interface {
	EnsureUser(ctx context.Context, actor models.Actor, name string) (*models.User, error)
	Profile(ctx context.Context, actor models.Actor) (*models.User, error)
	UpdateName(ctx context.Context, actor models.Actor, name string) (*models.User, error)
}
