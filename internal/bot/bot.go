package bot

import (
	"context"
	"fmt"
	"os"
	"time"

	"devlend/internal/config"
	"devlend/internal/domain"
	"devlend/internal/logging"
	"devlend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const updateTimeout = 30 * time.Second

// Bot is the admin side of the lending desk in Telegram: it relays booking
// events to admin chats and lets those chats act on pending requests.
type Bot struct {
	tgService      domain.TelegramService
	bookingService domain.BookingService
	limiter        domain.RateLimiter
	config         config.TelegramConfig
	admins         map[int64]models.Actor
	chatIDs        []int64
	loc            *time.Location
	now            func() time.Time
	metrics        *Metrics
	logger         *zerolog.Logger
}

func NewBot(
	tgService domain.TelegramService,
	bookingService domain.BookingService,
	limiter domain.RateLimiter,
	cfg config.TelegramConfig,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tgService == nil || bookingService == nil {
		return nil, fmt.Errorf("telegram and booking services are required")
	}
	if err := config.ValidateTelegramAdmins(cfg.Admins); err != nil {
		return nil, err
	}

	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	b := &Bot{
		tgService:      tgService,
		bookingService: bookingService,
		limiter:        limiter,
		config:         cfg,
		admins:         make(map[int64]models.Actor, len(cfg.Admins)),
		loc:            time.UTC,
		now:            time.Now,
		metrics:        metrics,
		logger:         logger,
	}
	for _, a := range cfg.Admins {
		b.admins[a.ChatID] = models.Actor{UserID: a.UserID, Email: a.Email, Role: models.RoleAdmin}
		b.chatIDs = append(b.chatIDs, a.ChatID)
	}
	return b, nil
}

// SetLocation sets the zone used to render times in messages.
func (b *Bot) SetLocation(loc *time.Location) {
	if loc != nil {
		b.loc = loc
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Int("admins", len(b.admins)).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			b.Stop()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// Stop stops receiving Telegram updates (best-effort).
func (b *Bot) Stop() {
	if b == nil || b.tgService == nil {
		return
	}
	b.tgService.StopReceivingUpdates()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	updateCtx = logging.WithRequestID(updateCtx, b.logger, uuid.New().String())

	chatID := updateChatID(update)
	if chatID == 0 {
		return
	}

	b.withRecovery(updateCtx, chatID, func() {
		if b.metrics != nil {
			b.metrics.UpdatesTotal.Inc()
		}

		if _, ok := b.admins[chatID]; !ok {
			if !b.allowChat(updateCtx, chatID) {
				return
			}
		}

		if update.CallbackQuery != nil {
			b.handleCallbackQuery(updateCtx, update.CallbackQuery)
			return
		}
		if update.Message != nil {
			b.handleMessage(updateCtx, update.Message)
		}
	})
}

func updateChatID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}

// allowChat applies the per-chat limit to strangers. The limiter failing
// lets the update through.
func (b *Bot) allowChat(ctx context.Context, chatID int64) bool {
	if b.limiter == nil {
		return true
	}
	allowed, err := b.limiter.Allow(ctx, fmt.Sprintf("tg:%d", chatID), b.config.RateLimitMessages, b.config.RateLimitWindow)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Rate limit check failed")
		return true
	}
	if !allowed {
		zerolog.Ctx(ctx).Warn().Int64("chat_id", chatID).Msg("Rate limit exceeded")
	}
	return allowed
}

func (b *Bot) adminFor(chatID int64) (models.Actor, bool) {
	a, ok := b.admins[chatID]
	return a, ok
}

func (b *Bot) sendHTML(ctx context.Context, chatID int64, text string) {
	if _, err := b.tgService.SendHTML(chatID, text); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
