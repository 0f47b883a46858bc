package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// handleCallbackQuery runs the action behind an inline button, data
// "<action>:<booking id>", and replaces the message with the result.
func (b *Bot) handleCallbackQuery(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	logger := zerolog.Ctx(ctx).With().Int64("chat_id", chatID).Str("data", cb.Data).Logger()

	actor, ok := b.adminFor(chatID)
	if !ok {
		b.answer(ctx, cb.ID, "Not allowed.")
		return
	}

	name, rawID, found := strings.Cut(cb.Data, ":")
	a, known := b.actions()[name]
	id, err := parseBookingID(rawID)
	if !found || !known || err != nil {
		logger.Warn().Msg("Unknown callback data")
		b.answer(ctx, cb.ID, "Unknown action.")
		return
	}

	bk, err := a.run(ctx, actor, id)
	b.metrics.command("button_"+name, err)
	if err != nil {
		logger.Warn().Err(err).Int64("booking_id", id).Msg("Button action failed")
		b.answer(ctx, cb.ID, errorMessage(err))
		return
	}

	logger.Info().Int64("booking_id", id).Str("action", name).Msg("Booking updated from chat")
	b.answer(ctx, cb.ID, a.done)

	text := fmt.Sprintf("%s\n<i>%s by %s</i>", b.formatBooking(bk), a.done, html.EscapeString(actor.Email))
	if _, err := b.tgService.EditMessage(chatID, cb.Message.MessageID, text); err != nil {
		logger.Error().Err(err).Msg("Failed to edit message")
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.tgService.AnswerCallback(callbackID, text); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to answer callback")
	}
}
