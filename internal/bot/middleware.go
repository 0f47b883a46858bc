package bot

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

var errHandlerPanic = errors.New("update handler panicked")

// withRecovery runs handler for one update of chatID. A panic is logged
// with the update's request id and admin chats get the generic failure
// reply.
func (b *Bot) withRecovery(ctx context.Context, chatID int64, handler func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if b.metrics != nil {
			b.metrics.ErrorsTotal.Inc()
		}
		zerolog.Ctx(ctx).Error().Interface("panic", r).Int64("chat_id", chatID).Msg("Recovered from panic in update handler")
		if _, ok := b.adminFor(chatID); ok {
			b.sendHTML(ctx, chatID, errorMessage(errHandlerPanic))
		}
	}()
	handler()
}
