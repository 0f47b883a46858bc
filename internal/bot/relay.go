package bot

import (
	"errors"
	"fmt"

	"devlend/internal/events"
	"devlend/internal/models"
)

// SubscribeRelay forwards booking events to every admin chat. Sends run
// on their own goroutine, not the publisher's.
func (b *Bot) SubscribeRelay(bus *events.EventBus) {
	if bus == nil || len(b.chatIDs) == 0 {
		return
	}
	for _, eventType := range events.BookingEvents {
		bus.Subscribe(eventType, func(event *events.Event) error {
			p, err := events.DecodeBooking(event)
			if err != nil {
				return fmt.Errorf("decode %s: %w", event.Type, err)
			}
			go func() {
				if err := b.relay(event.Type, p); err != nil {
					b.logger.Error().Err(err).Str("event", event.Type).Int64("booking_id", p.BookingID).Msg("Failed to relay booking event")
				}
			}()
			return nil
		})
	}
	b.logger.Info().Int("chats", len(b.chatIDs)).Msg("Booking event relay subscribed")
}

// relay sends one event to all admin chats. New requests carry
// approve/reject buttons.
func (b *Bot) relay(eventType string, p events.BookingEventPayload) error {
	text := b.formatEvent(eventType, p)

	var err error
	if eventType == events.EventBookingSubmitted {
		kb, _ := actionKeyboard(&models.Booking{ID: p.BookingID, Status: models.StatusPending})
		var errs []error
		for _, chatID := range b.chatIDs {
			if _, sendErr := b.tgService.SendWithInlineKeyboard(chatID, text, kb); sendErr != nil {
				errs = append(errs, fmt.Errorf("chat %d: %w", chatID, sendErr))
			}
		}
		err = errors.Join(errs...)
	} else {
		err = b.tgService.Broadcast(b.chatIDs, text)
	}

	b.metrics.relayed(eventType, err)
	return err
}
