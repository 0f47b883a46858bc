package bot

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"devlend/internal/export"
	"devlend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// listLimit caps how many bookings one command sends as separate messages.
const listLimit = 20

const helpText = `<b>Lending desk admin</b>
/pending - requests waiting for a decision
/active - approved and picked up bookings
/approve &lt;id&gt; - approve and assign a free device
/reject &lt;id&gt; - reject a request
/pickup &lt;id&gt; - mark a device as handed out
/return &lt;id&gt; - mark a device as returned
/export [days] - bookings spreadsheet from today`

type action struct {
	name string
	run  func(ctx context.Context, actor models.Actor, id int64) (*models.Booking, error)
	done string
}

func (b *Bot) actions() map[string]action {
	return map[string]action{
		"approve": {name: "approve", run: b.bookingService.Approve, done: "Approved"},
		"reject":  {name: "reject", run: b.bookingService.Reject, done: "Rejected"},
		"pickup":  {name: "pickup", run: b.bookingService.Pickup, done: "Picked up"},
		"return":  {name: "return", run: b.bookingService.Return, done: "Returned"},
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID
	cmd := msg.Command()
	logger := zerolog.Ctx(ctx).With().Int64("chat_id", chatID).Str("command", cmd).Logger()

	actor, isAdmin := b.adminFor(chatID)
	if !isAdmin {
		if cmd == "start" || cmd == "help" {
			b.sendHTML(ctx, chatID, fmt.Sprintf("This bot serves lending desk admins. Your chat id is <code>%d</code>.", chatID))
		}
		logger.Debug().Msg("Ignoring command from unknown chat")
		return
	}

	var err error
	switch cmd {
	case "start", "help":
		b.sendHTML(ctx, chatID, helpText)
	case "pending":
		err = b.sendList(ctx, chatID, actor, "No pending requests.", models.StatusPending)
	case "active":
		err = b.sendList(ctx, chatID, actor, "No active bookings.", models.StatusApproved, models.StatusPickedUp)
	case "approve", "reject", "pickup", "return":
		err = b.runCommand(ctx, chatID, actor, b.actions()[cmd], msg.CommandArguments())
	case "export":
		err = b.sendExport(ctx, chatID, actor, msg.CommandArguments())
	default:
		b.sendHTML(ctx, chatID, "Unknown command. Send /help for the list.")
		return
	}

	b.metrics.command(cmd, err)
	if err != nil {
		logger.Warn().Err(err).Msg("Command failed")
		b.sendHTML(ctx, chatID, html.EscapeString(errorMessage(err)))
	}
}

func (b *Bot) runCommand(ctx context.Context, chatID int64, actor models.Actor, a action, args string) error {
	id, err := parseBookingID(args)
	if err != nil {
		b.sendHTML(ctx, chatID, fmt.Sprintf("Usage: /%s &lt;booking id&gt;", a.name))
		return nil
	}

	bk, err := a.run(ctx, actor, id)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int64("booking_id", id).Str("action", a.name).Msg("Booking updated from chat")
	b.sendHTML(ctx, chatID, fmt.Sprintf("%s.\n%s", a.done, b.formatBooking(bk)))
	return nil
}

func parseBookingID(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid booking id %q", s)
	}
	return id, nil
}

// sendList posts each booking in one of the statuses as its own message
// with buttons for the next step, earliest start first.
func (b *Bot) sendList(ctx context.Context, chatID int64, actor models.Actor, empty string, statuses ...models.BookingStatus) error {
	all, err := b.bookingService.ListAll(ctx, actor)
	if err != nil {
		return err
	}

	var list []models.Booking
	for _, bk := range all {
		for _, s := range statuses {
			if bk.Status == s {
				list = append(list, bk)
				break
			}
		}
	}
	if len(list) == 0 {
		b.sendHTML(ctx, chatID, empty)
		return nil
	}

	sort.SliceStable(list, func(i, j int) bool { return list[i].StartAt.Before(list[j].StartAt) })

	shown := list
	if len(shown) > listLimit {
		shown = shown[:listLimit]
	}
	for i := range shown {
		bk := &shown[i]
		text := b.formatBooking(bk)
		kb, ok := actionKeyboard(bk)
		if !ok {
			b.sendHTML(ctx, chatID, text)
			continue
		}
		if _, err := b.tgService.SendWithInlineKeyboard(chatID, text, kb); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Int64("booking_id", bk.ID).Msg("Failed to send booking")
		}
	}
	if len(list) > len(shown) {
		b.sendHTML(ctx, chatID, fmt.Sprintf("…and %d more.", len(list)-len(shown)))
	}
	return nil
}

// actionKeyboard offers the transitions allowed from the booking's status.
func actionKeyboard(bk *models.Booking) (tgbotapi.InlineKeyboardMarkup, bool) {
	button := func(label, act string) tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s:%d", act, bk.ID))
	}

	switch bk.Status {
	case models.StatusPending:
		return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			button("✅ Approve", "approve"),
			button("❌ Reject", "reject"),
		)), true
	case models.StatusApproved:
		return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			button("📦 Picked up", "pickup"),
		)), true
	case models.StatusPickedUp:
		return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			button("↩️ Returned", "return"),
		)), true
	}
	return tgbotapi.InlineKeyboardMarkup{}, false
}

func (b *Bot) sendExport(ctx context.Context, chatID int64, actor models.Actor, args string) error {
	days := b.config.ExportDays
	if days <= 0 {
		days = 14
	}
	if s := strings.TrimSpace(args); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 366 {
			b.sendHTML(ctx, chatID, "Usage: /export [days], 1 to 366.")
			return nil
		}
		days = n
	}

	now := b.now().In(b.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.loc)
	to := from.AddDate(0, 0, days)

	bookings, err := b.bookingService.ListInRange(ctx, actor, from, to)
	if err != nil {
		return err
	}

	wb, err := export.NewWorkbook(bookings, from, to, b.loc)
	if err != nil {
		return fmt.Errorf("error building export: %w", err)
	}
	defer wb.Close()

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		return fmt.Errorf("error writing export: %w", err)
	}

	caption := fmt.Sprintf("📊 Bookings %s to %s (%d)", from.Format("02.01"), to.AddDate(0, 0, -1).Format("02.01"), len(bookings))
	if _, err := b.tgService.SendDocument(chatID, export.FileName(from, to), buf.Bytes(), caption); err != nil {
		return fmt.Errorf("error sending export: %w", err)
	}
	return nil
}
