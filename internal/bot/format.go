package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"devlend/internal/events"
	"devlend/internal/export"
	"devlend/internal/models"
)

const timeLayout = "02.01 15:04"

var eventTitles = map[string]string{
	events.EventBookingSubmitted: "🆕 <b>New booking request #%d</b>",
	events.EventBookingApproved:  "✅ <b>Booking #%d approved</b>",
	events.EventBookingRejected:  "❌ <b>Booking #%d rejected</b>",
	events.EventBookingPickedUp:  "📦 <b>Booking #%d picked up</b>",
	events.EventBookingReturned:  "↩️ <b>Booking #%d returned</b>",
}

func (b *Bot) formatWindow(start, end time.Time) string {
	return fmt.Sprintf("%s to %s", start.In(b.loc).Format(timeLayout), end.In(b.loc).Format(timeLayout))
}

func (b *Bot) formatEvent(eventType string, p events.BookingEventPayload) string {
	title, ok := eventTitles[eventType]
	if !ok {
		title = "ℹ️ <b>Booking #%d updated</b>"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, title, p.BookingID)
	sb.WriteString("\n")
	if p.Email != "" {
		fmt.Fprintf(&sb, "👤 %s\n", html.EscapeString(p.Email))
	}
	fmt.Fprintf(&sb, "🕒 %s\n", b.formatWindow(p.StartAt, p.EndAt))
	if p.ResourceLabel != "" {
		fmt.Fprintf(&sb, "🎮 %s\n", html.EscapeString(p.ResourceLabel))
	}
	if p.QuotedPrice != nil {
		fmt.Fprintf(&sb, "💰 %s\n", b.bookingService.FormatFee(*p.QuotedPrice))
	}
	if p.ChangedBy != "" && eventType != events.EventBookingSubmitted {
		fmt.Fprintf(&sb, "by %s\n", html.EscapeString(p.ChangedBy))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) formatBooking(bk *models.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>#%d</b> %s\n", export.StatusIcon(bk.Status), bk.ID, bk.Status)
	if bk.RequesterEmail != "" {
		fmt.Fprintf(&sb, "👤 %s\n", html.EscapeString(bk.RequesterEmail))
	}
	fmt.Fprintf(&sb, "🕒 %s\n", b.formatWindow(bk.StartAt, bk.EndAt))
	if bk.ResourceLabel != "" {
		fmt.Fprintf(&sb, "🎮 %s\n", html.EscapeString(bk.ResourceLabel))
	}
	if bk.QuotedPrice != nil {
		fmt.Fprintf(&sb, "💰 %s\n", b.bookingService.FormatFee(*bk.QuotedPrice))
	}
	if bk.Notes != "" {
		fmt.Fprintf(&sb, "📝 %s\n", html.EscapeString(bk.Notes))
	}
	return strings.TrimRight(sb.String(), "\n")
}
