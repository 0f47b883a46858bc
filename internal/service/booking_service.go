package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devlend/internal/config"
	"devlend/internal/database"
	"devlend/internal/domain"
	"devlend/internal/events"
	"devlend/internal/logging"
	"devlend/internal/metrics"
	"devlend/internal/models"
	"devlend/internal/scheduling"
	"devlend/internal/worker"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	msgBookingNotFound = "Booking not found."
	linkMyBookings     = "/my-bookings"
	linkAdmin          = "/admin"
)

// transitionRule is the admin action behind one state machine event.
type transitionRule struct {
	event    models.BookingEvent
	rejected string
	title    string
	message  string
	topic    string
}

var (
	ruleReject = transitionRule{
		event:    models.EventReject,
		rejected: "Only pending bookings can be rejected.",
		title:    "Booking rejected",
		message:  "Your booking request was not approved. Try a different time window.",
		topic:    events.EventBookingRejected,
	}
	rulePickup = transitionRule{
		event:    models.EventPickup,
		rejected: "Only approved bookings can be marked as picked up.",
		title:    "Device picked up",
		message:  "Your device has been marked as picked up. Enjoy!",
		topic:    events.EventBookingPickedUp,
	}
	ruleReturn = transitionRule{
		event:    models.EventReturn,
		rejected: "Only picked-up bookings can be marked as returned.",
		title:    "Device returned",
		message:  "Your device has been marked as returned. Thanks for borrowing!",
		topic:    events.EventBookingReturned,
	}
)

const msgApproveRejected = "Only pending bookings can be approved."

// BookingService is the admission controller and the booking state machine.
type BookingService struct {
	repo         domain.Repository
	notifier     domain.Notifier
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	limiter      domain.RateLimiter
	policy       config.BookingConfig
	printer      *message.Printer
	now          func() time.Time
	logger       *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	limiter domain.RateLimiter,
	policy config.BookingConfig,
	logger *zerolog.Logger,
) *BookingService {
	if policy.MaxDays <= 0 {
		policy.MaxDays = models.DefaultMaxBookingDays
	}
	if policy.CurrencySymbol == "" {
		policy.CurrencySymbol = models.DefaultCurrencySymbol
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:         repo,
		notifier:     notifier,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		limiter:      limiter,
		policy:       policy,
		printer:      message.NewPrinter(language.English),
		now:          time.Now,
		logger:       logger,
	}
}

// CheckAvailability reports whether the window could be served right now.
// A negative answer is informational, not an error.
func (s *BookingService) CheckAvailability(ctx context.Context, start, end time.Time, resourceID *int64) (*models.Availability, error) {
	w, err := scheduling.NewWindow(start.UTC(), end.UTC())
	if err != nil {
		return nil, domain.Validation("Invalid date range.")
	}

	resources, err := s.repo.ListAvailableResources(ctx)
	if err != nil {
		return nil, storeError("list devices", err, "")
	}
	candidates := make([]int64, 0, len(resources))
	for i := range resources {
		if resourceID != nil && resources[i].ID != *resourceID {
			continue
		}
		candidates = append(candidates, resources[i].ID)
	}

	filtered := resourceID != nil
	if len(candidates) == 0 {
		metrics.IncAdmission("availability", string(models.CauseNoCandidates))
		reason := "No devices are currently in the system or all are under maintenance."
		if filtered {
			reason = "This device is currently under maintenance or does not exist."
		}
		return &models.Availability{Reason: reason, Cause: models.CauseNoCandidates}, nil
	}

	active, err := s.repo.ListActiveBookings(ctx, w.Start, w.End, candidates)
	if err != nil {
		return nil, storeError("list bookings", err, "")
	}
	if !scheduling.IsWindowFeasible(candidates, w, active) {
		metrics.IncAdmission("availability", string(models.CauseBusy))
		reason := "All devices are booked for this time window. Try a different range."
		if filtered {
			reason = "This device is already booked for the selected time window. Try a different range."
		}
		return &models.Availability{Reason: reason, Cause: models.CauseBusy}, nil
	}

	metrics.IncAdmission("availability", "available")
	return &models.Availability{Available: true}, nil
}

// SubmitBooking records a pending request. A pre-selected device must
// exist; whether it is free is only decided at approval.
func (s *BookingService) SubmitBooking(ctx context.Context, actor models.Actor, req models.SubmitRequest) (*models.Booking, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}

	start, end := req.StartAt.UTC(), req.EndAt.UTC()
	if !start.After(s.now()) {
		return nil, domain.Validation("Start must be in the future.")
	}
	if !end.After(start) {
		return nil, domain.Validation("End must be after start.")
	}
	if end.Sub(start) > time.Duration(s.policy.MaxDays)*24*time.Hour {
		return nil, domain.Validation("Maximum booking duration is %d days.", s.policy.MaxDays)
	}
	w := scheduling.Window{Start: start, End: end}

	var quoted *int64
	if req.ResourceID != nil {
		r, err := s.repo.GetResource(ctx, *req.ResourceID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.Validation("Requested device not found.")
		}
		if err != nil {
			return nil, storeError("get device", err, "")
		}
		if price, ok := scheduling.QuotePrice(r.Rate(), w); ok {
			quoted = &price
		}
	}

	if err := s.checkSubmitRate(ctx, actor); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		RequesterID: actor.UserID,
		ResourceID:  req.ResourceID,
		StartAt:     start,
		EndAt:       end,
		Status:      models.StatusPending,
		QuotedPrice: quoted,
		Notes:       req.Notes,
	}
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return nil, storeError("create booking", err, "")
	}
	booking.RequesterEmail = actor.Email

	logging.FromContext(ctx, s.logger).Info().Int64("booking_id", booking.ID).Str("user_id", actor.UserID).
		Time("start_at", start).Time("end_at", end).Msg("booking submitted")

	s.notifyAdmins(ctx, booking, actor)
	s.publishEvent(events.EventBookingSubmitted, booking, actor)
	s.enqueueSync(ctx, booking, worker.TaskUpsert)

	return booking, nil
}

func (s *BookingService) checkSubmitRate(ctx context.Context, actor models.Actor) error {
	if s.limiter == nil || s.policy.SubmitRateLimit <= 0 {
		return nil
	}
	window := s.policy.SubmitRateWindow
	if window <= 0 {
		window = models.DefaultSubmitRateWindow * time.Second
	}
	allowed, err := s.limiter.Allow(ctx, "submit:"+actor.UserID, s.policy.SubmitRateLimit, window)
	if err != nil {
		// limiter outage does not block submissions
		logging.FromContext(ctx, s.logger).Warn().Err(err).Str("user_id", actor.UserID).Msg("submit rate limiter unavailable")
		return nil
	}
	if !allowed {
		return domain.RateLimited("Too many booking requests. Please try again later.")
	}
	return nil
}

// Approve binds the first free available device to a pending booking. The
// guard, the device choice and the update run in one store transaction.
func (s *BookingService) Approve(ctx context.Context, actor models.Actor, bookingID int64) (*models.Booking, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	booking, err := s.repo.ApproveBooking(ctx, bookingID, pickFreeResource)
	if err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			err = domain.InvalidTransition(msgApproveRejected)
		}
		err = storeError("approve booking", err, msgBookingNotFound)
		metrics.IncAdmission("approve", domain.Code(err))
		logging.FromContext(ctx, s.logger).Info().Err(err).Int64("booking_id", bookingID).Msg("approval refused")
		return nil, err
	}
	metrics.IncAdmission("approve", "approved")

	logging.FromContext(ctx, s.logger).Info().Int64("booking_id", booking.ID).Int64("resource_id", booking.BookedResource()).
		Str("user_id", actor.UserID).Msg("booking approved")

	msg := "Your booking has been approved."
	if booking.ResourceLabel != "" {
		msg = fmt.Sprintf("Your booking has been approved. Device: %s.", booking.ResourceLabel)
	}
	s.notify(ctx, booking.RequesterID, "Booking approved", msg)
	s.publishEvent(events.EventBookingApproved, booking, actor)
	s.enqueueSync(ctx, booking, worker.TaskUpsert)

	return booking, nil
}

// pickFreeResource is the approval guard. It sees the booking, the
// available devices in registry order and the active bookings overlapping
// the booking's window.
func pickFreeResource(b *models.Booking, candidates []models.Resource, active []models.Booking) (int64, error) {
	if _, ok := models.NextStatus(b.Status, models.EventApprove); !ok {
		return 0, domain.InvalidTransition(msgApproveRejected)
	}
	if len(candidates) == 0 {
		return 0, domain.NoResourceAvailable("No consoles available.")
	}
	ids := make([]int64, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ID
	}
	id, ok := scheduling.FindFreeResourceExcluding(ids, scheduling.Window{Start: b.StartAt, End: b.EndAt}, active, b.ID)
	if !ok {
		return 0, domain.NoResourceAvailable("No free console for this time window.")
	}
	return id, nil
}

func (s *BookingService) Reject(ctx context.Context, actor models.Actor, bookingID int64) (*models.Booking, error) {
	return s.transition(ctx, actor, bookingID, ruleReject)
}

func (s *BookingService) Pickup(ctx context.Context, actor models.Actor, bookingID int64) (*models.Booking, error) {
	return s.transition(ctx, actor, bookingID, rulePickup)
}

func (s *BookingService) Return(ctx context.Context, actor models.Actor, bookingID int64) (*models.Booking, error) {
	return s.transition(ctx, actor, bookingID, ruleReturn)
}

func (s *BookingService) transition(ctx context.Context, actor models.Actor, bookingID int64, rule transitionRule) (*models.Booking, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError("get booking", err, msgBookingNotFound)
	}
	next, ok := models.NextStatus(booking.Status, rule.event)
	if !ok {
		return nil, domain.InvalidTransition("%s", rule.rejected)
	}

	err = s.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, booking.Status, next)
	if errors.Is(err, database.ErrConcurrentModification) {
		return nil, domain.InvalidTransition("%s", rule.rejected)
	}
	if err != nil {
		return nil, storeError("update booking", err, msgBookingNotFound)
	}

	booking.Status = next
	booking.Version++
	booking.UpdatedAt = s.now().UTC()

	logging.FromContext(ctx, s.logger).Info().Int64("booking_id", booking.ID).Str("status", string(next)).
		Str("user_id", actor.UserID).Msg("booking status changed")

	s.notify(ctx, booking.RequesterID, rule.title, rule.message)
	s.publishEvent(rule.topic, booking, actor)
	s.enqueueSync(ctx, booking, worker.TaskUpdateStatus)

	return booking, nil
}

// GetBooking returns a booking to its requester or to an admin.
func (s *BookingService) GetBooking(ctx context.Context, actor models.Actor, bookingID int64) (*models.Booking, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError("get booking", err, msgBookingNotFound)
	}
	if b.RequesterID != actor.UserID && !actor.IsAdmin() {
		return nil, domain.NotFound(msgBookingNotFound)
	}
	return b, nil
}

func (s *BookingService) ListMine(ctx context.Context, actor models.Actor) ([]models.Booking, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	list, err := s.repo.ListBookingsByRequester(ctx, actor.UserID)
	if err != nil {
		return nil, storeError("list bookings", err, "")
	}
	return list, nil
}

func (s *BookingService) ListAll(ctx context.Context, actor models.Actor) ([]models.Booking, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	list, err := s.repo.ListBookings(ctx)
	if err != nil {
		return nil, storeError("list bookings", err, "")
	}
	return list, nil
}

// ListInRange returns bookings whose window intersects [from, to).
func (s *BookingService) ListInRange(ctx context.Context, actor models.Actor, from, to time.Time) ([]models.Booking, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, domain.Validation("Invalid date range.")
	}
	list, err := s.repo.ListBookingsInRange(ctx, from.UTC(), to.UTC())
	if err != nil {
		return nil, storeError("list bookings", err, "")
	}
	return list, nil
}

// FormatFee renders an amount the way admin notifications show it, e.g. ₩12,000.
func (s *BookingService) FormatFee(amount int64) string {
	return s.policy.CurrencySymbol + s.printer.Sprintf("%d", amount)
}

func (s *BookingService) notify(ctx context.Context, userID, title, msg string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, []string{userID}, title, msg, linkMyBookings)
}

func (s *BookingService) notifyAdmins(ctx context.Context, b *models.Booking, actor models.Actor) {
	if s.notifier == nil {
		return
	}
	who := actor.Email
	if who == "" {
		who = "A user"
	}
	feeNote := ""
	if b.QuotedPrice != nil && *b.QuotedPrice > 0 {
		feeNote = fmt.Sprintf(" (%s)", s.FormatFee(*b.QuotedPrice))
	}
	s.notifier.NotifyAdmins(ctx, "New booking request",
		fmt.Sprintf("%s submitted a new booking request%s.", who, feeNote), linkAdmin)
}

func (s *BookingService) publishEvent(eventType string, b *models.Booking, actor models.Actor) {
	if s.eventBus == nil {
		return
	}

	email := b.RequesterEmail
	if email == "" && actor.UserID == b.RequesterID {
		email = actor.Email
	}
	payload := events.BookingEventPayload{
		BookingID:     b.ID,
		RequesterID:   b.RequesterID,
		Email:         email,
		ResourceID:    b.ResourceID,
		ResourceLabel: b.ResourceLabel,
		Status:        string(b.Status),
		StartAt:       b.StartAt,
		EndAt:         b.EndAt,
		QuotedPrice:   b.QuotedPrice,
		ChangedBy:     actor.Email,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, b *models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}
	snapshot := *b
	if err := s.sheetsWorker.EnqueueTask(context.WithoutCancel(ctx), taskType, &snapshot); err != nil {
		logging.FromContext(ctx, s.logger).Error().Err(err).Int64("booking_id", b.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
