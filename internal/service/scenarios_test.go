package service

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"devlend/internal/config"
	"devlend/internal/database"
	"devlend/internal/domain"
	"devlend/internal/events"
	"devlend/internal/models"
	"devlend/internal/scheduling"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	db       *database.DB
	bookings *BookingService
	notes    *NotificationService
	users    *UserService
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "devlend.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	notes := NewNotificationService(db, &logger)
	bookings := NewBookingService(db, notes, events.NewEventBus(), nil, nil, config.BookingConfig{MaxDays: 7}, &logger)
	bookings.now = func() time.Time { return fixedNow }

	return &stack{db: db, bookings: bookings, notes: notes, users: NewUserService(db, &logger)}
}

func (s *stack) resource(t *testing.T, label string) int64 {
	t.Helper()
	r := &models.Resource{Label: label, Status: models.ResourceAvailable}
	require.NoError(t, s.db.CreateResource(context.Background(), r))
	return r.ID
}

func (s *stack) submit(t *testing.T, start, end time.Time, resourceID *int64) *models.Booking {
	t.Helper()
	b, err := s.bookings.SubmitBooking(context.Background(), member, models.SubmitRequest{StartAt: start, EndAt: end, ResourceID: resourceID})
	require.NoError(t, err)
	return b
}

func TestScenario1_ApproveBindsResource(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	r1 := s.resource(t, "R1")

	b1 := s.submit(t, at(2, 10), at(2, 12), &r1)

	a, err := s.bookings.CheckAvailability(ctx, at(2, 10), at(2, 12), &r1)
	require.NoError(t, err)
	assert.True(t, a.Available, "pending bookings do not hold a device")

	approved, err := s.bookings.Approve(ctx, admin, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.Equal(t, r1, approved.BookedResource())
	assert.Equal(t, "R1", approved.ResourceLabel)

	stored, err := s.db.GetBooking(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.Equal(t, r1, stored.BookedResource())
}

func TestScenario2And3_OverlapAndTouchingBoundary(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	r1 := s.resource(t, "R1")

	b1 := s.submit(t, at(2, 10), at(2, 12), &r1)
	_, err := s.bookings.Approve(ctx, admin, b1.ID)
	require.NoError(t, err)

	a, err := s.bookings.CheckAvailability(ctx, at(2, 11), at(2, 13), &r1)
	require.NoError(t, err)
	assert.False(t, a.Available)
	assert.Equal(t, models.CauseBusy, a.Cause)
	assert.Equal(t, "This device is already booked for the selected time window. Try a different range.", a.Reason)

	a, err = s.bookings.CheckAvailability(ctx, at(2, 12), at(2, 13), &r1)
	require.NoError(t, err)
	assert.True(t, a.Available, "touching windows do not conflict")

	a, err = s.bookings.CheckAvailability(ctx, at(2, 8), at(2, 10), nil)
	require.NoError(t, err)
	assert.True(t, a.Available)
}

func TestScenario4_SecondApprovalTakesNextResource(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	r1 := s.resource(t, "R1")
	r2 := s.resource(t, "R2")

	b1 := s.submit(t, at(2, 10), at(2, 12), nil)
	b2 := s.submit(t, at(2, 10), at(2, 12), nil)

	first, err := s.bookings.Approve(ctx, admin, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, r1, first.BookedResource())

	second, err := s.bookings.Approve(ctx, admin, b2.ID)
	require.NoError(t, err)
	assert.Equal(t, r2, second.BookedResource())
}

func TestScenario5_NoResourceLeavesBookingPending(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.resource(t, "R1")

	b1 := s.submit(t, at(2, 10), at(2, 12), nil)
	b2 := s.submit(t, at(2, 11), at(2, 14), nil)

	_, err := s.bookings.Approve(ctx, admin, b1.ID)
	require.NoError(t, err)

	_, err = s.bookings.Approve(ctx, admin, b2.ID)
	require.ErrorIs(t, err, domain.ErrNoResourceAvailable)
	assert.Equal(t, "No free console for this time window.", domain.Message(err, ""))

	stored, err := s.db.GetBooking(ctx, b2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.ResourceID)
	assert.Equal(t, b2.Version, stored.Version)
}

func TestScenario6_DurationOverPolicy(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.resource(t, "R1")

	_, err := s.bookings.SubmitBooking(ctx, member, models.SubmitRequest{StartAt: at(2, 10), EndAt: at(10, 10)})
	require.ErrorIs(t, err, domain.ErrValidation)

	list, err := s.db.ListBookings(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestApproveTwiceNotifiesOnce(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.resource(t, "R1")
	b := s.submit(t, at(2, 10), at(2, 12), nil)

	_, err := s.bookings.Approve(ctx, admin, b.ID)
	require.NoError(t, err)
	_, err = s.bookings.Approve(ctx, admin, b.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	notes, err := s.notes.List(ctx, member)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Booking approved", notes[0].Title)
	assert.Equal(t, "Your booking has been approved. Device: R1.", notes[0].Message)
}

func TestFullLifecycleAndAdminNotification(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	r := &models.Resource{Label: "Switch", Status: models.ResourceAvailable, DailyRate: ptr(6000)}
	require.NoError(t, s.db.CreateResource(ctx, r))

	_, err := s.users.EnsureUser(ctx, admin, "Admin")
	require.NoError(t, err)

	b := s.submit(t, at(2, 10), at(3, 11), &r.ID)
	require.NotNil(t, b.QuotedPrice)
	assert.Equal(t, int64(12000), *b.QuotedPrice)

	adminNotes, err := s.notes.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, adminNotes, 1)
	assert.Equal(t, "alice@kaist.ac.kr submitted a new booking request (₩12,000).", adminNotes[0].Message)
	assert.Equal(t, "/admin", adminNotes[0].Link)

	_, err = s.bookings.Approve(ctx, admin, b.ID)
	require.NoError(t, err)
	_, err = s.bookings.Pickup(ctx, admin, b.ID)
	require.NoError(t, err)
	_, err = s.bookings.Reject(ctx, admin, b.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	done, err := s.bookings.Return(ctx, admin, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturned, done.Status)

	unread, err := s.notes.UnreadCount(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	// returned bookings no longer hold the device
	a, err := s.bookings.CheckAvailability(ctx, at(2, 10), at(3, 11), &r.ID)
	require.NoError(t, err)
	assert.True(t, a.Available)
}

func TestConcurrentApprovalsNeverDoubleBook(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.resource(t, "R1")
	s.resource(t, "R2")

	var ids []int64
	for i := 0; i < 6; i++ {
		b := s.submit(t, at(2, 10+i%2), at(2, 13), nil)
		ids = append(ids, b.ID)
	}

	var wg sync.WaitGroup
	results := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, results[i] = s.bookings.Approve(ctx, admin, id)
		}(i, id)
	}
	wg.Wait()

	approved := 0
	for _, err := range results {
		if err == nil {
			approved++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrNoResourceAvailable)
	}
	assert.Equal(t, 2, approved)

	all, err := s.db.ListBookings(ctx)
	require.NoError(t, err)
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if !a.Status.IsActive() || !b.Status.IsActive() || a.BookedResource() != b.BookedResource() {
				continue
			}
			assert.False(t, scheduling.Overlaps(
				scheduling.Window{Start: a.StartAt, End: a.EndAt},
				scheduling.Window{Start: b.StartAt, End: b.EndAt},
			), "bookings %d and %d share resource %d", a.ID, b.ID, a.BookedResource())
		}
	}
}
