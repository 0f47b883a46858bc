package api

import (
	"context"
	"strconv"
	"time"

	"devlend/internal/domain"
	"devlend/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockBookings struct {
	mock.Mock
}

var _ domain.BookingService = (*mockBookings)(nil)

func bookingResult(args mock.Arguments) (*models.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func bookingList(args mock.Arguments) ([]models.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookings) CheckAvailability(ctx context.Context, start, end time.Time, resourceID *int64) (*models.Availability, error) {
	args := m.Called(ctx, start, end, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Availability), args.Error(1)
}

func (m *mockBookings) SubmitBooking(ctx context.Context, actor models.Actor, req models.SubmitRequest) (*models.Booking, error) {
	return bookingResult(m.Called(ctx, actor, req))
}

func (m *mockBookings) Approve(ctx context.Context, actor models.Actor, id int64) (*models.Booking, error) {
	return bookingResult(m.Called(ctx, actor, id))
}

func (m *mockBookings) Reject(ctx context.Context, actor models.Actor, id int64) (*models.Booking, error) {
	return bookingResult(m.Called(ctx, actor, id))
}

func (m *mockBookings) Pickup(ctx context.Context, actor models.Actor, id int64) (*models.Booking, error) {
	return bookingResult(m.Called(ctx, actor, id))
}

func (m *mockBookings) Return(ctx context.Context, actor models.Actor, id int64) (*models.Booking, error) {
	return bookingResult(m.Called(ctx, actor, id))
}

func (m *mockBookings) GetBooking(ctx context.Context, actor models.Actor, id int64) (*models.Booking, error) {
	return bookingResult(m.Called(ctx, actor, id))
}

func (m *mockBookings) ListMine(ctx context.Context, actor models.Actor) ([]models.Booking, error) {
	return bookingList(m.Called(ctx, actor))
}

func (m *mockBookings) ListAll(ctx context.Context, actor models.Actor) ([]models.Booking, error) {
	return bookingList(m.Called(ctx, actor))
}

func (m *mockBookings) ListInRange(ctx context.Context, actor models.Actor, from, to time.Time) ([]models.Booking, error) {
	return bookingList(m.Called(ctx, actor, from, to))
}

func (m *mockBookings) FormatFee(amount int64) string {
	return strconv.FormatInt(amount, 10)
}

type mockResources struct {
	mock.Mock
}

var _ domain.ResourceService = (*mockResources)(nil)

func resourceResult(args mock.Arguments) (*models.Resource, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Resource), args.Error(1)
}

func resourceList(args mock.Arguments) ([]models.Resource, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Resource), args.Error(1)
}

func (m *mockResources) ListAvailable(ctx context.Context) ([]models.Resource, error) {
	return resourceList(m.Called(ctx))
}

func (m *mockResources) Get(ctx context.Context, id int64) (*models.Resource, error) {
	return resourceResult(m.Called(ctx, id))
}

func (m *mockResources) SetStatus(ctx context.Context, actor models.Actor, id int64, status models.ResourceStatus) (*models.Resource, error) {
	return resourceResult(m.Called(ctx, actor, id, status))
}

func (m *mockResources) ListCatalogue(ctx context.Context) ([]models.Resource, error) {
	return resourceList(m.Called(ctx))
}

func (m *mockResources) Detail(ctx context.Context, id int64) (*models.ResourceDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ResourceDetail), args.Error(1)
}

func (m *mockResources) ListAll(ctx context.Context, actor models.Actor) ([]models.Resource, error) {
	return resourceList(m.Called(ctx, actor))
}

func (m *mockResources) Create(ctx context.Context, actor models.Actor, req models.CreateResourceRequest) (*models.Resource, error) {
	return resourceResult(m.Called(ctx, actor, req))
}

func (m *mockResources) AddGame(ctx context.Context, actor models.Actor, g models.Game) (*models.Game, error) {
	args := m.Called(ctx, actor, g)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *mockResources) DeleteGame(ctx context.Context, actor models.Actor, id int64) error {
	return m.Called(ctx, actor, id).Error(0)
}

type mockNotifications struct {
	mock.Mock
}

var _ domain.NotificationService = (*mockNotifications)(nil)

func (m *mockNotifications) Notify(ctx context.Context, userIDs []string, title, message, link string) {
	m.Called(ctx, userIDs, title, message, link)
}

func (m *mockNotifications) NotifyAdmins(ctx context.Context, title, message, link string) {
	m.Called(ctx, title, message, link)
}

func (m *mockNotifications) List(ctx context.Context, actor models.Actor) ([]models.Notification, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockNotifications) MarkRead(ctx context.Context, actor models.Actor, id int64) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockNotifications) MarkAllRead(ctx context.Context, actor models.Actor) error {
	return m.Called(ctx, actor).Error(0)
}

func (m *mockNotifications) UnreadCount(ctx context.Context, actor models.Actor) (int, error) {
	args := m.Called(ctx, actor)
	return args.Int(0), args.Error(1)
}

type mockUsers struct {
	mock.Mock
}

var _ domain.UserService = (*mockUsers)(nil)

func userResult(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUsers) EnsureUser(ctx context.Context, actor models.Actor, name string) (*models.User, error) {
	return userResult(m.Called(ctx, actor, name))
}

func (m *mockUsers) Profile(ctx context.Context, actor models.Actor) (*models.User, error) {
	return userResult(m.Called(ctx, actor))
}

func (m *mockUsers) UpdateName(ctx context.Context, actor models.Actor, name string) (*models.User, error) {
	return userResult(m.Called(ctx, actor, name))
}
