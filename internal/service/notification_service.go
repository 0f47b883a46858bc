package service

import (
	"context"
	"time"

	"devlend/internal/domain"
	"devlend/internal/metrics"
	"devlend/internal/models"

	"github.com/rs/zerolog"
)

const defaultNotifyTimeout = 5 * time.Second

type notificationStore interface {
	domain.NotificationRepository
	ListUserIDsByRole(ctx context.Context, role models.Role) ([]string, error)
}

// NotificationService writes in-app notifications and serves the bell.
// Notify and NotifyAdmins never fail the caller: errors are logged and
// counted, never retried.
type NotificationService struct {
	repo    notificationStore
	timeout time.Duration
	logger  *zerolog.Logger
}

func NewNotificationService(repo notificationStore, logger *zerolog.Logger) *NotificationService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &NotificationService{repo: repo, timeout: defaultNotifyTimeout, logger: logger}
}

func (s *NotificationService) Notify(ctx context.Context, userIDs []string, title, message, link string) {
	if len(userIDs) == 0 {
		return
	}

	// Detached from the request: a client hanging up after the state
	// change must not drop the notification.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	now := time.Now().UTC()
	notes := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		notes = append(notes, models.Notification{
			UserID:    id,
			Title:     title,
			Message:   message,
			Link:      link,
			CreatedAt: now,
		})
	}

	if err := s.repo.CreateNotifications(ctx, notes); err != nil {
		metrics.IncNotificationFailure()
		s.logger.Error().Err(err).Strs("user_ids", userIDs).Str("title", title).Msg("failed to create notifications")
	}
}

func (s *NotificationService) NotifyAdmins(ctx context.Context, title, message, link string) {
	lookup, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	admins, err := s.repo.ListUserIDsByRole(lookup, models.RoleAdmin)
	cancel()
	if err != nil {
		metrics.IncNotificationFailure()
		s.logger.Error().Err(err).Str("title", title).Msg("failed to load admins for notification")
		return
	}
	if len(admins) == 0 {
		s.logger.Debug().Str("title", title).Msg("no admins to notify")
		return
	}
	s.Notify(ctx, admins, title, message, link)
}

// List returns the actor's latest notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor models.Actor) ([]models.Notification, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	notes, err := s.repo.ListNotifications(ctx, actor.UserID, models.NotificationListLimit)
	if err != nil {
		return nil, storeError("list notifications", err, "")
	}
	return notes, nil
}

// MarkRead flags one of the actor's notifications. Ids owned by someone
// else are ignored.
func (s *NotificationService) MarkRead(ctx context.Context, actor models.Actor, id int64) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	ok, err := s.repo.MarkNotificationRead(ctx, actor.UserID, id)
	if err != nil {
		return storeError("mark notification read", err, "")
	}
	if !ok {
		s.logger.Debug().Int64("notification_id", id).Str("user_id", actor.UserID).Msg("notification not marked")
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor models.Actor) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if err := s.repo.MarkAllNotificationsRead(ctx, actor.UserID); err != nil {
		return storeError("mark notifications read", err, "")
	}
	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor models.Actor) (int, error) {
	if err := requireUser(actor); err != nil {
		return 0, err
	}
	n, err := s.repo.CountUnreadNotifications(ctx, actor.UserID)
	if err != nil {
		return 0, storeError("count notifications", err, "")
	}
	return n, nil
}
