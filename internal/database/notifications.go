package database

import (
	"context"
	"fmt"
	"time"

	"devlend/internal/models"
)

// CreateNotifications inserts all rows in one transaction.
func (db *DB) CreateNotifications(ctx context.Context, notes []models.Notification) error {
	if len(notes) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO notifications (user_id, title, message, link, read, created_at)
              VALUES (?, ?, ?, ?, 0, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare notification insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range notes {
		result, err := stmt.ExecContext(ctx, notes[i].UserID, notes[i].Title, notes[i].Message, notes[i].Link, now)
		if err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}
		if id, err := result.LastInsertId(); err == nil {
			notes[i].ID = id
		}
		notes[i].CreatedAt = now
		notes[i].Read = false
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit notifications: %w", err)
	}
	return nil
}

// ListNotifications returns the newest notifications first.
func (db *DB) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = models.NotificationListLimit
	}
	rows, err := db.QueryContext(ctx, `SELECT id, user_id, title, message, link, read, created_at
              FROM notifications WHERE user_id = ?
              ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notes := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// MarkNotificationRead reports false when the notification does not belong to userID.
func (db *DB) MarkNotificationRead(ctx context.Context, userID string, id int64) (bool, error) {
	result, err := db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (db *DB) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
