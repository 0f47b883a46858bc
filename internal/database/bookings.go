package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"devlend/internal/domain"
	"devlend/internal/models"
)

const selectBooking = `SELECT b.id, b.requester_id, b.resource_id, b.start_at, b.end_at, b.status,
                              b.quoted_price, b.notes, b.created_at, b.updated_at, b.version,
                              COALESCE(r.label, ''), COALESCE(u.email, '')
                       FROM bookings b
                       LEFT JOIN resources r ON r.id = b.resource_id
                       LEFT JOIN users u ON u.id = b.requester_id`

func scanBooking(r rowScanner) (*models.Booking, error) {
	var b models.Booking
	var resourceID, price sql.NullInt64
	err := r.Scan(
		&b.ID, &b.RequesterID, &resourceID, &b.StartAt, &b.EndAt, &b.Status,
		&price, &b.Notes, &b.CreatedAt, &b.UpdatedAt, &b.Version,
		&b.ResourceLabel, &b.RequesterEmail,
	)
	if err != nil {
		return nil, err
	}
	if resourceID.Valid {
		v := resourceID.Int64
		b.ResourceID = &v
	}
	if price.Valid {
		v := price.Int64
		b.QuotedPrice = &v
	}
	return &b, nil
}

func queryBookings(ctx context.Context, q queryer, query string, args ...any) ([]models.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func getBooking(ctx context.Context, q queryer, id int64) (*models.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, selectBooking+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// activeOverlapQuery selects approved/picked-up bookings whose window
// overlaps [start, end): start_at < end AND end_at > start.
const activeOverlapQuery = selectBooking + `
    WHERE b.status IN (?, ?) AND b.resource_id IS NOT NULL
      AND b.start_at < ? AND b.end_at > ?`

func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	now := time.Now().UTC()
	if b.Status == "" {
		b.Status = models.StatusPending
	}
	b.StartAt = b.StartAt.UTC()
	b.EndAt = b.EndAt.UTC()

	result, err := db.ExecContext(ctx, `INSERT INTO bookings (
				requester_id, resource_id, start_at, end_at, status, quoted_price,
				notes, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		b.RequesterID, b.ResourceID, b.StartAt, b.EndAt, b.Status, b.QuotedPrice,
		b.Notes, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return getBooking(ctx, db, id)
}

// ListActiveBookings returns approved or picked-up bookings overlapping
// [start, end), optionally restricted to resourceIDs.
func (db *DB) ListActiveBookings(ctx context.Context, start, end time.Time, resourceIDs []int64) ([]models.Booking, error) {
	query := activeOverlapQuery
	args := []any{models.StatusApproved, models.StatusPickedUp, end.UTC(), start.UTC()}
	if len(resourceIDs) > 0 {
		query += ` AND b.resource_id IN (` + placeholders(len(resourceIDs)) + `)`
		for _, id := range resourceIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY b.start_at ASC, b.id ASC`

	bookings, err := queryBookings(ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active bookings: %w", err)
	}
	return bookings, nil
}

// ApproveBooking binds a resource to a pending booking in one write
// transaction. pick sees the booking, the available resources and the
// overlapping active bookings as of the transaction start; any error it
// returns aborts without writing.
func (db *DB) ApproveBooking(ctx context.Context, id int64, pick domain.ApproveFunc) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	booking, err := getBooking(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	candidates, err := queryResources(ctx, tx, selectResource+` WHERE status = ? ORDER BY id ASC`, models.ResourceAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates in tx: %w", err)
	}

	active, err := queryBookings(ctx, tx, activeOverlapQuery+` AND b.id != ?`,
		models.StatusApproved, models.StatusPickedUp, booking.EndAt.UTC(), booking.StartAt.UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to list active bookings in tx: %w", err)
	}

	resourceID, err := pick(booking, candidates, active)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `UPDATE bookings
        SET status = ?, resource_id = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND status = ? AND version = ?`,
		models.StatusApproved, resourceID, now, id, models.StatusPending, booking.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to approve booking: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	booking.Status = models.StatusApproved
	booking.ResourceID = &resourceID
	booking.Version++
	booking.UpdatedAt = now
	for _, c := range candidates {
		if c.ID == resourceID {
			booking.ResourceLabel = c.Label
			break
		}
	}
	return booking, nil
}

// UpdateBookingStatusWithVersion moves a booking from one status to another
// if nobody changed it since version was read.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, version int64, from, to models.BookingStatus) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, to, time.Now().UTC(), id, version, from)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) ListBookingsByRequester(ctx context.Context, userID string) ([]models.Booking, error) {
	bookings, err := queryBookings(ctx, db, selectBooking+` WHERE b.requester_id = ? ORDER BY b.created_at DESC, b.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user bookings: %w", err)
	}
	return bookings, nil
}

func (db *DB) ListBookings(ctx context.Context) ([]models.Booking, error) {
	bookings, err := queryBookings(ctx, db, selectBooking+` ORDER BY b.created_at DESC, b.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ListBookingsInRange returns bookings of any status whose window overlaps [from, to).
func (db *DB) ListBookingsInRange(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	bookings, err := queryBookings(ctx, db,
		selectBooking+` WHERE b.start_at < ? AND b.end_at > ? ORDER BY b.start_at ASC, b.id ASC`,
		to.UTC(), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	return bookings, nil
}
