package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"devlend/internal/models"
)

// UpsertUser creates the profile on first sight. Later calls refresh email
// and role from the identity token; a name already set is kept.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) (*models.User, error) {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	query := `INSERT INTO users (id, email, name, role, created_at)
              VALUES (?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                email = excluded.email,
                role = excluded.role,
                name = CASE WHEN users.name = '' THEN excluded.name ELSE users.name END`
	_, err := db.ExecContext(ctx, query, u.ID, u.Email, u.Name, u.Role, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return db.GetUser(ctx, u.ID)
}

func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := db.QueryRowContext(ctx,
		`SELECT id, email, name, role, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (db *DB) UpdateUserName(ctx context.Context, id, name string) error {
	result, err := db.ExecContext(ctx, `UPDATE users SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("failed to update user name: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) ListUserIDsByRole(ctx context.Context, role models.Role) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM users WHERE role = ? ORDER BY created_at ASC, id ASC`, role)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by role: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
