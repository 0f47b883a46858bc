package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"devlend/internal/models"
)

const selectResource = `SELECT id, label, status, daily_rate, image_url, created_at FROM resources`

func scanResource(r rowScanner) (*models.Resource, error) {
	var res models.Resource
	var rate sql.NullInt64
	if err := r.Scan(&res.ID, &res.Label, &res.Status, &rate, &res.ImageURL, &res.CreatedAt); err != nil {
		return nil, err
	}
	if rate.Valid {
		v := rate.Int64
		res.DailyRate = &v
	}
	return &res, nil
}

func queryResources(ctx context.Context, q queryer, query string, args ...any) ([]models.Resource, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *r)
	}
	return res, rows.Err()
}

// ListAvailableResources returns available resources in registry order (ascending id).
func (db *DB) ListAvailableResources(ctx context.Context) ([]models.Resource, error) {
	res, err := queryResources(ctx, db, selectResource+` WHERE status = ? ORDER BY id ASC`, models.ResourceAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to list available resources: %w", err)
	}
	return res, nil
}

// ListResourcesByLabel is the catalogue ordering.
func (db *DB) ListResourcesByLabel(ctx context.Context) ([]models.Resource, error) {
	res, err := queryResources(ctx, db, selectResource+` ORDER BY label COLLATE NOCASE ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalogue: %w", err)
	}
	return res, nil
}

func (db *DB) ListResources(ctx context.Context) ([]models.Resource, error) {
	res, err := queryResources(ctx, db, selectResource+` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return res, nil
}

func (db *DB) GetResource(ctx context.Context, id int64) (*models.Resource, error) {
	res, err := scanResource(db.QueryRowContext(ctx, selectResource+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return res, nil
}

func (db *DB) CreateResource(ctx context.Context, r *models.Resource) error {
	if r.Status == "" {
		r.Status = models.ResourceAvailable
	}
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`INSERT INTO resources (label, status, daily_rate, image_url, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.Label, r.Status, r.DailyRate, r.ImageURL, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	return nil
}

func (db *DB) UpdateResourceStatus(ctx context.Context, id int64, status models.ResourceStatus) error {
	result, err := db.ExecContext(ctx, `UPDATE resources SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update resource status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedResources inserts resources only when the table is empty.
func (db *DB) SeedResources(ctx context.Context, resources []models.Resource) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count resources: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	for i := range resources {
		r := resources[i]
		if err := db.CreateResource(ctx, &r); err != nil {
			return i, err
		}
	}
	return len(resources), nil
}

func (db *DB) ListGames(ctx context.Context, resourceID int64) ([]models.Game, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, resource_id, title, image_url FROM games WHERE resource_id = ? ORDER BY title COLLATE NOCASE ASC, id ASC`,
		resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	games := []models.Game{}
	for rows.Next() {
		var g models.Game
		if err := rows.Scan(&g.ID, &g.ResourceID, &g.Title, &g.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (db *DB) CreateGame(ctx context.Context, g *models.Game) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO games (resource_id, title, image_url) VALUES (?, ?, ?)`,
		g.ResourceID, g.Title, g.ImageURL)
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	g.ID = id
	return nil
}

func (db *DB) DeleteGame(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
