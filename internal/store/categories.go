package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/jackc/pgx/v5"
)

// CategoryCorrection records a team count rewritten by reconciliation.
type CategoryCorrection struct {
	CategoryID string
	Previous   int
	Actual     int
}

func (s *TeamStore) FindCategory(ctx context.Context, id string) (*models.Category, error) {
	return s.scanCategory(s.exec.QueryRow(ctx, `
		SELECT id, name, team_count, created_at
		FROM team_categories WHERE id = $1
	`, id))
}

// FindUnfilledCategory returns the oldest category below capacity.
func (s *TeamStore) FindUnfilledCategory(ctx context.Context, capacity int) (*models.Category, error) {
	return s.scanCategory(s.exec.QueryRow(ctx, `
		SELECT id, name, team_count, created_at
		FROM team_categories
		WHERE team_count < $1
		ORDER BY created_at, id
		LIMIT 1
	`, capacity))
}

func (s *TeamStore) scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.Name, &c.TeamCount, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return &c, nil
}

func (s *TeamStore) InsertCategory(ctx context.Context, c *models.Category) error {
	err := s.exec.QueryRow(ctx, `
		INSERT INTO team_categories (id, name, team_count)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, c.ID, c.Name, c.TeamCount).Scan(&c.CreatedAt)
	if err != nil {
		return classify(err)
	}
	return nil
}

// ReplaceCategory sets next's team count only while the stored count still
// equals match's. A concurrent change yields ErrNotFound.
func (s *TeamStore) ReplaceCategory(ctx context.Context, match, next *models.Category) error {
	tag, err := s.exec.Exec(ctx, `
		UPDATE team_categories SET team_count = $1, updated_at = NOW()
		WHERE id = $2 AND team_count = $3
	`, next.TeamCount, match.ID, match.TeamCount)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *TeamStore) CountCategories(ctx context.Context) (int, error) {
	var n int
	if err := s.exec.QueryRow(ctx, `SELECT COUNT(*) FROM team_categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count categories: %w", err)
	}
	return n, nil
}

// ReconcileCategoryCounts rewrites team_count from the teams table for
// categories untouched for at least quiet. Categories changed more recently
// may have a create or delete in flight and are left alone.
func (s *TeamStore) ReconcileCategoryCounts(ctx context.Context, quiet time.Duration) ([]CategoryCorrection, error) {
	rows, err := s.exec.Query(ctx, `
		WITH actual AS (
			SELECT c.id, c.team_count AS previous, COUNT(t.id)::int AS n
			FROM team_categories c
			LEFT JOIN teams t ON t.category_id = c.id
			WHERE c.updated_at < NOW() - make_interval(secs => $1)
			GROUP BY c.id, c.team_count
		)
		UPDATE team_categories c
		SET team_count = actual.n, updated_at = NOW()
		FROM actual
		WHERE c.id = actual.id AND c.team_count = actual.previous AND actual.previous <> actual.n
		RETURNING c.id, actual.previous, actual.n
	`, quiet.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile categories: %w", err)
	}
	defer rows.Close()

	var corrections []CategoryCorrection
	for rows.Next() {
		var c CategoryCorrection
		if err := rows.Scan(&c.CategoryID, &c.Previous, &c.Actual); err != nil {
			return nil, err
		}
		corrections = append(corrections, c)
	}
	return corrections, rows.Err()
}
