package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/teamforge/internal/database"
	"github.com/dimitrije/teamforge/internal/models"
	"github.com/jackc/pgx/v5"
)

var ErrNotVerified = errors.New("user has no verified identity")

// Directory is the persistent record of verified users.
type Directory struct {
	db *database.DB
}

func NewDirectory(db *database.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) IsVerified(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := d.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM verified_users WHERE user_id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check verification: %w", err)
	}
	return exists, nil
}

func (d *Directory) VerifiedProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := d.db.Pool.QueryRow(ctx, `
		SELECT user_id, email, display_name, verified_at
		FROM verified_users WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.Email, &p.DisplayName, &p.VerifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotVerified
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &p, nil
}

func (d *Directory) MarkVerified(ctx context.Context, p *models.Profile) error {
	err := d.db.Pool.QueryRow(ctx, `
		INSERT INTO verified_users (user_id, email, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email, display_name = EXCLUDED.display_name
		RETURNING verified_at
	`, p.UserID, p.Email, p.DisplayName).Scan(&p.VerifiedAt)
	if err != nil {
		return fmt.Errorf("failed to mark verified: %w", err)
	}
	return nil
}

// Unverify removes the user's verification and reports whether one existed.
func (d *Directory) Unverify(ctx context.Context, userID string) (bool, error) {
	tag, err := d.db.Pool.Exec(ctx, `DELETE FROM verified_users WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to unverify: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (d *Directory) CountVerified(ctx context.Context) (int, error) {
	var n int
	if err := d.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM verified_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count verified users: %w", err)
	}
	return n, nil
}
