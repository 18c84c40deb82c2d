package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dimitrije/teamforge/internal/database"
	"github.com/google/uuid"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db *database.DB
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// VerifyUsers records each user id as verified
func (f *Fixtures) VerifyUsers(t *testing.T, userIDs ...string) {
	t.Helper()
	ctx := context.Background()

	for _, id := range userIDs {
		_, err := f.db.Pool.Exec(ctx, `
			INSERT INTO verified_users (user_id, email, display_name)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO NOTHING
		`, id, fmt.Sprintf("%s@example.com", id), id)
		if err != nil {
			t.Fatalf("failed to verify user %s: %v", id, err)
		}
	}
}

// BackdateInvite moves an invite's expiry into the past
func (f *Fixtures) BackdateInvite(t *testing.T, inviteID uuid.UUID, by time.Duration) {
	t.Helper()

	_, err := f.db.Pool.Exec(context.Background(), `
		UPDATE team_invites
		SET issued_at = issued_at - make_interval(secs => $2), expires_at = expires_at - make_interval(secs => $2)
		WHERE id = $1
	`, inviteID, by.Seconds())
	if err != nil {
		t.Fatalf("failed to backdate invite: %v", err)
	}
}

// SetCategoryCount overwrites a category's stored team count
func (f *Fixtures) SetCategoryCount(t *testing.T, categoryID string, n int) {
	t.Helper()

	_, err := f.db.Pool.Exec(context.Background(), `
		UPDATE team_categories SET team_count = $2 WHERE id = $1
	`, categoryID, n)
	if err != nil {
		t.Fatalf("failed to set category count: %v", err)
	}
}

// CategoryCount reads a category's stored team count
func (f *Fixtures) CategoryCount(t *testing.T, categoryID string) int {
	t.Helper()

	var n int
	err := f.db.Pool.QueryRow(context.Background(), `
		SELECT team_count FROM team_categories WHERE id = $1
	`, categoryID).Scan(&n)
	if err != nil {
		t.Fatalf("failed to read category count: %v", err)
	}
	return n
}

// Count returns the number of rows in table
func (f *Fixtures) Count(t *testing.T, table string) int {
	t.Helper()

	var n int
	if err := f.db.Pool.QueryRow(context.Background(), fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
