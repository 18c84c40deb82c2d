package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const inviteColumns = `i.id, i.team_id, t.normalized_name, i.inviter_id, i.invitee_id, i.issued_at, i.expires_at`

// AddInvite stores a pending invite. A second pending invite for the same
// (team, invitee) yields ErrDuplicateInvite; a vanished team ErrNotFound.
func (s *TeamStore) AddInvite(ctx context.Context, inv *models.Invite) error {
	if inv.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate invite id: %w", err)
		}
		inv.ID = id
	}

	_, err := s.exec.Exec(ctx, `
		INSERT INTO team_invites (id, team_id, inviter_id, invitee_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, inv.ID, inv.TeamID, inv.InviterID, inv.InviteeID, inv.IssuedAt, inv.ExpiresAt)
	if err != nil {
		return classify(err)
	}
	return nil
}

// RemoveInvite deletes a pending invite and returns it. Only one caller can
// ever receive the row; every other caller gets ErrNotFound.
func (s *TeamStore) RemoveInvite(ctx context.Context, id uuid.UUID) (*models.Invite, error) {
	var inv models.Invite
	err := s.exec.QueryRow(ctx, `
		DELETE FROM team_invites i
		USING teams t
		WHERE i.id = $1 AND t.id = i.team_id
		RETURNING `+inviteColumns, id).Scan(
		&inv.ID, &inv.TeamID, &inv.TeamKey, &inv.InviterID, &inv.InviteeID, &inv.IssuedAt, &inv.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to remove invite: %w", err)
	}
	return &inv, nil
}

func (s *TeamStore) FindInvite(ctx context.Context, id uuid.UUID) (*models.Invite, error) {
	invites, err := s.listInvites(ctx, `i.id = $1`, 0, id)
	if err != nil {
		return nil, err
	}
	if len(invites) == 0 {
		return nil, ErrNotFound
	}
	return &invites[0], nil
}

func (s *TeamStore) InvitesForInvitee(ctx context.Context, inviteeID string) ([]models.Invite, error) {
	return s.listInvites(ctx, `i.invitee_id = $1`, 0, inviteeID)
}

// ExpiredInvites lists at most limit invites whose deadline is at or before now.
func (s *TeamStore) ExpiredInvites(ctx context.Context, now time.Time, limit int) ([]models.Invite, error) {
	return s.listInvites(ctx, `i.expires_at <= $1`, limit, now)
}

// PendingInvites lists invites still running at now.
func (s *TeamStore) PendingInvites(ctx context.Context, now time.Time) ([]models.Invite, error) {
	return s.listInvites(ctx, `i.expires_at > $1`, 0, now)
}

func (s *TeamStore) listInvites(ctx context.Context, where string, limit int, args ...any) ([]models.Invite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM team_invites i
		JOIN teams t ON t.id = i.team_id
		WHERE ` + where + `
		ORDER BY i.issued_at, i.id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []models.Invite
	for rows.Next() {
		var inv models.Invite
		if err := rows.Scan(
			&inv.ID, &inv.TeamID, &inv.TeamKey, &inv.InviterID, &inv.InviteeID, &inv.IssuedAt, &inv.ExpiresAt,
		); err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}
