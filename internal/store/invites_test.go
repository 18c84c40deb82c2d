package store

import (
	"context"
	"testing"
	"time"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamStore_AddInvite_AssignsTimeOrderedID(t *testing.T) {
	s, mock := setupTeamStore(t)
	ctx := context.Background()
	now := time.Now()
	inv := &models.Invite{
		TeamID:    uuid.New(),
		InviterID: "u1",
		InviteeID: "u2",
		IssuedAt:  now,
		ExpiresAt: now.Add(15 * time.Minute),
	}

	mock.ExpectExec(`INSERT INTO team_invites`).
		WithArgs(pgxmock.AnyArg(), inv.TeamID, "u1", "u2", inv.IssuedAt, inv.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.AddInvite(ctx, inv))
	assert.Equal(t, uuid.Version(7), inv.ID.Version())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamStore_AddInvite_Duplicate(t *testing.T) {
	s, mock := setupTeamStore(t)
	ctx := context.Background()
	inv := &models.Invite{ID: uuid.New(), TeamID: uuid.New(), InviteeID: "u2"}

	mock.ExpectExec(`INSERT INTO team_invites`).
		WithArgs(inv.ID, inv.TeamID, inv.InviterID, inv.InviteeID, inv.IssuedAt, inv.ExpiresAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "team_invites_team_invitee_key"})

	err := s.AddInvite(ctx, inv)

	assert.ErrorIs(t, err, ErrDuplicateInvite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamStore_AddInvite_TeamGone(t *testing.T) {
	s, mock := setupTeamStore(t)
	ctx := context.Background()
	inv := &models.Invite{ID: uuid.New(), TeamID: uuid.New(), InviteeID: "u2"}

	mock.ExpectExec(`INSERT INTO team_invites`).
		WithArgs(inv.ID, inv.TeamID, inv.InviterID, inv.InviteeID, inv.IssuedAt, inv.ExpiresAt).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "team_invites_team_id_fkey"})

	assert.ErrorIs(t, s.AddInvite(ctx, inv), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamStore_RemoveInvite(t *testing.T) {
	s, mock := setupTeamStore(t)
	ctx := context.Background()
	id := uuid.New()
	teamID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`DELETE FROM team_invites i\s+USING teams t`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(inviteRowColumns).
			AddRow(id, teamID, "night-owls", "u1", "u2", now, now.Add(time.Minute)))

	inv, err := s.RemoveInvite(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, teamID, inv.TeamID)
	assert.Equal(t, "night-owls", inv.TeamKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamStore_RemoveInvite_AlreadyGone(t *testing.T) {
	s, mock := setupTeamStore(t)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectQuery(`DELETE FROM team_invites`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.RemoveInvite(ctx, id)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamStore_ExpiredInvites(t *testing.T) {
	s, mock := setupTeamStore(t)
	ctx := context.Background()
	now := time.Now()
	id := uuid.New()
	teamID := uuid.New()

	mock.ExpectQuery(`WHERE i.expires_at <= \$1\s+ORDER BY i.issued_at, i.id LIMIT 50`).
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows(inviteRowColumns).
			AddRow(id, teamID, "night-owls", "u1", "u2", now.Add(-time.Hour), now.Add(-time.Minute)))

	invites, err := s.ExpiredInvites(ctx, now, 50)

	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.True(t, invites[0].Expired(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamStore_FindInvite_NotFound(t *testing.T) {
	s, mock := setupTeamStore(t)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectQuery(`WHERE i.id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(inviteRowColumns))

	_, err := s.FindInvite(ctx, id)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
