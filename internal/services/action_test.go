package services

import (
	"context"
	"testing"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInviteAction(t *testing.T) {
	id := uuid.New()

	accept, err := ParseInviteAction("invite;accept;" + id.String())
	require.NoError(t, err)
	assert.Equal(t, AcceptInvite{InviteRef{ID: id}}, accept)
	assert.Equal(t, id, accept.Invite())

	decline, err := ParseInviteAction("invite;decline;" + id.String())
	require.NoError(t, err)
	assert.Equal(t, DeclineInvite{InviteRef{ID: id}}, decline)
}

func TestParseInviteAction_RoundTrip(t *testing.T) {
	id := uuid.New()

	for _, action := range []InviteAction{AcceptInvite{InviteRef{ID: id}}, DeclineInvite{InviteRef{ID: id}}} {
		parsed, err := ParseInviteAction(action.Encode())
		require.NoError(t, err)
		assert.Equal(t, action, parsed)
	}
}

func TestParseInviteAction_Invalid(t *testing.T) {
	id := uuid.New().String()

	for _, raw := range []string{
		"",
		"invite",
		"invite;accept",
		"invite;join;" + id,
		"team;accept;" + id,
		"invite;accept;not-a-uuid",
		"invite;accept;" + id + ";extra",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseInviteAction(raw)
			assert.ErrorIs(t, err, ErrInvalidAction)
		})
	}
}

func TestTeamService_HandleAction(t *testing.T) {
	f := setupTeamService(t, testTeamsConfig())
	ctx := context.Background()
	team := f.teamWith(t, "Team", "alice")
	inv, err := f.svc.Invite(ctx, "alice", team.ID, "bob")
	require.NoError(t, err)

	notice := f.prov.DirectNotices("bob")[0]
	res, err := f.svc.HandleAction(ctx, "bob", notice.Actions[1].ID)

	require.NoError(t, err)
	assert.Equal(t, models.InviteDecline, res.Outcome)
	assert.Equal(t, inv.ID, res.Invite.ID)

	_, err = f.svc.HandleAction(ctx, "bob", "invite;maybe;"+inv.ID.String())
	assert.ErrorIs(t, err, ErrInvalidAction)
}
