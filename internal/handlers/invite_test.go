package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/internal/services"
	"github.com/dimitrije/teamforge/pkg/dto"
	"github.com/dimitrije/teamforge/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupInviteTest(t *testing.T) (*testutil.MockTeamService, *InviteHandler, *services.JWTService) {
	t.Helper()
	mockTeamService := new(testutil.MockTeamService)
	handler := NewInviteHandler(mockTeamService, nil)
	jwtSvc := services.NewJWTService("test-secret-key", 15*time.Minute)
	return mockTeamService, handler, jwtSvc
}

func TestInviteHandler_Mine(t *testing.T) {
	mockTeamService, handler, jwtSvc := setupInviteTest(t)
	invites := []models.Invite{{ID: uuid.Must(uuid.NewV7()), TeamID: uuid.New(), InviterID: "alice", InviteeID: "bob"}}
	mockTeamService.On("PendingInvitesForUser", mock.Anything, "bob").Return(invites, nil)

	rec := serve(t, jwtSvc, "/me/invites", handler.Mine, http.MethodGet, "/me/invites", "bob", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var response []dto.InviteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response, 1)
	assert.Equal(t, invites[0].ID, response[0].ID)
}

func TestInviteHandler_Accept(t *testing.T) {
	mockTeamService, handler, jwtSvc := setupInviteTest(t)
	team := sampleTeam("alice", "bob")
	inv := &models.Invite{ID: uuid.Must(uuid.NewV7()), TeamID: team.ID, InviterID: "alice", InviteeID: "bob"}
	mockTeamService.On("Accept", mock.Anything, "bob", inv.ID).
		Return(&services.Resolution{Outcome: models.InviteAccept, Invite: inv, Team: team}, nil)

	path := "/invites/" + inv.ID.String() + "/accept"
	rec := serve(t, jwtSvc, "/invites/:inviteId/accept", handler.Accept, http.MethodPost, path, "bob", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var response dto.ResolutionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "resolved", response.Status)
	assert.Equal(t, "accept", response.Outcome)
	require.NotNil(t, response.Team)
	assert.Len(t, response.Team.Members, 2)

	mockTeamService.AssertExpectations(t)
}

func TestInviteHandler_Accept_AlreadyResolved(t *testing.T) {
	mockTeamService, handler, jwtSvc := setupInviteTest(t)
	inviteID := uuid.Must(uuid.NewV7())
	mockTeamService.On("Accept", mock.Anything, "bob", inviteID).Return(&services.Resolution{AlreadyResolved: true}, nil)

	path := "/invites/" + inviteID.String() + "/accept"
	rec := serve(t, jwtSvc, "/invites/:inviteId/accept", handler.Accept, http.MethodPost, path, "bob", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var response dto.ResolutionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "already_resolved", response.Status)
	assert.Equal(t, "ALREADY_RESOLVED", response.Code)
	assert.Nil(t, response.Team)
}

func TestInviteHandler_Accept_Rejected(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
	}{
		{"not invitee", services.ErrNotInvitee, http.StatusForbidden},
		{"team full", services.ErrTeamFull, http.StatusConflict},
		{"already in team", services.ErrAlreadyInTeam, http.StatusConflict},
		{"contention", services.ErrContention, http.StatusServiceUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockTeamService, handler, jwtSvc := setupInviteTest(t)
			inviteID := uuid.Must(uuid.NewV7())
			mockTeamService.On("Accept", mock.Anything, "bob", inviteID).Return(nil, tc.err)

			path := "/invites/" + inviteID.String() + "/accept"
			rec := serve(t, jwtSvc, "/invites/:inviteId/accept", handler.Accept, http.MethodPost, path, "bob", nil)

			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestInviteHandler_Decline(t *testing.T) {
	mockTeamService, handler, jwtSvc := setupInviteTest(t)
	inv := &models.Invite{ID: uuid.Must(uuid.NewV7()), TeamID: uuid.New(), InviterID: "alice", InviteeID: "bob"}
	mockTeamService.On("Decline", mock.Anything, "bob", inv.ID).
		Return(&services.Resolution{Outcome: models.InviteDecline, Invite: inv}, nil)

	path := "/invites/" + inv.ID.String() + "/decline"
	rec := serve(t, jwtSvc, "/invites/:inviteId/decline", handler.Decline, http.MethodPost, path, "bob", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"decline"`)
}

func TestInviteHandler_InvalidInviteID(t *testing.T) {
	_, handler, jwtSvc := setupInviteTest(t)

	rec := serve(t, jwtSvc, "/invites/:inviteId/accept", handler.Accept, http.MethodPost, "/invites/nope/accept", "bob", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid invite id")
}

func TestInviteHandler_Action(t *testing.T) {
	mockTeamService, handler, jwtSvc := setupInviteTest(t)
	inviteID := uuid.Must(uuid.NewV7())
	raw := services.DeclineInvite{InviteRef: services.InviteRef{ID: inviteID}}.Encode()
	mockTeamService.On("HandleAction", mock.Anything, "bob", raw).
		Return(&services.Resolution{Outcome: models.InviteDecline, Invite: &models.Invite{ID: inviteID}}, nil)
	mockTeamService.On("HandleAction", mock.Anything, "bob", "garbage").Return(nil, services.ErrInvalidAction)

	rec := serve(t, jwtSvc, "/invite-actions", handler.Action, http.MethodPost, "/invite-actions", "bob", dto.InviteActionRequest{ActionID: raw})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"decline"`)

	rec = serve(t, jwtSvc, "/invite-actions", handler.Action, http.MethodPost, "/invite-actions", "bob", dto.InviteActionRequest{ActionID: "garbage"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_ACTION")

	mockTeamService.AssertExpectations(t)
}
