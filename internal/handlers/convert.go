package handlers

import (
	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/internal/services"
	"github.com/dimitrije/teamforge/pkg/dto"
)

func toTeamResponse(t *models.Team) *dto.TeamResponse {
	if t == nil {
		return nil
	}
	members := make([]dto.TeamMemberResponse, len(t.Members))
	for i, m := range t.Members {
		members[i] = dto.TeamMemberResponse{
			UserID:   m.UserID,
			JoinedAt: m.JoinedAt,
			Owner:    t.IsOwner(m.UserID),
		}
	}
	return &dto.TeamResponse{
		ID:             t.ID,
		Name:           t.Name,
		OwnerID:        t.OwnerID,
		Members:        members,
		TextChannelID:  t.TextChannelID,
		VoiceChannelID: t.VoiceChannelID,
		CategoryID:     t.CategoryID,
		CreatedAt:      t.CreatedAt,
	}
}

func toInviteResponse(inv *models.Invite) *dto.InviteResponse {
	if inv == nil {
		return nil
	}
	return &dto.InviteResponse{
		ID:        inv.ID,
		TeamID:    inv.TeamID,
		InviterID: inv.InviterID,
		InviteeID: inv.InviteeID,
		IssuedAt:  inv.IssuedAt,
		ExpiresAt: inv.ExpiresAt,
	}
}

func toInviteResponses(invites []models.Invite) []dto.InviteResponse {
	response := make([]dto.InviteResponse, len(invites))
	for i := range invites {
		response[i] = *toInviteResponse(&invites[i])
	}
	return response
}

func toLeaveResponse(res *services.LeaveResult) *dto.LeaveTeamResponse {
	if res == nil {
		return nil
	}
	return &dto.LeaveTeamResponse{
		Deleted:    res.Deleted,
		NewOwnerID: res.NewOwnerID,
		Team:       toTeamResponse(res.Team),
	}
}

func toResolutionResponse(res *services.Resolution) dto.ResolutionResponse {
	if res.AlreadyResolved {
		return dto.ResolutionResponse{
			Status: "already_resolved",
			Code:   string(services.CodeAlreadyResolved),
		}
	}
	return dto.ResolutionResponse{
		Status:  "resolved",
		Outcome: string(res.Outcome),
		Invite:  toInviteResponse(res.Invite),
		Team:    toTeamResponse(res.Team),
	}
}
