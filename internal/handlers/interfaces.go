package handlers

import (
	"context"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/internal/services"
	"github.com/google/uuid"
)

// TeamServiceInterface defines the methods used by handlers from TeamService
type TeamServiceInterface interface {
	Create(ctx context.Context, requesterID, name string) (*models.Team, error)
	GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error)
	GetTeamByMember(ctx context.Context, userID string) (*models.Team, error)
	Rename(ctx context.Context, requesterID string, teamID uuid.UUID, name string) (*models.Team, error)
	Leave(ctx context.Context, requesterID string, teamID uuid.UUID) (*services.LeaveResult, error)
	Invite(ctx context.Context, requesterID string, teamID uuid.UUID, inviteeID string) (*models.Invite, error)
	Accept(ctx context.Context, actorID string, inviteID uuid.UUID) (*services.Resolution, error)
	Decline(ctx context.Context, actorID string, inviteID uuid.UUID) (*services.Resolution, error)
	HandleAction(ctx context.Context, actorID, raw string) (*services.Resolution, error)
	PendingInvitesForTeam(ctx context.Context, requesterID string, teamID uuid.UUID) ([]models.Invite, error)
	PendingInvitesForUser(ctx context.Context, userID string) ([]models.Invite, error)
	HandleUnverified(ctx context.Context, userID string) (*services.LeaveResult, error)
}

// IdentityServiceInterface defines the methods used by handlers from identity.Service
type IdentityServiceInterface interface {
	MarkVerified(ctx context.Context, p *models.Profile) error
	VerifiedCount(ctx context.Context) (int, error)
}
