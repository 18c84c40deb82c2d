package testutil

import (
	"context"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockTeamService mocks the TeamService
type MockTeamService struct {
	mock.Mock
}

func (m *MockTeamService) Create(ctx context.Context, requesterID, name string) (*models.Team, error) {
	args := m.Called(ctx, requesterID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Team), args.Error(1)
}

func (m *MockTeamService) GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Team), args.Error(1)
}

func (m *MockTeamService) GetTeamByMember(ctx context.Context, userID string) (*models.Team, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Team), args.Error(1)
}

func (m *MockTeamService) Rename(ctx context.Context, requesterID string, teamID uuid.UUID, name string) (*models.Team, error) {
	args := m.Called(ctx, requesterID, teamID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Team), args.Error(1)
}

func (m *MockTeamService) Leave(ctx context.Context, requesterID string, teamID uuid.UUID) (*services.LeaveResult, error) {
	args := m.Called(ctx, requesterID, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LeaveResult), args.Error(1)
}

func (m *MockTeamService) Invite(ctx context.Context, requesterID string, teamID uuid.UUID, inviteeID string) (*models.Invite, error) {
	args := m.Called(ctx, requesterID, teamID, inviteeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invite), args.Error(1)
}

func (m *MockTeamService) Accept(ctx context.Context, actorID string, inviteID uuid.UUID) (*services.Resolution, error) {
	args := m.Called(ctx, actorID, inviteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Resolution), args.Error(1)
}

func (m *MockTeamService) Decline(ctx context.Context, actorID string, inviteID uuid.UUID) (*services.Resolution, error) {
	args := m.Called(ctx, actorID, inviteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Resolution), args.Error(1)
}

func (m *MockTeamService) HandleAction(ctx context.Context, actorID, raw string) (*services.Resolution, error) {
	args := m.Called(ctx, actorID, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Resolution), args.Error(1)
}

func (m *MockTeamService) PendingInvitesForTeam(ctx context.Context, requesterID string, teamID uuid.UUID) ([]models.Invite, error) {
	args := m.Called(ctx, requesterID, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invite), args.Error(1)
}

func (m *MockTeamService) PendingInvitesForUser(ctx context.Context, userID string) ([]models.Invite, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invite), args.Error(1)
}

func (m *MockTeamService) HandleUnverified(ctx context.Context, userID string) (*services.LeaveResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LeaveResult), args.Error(1)
}

// MockIdentityService mocks the identity Service
type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) MarkVerified(ctx context.Context, p *models.Profile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockIdentityService) VerifiedCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
