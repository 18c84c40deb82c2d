package services

import (
	"context"
	"time"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/internal/store"
	"github.com/google/uuid"
)

// TeamRepository is the slice of the team store the core depends on.
// *store.TeamStore satisfies it through NewTeamRepository.
type TeamRepository interface {
	FindTeam(ctx context.Context, q store.TeamQuery) (*models.Team, error)
	InsertTeam(ctx context.Context, team *models.Team) error
	ReplaceTeam(ctx context.Context, match, next *models.Team) error
	DeleteTeam(ctx context.Context, match *models.Team) error

	AddInvite(ctx context.Context, inv *models.Invite) error
	RemoveInvite(ctx context.Context, id uuid.UUID) (*models.Invite, error)
	FindInvite(ctx context.Context, id uuid.UUID) (*models.Invite, error)
	InvitesForInvitee(ctx context.Context, inviteeID string) ([]models.Invite, error)
	ExpiredInvites(ctx context.Context, now time.Time, limit int) ([]models.Invite, error)
	PendingInvites(ctx context.Context, now time.Time) ([]models.Invite, error)

	FindCategory(ctx context.Context, id string) (*models.Category, error)
	FindUnfilledCategory(ctx context.Context, capacity int) (*models.Category, error)
	InsertCategory(ctx context.Context, c *models.Category) error
	ReplaceCategory(ctx context.Context, match, next *models.Category) error
	CountCategories(ctx context.Context) (int, error)
	ReconcileCategoryCounts(ctx context.Context, quiet time.Duration) ([]store.CategoryCorrection, error)

	RunInSession(ctx context.Context, fn func(ctx context.Context, session TeamRepository) error) error
}

type teamRepository struct {
	*store.TeamStore
}

func NewTeamRepository(s *store.TeamStore) TeamRepository {
	return teamRepository{s}
}

func (r teamRepository) RunInSession(ctx context.Context, fn func(ctx context.Context, session TeamRepository) error) error {
	return r.TeamStore.RunInSession(ctx, func(ctx context.Context, s *store.TeamStore) error {
		return fn(ctx, teamRepository{s})
	})
}
