package services

import (
	"context"
	"errors"
	"slices"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/internal/provisioner"
	"github.com/dimitrije/teamforge/internal/saga"
	"github.com/dimitrije/teamforge/internal/store"
	"github.com/google/uuid"
)

// syncGrants pushes the team's current members to both of its channels. The
// provisioner replaces grants wholesale, so after pushing it re-reads the
// team and pushes again if membership moved in the meantime. The last push
// for any team therefore carries a committed member list.
//
// A team that no longer exists has nothing to grant and yields nil.
func syncGrants(ctx context.Context, s TeamRepository, prov provisioner.Provisioner, retry retrier, teamID uuid.UUID) (*models.Team, error) {
	var synced *models.Team

	err := retry.conditional(ctx, "sync_grants", func(ctx context.Context) error {
		cur, err := s.FindTeam(ctx, store.TeamQuery{ID: teamID})
		if errors.Is(err, store.ErrNotFound) {
			synced = nil
			return nil
		}
		if err != nil {
			return unavailable(err)
		}

		members := cur.MemberIDs()
		if err := pushGrants(ctx, prov, cur, members); err != nil {
			return ErrProvisioningFailed.With("could not update channel access", err)
		}

		check, err := s.FindTeam(ctx, store.TeamQuery{ID: teamID})
		if errors.Is(err, store.ErrNotFound) {
			synced = nil
			return nil
		}
		if err != nil {
			return unavailable(err)
		}
		if !slices.Equal(check.MemberIDs(), members) {
			return errStale
		}
		synced = cur
		return nil
	})
	return synced, err
}

func pushGrants(ctx context.Context, prov provisioner.Provisioner, team *models.Team, memberIDs []string) error {
	_, err := saga.Parallel(ctx,
		saga.Action{Name: "text", Fn: func(ctx context.Context) error {
			return prov.SetGrants(ctx, team.TextChannelID, memberIDs)
		}},
		saga.Action{Name: "voice", Fn: func(ctx context.Context) error {
			return prov.SetGrants(ctx, team.VoiceChannelID, memberIDs)
		}},
	)
	return err
}
