package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dimitrije/teamforge/internal/config"
	"github.com/dimitrije/teamforge/internal/logging"
	"github.com/dimitrije/teamforge/internal/metrics"
	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/internal/provisioner"
	"github.com/dimitrije/teamforge/internal/saga"
	"github.com/dimitrije/teamforge/internal/store"
	"github.com/google/uuid"
)

const (
	stepTimeout          = 15 * time.Second
	retryInitialInterval = 10 * time.Millisecond
	noticeInitialBackoff = 100 * time.Millisecond
)

// IdentityChecker answers whether a user is verified. *identity.Service
// satisfies it.
type IdentityChecker interface {
	IsVerified(ctx context.Context, userID string) (bool, error)
	Unverify(ctx context.Context, userID string) (bool, error)
}

// LeaveResult reports what a departure did to the team. Team is nil when
// the last member left and the team was deleted.
type LeaveResult struct {
	Team       *models.Team
	Deleted    bool
	NewOwnerID string
}

// TeamService runs the team lifecycle. Every operation that touches both the
// database and the provisioner runs as a saga.
type TeamService struct {
	store      TeamRepository
	prov       provisioner.Provisioner
	identity   IdentityChecker
	saga       *saga.Coordinator
	categories *CategoryAllocator
	invites    *InviteManager
	retry      retrier
	cfg        config.TeamsConfig
	logger     *slog.Logger

	noticeBackoff time.Duration
}

func NewTeamService(s TeamRepository, prov provisioner.Provisioner, identity IdentityChecker, cfg config.TeamsConfig, m *metrics.Metrics, logger *slog.Logger) *TeamService {
	logger = logging.OrDefault(logger)
	retry := retrier{attempts: cfg.RetryAttempts, initial: retryInitialInterval, metrics: m, logger: logger}
	coordinator := saga.NewCoordinator(logger, m, stepTimeout)

	return &TeamService{
		store:         s,
		prov:          prov,
		identity:      identity,
		saga:          coordinator,
		categories:    NewCategoryAllocator(s, prov, cfg.TeamsPerCategory, cfg.CategoryBaseName, retry, logger),
		invites:       NewInviteManager(s, prov, identity, coordinator, retry, cfg, m, logger),
		retry:         retry,
		cfg:           cfg,
		logger:        logger,
		noticeBackoff: noticeInitialBackoff,
	}
}

func (s *TeamService) Invites() *InviteManager {
	return s.invites
}

// Create makes requesterID the owner and sole member of a new team named
// rawName. The category slot, the channel pair and the team row are
// acquired in that order and released in reverse if a later one fails.
func (s *TeamService) Create(ctx context.Context, requesterID, rawName string) (*models.Team, error) {
	name := CleanTeamName(rawName)
	if err := ValidateTeamName(name, s.cfg.MaxNameLength); err != nil {
		return nil, err
	}
	if err := requireVerified(ctx, s.identity, requesterID); err != nil {
		return nil, err
	}
	if err := requireTeamless(ctx, s.store, requesterID); err != nil {
		return nil, err
	}

	normalized := NormalizeTeamName(name)
	if _, err := s.store.FindTeam(ctx, store.TeamQuery{NormalizedName: normalized}); err == nil {
		return nil, ErrNameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, unavailable(err)
	}

	var (
		category *models.Category
		pair     provisioner.ChannelPair
		team     *models.Team
	)

	err := s.saga.Run(ctx, "create",
		saga.Step{
			Name: "allocate_category",
			Do: func(ctx context.Context) error {
				c, err := s.categories.Reserve(ctx)
				category = c
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.categories.RecordTeamRemoved(ctx, category.ID)
			},
		},
		saga.Step{
			Name: "provision_channels",
			Do: func(ctx context.Context) error {
				p, err := s.prov.CreateChannelPair(ctx, category.ID, normalized, []string{requesterID})
				if err != nil {
					return ErrProvisioningFailed.With("could not create team channels", err)
				}
				pair = p
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.prov.DeleteChannelPair(ctx, pair)
			},
		},
		saga.Step{
			Name: "persist",
			Do: func(ctx context.Context) error {
				now := time.Now()
				t := &models.Team{
					Name:           name,
					NormalizedName: normalized,
					OwnerID:        requesterID,
					Members:        []models.Member{{UserID: requesterID, JoinedAt: now}},
					TextChannelID:  pair.TextID,
					VoiceChannelID: pair.VoiceID,
					CategoryID:     category.ID,
				}
				if err := s.store.InsertTeam(ctx, t); err != nil {
					switch {
					case errors.Is(err, store.ErrNameTaken):
						return ErrNameTaken
					case errors.Is(err, store.ErrMemberTaken):
						return ErrAlreadyInTeam
					}
					return unavailable(err)
				}
				team = t
				return nil
			},
		},
	)
	if err != nil {
		return nil, unavailable(err)
	}

	s.logger.Info("team created", "team_id", team.ID, "name", team.Name, "user_id", requesterID, "category_id", category.ID)
	return team, nil
}

// Invite issues an invite and delivers it to the invitee as a direct notice
// with accept and decline actions. An invite that cannot be delivered is
// retracted.
func (s *TeamService) Invite(ctx context.Context, requesterID string, teamID uuid.UUID, inviteeID string) (*models.Invite, error) {
	team, err := s.findTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !team.HasMember(requesterID) {
		return nil, ErrNotInTeam
	}
	if s.cfg.OwnerOnly && !team.IsOwner(requesterID) {
		return nil, ErrNotOwner
	}
	if err := requireVerified(ctx, s.identity, requesterID); err != nil {
		return nil, err
	}

	inv, err := s.invites.Issue(ctx, team, requesterID, inviteeID)
	if err != nil {
		return nil, err
	}

	if err := s.deliver(ctx, team, inv); err != nil {
		if rerr := s.invites.Retract(context.WithoutCancel(ctx), inv.ID); rerr != nil {
			s.logger.Error("failed to retract undelivered invite", "invite_id", inv.ID, "error", rerr)
		}
		if provisioner.IsPermanent(err) {
			return nil, ErrNoticeUndeliverable.With("", err)
		}
		return nil, ErrNoticeUnavailable.With("", err)
	}
	return inv, nil
}

// deliver sends the invite notice, retrying transient failures.
func (s *TeamService) deliver(ctx context.Context, team *models.Team, inv *models.Invite) error {
	notice := provisioner.Notice{
		Title: "Team Invite",
		Body: fmt.Sprintf("<@%s> invited you to join %s. The invite expires <t:%d:R>.",
			inv.InviterID, team.Name, inv.ExpiresAt.Unix()),
		Actions: []provisioner.NoticeAction{
			{ID: AcceptInvite{InviteRef{ID: inv.ID}}.Encode(), Label: "Accept"},
			{ID: DeclineInvite{InviteRef{ID: inv.ID}}.Encode(), Label: "Decline"},
		},
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.noticeBackoff),
		backoff.WithMaxInterval(2*time.Second),
	), uint64(max(s.cfg.RetryAttempts-1, 0))), ctx)

	return backoff.RetryNotify(func() error {
		err := s.prov.SendDirectNotice(ctx, inv.InviteeID, notice)
		if provisioner.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		s.logger.Warn("invite notice failed, retrying", "invite_id", inv.ID, "retry_in", wait, "error", err)
	})
}

func (s *TeamService) Accept(ctx context.Context, actorID string, inviteID uuid.UUID) (*Resolution, error) {
	return s.invites.Resolve(ctx, inviteID, models.InviteAccept, actorID)
}

func (s *TeamService) Decline(ctx context.Context, actorID string, inviteID uuid.UUID) (*Resolution, error) {
	return s.invites.Resolve(ctx, inviteID, models.InviteDecline, actorID)
}

// Leave takes requesterID off the team. The last member leaving deletes the
// team and its channels. Otherwise the member's grants are revoked and, if
// the owner left, the longest-tenured remaining member becomes owner.
func (s *TeamService) Leave(ctx context.Context, requesterID string, teamID uuid.UUID) (*LeaveResult, error) {
	var before, after *models.Team

	removal := saga.Step{
		Name: "remove_member",
		Do: func(ctx context.Context) error {
			return s.retry.conditional(ctx, "leave", func(ctx context.Context) error {
				cur, err := s.findTeam(ctx, teamID)
				if err != nil {
					return err
				}
				if !cur.HasMember(requesterID) {
					return ErrNotInTeam
				}
				before, after = cur, nil

				if len(cur.Members) == 1 {
					return s.deleteTeam(ctx, cur)
				}
				next := cur.WithoutMember(requesterID)
				if err := s.store.ReplaceTeam(ctx, cur, next); err != nil {
					return stale(err)
				}
				after = next
				return nil
			})
		},
		Compensate: func(ctx context.Context) error {
			// a deleted team is never restored; its channels roll forward
			if after == nil {
				return nil
			}
			if err := s.restoreMember(ctx, before, requesterID); err != nil {
				return err
			}
			_, err := syncGrants(ctx, s.store, s.prov, s.retry, teamID)
			return err
		},
	}

	revoke := saga.Step{
		Name: "revoke_access",
		Do: func(ctx context.Context) error {
			if after == nil {
				return nil
			}
			_, err := syncGrants(ctx, s.store, s.prov, s.retry, teamID)
			return err
		},
	}

	if err := s.saga.Run(ctx, "leave", removal, revoke); err != nil {
		return nil, unavailable(err)
	}

	if after == nil {
		for _, inv := range before.Invites {
			s.invites.cancel(inv.ID)
		}
		s.logger.Info("team deleted", "team_id", before.ID, "user_id", requesterID)
		if err := s.releaseChannels(ctx, before); err != nil {
			return nil, err
		}
		return &LeaveResult{Deleted: true}, nil
	}

	res := &LeaveResult{Team: after}
	body := fmt.Sprintf("<@%s> left the team.", requesterID)
	if after.OwnerID != before.OwnerID {
		res.NewOwnerID = after.OwnerID
		body += fmt.Sprintf(" <@%s> is the new owner.", after.OwnerID)
	}
	postNotice(ctx, s.prov, s.logger, after.TextChannelID, provisioner.Notice{Title: "Member Left", Body: body})

	s.logger.Info("member left team", "team_id", after.ID, "user_id", requesterID, "owner_id", after.OwnerID)
	return res, nil
}

// deleteTeam removes the team row and frees its category slot in one
// transaction.
func (s *TeamService) deleteTeam(ctx context.Context, team *models.Team) error {
	return s.store.RunInSession(ctx, func(ctx context.Context, session TeamRepository) error {
		if err := session.DeleteTeam(ctx, team); err != nil {
			return stale(err)
		}
		return s.categories.WithStore(session).RecordTeamRemoved(ctx, team.CategoryID)
	})
}

// releaseChannels deletes the channel pair of a team whose row is already
// gone. Deletes are idempotent and retried. Channels that outlive every
// attempt are reported as a degraded result naming them.
func (s *TeamService) releaseChannels(ctx context.Context, team *models.Team) error {
	ctx = context.WithoutCancel(ctx)
	pair := channelPair(team)

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.noticeBackoff),
		backoff.WithMaxInterval(2*time.Second),
	), uint64(max(s.cfg.RetryAttempts-1, 0)))

	err := backoff.RetryNotify(func() error {
		err := s.prov.DeleteChannelPair(ctx, pair)
		if provisioner.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		s.logger.Warn("channel release failed, retrying", "team_id", team.ID, "retry_in", wait, "error", err)
	})
	if err == nil {
		return nil
	}

	s.logger.Error("team deleted but channels remain",
		"team_id", team.ID, "text_channel_id", pair.TextID, "voice_channel_id", pair.VoiceID, "error", err)
	cause := ErrProvisioningFailed.With(
		fmt.Sprintf("team deleted but channels %s and %s were not released", pair.TextID, pair.VoiceID), err)
	return &saga.DegradedError{
		Saga:     "leave",
		Step:     "release_channels",
		Cause:    cause,
		Failures: []saga.CompensationResult{{Step: "release_channels", Err: err}},
	}
}

// restoreMember re-adds userID with their original join time and gives back
// ownership if it moved when they left.
func (s *TeamService) restoreMember(ctx context.Context, before *models.Team, userID string) error {
	joinedAt := time.Now()
	for _, m := range before.Members {
		if m.UserID == userID {
			joinedAt = m.JoinedAt
		}
	}

	return s.retry.conditional(ctx, "restore_member", func(ctx context.Context) error {
		cur, err := s.store.FindTeam(ctx, store.TeamQuery{ID: before.ID})
		if err != nil {
			return err
		}
		if cur.HasMember(userID) {
			return nil
		}
		next := cur.WithMember(userID, joinedAt)
		if before.IsOwner(userID) {
			next.OwnerID = userID
		}
		return stale(s.store.ReplaceTeam(ctx, cur, next))
	})
}

// Rename changes the team's display name and its channel names together.
// If the channels cannot be renamed the display name is reverted.
func (s *TeamService) Rename(ctx context.Context, requesterID string, teamID uuid.UUID, rawName string) (*models.Team, error) {
	name := CleanTeamName(rawName)
	if err := ValidateTeamName(name, s.cfg.MaxNameLength); err != nil {
		return nil, err
	}
	normalized := NormalizeTeamName(name)

	team, err := s.findTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !team.HasMember(requesterID) {
		return nil, ErrNotInTeam
	}
	if s.cfg.OwnerOnly && !team.IsOwner(requesterID) {
		return nil, ErrNotOwner
	}
	if team.Name == name {
		return nil, ErrNameTaken.With("team already has this name", nil)
	}

	var before, renamed *models.Team

	update := saga.Step{
		Name: "update_team",
		Do: func(ctx context.Context) error {
			return s.retry.conditional(ctx, "rename", func(ctx context.Context) error {
				cur, err := s.findTeam(ctx, teamID)
				if err != nil {
					return err
				}
				next := cur.Clone()
				next.Name = name
				next.NormalizedName = normalized
				if err := s.store.ReplaceTeam(ctx, cur, next); err != nil {
					if errors.Is(err, store.ErrNameTaken) {
						return ErrNameTaken
					}
					return stale(err)
				}
				before, renamed = cur, next
				return nil
			})
		},
		Compensate: func(ctx context.Context) error {
			return s.retry.conditional(ctx, "rename_revert", func(ctx context.Context) error {
				cur, err := s.store.FindTeam(ctx, store.TeamQuery{ID: teamID})
				if err != nil {
					return err
				}
				if cur.Name != name {
					return nil
				}
				next := cur.Clone()
				next.Name = before.Name
				next.NormalizedName = before.NormalizedName
				return stale(s.store.ReplaceTeam(ctx, cur, next))
			})
		},
	}

	channels := saga.Step{
		Name: "rename_channels",
		Do: func(ctx context.Context) error {
			if err := s.prov.RenameChannelPair(ctx, channelPair(before), normalized); err != nil {
				return ErrProvisioningFailed.With("could not rename team channels", err)
			}
			return nil
		},
		Compensate: func(ctx context.Context) error {
			return s.prov.RenameChannelPair(ctx, channelPair(before), before.NormalizedName)
		},
		CompensateOnFailure: true,
	}

	if err := s.saga.Run(ctx, "rename", update, channels); err != nil {
		return nil, unavailable(err)
	}

	s.logger.Info("team renamed", "team_id", teamID, "from", before.Name, "to", renamed.Name)
	return renamed, nil
}

func (s *TeamService) GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	return s.findTeam(ctx, teamID)
}

func (s *TeamService) GetTeamByMember(ctx context.Context, userID string) (*models.Team, error) {
	team, err := s.store.FindTeam(ctx, store.TeamQuery{MemberID: userID})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotInTeam.With("user is not on a team", nil)
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return team, nil
}

// PendingInvitesForTeam lists the team's open invites. Only members may
// see them.
func (s *TeamService) PendingInvitesForTeam(ctx context.Context, requesterID string, teamID uuid.UUID) ([]models.Invite, error) {
	team, err := s.findTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !team.HasMember(requesterID) {
		return nil, ErrNotInTeam
	}
	return team.Invites, nil
}

func (s *TeamService) PendingInvitesForUser(ctx context.Context, userID string) ([]models.Invite, error) {
	invites, err := s.store.InvitesForInvitee(ctx, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	return invites, nil
}

// HandleUnverified drops the user's verification and takes them off their
// team, if they are on one.
func (s *TeamService) HandleUnverified(ctx context.Context, userID string) (*LeaveResult, error) {
	if _, err := s.identity.Unverify(ctx, userID); err != nil {
		return nil, unavailable(err)
	}

	team, err := s.store.FindTeam(ctx, store.TeamQuery{MemberID: userID})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}

	s.logger.Info("unverified user leaving team", "user_id", userID, "team_id", team.ID)
	return s.Leave(ctx, userID, team.ID)
}

func (s *TeamService) findTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	team, err := s.store.FindTeam(ctx, store.TeamQuery{ID: teamID})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return team, nil
}

func channelPair(t *models.Team) provisioner.ChannelPair {
	return provisioner.ChannelPair{TextID: t.TextChannelID, VoiceID: t.VoiceChannelID}
}
