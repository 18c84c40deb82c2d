package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dimitrije/teamforge/internal/config"
	"github.com/dimitrije/teamforge/internal/metrics"
	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/internal/provisioner"
	"github.com/dimitrije/teamforge/internal/saga"
	"github.com/dimitrije/teamforge/internal/store"
	"github.com/google/uuid"
)

const (
	sweepBatchSize = 100
	expiryTimeout  = 30 * time.Second
)

// Resolution describes how an invite was settled. AlreadyResolved means
// another caller settled it first and nothing was done.
type Resolution struct {
	Outcome         models.InviteOutcome
	Invite          *models.Invite
	Team            *models.Team
	AlreadyResolved bool
}

// InviteManager issues invites and settles each one exactly once, by
// accept, decline or expiry. Expiry is driven by an in-process timer per
// invite and backed by Sweep over the persisted deadlines.
type InviteManager struct {
	store    TeamRepository
	prov     provisioner.Provisioner
	identity IdentityChecker
	saga     *saga.Coordinator
	retry    retrier
	cfg      config.TeamsConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	stopped bool
}

func NewInviteManager(s TeamRepository, prov provisioner.Provisioner, identity IdentityChecker, coordinator *saga.Coordinator, retry retrier, cfg config.TeamsConfig, m *metrics.Metrics, logger *slog.Logger) *InviteManager {
	return &InviteManager{
		store:    s,
		prov:     prov,
		identity: identity,
		saga:     coordinator,
		retry:    retry,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		timers:   make(map[uuid.UUID]*time.Timer),
	}
}

// Issue records an invite from inviterID to inviteeID on team and starts its
// countdown. team is the caller's snapshot; the store's unique constraint
// on (team, invitee) settles concurrent issues.
func (m *InviteManager) Issue(ctx context.Context, team *models.Team, inviterID, inviteeID string) (*models.Invite, error) {
	// a permitted self invite only exercises delivery; accepting it fails
	self := inviterID == inviteeID
	if self && !m.cfg.AllowSelfInvite {
		return nil, ErrSelfInvite
	}
	if !self && team.HasMember(inviteeID) {
		return nil, ErrAlreadyMember
	}
	if len(team.Members) >= m.cfg.MaxTeamSize {
		return nil, ErrTeamFull.With(fmt.Sprintf("team already has %d members", len(team.Members)), nil)
	}
	if _, ok := team.InviteFor(inviteeID); ok {
		return nil, ErrAlreadyInvited
	}
	if err := requireVerified(ctx, m.identity, inviteeID); err != nil {
		return nil, err
	}
	if !self {
		if err := requireTeamless(ctx, m.store, inviteeID); err != nil {
			return nil, err
		}
	}

	now := m.now()
	inv := &models.Invite{
		TeamID:    team.ID,
		TeamKey:   team.NormalizedName,
		InviterID: inviterID,
		InviteeID: inviteeID,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.cfg.InviteDuration),
	}
	if err := m.store.AddInvite(ctx, inv); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateInvite):
			return nil, ErrAlreadyInvited
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrTeamNotFound
		}
		return nil, unavailable(err)
	}

	m.schedule(inv)
	m.logger.Info("invite issued", "invite_id", inv.ID, "team_id", team.ID, "user_id", inviteeID)
	return inv, nil
}

// Retract withdraws an invite that was never delivered.
func (m *InviteManager) Retract(ctx context.Context, inviteID uuid.UUID) error {
	_, err := m.store.RemoveInvite(ctx, inviteID)
	m.cancel(inviteID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return unavailable(err)
	}
	return nil
}

// Resolve settles an invite. actorID must be the invitee for accept and
// decline and is ignored for expire. The first caller to remove the invite
// wins; everyone else gets a Resolution with AlreadyResolved set.
func (m *InviteManager) Resolve(ctx context.Context, inviteID uuid.UUID, outcome models.InviteOutcome, actorID string) (*Resolution, error) {
	inv, err := m.store.FindInvite(ctx, inviteID)
	if errors.Is(err, store.ErrNotFound) {
		return &Resolution{Outcome: outcome, AlreadyResolved: true}, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}

	if outcome != models.InviteExpire && inv.InviteeID != actorID {
		return nil, ErrNotInvitee
	}
	if outcome != models.InviteExpire && inv.Expired(m.now()) {
		// past its deadline but not yet swept
		outcome = models.InviteExpire
	}
	if outcome == models.InviteAccept {
		if err := requireVerified(ctx, m.identity, actorID); err != nil {
			return nil, err
		}
		if err := requireTeamless(ctx, m.store, actorID); err != nil {
			return nil, err
		}
	}

	removed, err := m.store.RemoveInvite(ctx, inviteID)
	if errors.Is(err, store.ErrNotFound) {
		return &Resolution{Outcome: outcome, AlreadyResolved: true}, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	m.cancel(inviteID)

	res := &Resolution{Outcome: outcome, Invite: removed}
	switch outcome {
	case models.InviteAccept:
		team, err := m.join(ctx, removed)
		if err != nil {
			m.logger.Warn("invite consumed but join failed", "invite_id", inviteID, "user_id", actorID, "error", err)
			return nil, err
		}
		res.Team = team
	case models.InviteDecline:
		m.noticeDecline(ctx, removed)
	case models.InviteExpire:
		m.noticeExpire(ctx, removed)
	}

	m.metrics.InviteResolved(string(outcome))
	m.logger.Info("invite resolved", "invite_id", inviteID, "outcome", outcome, "user_id", removed.InviteeID)
	return res, nil
}

// join adds the invitee to the team and grants channel access, undoing the
// membership if the grant fails.
func (m *InviteManager) join(ctx context.Context, inv *models.Invite) (*models.Team, error) {
	var joined *models.Team

	addMember := saga.Step{
		Name: "add_member",
		Do: func(ctx context.Context) error {
			return m.retry.conditional(ctx, "join", func(ctx context.Context) error {
				cur, err := m.store.FindTeam(ctx, store.TeamQuery{ID: inv.TeamID})
				if errors.Is(err, store.ErrNotFound) {
					return ErrTeamNotFound
				}
				if err != nil {
					return unavailable(err)
				}
				if cur.HasMember(inv.InviteeID) {
					return ErrAlreadyMember
				}
				if len(cur.Members) >= m.cfg.MaxTeamSize {
					return ErrTeamFull
				}

				next := cur.WithMember(inv.InviteeID, m.now())
				if err := m.store.ReplaceTeam(ctx, cur, next); err != nil {
					if errors.Is(err, store.ErrMemberTaken) {
						return ErrAlreadyInTeam
					}
					return stale(err)
				}
				joined = next
				return nil
			})
		},
		Compensate: func(ctx context.Context) error {
			if err := removeMember(ctx, m.store, m.retry, inv.TeamID, inv.InviteeID); err != nil {
				return err
			}
			_, err := syncGrants(ctx, m.store, m.prov, m.retry, inv.TeamID)
			return err
		},
	}

	grant := saga.Step{
		Name: "grant_access",
		Do: func(ctx context.Context) error {
			cur, err := syncGrants(ctx, m.store, m.prov, m.retry, inv.TeamID)
			if err != nil {
				return err
			}
			if cur != nil {
				joined = cur
			}
			return nil
		},
	}

	if err := m.saga.Run(ctx, "join", addMember, grant); err != nil {
		return nil, unavailable(err)
	}

	postNotice(ctx, m.prov, m.logger, joined.TextChannelID, provisioner.Notice{
		Title: "Members++",
		Body:  fmt.Sprintf("<@%s> joined the team.", inv.InviteeID),
	})
	return joined, nil
}

func (m *InviteManager) noticeDecline(ctx context.Context, inv *models.Invite) {
	team, err := m.store.FindTeam(ctx, store.TeamQuery{ID: inv.TeamID})
	if err != nil {
		m.logger.Debug("declined invite has no team to notify", "invite_id", inv.ID, "error", err)
		return
	}
	postNotice(ctx, m.prov, m.logger, team.TextChannelID, provisioner.Notice{
		Title: "Invite Declined",
		Body:  fmt.Sprintf("<@%s> declined the invite.", inv.InviteeID),
	})
}

func (m *InviteManager) noticeExpire(ctx context.Context, inv *models.Invite) {
	err := m.prov.SendDirectNotice(ctx, inv.InviteeID, provisioner.Notice{
		Title: "Invite Expired",
		Body:  fmt.Sprintf("Your invite to join %s has expired.", inv.TeamKey),
	})
	if err != nil {
		m.logger.Warn("failed to send expiry notice", "invite_id", inv.ID, "user_id", inv.InviteeID, "error", err)
	}
}

// Sweep expires one batch of invites whose deadline has passed. It covers
// invites whose timers were lost, for example across a restart.
func (m *InviteManager) Sweep(ctx context.Context) (int, error) {
	invites, err := m.store.ExpiredInvites(ctx, m.now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, inv := range invites {
		res, err := m.Resolve(ctx, inv.ID, models.InviteExpire, "")
		if err != nil {
			m.logger.Error("failed to expire invite", "invite_id", inv.ID, "error", err)
			continue
		}
		if !res.AlreadyResolved {
			expired++
		}
	}
	return expired, nil
}

// Restore re-arms timers for pending invites and expires the overdue ones.
func (m *InviteManager) Restore(ctx context.Context) error {
	pending, err := m.store.PendingInvites(ctx, m.now())
	if err != nil {
		return err
	}
	for i := range pending {
		m.schedule(&pending[i])
	}

	expired, err := m.Sweep(ctx)
	if err != nil {
		return err
	}
	m.logger.Info("invite timers restored", "pending", len(pending), "expired", expired)
	return nil
}

// Stop cancels every countdown. Pending invites stay persisted and are
// picked up by the next Restore or Sweep.
func (m *InviteManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

func (m *InviteManager) schedule(inv *models.Invite) {
	wait := max(inv.ExpiresAt.Sub(m.now()), 0)
	id := inv.ID

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if t, ok := m.timers[id]; ok {
		t.Stop()
	}
	m.timers[id] = time.AfterFunc(wait, func() { m.expire(id) })
}

func (m *InviteManager) cancel(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
}

func (m *InviteManager) expire(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), expiryTimeout)
	defer cancel()

	if _, err := m.Resolve(ctx, id, models.InviteExpire, ""); err != nil {
		m.logger.Error("invite expiry failed, leaving it to the sweep", "invite_id", id, "error", err)
	}
	m.cancel(id)
}

func (m *InviteManager) pendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// requireTeamless fails with ErrAlreadyInTeam if userID belongs to a team.
func requireTeamless(ctx context.Context, s TeamRepository, userID string) error {
	_, err := s.FindTeam(ctx, store.TeamQuery{MemberID: userID})
	switch {
	case err == nil:
		return ErrAlreadyInTeam
	case errors.Is(err, store.ErrNotFound):
		return nil
	}
	return unavailable(err)
}

// removeMember takes userID off the team, promoting a new owner if needed.
// A missing team or member is already the desired state.
func removeMember(ctx context.Context, s TeamRepository, retry retrier, teamID uuid.UUID, userID string) error {
	return retry.conditional(ctx, "remove_member", func(ctx context.Context) error {
		cur, err := s.FindTeam(ctx, store.TeamQuery{ID: teamID})
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !cur.HasMember(userID) {
			return nil
		}
		return stale(s.ReplaceTeam(ctx, cur, cur.WithoutMember(userID)))
	})
}

func requireVerified(ctx context.Context, identity IdentityChecker, userID string) error {
	ok, err := identity.IsVerified(ctx, userID)
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return ErrNotVerified
	}
	return nil
}

func postNotice(ctx context.Context, prov provisioner.Provisioner, logger *slog.Logger, channelID string, notice provisioner.Notice) {
	if err := prov.PostChannelNotice(ctx, channelID, notice); err != nil {
		logger.Warn("failed to post channel notice", "channel_id", channelID, "title", notice.Title, "error", err)
	}
}
