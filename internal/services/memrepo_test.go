package services

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/internal/store"
	"github.com/google/uuid"
)

// memRepo is an in-memory TeamRepository with the store's conflict and
// conditional-write semantics.
type memRepo struct {
	mu         sync.Mutex
	session    sync.Mutex
	teams      map[uuid.UUID]*models.Team
	invites    map[uuid.UUID]models.Invite
	categories map[string]*models.Category

	// the next n conditional writes report a lost race
	staleTeamWrites     int
	staleCategoryWrites int
	insertTeamErrs      []error
	insertCategoryErrs  []error
}

func newMemRepo() *memRepo {
	return &memRepo{
		teams:      make(map[uuid.UUID]*models.Team),
		invites:    make(map[uuid.UUID]models.Invite),
		categories: make(map[string]*models.Category),
	}
}

func (r *memRepo) view(t *models.Team) *models.Team {
	c := t.Clone()
	sort.SliceStable(c.Members, func(i, j int) bool { return c.Members[i].JoinedAt.Before(c.Members[j].JoinedAt) })
	c.Invites = nil
	for _, inv := range r.sortedInvites() {
		if inv.TeamID == t.ID {
			c.Invites = append(c.Invites, inv)
		}
	}
	return c
}

func (r *memRepo) sortedInvites() []models.Invite {
	out := make([]models.Invite, 0, len(r.invites))
	for _, inv := range r.invites {
		if t, ok := r.teams[inv.TeamID]; ok {
			inv.TeamKey = t.NormalizedName
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out
}

func (r *memRepo) FindTeam(_ context.Context, q store.TeamQuery) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.teams {
		switch {
		case q.ID != uuid.Nil:
			if t.ID != q.ID {
				continue
			}
		case q.Name != "":
			if t.Name != q.Name {
				continue
			}
		case q.NormalizedName != "":
			if t.NormalizedName != q.NormalizedName {
				continue
			}
		case q.MemberID != "":
			if !t.HasMember(q.MemberID) {
				continue
			}
		case q.OwnerID != "":
			if t.OwnerID != q.OwnerID {
				continue
			}
		}
		return r.view(t), nil
	}
	return nil, store.ErrNotFound
}

// conflicts checks the unique constraints of t against every other team.
func (r *memRepo) conflicts(t *models.Team) error {
	for _, other := range r.teams {
		if other.ID == t.ID {
			continue
		}
		if other.Name == t.Name || other.NormalizedName == t.NormalizedName {
			return store.ErrNameTaken
		}
		for _, m := range t.Members {
			if other.HasMember(m.UserID) {
				return store.ErrMemberTaken
			}
		}
	}
	return nil
}

func (r *memRepo) InsertTeam(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.insertTeamErrs) > 0 {
		err := r.insertTeamErrs[0]
		r.insertTeamErrs = r.insertTeamErrs[1:]
		return err
	}
	if team.ID == uuid.Nil {
		team.ID = uuid.New()
	}
	if _, ok := r.teams[team.ID]; ok {
		return store.ErrConflict
	}
	if err := r.conflicts(team); err != nil {
		return err
	}

	now := time.Now()
	team.Version = 1
	team.CreatedAt, team.UpdatedAt = now, now
	stored := team.Clone()
	stored.Invites = nil
	r.teams[team.ID] = stored
	return nil
}

func (r *memRepo) ReplaceTeam(_ context.Context, match, next *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.staleTeamWrites > 0 {
		r.staleTeamWrites--
		return store.ErrNotFound
	}
	cur, ok := r.teams[match.ID]
	if !ok || cur.Version != match.Version {
		return store.ErrNotFound
	}
	candidate := next.Clone()
	candidate.ID = match.ID
	if err := r.conflicts(candidate); err != nil {
		return err
	}

	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now()
	candidate.Version, candidate.UpdatedAt = next.Version, next.UpdatedAt
	candidate.Invites = nil
	r.teams[match.ID] = candidate
	return nil
}

func (r *memRepo) DeleteTeam(_ context.Context, match *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.teams[match.ID]
	if !ok || cur.Version != match.Version {
		return store.ErrNotFound
	}
	delete(r.teams, match.ID)
	maps.DeleteFunc(r.invites, func(_ uuid.UUID, inv models.Invite) bool { return inv.TeamID == match.ID })
	return nil
}

func (r *memRepo) AddInvite(_ context.Context, inv *models.Invite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.teams[inv.TeamID]; !ok {
		return store.ErrNotFound
	}
	for _, other := range r.invites {
		if other.TeamID == inv.TeamID && other.InviteeID == inv.InviteeID {
			return store.ErrDuplicateInvite
		}
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.Must(uuid.NewV7())
	}
	r.invites[inv.ID] = *inv
	return nil
}

func (r *memRepo) RemoveInvite(_ context.Context, id uuid.UUID) (*models.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.invites[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(r.invites, id)
	if t, ok := r.teams[inv.TeamID]; ok {
		inv.TeamKey = t.NormalizedName
	}
	return &inv, nil
}

func (r *memRepo) FindInvite(_ context.Context, id uuid.UUID) (*models.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, inv := range r.sortedInvites() {
		if inv.ID == id {
			return &inv, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *memRepo) filterInvites(keep func(models.Invite) bool, limit int) []models.Invite {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Invite
	for _, inv := range r.sortedInvites() {
		if keep(inv) {
			out = append(out, inv)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (r *memRepo) InvitesForInvitee(_ context.Context, inviteeID string) ([]models.Invite, error) {
	return r.filterInvites(func(inv models.Invite) bool { return inv.InviteeID == inviteeID }, 0), nil
}

func (r *memRepo) ExpiredInvites(_ context.Context, now time.Time, limit int) ([]models.Invite, error) {
	return r.filterInvites(func(inv models.Invite) bool { return !inv.ExpiresAt.After(now) }, limit), nil
}

func (r *memRepo) PendingInvites(_ context.Context, now time.Time) ([]models.Invite, error) {
	return r.filterInvites(func(inv models.Invite) bool { return inv.ExpiresAt.After(now) }, 0), nil
}

func (r *memRepo) FindCategory(_ context.Context, id string) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) FindUnfilledCategory(_ context.Context, capacity int) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *models.Category
	for _, c := range r.categories {
		if c.TeamCount >= capacity {
			continue
		}
		if best == nil || c.CreatedAt.Before(best.CreatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *memRepo) InsertCategory(_ context.Context, c *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.insertCategoryErrs) > 0 {
		err := r.insertCategoryErrs[0]
		r.insertCategoryErrs = r.insertCategoryErrs[1:]
		return err
	}
	for _, other := range r.categories {
		if other.ID == c.ID || other.Name == c.Name {
			return store.ErrCategoryExists
		}
	}
	c.CreatedAt = time.Now()
	cp := *c
	r.categories[c.ID] = &cp
	return nil
}

func (r *memRepo) ReplaceCategory(_ context.Context, match, next *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.staleCategoryWrites > 0 {
		r.staleCategoryWrites--
		return store.ErrNotFound
	}
	cur, ok := r.categories[match.ID]
	if !ok || cur.TeamCount != match.TeamCount {
		return store.ErrNotFound
	}
	cur.TeamCount = next.TeamCount
	return nil
}

func (r *memRepo) CountCategories(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.categories), nil
}

func (r *memRepo) ReconcileCategoryCounts(context.Context, time.Duration) ([]store.CategoryCorrection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	actual := make(map[string]int)
	for _, t := range r.teams {
		actual[t.CategoryID]++
	}
	var out []store.CategoryCorrection
	for _, id := range slices.Sorted(maps.Keys(r.categories)) {
		c := r.categories[id]
		if c.TeamCount != actual[id] {
			out = append(out, store.CategoryCorrection{CategoryID: id, Previous: c.TeamCount, Actual: actual[id]})
			c.TeamCount = actual[id]
		}
	}
	return out, nil
}

// RunInSession serializes sessions and restores the prior state when fn
// fails.
func (r *memRepo) RunInSession(ctx context.Context, fn func(ctx context.Context, session TeamRepository) error) error {
	r.session.Lock()
	defer r.session.Unlock()

	r.mu.Lock()
	teams := make(map[uuid.UUID]*models.Team, len(r.teams))
	for id, t := range r.teams {
		teams[id] = t.Clone()
	}
	invites := maps.Clone(r.invites)
	categories := make(map[string]*models.Category, len(r.categories))
	for id, c := range r.categories {
		cp := *c
		categories[id] = &cp
	}
	r.mu.Unlock()

	if err := fn(ctx, r); err != nil {
		r.mu.Lock()
		r.teams, r.invites, r.categories = teams, invites, categories
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) teamCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.teams)
}

func (r *memRepo) inviteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invites)
}

func (r *memRepo) category(id string) models.Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.categories[id]; ok {
		return *c
	}
	return models.Category{}
}

// putInvite stores an invite without scheduling a timer.
func (r *memRepo) putInvite(inv models.Invite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invites[inv.ID] = inv
}
