package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/teamforge/internal/database"
	"github.com/dimitrije/teamforge/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TeamQuery selects a team by exactly one of its fields. The first non-zero
// field wins.
type TeamQuery struct {
	ID             uuid.UUID
	Name           string
	NormalizedName string
	MemberID       string
	OwnerID        string
}

func (q TeamQuery) where() (string, any, error) {
	switch {
	case q.ID != uuid.Nil:
		return "id = $1", q.ID, nil
	case q.Name != "":
		return "name = $1", q.Name, nil
	case q.NormalizedName != "":
		return "normalized_name = $1", q.NormalizedName, nil
	case q.MemberID != "":
		return "id = (SELECT team_id FROM team_members WHERE user_id = $1)", q.MemberID, nil
	case q.OwnerID != "":
		return "owner_id = $1", q.OwnerID, nil
	}
	return "", nil, errors.New("empty team query")
}

const teamColumns = `id, name, normalized_name, owner_id, text_channel_id, voice_channel_id,
		       category_id, version, created_at, updated_at`

func (s *TeamStore) FindTeam(ctx context.Context, q TeamQuery) (*models.Team, error) {
	where, arg, err := q.where()
	if err != nil {
		return nil, err
	}

	var team models.Team
	err = s.exec.QueryRow(ctx, `
		SELECT `+teamColumns+`
		FROM teams WHERE `+where, arg).Scan(
		&team.ID, &team.Name, &team.NormalizedName, &team.OwnerID,
		&team.TextChannelID, &team.VoiceChannelID, &team.CategoryID,
		&team.Version, &team.CreatedAt, &team.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}

	team.Members, err = s.members(ctx, team.ID)
	if err != nil {
		return nil, err
	}

	team.Invites, err = s.listInvites(ctx, `i.team_id = $1`, 0, team.ID)
	if err != nil {
		return nil, err
	}

	return &team, nil
}

func (s *TeamStore) members(ctx context.Context, teamID uuid.UUID) ([]models.Member, error) {
	rows, err := s.exec.Query(ctx, `
		SELECT user_id, joined_at
		FROM team_members WHERE team_id = $1
		ORDER BY joined_at, user_id
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// InsertTeam stores a new team with its members. Unique constraints decide
// availability: a taken name yields ErrNameTaken, a member already on
// another team yields ErrMemberTaken.
func (s *TeamStore) InsertTeam(ctx context.Context, team *models.Team) error {
	if team.ID == uuid.Nil {
		team.ID = uuid.New()
	}

	return s.atomically(ctx, func(exec database.Executor) error {
		err := exec.QueryRow(ctx, `
			INSERT INTO teams (id, name, normalized_name, owner_id, text_channel_id, voice_channel_id, category_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING version, created_at, updated_at
		`, team.ID, team.Name, team.NormalizedName, team.OwnerID,
			team.TextChannelID, team.VoiceChannelID, team.CategoryID,
		).Scan(&team.Version, &team.CreatedAt, &team.UpdatedAt)
		if err != nil {
			return classify(err)
		}

		for _, m := range team.Members {
			if err := insertMember(ctx, exec, team.ID, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceTeam writes next over match only if the stored team is still at
// match.Version. A moved-on or deleted team yields ErrNotFound, and the
// caller re-reads. On success next carries the new version.
func (s *TeamStore) ReplaceTeam(ctx context.Context, match, next *models.Team) error {
	return s.atomically(ctx, func(exec database.Executor) error {
		err := exec.QueryRow(ctx, `
			UPDATE teams
			SET name = $1, normalized_name = $2, owner_id = $3, text_channel_id = $4,
			    voice_channel_id = $5, category_id = $6, version = version + 1, updated_at = NOW()
			WHERE id = $7 AND version = $8
			RETURNING version, updated_at
		`, next.Name, next.NormalizedName, next.OwnerID, next.TextChannelID,
			next.VoiceChannelID, next.CategoryID, match.ID, match.Version,
		).Scan(&next.Version, &next.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return classify(err)
		}

		removed, added := diffMembers(match.Members, next.Members)
		if len(removed) > 0 {
			if _, err := exec.Exec(ctx, `
				DELETE FROM team_members WHERE team_id = $1 AND user_id = ANY($2)
			`, match.ID, removed); err != nil {
				return fmt.Errorf("failed to remove members: %w", err)
			}
		}
		for _, m := range added {
			if err := insertMember(ctx, exec, match.ID, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteTeam removes the team at match.Version together with its members
// and pending invites.
func (s *TeamStore) DeleteTeam(ctx context.Context, match *models.Team) error {
	tag, err := s.exec.Exec(ctx, `DELETE FROM teams WHERE id = $1 AND version = $2`, match.ID, match.Version)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *TeamStore) CountTeams(ctx context.Context) (int, error) {
	var n int
	if err := s.exec.QueryRow(ctx, `SELECT COUNT(*) FROM teams`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", err)
	}
	return n, nil
}

func insertMember(ctx context.Context, exec database.Executor, teamID uuid.UUID, m models.Member) error {
	_, err := exec.Exec(ctx, `
		INSERT INTO team_members (user_id, team_id, joined_at)
		VALUES ($1, $2, $3)
	`, m.UserID, teamID, m.JoinedAt)
	if err != nil {
		return classify(err)
	}
	return nil
}

func diffMembers(before, after []models.Member) (removed []string, added []models.Member) {
	inAfter := make(map[string]struct{}, len(after))
	for _, m := range after {
		inAfter[m.UserID] = struct{}{}
	}
	inBefore := make(map[string]struct{}, len(before))
	for _, m := range before {
		inBefore[m.UserID] = struct{}{}
		if _, ok := inAfter[m.UserID]; !ok {
			removed = append(removed, m.UserID)
		}
	}
	for _, m := range after {
		if _, ok := inBefore[m.UserID]; !ok {
			added = append(added, m)
		}
	}
	return removed, added
}
