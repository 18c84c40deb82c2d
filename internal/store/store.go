package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/teamforge/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	ErrNameTaken       = fmt.Errorf("%w: team name taken", ErrConflict)
	ErrMemberTaken     = fmt.Errorf("%w: user already on a team", ErrConflict)
	ErrDuplicateInvite = fmt.Errorf("%w: invite already pending", ErrConflict)
	ErrCategoryExists  = fmt.Errorf("%w: category already exists", ErrConflict)
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// TeamStore persists teams, their members and invites, and categories.
// A TeamStore obtained inside RunInSession issues every call on the
// session's transaction.
type TeamStore struct {
	db   *database.DB
	exec database.Executor
	tx   pgx.Tx
}

func New(db *database.DB) *TeamStore {
	return &TeamStore{db: db, exec: db.Pool}
}

func (s *TeamStore) InSession() bool {
	return s.tx != nil
}

// RunInSession runs fn inside one transaction. The transaction commits only
// if fn returns nil. Nested calls reuse the outer session.
func (s *TeamStore) RunInSession(ctx context.Context, fn func(ctx context.Context, session *TeamStore) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &TeamStore{db: s.db, exec: tx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// atomically runs a multi-statement write. Inside a session the statements
// join the session transaction instead of opening their own.
func (s *TeamStore) atomically(ctx context.Context, fn func(exec database.Executor) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// classify maps constraint violations onto the store's sentinel errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case "teams_name_key", "teams_normalized_name_key":
			return ErrNameTaken
		case "team_members_pkey":
			return ErrMemberTaken
		case "team_invites_team_invitee_key":
			return ErrDuplicateInvite
		case "team_categories_pkey", "team_categories_name_key":
			return ErrCategoryExists
		}
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		return ErrNotFound
	}
	return err
}
