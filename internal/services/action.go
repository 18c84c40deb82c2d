package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const (
	actionPrefix  = "invite"
	actionAccept  = "accept"
	actionDecline = "decline"
	actionSep     = ";"
)

// InviteAction is a decoded notice button press. The concrete types are
// AcceptInvite and DeclineInvite.
type InviteAction interface {
	Invite() uuid.UUID
	Encode() string
	isInviteAction()
}

type InviteRef struct {
	ID uuid.UUID
}

func (r InviteRef) Invite() uuid.UUID { return r.ID }

type AcceptInvite struct{ InviteRef }

func (a AcceptInvite) Encode() string {
	return strings.Join([]string{actionPrefix, actionAccept, a.ID.String()}, actionSep)
}

func (AcceptInvite) isInviteAction() {}

type DeclineInvite struct{ InviteRef }

func (d DeclineInvite) Encode() string {
	return strings.Join([]string{actionPrefix, actionDecline, d.ID.String()}, actionSep)
}

func (DeclineInvite) isInviteAction() {}

// ParseInviteAction decodes an action id of the form
// "invite;<accept|decline>;<invite id>".
func ParseInviteAction(raw string) (InviteAction, error) {
	parts := strings.Split(raw, actionSep)
	if len(parts) != 3 || parts[0] != actionPrefix {
		return nil, ErrInvalidAction
	}

	id, err := uuid.Parse(parts[2])
	if err != nil {
		return nil, ErrInvalidAction.With("invalid invite id", err)
	}
	ref := InviteRef{ID: id}

	switch parts[1] {
	case actionAccept:
		return AcceptInvite{ref}, nil
	case actionDecline:
		return DeclineInvite{ref}, nil
	}
	return nil, ErrInvalidAction.With("unknown invite action "+parts[1], nil)
}

// HandleAction decodes a button press once and dispatches it.
func (s *TeamService) HandleAction(ctx context.Context, actorID, raw string) (*Resolution, error) {
	action, err := ParseInviteAction(raw)
	if err != nil {
		return nil, err
	}

	switch a := action.(type) {
	case AcceptInvite:
		return s.Accept(ctx, actorID, a.ID)
	case DeclineInvite:
		return s.Decline(ctx, actorID, a.ID)
	}
	return nil, ErrInvalidAction
}
