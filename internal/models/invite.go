package models

import (
	"time"

	"github.com/google/uuid"
)

type Invite struct {
	ID        uuid.UUID `json:"id"`
	TeamID    uuid.UUID `json:"team_id"`
	TeamKey   string    `json:"team_key"`
	InviterID string    `json:"inviter_id"`
	InviteeID string    `json:"invitee_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (i *Invite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

type InviteOutcome string

const (
	InviteAccept  InviteOutcome = "accept"
	InviteDecline InviteOutcome = "decline"
	InviteExpire  InviteOutcome = "expire"
)
