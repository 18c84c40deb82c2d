package dto

import (
	"time"

	"github.com/google/uuid"
)

type InviteMemberRequest struct {
	UserID string `json:"user_id"`
}

type InviteActionRequest struct {
	ActionID string `json:"action_id"`
}

type InviteResponse struct {
	ID        uuid.UUID `json:"id"`
	TeamID    uuid.UUID `json:"team_id"`
	InviterID string    `json:"inviter_id"`
	InviteeID string    `json:"invitee_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResolutionResponse reports how an invite ended. Status is
// "already_resolved" when another resolution got there first.
type ResolutionResponse struct {
	Status  string          `json:"status"`
	Code    string          `json:"code,omitempty"`
	Outcome string          `json:"outcome,omitempty"`
	Invite  *InviteResponse `json:"invite,omitempty"`
	Team    *TeamResponse   `json:"team,omitempty"`
}
