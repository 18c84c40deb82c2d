package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateTeamRequest struct {
	Name string `json:"name"`
}

type RenameTeamRequest struct {
	Name string `json:"name"`
}

type TeamMemberResponse struct {
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
	Owner    bool      `json:"owner"`
}

type TeamResponse struct {
	ID             uuid.UUID            `json:"id"`
	Name           string               `json:"name"`
	OwnerID        string               `json:"owner_id"`
	Members        []TeamMemberResponse `json:"members"`
	TextChannelID  string               `json:"text_channel_id"`
	VoiceChannelID string               `json:"voice_channel_id"`
	CategoryID     string               `json:"category_id"`
	CreatedAt      time.Time            `json:"created_at"`
}

type LeaveTeamResponse struct {
	Deleted    bool          `json:"deleted"`
	NewOwnerID string        `json:"new_owner_id,omitempty"`
	Team       *TeamResponse `json:"team,omitempty"`
}
