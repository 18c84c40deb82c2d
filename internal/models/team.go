package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type Team struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	OwnerID        string    `json:"owner_id"`
	Members        []Member  `json:"members"`
	TextChannelID  string    `json:"text_channel_id"`
	VoiceChannelID string    `json:"voice_channel_id"`
	CategoryID     string    `json:"category_id"`
	Invites        []Invite  `json:"invites,omitempty"`
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Member is ordered within a team by JoinedAt, oldest first.
type Member struct {
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

func (t *Team) MemberIDs() []string {
	ids := make([]string, len(t.Members))
	for i, m := range t.Members {
		ids[i] = m.UserID
	}
	return ids
}

func (t *Team) HasMember(userID string) bool {
	return slices.ContainsFunc(t.Members, func(m Member) bool { return m.UserID == userID })
}

func (t *Team) IsOwner(userID string) bool {
	return t.OwnerID == userID
}

// InviteFor returns the pending invite addressed to userID, if any.
func (t *Team) InviteFor(userID string) (Invite, bool) {
	for _, inv := range t.Invites {
		if inv.InviteeID == userID {
			return inv, true
		}
	}
	return Invite{}, false
}

// WithoutMember returns a copy with userID removed. When the owner leaves,
// ownership moves to the longest-tenured remaining member.
func (t *Team) WithoutMember(userID string) *Team {
	next := t.Clone()
	next.Members = slices.DeleteFunc(next.Members, func(m Member) bool { return m.UserID == userID })
	if next.OwnerID == userID && len(next.Members) > 0 {
		oldest := next.Members[0]
		for _, m := range next.Members[1:] {
			if m.JoinedAt.Before(oldest.JoinedAt) {
				oldest = m
			}
		}
		next.OwnerID = oldest.UserID
	}
	return next
}

func (t *Team) WithMember(userID string, joinedAt time.Time) *Team {
	next := t.Clone()
	next.Members = append(next.Members, Member{UserID: userID, JoinedAt: joinedAt})
	return next
}

func (t *Team) Clone() *Team {
	c := *t
	c.Members = slices.Clone(t.Members)
	c.Invites = slices.Clone(t.Invites)
	return &c
}
