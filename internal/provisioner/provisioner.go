package provisioner

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPermanent failures will not succeed on retry (blocked DMs,
	// unknown user, rejected request).
	ErrPermanent = errors.New("permanent provisioner failure")
	// ErrTransient failures may succeed later (timeouts, rate limits,
	// server errors, unreachable service).
	ErrTransient = errors.New("transient provisioner failure")
)

// Provisioner creates and manages the resources that back a team outside the
// database: a parent per category, a text and voice channel per team, member
// grants on those channels, and notices.
type Provisioner interface {
	CreateParent(ctx context.Context, name string) (string, error)
	DeleteParent(ctx context.Context, parentID string) error
	CreateChannelPair(ctx context.Context, parentID, name string, grants []string) (ChannelPair, error)
	RenameChannelPair(ctx context.Context, pair ChannelPair, name string) error
	DeleteChannelPair(ctx context.Context, pair ChannelPair) error
	SetGrants(ctx context.Context, channelID string, memberIDs []string) error
	SendDirectNotice(ctx context.Context, userID string, notice Notice) error
	PostChannelNotice(ctx context.Context, channelID string, notice Notice) error
}

type ChannelPair struct {
	TextID  string
	VoiceID string
}

type Notice struct {
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Actions []NoticeAction `json:"actions,omitempty"`
}

// NoticeAction is a button on a notice. ID comes back verbatim when the
// recipient presses it.
type NoticeAction struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// VoiceName derives the voice channel name from the team channel name.
func VoiceName(name string) string {
	return name + "-voice"
}

// Error carries the failing operation and its classification.
type Error struct {
	Op     string
	Status int
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provisioner %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("provisioner %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
