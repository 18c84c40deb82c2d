package services

import (
	"errors"
	"fmt"

	"github.com/dimitrije/teamforge/internal/saga"
)

type Code string

const (
	CodeNameInvalid         Code = "NAME_INVALID"
	CodeNameTaken           Code = "NAME_TAKEN"
	CodeAlreadyInTeam       Code = "ALREADY_IN_TEAM"
	CodeNotInTeam           Code = "NOT_IN_TEAM"
	CodeNotOwner            Code = "NOT_OWNER"
	CodeTeamNotFound        Code = "TEAM_NOT_FOUND"
	CodeTeamFull            Code = "TEAM_FULL"
	CodeSelfInvite          Code = "SELF_INVITE"
	CodeAlreadyMember       Code = "ALREADY_MEMBER"
	CodeAlreadyInvited      Code = "ALREADY_INVITED"
	CodeNotVerified         Code = "NOT_VERIFIED"
	CodeNotInvitee          Code = "NOT_INVITEE"
	CodeAlreadyResolved     Code = "ALREADY_RESOLVED"
	CodeContention          Code = "CONTENTION"
	CodeProvisioningFailed  Code = "PROVISIONING_FAILED"
	CodeNoticeUndeliverable Code = "NOTICE_UNDELIVERABLE"
	CodeNoticeUnavailable   Code = "NOTICE_UNAVAILABLE"
	CodeInvalidAction       Code = "INVALID_ACTION"
	CodeUnavailable         Code = "UNAVAILABLE"
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindContention  Kind = "contention"
	KindUnavailable Kind = "unavailable"
)

// ResultError is the outcome code of a failed team operation. Two
// ResultErrors match under errors.Is when their codes are equal, so callers
// compare against the Err* values below.
type ResultError struct {
	Code    Code
	Kind    Kind
	Message string
	Err     error
}

func (e *ResultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ResultError) Unwrap() error {
	return e.Err
}

func (e *ResultError) Is(target error) bool {
	t, ok := target.(*ResultError)
	return ok && t.Code == e.Code
}

// With returns a copy carrying a specific message and cause.
func (e *ResultError) With(message string, cause error) *ResultError {
	c := *e
	if message != "" {
		c.Message = message
	}
	c.Err = cause
	return &c
}

var (
	ErrNameInvalid         = &ResultError{Code: CodeNameInvalid, Kind: KindValidation, Message: "invalid team name"}
	ErrNameTaken           = &ResultError{Code: CodeNameTaken, Kind: KindConflict, Message: "team name is taken"}
	ErrAlreadyInTeam       = &ResultError{Code: CodeAlreadyInTeam, Kind: KindConflict, Message: "user is already on a team"}
	ErrNotInTeam           = &ResultError{Code: CodeNotInTeam, Kind: KindForbidden, Message: "user is not on this team"}
	ErrNotOwner            = &ResultError{Code: CodeNotOwner, Kind: KindForbidden, Message: "only the team owner can do this"}
	ErrTeamNotFound        = &ResultError{Code: CodeTeamNotFound, Kind: KindNotFound, Message: "team not found"}
	ErrTeamFull            = &ResultError{Code: CodeTeamFull, Kind: KindConflict, Message: "team is full"}
	ErrSelfInvite          = &ResultError{Code: CodeSelfInvite, Kind: KindValidation, Message: "cannot invite yourself"}
	ErrAlreadyMember       = &ResultError{Code: CodeAlreadyMember, Kind: KindConflict, Message: "user is already a member of this team"}
	ErrAlreadyInvited      = &ResultError{Code: CodeAlreadyInvited, Kind: KindConflict, Message: "user already has a pending invite to this team"}
	ErrNotVerified         = &ResultError{Code: CodeNotVerified, Kind: KindForbidden, Message: "user is not verified"}
	ErrNotInvitee          = &ResultError{Code: CodeNotInvitee, Kind: KindForbidden, Message: "invite is addressed to someone else"}
	ErrContention          = &ResultError{Code: CodeContention, Kind: KindContention, Message: "too many concurrent changes, try again"}
	ErrProvisioningFailed  = &ResultError{Code: CodeProvisioningFailed, Kind: KindUnavailable, Message: "could not provision team resources"}
	ErrNoticeUndeliverable = &ResultError{Code: CodeNoticeUndeliverable, Kind: KindConflict, Message: "invitee does not accept direct notices"}
	ErrNoticeUnavailable   = &ResultError{Code: CodeNoticeUnavailable, Kind: KindUnavailable, Message: "could not deliver invite notice, try again"}
	ErrInvalidAction       = &ResultError{Code: CodeInvalidAction, Kind: KindValidation, Message: "invalid invite action"}
	ErrUnavailable         = &ResultError{Code: CodeUnavailable, Kind: KindUnavailable, Message: "a dependency is unavailable, try again"}
)

// Retryable reports whether the same request may succeed if repeated.
func Retryable(err error) bool {
	var re *ResultError
	if !errors.As(err, &re) {
		return false
	}
	return re.Kind == KindContention || re.Kind == KindUnavailable
}

// Degraded reports whether err left a partial state that compensation
// could not undo.
func Degraded(err error) bool {
	return errors.Is(err, saga.ErrDegraded)
}

// unavailable wraps an infrastructure failure so callers see a result code.
// Errors that already carry one pass through.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	var re *ResultError
	if errors.As(err, &re) {
		return err
	}
	return ErrUnavailable.With("", err)
}
