package services

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	teamNameChars      = regexp.MustCompile(`^[A-Za-z0-9 -]+$`)
	normalizedTeamName = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
)

// CleanTeamName trims the name and collapses inner whitespace runs.
func CleanTeamName(raw string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(raw, " "))
}

// NormalizeTeamName is the channel-safe form of a name: spaces become
// hyphens and letters are lowercased.
func NormalizeTeamName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

func ValidateTeamName(name string, maxLen int) error {
	switch {
	case name == "":
		return ErrNameInvalid.With("team name is required", nil)
	case len(name) > maxLen:
		return ErrNameInvalid.With(fmt.Sprintf("team name must be at most %d characters", maxLen), nil)
	case !teamNameChars.MatchString(name):
		return ErrNameInvalid.With("team name may only contain letters, digits, spaces and hyphens", nil)
	case !normalizedTeamName.MatchString(NormalizeTeamName(name)):
		return ErrNameInvalid.With("team name cannot start or end with a hyphen or contain empty segments", nil)
	}
	return nil
}
