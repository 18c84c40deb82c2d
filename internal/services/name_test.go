package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTeamName_Accepts(t *testing.T) {
	for _, name := range []string{
		"a",
		"Night Owls",
		"team-7",
		"A B C",
		"123",
		strings.Repeat("x", 32),
	} {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, ValidateTeamName(CleanTeamName(name), 32))
		})
	}
}

func TestValidateTeamName_Rejects(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"too long", strings.Repeat("x", 33)},
		{"underscore", "night_owls"},
		{"punctuation", "owls!"},
		{"unicode", "équipe"},
		{"leading hyphen", "-owls"},
		{"trailing hyphen", "owls-"},
		{"double hyphen", "night--owls"},
		{"space next to hyphen", "night - owls"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTeamName(CleanTeamName(tc.input), 32)
			assert.ErrorIs(t, err, ErrNameInvalid)
		})
	}
}

func TestCleanTeamName(t *testing.T) {
	assert.Equal(t, "Night Owls", CleanTeamName("  Night \t  Owls \n"))
	assert.Equal(t, "", CleanTeamName(" \t "))
}

func TestNormalizeTeamName(t *testing.T) {
	assert.Equal(t, "night-owls", NormalizeTeamName("Night Owls"))
	assert.Equal(t, "team-7", NormalizeTeamName("TEAM-7"))
}

func TestNormalizeTeamName_Idempotent(t *testing.T) {
	for _, name := range []string{"Night Owls", "a b c", "ALREADY-normal", "x", "Mixed Case-Name 9"} {
		once := NormalizeTeamName(name)
		assert.Equal(t, once, NormalizeTeamName(once), name)
	}
}

func TestNormalizeTeamName_ValidNamesStayValid(t *testing.T) {
	for _, name := range []string{"Night Owls", "team-7", "A B C"} {
		normalized := NormalizeTeamName(name)
		assert.NoError(t, ValidateTeamName(normalized, 32), name)
	}
}
