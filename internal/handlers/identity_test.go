package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/internal/services"
	"github.com/dimitrije/teamforge/pkg/dto"
	"github.com/dimitrije/teamforge/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupIdentityTest(t *testing.T) (*testutil.MockTeamService, *testutil.MockIdentityService, *IdentityHandler) {
	t.Helper()
	mockTeamService := new(testutil.MockTeamService)
	mockIdentityService := new(testutil.MockIdentityService)
	return mockTeamService, mockIdentityService, NewIdentityHandler(mockTeamService, mockIdentityService, nil)
}

func TestIdentityHandler_Unverified_LeavesTeam(t *testing.T) {
	mockTeamService, _, handler := setupIdentityTest(t)
	mockTeamService.On("HandleUnverified", mock.Anything, "bob").
		Return(&services.LeaveResult{Team: sampleTeam("alice")}, nil)

	rec := serve(t, testJWT(), "/identity/users/:userId/unverified", handler.Unverified, http.MethodPost, "/identity/users/bob/unverified", "ops", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var response dto.UnverifiedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.True(t, response.LeftTeam)
	require.NotNil(t, response.Leave)
	assert.False(t, response.Leave.Deleted)
}

func TestIdentityHandler_Unverified_NoTeam(t *testing.T) {
	mockTeamService, _, handler := setupIdentityTest(t)
	mockTeamService.On("HandleUnverified", mock.Anything, "bob").Return(nil, nil)

	rec := serve(t, testJWT(), "/identity/users/:userId/unverified", handler.Unverified, http.MethodPost, "/identity/users/bob/unverified", "ops", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var response dto.UnverifiedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.False(t, response.LeftTeam)
	assert.Nil(t, response.Leave)
}

func TestIdentityHandler_Verified(t *testing.T) {
	_, mockIdentityService, handler := setupIdentityTest(t)
	mockIdentityService.On("MarkVerified", mock.Anything, mock.MatchedBy(func(p *models.Profile) bool {
		return p.UserID == "bob" && p.Email == "bob@example.com" && p.DisplayName == "Bob"
	})).Return(nil)

	body := dto.VerifyUserRequest{Email: "bob@example.com", DisplayName: "Bob"}
	rec := serve(t, testJWT(), "/identity/users/:userId/verified", handler.Verified, http.MethodPost, "/identity/users/bob/verified", "ops", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockIdentityService.AssertExpectations(t)
}

func TestIdentityHandler_Count(t *testing.T) {
	_, mockIdentityService, handler := setupIdentityTest(t)
	mockIdentityService.On("VerifiedCount", mock.Anything).Return(7, nil).Once()
	mockIdentityService.On("VerifiedCount", mock.Anything).Return(0, errors.New("db down")).Once()

	rec := serve(t, testJWT(), "/identity/count", handler.Count, http.MethodGet, "/identity/count", "ops", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":7}`, rec.Body.String())

	rec = serve(t, testJWT(), "/identity/count", handler.Count, http.MethodGet, "/identity/count", "ops", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
