package dto

type VerifyUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type UnverifiedResponse struct {
	LeftTeam bool               `json:"left_team"`
	Leave    *LeaveTeamResponse `json:"leave,omitempty"`
}

type VerifiedCountResponse struct {
	Count int `json:"count"`
}
