package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dimitrije/teamforge/internal/logging"
	"github.com/dimitrije/teamforge/internal/middleware"
	"github.com/dimitrije/teamforge/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type TeamHandler struct {
	teamService TeamServiceInterface
	logger      *slog.Logger
}

func NewTeamHandler(teamService TeamServiceInterface, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{
		teamService: teamService,
		logger:      logging.OrDefault(logger),
	}
}

func (h *TeamHandler) Create(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.CreateTeamRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		c.BadRequest("name is required")
		return
	}

	team, err := h.teamService.Create(c.Request.Context(), userID, req.Name)
	if err != nil {
		respondError(c, h.logger, "create team", err)
		return
	}

	_ = c.JSON(http.StatusCreated, toTeamResponse(team))
}

func (h *TeamHandler) Mine(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.Unauthorized("not authenticated")
		return
	}

	team, err := h.teamService.GetTeamByMember(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "get own team", err)
		return
	}

	_ = c.JSON(http.StatusOK, toTeamResponse(team))
}

func (h *TeamHandler) Get(c *drift.Context) {
	if middleware.GetUserID(c) == "" {
		c.Unauthorized("not authenticated")
		return
	}

	teamID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid team id")
		return
	}

	team, err := h.teamService.GetTeam(c.Request.Context(), teamID)
	if err != nil {
		respondError(c, h.logger, "get team", err)
		return
	}

	_ = c.JSON(http.StatusOK, toTeamResponse(team))
}

func (h *TeamHandler) Rename(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.Unauthorized("not authenticated")
		return
	}

	teamID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid team id")
		return
	}

	var req dto.RenameTeamRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	team, err := h.teamService.Rename(c.Request.Context(), userID, teamID, req.Name)
	if err != nil {
		respondError(c, h.logger, "rename team", err)
		return
	}

	_ = c.JSON(http.StatusOK, toTeamResponse(team))
}

func (h *TeamHandler) Leave(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.Unauthorized("not authenticated")
		return
	}

	teamID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid team id")
		return
	}

	res, err := h.teamService.Leave(c.Request.Context(), userID, teamID)
	if err != nil {
		respondError(c, h.logger, "leave team", err)
		return
	}

	_ = c.JSON(http.StatusOK, toLeaveResponse(res))
}

func (h *TeamHandler) Invite(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.Unauthorized("not authenticated")
		return
	}

	teamID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid team id")
		return
	}

	var req dto.InviteMemberRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.UserID == "" {
		c.BadRequest("user_id is required")
		return
	}

	inv, err := h.teamService.Invite(c.Request.Context(), userID, teamID, req.UserID)
	if err != nil {
		respondError(c, h.logger, "invite member", err)
		return
	}

	_ = c.JSON(http.StatusCreated, toInviteResponse(inv))
}

func (h *TeamHandler) Invites(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.Unauthorized("not authenticated")
		return
	}

	teamID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid team id")
		return
	}

	invites, err := h.teamService.PendingInvitesForTeam(c.Request.Context(), userID, teamID)
	if err != nil {
		respondError(c, h.logger, "list team invites", err)
		return
	}

	_ = c.JSON(http.StatusOK, toInviteResponses(invites))
}
