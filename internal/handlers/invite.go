package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dimitrije/teamforge/internal/logging"
	"github.com/dimitrije/teamforge/internal/middleware"
	"github.com/dimitrije/teamforge/internal/services"
	"github.com/dimitrije/teamforge/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type InviteHandler struct {
	teamService TeamServiceInterface
	logger      *slog.Logger
}

func NewInviteHandler(teamService TeamServiceInterface, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{
		teamService: teamService,
		logger:      logging.OrDefault(logger),
	}
}

func (h *InviteHandler) Mine(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.Unauthorized("not authenticated")
		return
	}

	invites, err := h.teamService.PendingInvitesForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "list invites", err)
		return
	}

	_ = c.JSON(http.StatusOK, toInviteResponses(invites))
}

// Action resolves an invite from the action id embedded in its notice.
func (h *InviteHandler) Action(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.InviteActionRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	res, err := h.teamService.HandleAction(c.Request.Context(), userID, req.ActionID)
	if err != nil {
		respondError(c, h.logger, "invite action", err)
		return
	}

	_ = c.JSON(http.StatusOK, toResolutionResponse(res))
}

func (h *InviteHandler) Accept(c *drift.Context) {
	h.resolve(c, "accept invite", h.teamService.Accept)
}

func (h *InviteHandler) Decline(c *drift.Context) {
	h.resolve(c, "decline invite", h.teamService.Decline)
}

func (h *InviteHandler) resolve(c *drift.Context, op string, fn func(ctx context.Context, actorID string, inviteID uuid.UUID) (*services.Resolution, error)) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.Unauthorized("not authenticated")
		return
	}

	inviteID, err := uuid.Parse(c.Param("inviteId"))
	if err != nil {
		c.BadRequest("invalid invite id")
		return
	}

	res, err := fn(c.Request.Context(), userID, inviteID)
	if err != nil {
		respondError(c, h.logger, op, err)
		return
	}

	_ = c.JSON(http.StatusOK, toResolutionResponse(res))
}
