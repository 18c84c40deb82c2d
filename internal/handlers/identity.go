package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dimitrije/teamforge/internal/logging"
	"github.com/dimitrije/teamforge/internal/models"
	"github.com/dimitrije/teamforge/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

// IdentityHandler receives verification changes from the identity system.
// Its routes are admin only.
type IdentityHandler struct {
	teamService     TeamServiceInterface
	identityService IdentityServiceInterface
	logger          *slog.Logger
}

func NewIdentityHandler(teamService TeamServiceInterface, identityService IdentityServiceInterface, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{
		teamService:     teamService,
		identityService: identityService,
		logger:          logging.OrDefault(logger),
	}
}

func (h *IdentityHandler) Verified(c *drift.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.BadRequest("user id is required")
		return
	}

	var req dto.VerifyUserRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	err := h.identityService.MarkVerified(c.Request.Context(), &models.Profile{
		UserID:      userID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		VerifiedAt:  time.Now(),
	})
	if err != nil {
		h.logger.Error("mark verified failed", "user_id", userID, "error", err)
		c.InternalServerError("failed to record verification")
		return
	}

	_ = c.JSON(http.StatusOK, dto.StatusResponse{Status: "verified"})
}

// Unverified removes the user's verification and takes them off their team.
func (h *IdentityHandler) Unverified(c *drift.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.BadRequest("user id is required")
		return
	}

	res, err := h.teamService.HandleUnverified(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "handle unverified", err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.UnverifiedResponse{
		LeftTeam: res != nil,
		Leave:    toLeaveResponse(res),
	})
}

func (h *IdentityHandler) Count(c *drift.Context) {
	n, err := h.identityService.VerifiedCount(c.Request.Context())
	if err != nil {
		h.logger.Error("verified count failed", "error", err)
		c.InternalServerError("failed to count verified users")
		return
	}

	_ = c.JSON(http.StatusOK, dto.VerifiedCountResponse{Count: n})
}
