package handlers

import (
	"log/slog"
	"net/http"

	authmw "github.com/dimitrije/teamforge/internal/middleware"
	"github.com/dimitrije/teamforge/internal/services"
	"github.com/dimitrije/teamforge/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
)

type RouterConfig struct {
	JWT      *services.JWTService
	Teams    TeamServiceInterface
	Identity IdentityServiceInterface
	Logger   *slog.Logger
	Release  bool
}

func NewRouter(cfg RouterConfig) http.Handler {
	teamHandler := NewTeamHandler(cfg.Teams, cfg.Logger)
	inviteHandler := NewInviteHandler(cfg.Teams, cfg.Logger)
	identityHandler := NewIdentityHandler(cfg.Teams, cfg.Identity, cfg.Logger)

	app := drift.New()

	if cfg.Release {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	api := app.Group("/api/v1")

	protected := api.Group("")
	protected.Use(authmw.Auth(cfg.JWT))

	protected.Post("/teams", teamHandler.Create)
	protected.Get("/teams/:id", teamHandler.Get)
	protected.Patch("/teams/:id", teamHandler.Rename)
	protected.Post("/teams/:id/leave", teamHandler.Leave)
	protected.Post("/teams/:id/invites", teamHandler.Invite)
	protected.Get("/teams/:id/invites", teamHandler.Invites)

	protected.Get("/me/team", teamHandler.Mine)
	protected.Get("/me/invites", inviteHandler.Mine)

	protected.Post("/invite-actions", inviteHandler.Action)
	protected.Post("/invites/:inviteId/accept", inviteHandler.Accept)
	protected.Post("/invites/:inviteId/decline", inviteHandler.Decline)

	admin := api.Group("/identity")
	admin.Use(authmw.Auth(cfg.JWT))
	admin.Use(authmw.RequireAdmin())

	admin.Get("/count", identityHandler.Count)
	admin.Post("/users/:userId/verified", identityHandler.Verified)
	admin.Post("/users/:userId/unverified", identityHandler.Unverified)

	api.Get("/health", func(c *drift.Context) {
		_ = c.JSON(http.StatusOK, dto.StatusResponse{Status: "ok"})
	})

	return app
}
