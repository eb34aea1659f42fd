// Package httpapi is the loopback control surface. Local UI surfaces (a
// channel view, a DM thread, an ephemeral room) call it with their own scope
// and only ever see the call through a ScopedView.
package httpapi

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-gg/callkit/internal/app"
	"github.com/nocturne-gg/callkit/internal/config"
)

// SurfaceTokenMiddleware tags each UI surface instance with a stable token,
// mostly for log correlation across its requests.
func SurfaceTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("st")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("st", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("surface_token", token)
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CallkitSessions", store))
	r.Use(SurfaceTokenMiddleware())

	log.Info().Str("module", "httpapi").Msg("router setup")

	h := &handlers{orch: orch}

	api := r.Group("/api")
	call := api.Group("/call")
	call.GET("/state", h.state)
	call.POST("/join", h.join)
	call.POST("/metadata", h.syncMetadata)
	call.POST("/switch/confirm", h.confirmSwitch)
	call.POST("/switch/cancel", h.cancelSwitch)
	call.POST("/leave", h.leave)
	call.POST("/end", h.endCall)
	call.POST("/toggles/:control", h.toggle)
	call.POST("/participants/:identity/mute", h.muteParticipant)

	api.GET("/devices", h.listDevices)
	api.PUT("/devices", h.selectDevice)
	api.POST("/devices/refresh", h.refreshDevices)

	return r
}
