package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-gg/callkit/internal/app"
	"github.com/nocturne-gg/callkit/internal/domain"
)

type handlers struct {
	orch *app.Orchestrator
}

// scopePayload is the surface's self-description. Every call endpoint
// receives one so the view can be rebuilt per request; surfaces hold no
// server-side state here.
type scopePayload struct {
	Kind             domain.ContextKind `json:"kind" form:"kind" binding:"required"`
	ID               string             `json:"id" form:"id" binding:"required"`
	SpeakingIdentity domain.IdentityID  `json:"speaking_identity" form:"speaking_identity"`
	ActingIdentity   domain.IdentityID  `json:"acting_identity" form:"acting_identity"`
	CanModerate      bool               `json:"can_moderate" form:"can_moderate"`
	CanEndCall       bool               `json:"can_end_call" form:"can_end_call"`
	Label            string             `json:"label" form:"label"`
	Disabled         bool               `json:"disabled" form:"disabled"`
}

func (p scopePayload) context() domain.CallContext {
	return domain.CallContext{
		Kind:             p.Kind,
		ID:               p.ID,
		SpeakingIdentity: p.SpeakingIdentity,
		ActingIdentity:   p.ActingIdentity,
		CanModerate:      p.CanModerate,
		CanEndCall:       p.CanEndCall,
		Label:            p.Label,
		Disabled:         p.Disabled,
	}
}

func (h *handlers) viewFromQuery(c *gin.Context) (*app.ScopedView, bool) {
	var p scopePayload
	if err := c.ShouldBindQuery(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid scope"})
		return nil, false
	}
	return app.NewScopedView(h.orch, p.context()), true
}

func (h *handlers) viewFromBody(c *gin.Context) (*app.ScopedView, bool) {
	var p scopePayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid scope"})
		return nil, false
	}
	return app.NewScopedView(h.orch, p.context()), true
}

func (h *handlers) state(c *gin.Context) {
	view, ok := h.viewFromQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view.Snapshot())
}

func (h *handlers) join(c *gin.Context) {
	view, ok := h.viewFromBody(c)
	if !ok {
		return
	}
	if err := view.JoinCall(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view.Snapshot())
}

func (h *handlers) syncMetadata(c *gin.Context) {
	view, ok := h.viewFromBody(c)
	if !ok {
		return
	}
	view.SyncMetadata(view.Scope())
	c.JSON(http.StatusOK, view.Snapshot())
}

func (h *handlers) confirmSwitch(c *gin.Context) {
	view, ok := h.viewFromBody(c)
	if !ok {
		return
	}
	if err := view.ConfirmSwitch(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view.Snapshot())
}

func (h *handlers) cancelSwitch(c *gin.Context) {
	view, ok := h.viewFromBody(c)
	if !ok {
		return
	}
	view.CancelSwitch()
	c.JSON(http.StatusOK, view.Snapshot())
}

func (h *handlers) leave(c *gin.Context) {
	view, ok := h.viewFromBody(c)
	if !ok {
		return
	}
	view.Leave(c.Request.Context())
	c.JSON(http.StatusOK, view.Snapshot())
}

func (h *handlers) endCall(c *gin.Context) {
	view, ok := h.viewFromBody(c)
	if !ok {
		return
	}
	if err := view.EndCall(c.Request.Context()); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view.Snapshot())
}

func (h *handlers) toggle(c *gin.Context) {
	view, ok := h.viewFromBody(c)
	if !ok {
		return
	}

	var err error
	switch c.Param("control") {
	case "mic":
		err = view.ToggleMic(c.Request.Context())
	case "camera":
		err = view.ToggleCamera(c.Request.Context())
	case "screen":
		err = view.ToggleScreenShare(c.Request.Context())
	case "deafen":
		view.ToggleDeafen()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown toggle"})
		return
	}
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view.Snapshot())
}

func (h *handlers) muteParticipant(c *gin.Context) {
	view, ok := h.viewFromBody(c)
	if !ok {
		return
	}
	target := domain.IdentityID(c.Param("identity"))
	if err := view.MuteParticipant(c.Request.Context(), target); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view.Snapshot())
}

func (h *handlers) listDevices(c *gin.Context) {
	snap := h.orch.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"devices":  snap.Devices,
		"selected": snap.SelectedDevices,
	})
}

type selectDeviceRequest struct {
	Kind     domain.DeviceKind `json:"kind" binding:"required"`
	DeviceID string            `json:"device_id" binding:"required"`
}

func (h *handlers) selectDevice(c *gin.Context) {
	var req selectDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid device selection"})
		return
	}
	if err := h.orch.SetPreferredDevice(c.Request.Context(), req.Kind, req.DeviceID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("module", "httpapi").
		Str("kind", string(req.Kind)).Str("device", req.DeviceID).
		Str("surface", c.GetString("surface_token")).
		Msg("device preference updated")
	c.Status(http.StatusNoContent)
}

func (h *handlers) refreshDevices(c *gin.Context) {
	h.orch.RefreshDevices()
	c.Status(http.StatusNoContent)
}
