package app

import (
	"context"

	"github.com/nocturne-gg/callkit/internal/domain"
)

// ScopedView projects the orchestrator for one UI surface's context
// candidate. A surface only ever sees live call state while it is the
// current context; otherwise it gets inert defaults, and its mutators no-op
// so it can never drive another surface's call. JoinCall is the one
// exception: it always forwards, because joining is how a surface becomes
// current.
type ScopedView struct {
	orch  *Orchestrator
	scope domain.CallContext
}

func NewScopedView(orch *Orchestrator, scope domain.CallContext) *ScopedView {
	return &ScopedView{orch: orch, scope: scope}
}

func (v *ScopedView) Scope() domain.CallContext { return v.scope }

// IsCurrent reports whether this surface's scope is the active call.
func (v *ScopedView) IsCurrent() bool {
	v.orch.mu.Lock()
	defer v.orch.mu.Unlock()
	return v.orch.active != nil && v.orch.active.SameCall(v.scope)
}

// isPendingTarget reports whether this surface requested the pending switch.
func (v *ScopedView) isPendingTarget() bool {
	v.orch.mu.Lock()
	defer v.orch.mu.Unlock()
	return v.orch.pending != nil && v.orch.pending.SameCall(v.scope)
}

// Snapshot returns the orchestrator's live snapshot while current, inert
// defaults otherwise. The pending switch is visible to the surface that
// requested it, so it can drive the confirmation prompt. Devices are global
// and always included.
func (v *ScopedView) Snapshot() Snapshot {
	full := v.orch.Snapshot()
	if full.ActiveContext != nil && full.ActiveContext.SameCall(v.scope) {
		return full
	}

	inert := Snapshot{
		State:           domain.StateIdle,
		Participants:    []domain.ParticipantView{},
		Devices:         full.Devices,
		SelectedDevices: full.SelectedDevices,
	}
	if full.PendingSwitch != nil && full.PendingSwitch.SameCall(v.scope) {
		inert.PendingSwitch = full.PendingSwitch
	}
	return inert
}

// JoinCall always forwards to the orchestrator with a fresh capture of this
// surface's scope.
func (v *ScopedView) JoinCall(ctx context.Context) error {
	return v.orch.RequestJoin(ctx, v.scope)
}

// ConfirmSwitch resolves a pending switch this surface requested.
func (v *ScopedView) ConfirmSwitch(ctx context.Context) error {
	if !v.isPendingTarget() {
		return nil
	}
	return v.orch.ConfirmSwitch(ctx)
}

// CancelSwitch drops a pending switch this surface requested.
func (v *ScopedView) CancelSwitch() {
	if !v.isPendingTarget() {
		return
	}
	v.orch.CancelSwitch()
}

// SyncMetadata pushes label and permission changes from this surface into
// the active context, so a moderator demotion elsewhere is reflected without
// a rejoin. No-op unless current.
func (v *ScopedView) SyncMetadata(scope domain.CallContext) {
	v.scope = scope
	v.orch.RefreshMetadata(scope)
}

func (v *ScopedView) Leave(ctx context.Context) {
	if !v.IsCurrent() {
		return
	}
	v.orch.Leave(ctx)
}

func (v *ScopedView) EndCall(ctx context.Context) error {
	if !v.IsCurrent() {
		return nil
	}
	return v.orch.EndCall(ctx)
}

func (v *ScopedView) ToggleMic(ctx context.Context) error {
	if !v.IsCurrent() {
		return nil
	}
	return v.orch.ToggleMic(ctx)
}

func (v *ScopedView) ToggleCamera(ctx context.Context) error {
	if !v.IsCurrent() {
		return nil
	}
	return v.orch.ToggleCamera(ctx)
}

func (v *ScopedView) ToggleScreenShare(ctx context.Context) error {
	if !v.IsCurrent() {
		return nil
	}
	return v.orch.ToggleScreenShare(ctx)
}

func (v *ScopedView) ToggleDeafen() {
	if !v.IsCurrent() {
		return
	}
	v.orch.ToggleDeafen()
}

func (v *ScopedView) MuteParticipant(ctx context.Context, target domain.IdentityID) error {
	if !v.IsCurrent() {
		return nil
	}
	return v.orch.MuteParticipant(ctx, target)
}
