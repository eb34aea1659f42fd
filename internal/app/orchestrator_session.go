package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-gg/callkit/internal/core"
	"github.com/nocturne-gg/callkit/internal/domain"
)

// RequestJoin asks for a session in the given scope. With no live session it
// joins immediately. A request for the already-active call only refreshes
// context metadata. A request for a different call parks a pending switch
// and changes nothing until ConfirmSwitch or CancelSwitch.
func (o *Orchestrator) RequestJoin(ctx context.Context, scope domain.CallContext) error {
	if err := scope.Validate(); err != nil {
		o.setErr("", err.Error())
		return err
	}

	o.mu.Lock()
	if o.state.Live() && o.active != nil {
		if o.active.SameCall(scope) {
			o.active.RefreshMeta(scope)
			o.persistActiveLocked()
			o.mu.Unlock()
			return nil
		}
		cp := scope
		o.pending = &cp
		o.mu.Unlock()
		log.Info().Str("module", "app.orchestrator").
			Str("kind", string(scope.Kind)).Str("id", scope.ID).
			Msg("switch requested, awaiting confirmation")
		return nil
	}
	o.mu.Unlock()

	return o.join(ctx, scope)
}

// ConfirmSwitch resolves a pending switch: full leave of the current session
// followed by a join of the pending context. The pending request is cleared
// first so a join failure cannot leave a stale one behind.
func (o *Orchestrator) ConfirmSwitch(ctx context.Context) error {
	o.mu.Lock()
	if o.pending == nil {
		o.mu.Unlock()
		return nil
	}
	next := *o.pending
	o.pending = nil
	o.mu.Unlock()

	o.Leave(ctx)
	return o.join(ctx, next)
}

// CancelSwitch clears a pending switch request with no other effect.
func (o *Orchestrator) CancelSwitch() {
	o.mu.Lock()
	o.pending = nil
	o.mu.Unlock()
}

// RefreshMetadata updates label and permission fields of the active context
// without touching the transport. No-op unless scope is the active call.
func (o *Orchestrator) RefreshMetadata(scope domain.CallContext) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil || !o.active.SameCall(scope) {
		return
	}
	o.active.RefreshMeta(scope)
	o.persistActiveLocked()
}

// join runs the full session establishment: backend grant, transport
// connect, then best-effort device reapply and microphone enable. The epoch
// captured up front invalidates every late result once the user leaves or
// switches mid-flight.
func (o *Orchestrator) join(ctx context.Context, scope domain.CallContext) error {
	o.mu.Lock()
	if o.state.Live() {
		// Guarded by RequestJoin; racing joins lose here.
		o.mu.Unlock()
		return nil
	}
	epoch := uuid.NewString()
	cp := scope
	o.epoch = epoch
	o.state = domain.StateConnecting
	o.active = &cp
	o.errMsg = ""
	o.persistActiveLocked()
	o.mu.Unlock()

	grant, err := o.backend.CreateSession(ctx, scope.Kind, scope.ID, scope.SpeakingIdentity)
	if err != nil {
		o.failJoin(epoch, err.Error())
		return err
	}

	handle, err := o.connector.Connect(ctx, grant.TransportURL, grant.AccessToken, scope.SpeakingIdentity)
	if err != nil {
		o.failJoin(epoch, err.Error())
		return err
	}

	o.mu.Lock()
	if o.epoch != epoch || o.state != domain.StateConnecting {
		// Abandoned while connecting; the handle never becomes ours.
		o.mu.Unlock()
		handle.Close()
		return nil
	}
	o.handle = handle
	o.sessionID = grant.SessionID
	o.state = domain.StateConnected
	o.participants[scope.SpeakingIdentity] = &participantState{tracks: make(map[domain.TrackKind]string)}
	forceOff := o.applyModerationLocked(grant.Participants)
	o.mu.Unlock()

	go o.pumpEvents(epoch, handle)

	log.Info().Str("module", "app.orchestrator").
		Str("session", grant.SessionID).
		Str("kind", string(scope.Kind)).Str("id", scope.ID).
		Msg("session connected")

	o.reapplyDevicePreferences(ctx, epoch, handle)
	if forceOff {
		o.forceMediaOff(ctx, epoch, handle)
	} else if err := handle.SetMicrophoneEnabled(ctx, true); err != nil {
		o.setErr(epoch, err.Error())
	} else {
		o.mu.Lock()
		if o.epoch == epoch {
			o.micOn = true
		}
		o.mu.Unlock()
	}
	return nil
}

// failJoin returns a failed join attempt to Idle unless the attempt was
// already abandoned.
func (o *Orchestrator) failJoin(epoch, msg string) {
	o.mu.Lock()
	if o.epoch != epoch || o.state != domain.StateConnecting {
		o.mu.Unlock()
		return
	}
	o.resetSessionLocked()
	o.errMsg = msg
	o.mu.Unlock()
	o.clearPersisted()
	log.Warn().Str("module", "app.orchestrator").Str("reason", msg).Msg("join failed")
}

// Leave tears the session down and resets every call-scoped field. The
// backend notification is best-effort: network failure never blocks local
// teardown.
func (o *Orchestrator) Leave(ctx context.Context) {
	o.mu.Lock()
	if !o.state.Live() {
		o.mu.Unlock()
		return
	}
	sessionID := o.sessionID
	handle := o.handle
	o.resetSessionLocked()
	o.errMsg = ""
	o.mu.Unlock()

	if handle != nil {
		handle.Close()
	}
	o.clearPersisted()
	if sessionID != "" {
		if err := o.backend.LeaveSession(ctx, sessionID); err != nil {
			log.Warn().Err(err).Str("module", "app.orchestrator").Str("session", sessionID).Msg("leave notification failed")
		}
	}
	log.Info().Str("module", "app.orchestrator").Str("session", sessionID).Msg("left session")
}

// EndCall terminates the session for every participant, then performs the
// same local teardown as Leave. Requires the end-call permission on the
// active context.
func (o *Orchestrator) EndCall(ctx context.Context) error {
	o.mu.Lock()
	if !o.state.Live() || o.sessionID == "" {
		o.mu.Unlock()
		return ErrNoSession
	}
	if o.active == nil || !o.active.CanEndCall {
		o.errMsg = ErrCannotEndCall.Error()
		o.mu.Unlock()
		return ErrCannotEndCall
	}
	sessionID := o.sessionID
	actor := o.active.ActingIdentity
	epoch := o.epoch
	o.mu.Unlock()

	if err := o.backend.EndSession(ctx, sessionID, actor); err != nil {
		o.setErr(epoch, err.Error())
		return err
	}

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return nil
	}
	handle := o.handle
	o.resetSessionLocked()
	o.errMsg = ""
	o.mu.Unlock()

	if handle != nil {
		handle.Close()
	}
	o.clearPersisted()
	log.Info().Str("module", "app.orchestrator").Str("session", sessionID).Msg("ended session for all participants")
	return nil
}

// ResumeOnce attempts the single automatic rejoin from the persisted context
// slot. The guard is set before the attempt so a crash mid-resume cannot
// retry-loop. This is the only join that happens without user action.
func (o *Orchestrator) ResumeOnce(ctx context.Context) {
	o.mu.Lock()
	if o.resumeTried {
		o.mu.Unlock()
		return
	}
	o.resumeTried = true
	o.mu.Unlock()

	if o.contexts == nil {
		return
	}
	stored, ok := o.contexts.Load()
	if !ok {
		return
	}
	log.Info().Str("module", "app.orchestrator").
		Str("kind", string(stored.Kind)).Str("id", stored.ID).
		Msg("resuming persisted call context")
	if err := o.RequestJoin(ctx, *stored); err != nil {
		log.Warn().Err(err).Str("module", "app.orchestrator").Msg("resume failed")
	}
}

// resetSessionLocked clears all call-scoped state back to Idle defaults.
// It does not touch the error message; callers decide whether the teardown
// was expected.
func (o *Orchestrator) resetSessionLocked() {
	o.state = domain.StateIdle
	o.active = nil
	o.pending = nil
	o.sessionID = ""
	o.epoch = ""
	o.handle = nil
	o.micOn = false
	o.camOn = false
	o.screenOn = false
	o.deafened = false
	o.muted = make(map[domain.IdentityID]bool)
	o.participants = make(map[domain.IdentityID]*participantState)
}

// pumpEvents consumes the transport's event stream for one session. The
// epoch ties every event to the session it came from; once the orchestrator
// moves on, leftovers drain without effect.
func (o *Orchestrator) pumpEvents(epoch string, handle core.Transport) {
	for ev := range handle.Events() {
		o.handleEvent(epoch, handle, ev)
	}
}

func (o *Orchestrator) handleEvent(epoch string, handle core.Transport, ev core.Event) {
	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return
	}

	switch ev.Kind {
	case core.EventStateChanged:
		switch {
		case ev.State == domain.StateReconnecting && o.state == domain.StateConnected:
			o.state = domain.StateReconnecting
		case ev.State == domain.StateConnected && o.state == domain.StateReconnecting:
			o.state = domain.StateConnected
		}
		o.mu.Unlock()

	case core.EventDisconnected:
		// Disconnected is transient: nothing is left to retry, so the
		// orchestrator clears session identifiers and returns to Idle.
		o.state = domain.StateDisconnected
		o.resetSessionLocked()
		o.errMsg = ErrUnexpectedHangup.Error()
		o.mu.Unlock()
		handle.Close()
		o.clearPersisted()
		log.Warn().Str("module", "app.orchestrator").Msg("transport disconnected")

	case core.EventParticipantJoined:
		o.participants[ev.Identity] = &participantState{
			metadata: ev.Metadata,
			tracks:   make(map[domain.TrackKind]string),
		}
		o.mu.Unlock()

	case core.EventParticipantLeft:
		delete(o.participants, ev.Identity)
		o.mu.Unlock()

	case core.EventTrackPublished, core.EventTrackSubscribed:
		if ps, ok := o.participants[ev.Identity]; ok {
			ps.tracks[ev.Track] = ev.TrackID
		}
		o.mu.Unlock()

	case core.EventTrackUnpublished:
		if ps, ok := o.participants[ev.Identity]; ok {
			delete(ps.tracks, ev.Track)
		}
		o.mu.Unlock()

	case core.EventSpeakingChanged:
		if ps, ok := o.participants[ev.Identity]; ok {
			ps.speaking = ev.Speaking
		}
		o.mu.Unlock()

	default:
		o.mu.Unlock()
	}
}
