package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/nocturne-gg/callkit/internal/core"
	"github.com/nocturne-gg/callkit/internal/domain"
)

// ToggleMic flips the local microphone. No-op without a live session or
// while server-muted. The flag only flips after the transport accepts the
// change; a rejected toggle reports an error and leaves the flag alone.
func (o *Orchestrator) ToggleMic(ctx context.Context) error {
	return o.toggleTrack(ctx, domain.TrackMicrophone)
}

// ToggleCamera flips the local camera under the same rules as ToggleMic.
func (o *Orchestrator) ToggleCamera(ctx context.Context) error {
	return o.toggleTrack(ctx, domain.TrackCamera)
}

// ToggleScreenShare flips local screen sharing. Enabling is refused before
// any transport call when another participant is already sharing.
func (o *Orchestrator) ToggleScreenShare(ctx context.Context) error {
	return o.toggleTrack(ctx, domain.TrackScreen)
}

func (o *Orchestrator) toggleTrack(ctx context.Context, kind domain.TrackKind) error {
	o.mu.Lock()
	if !o.state.Live() || o.handle == nil {
		o.mu.Unlock()
		return nil
	}
	if o.localServerMutedLocked() {
		o.mu.Unlock()
		return nil
	}

	var target bool
	switch kind {
	case domain.TrackMicrophone:
		target = !o.micOn
	case domain.TrackCamera:
		target = !o.camOn
	case domain.TrackScreen:
		target = !o.screenOn
		if target && o.remoteScreenShareLocked() {
			o.errMsg = ErrScreenShareBusy.Error()
			o.mu.Unlock()
			return ErrScreenShareBusy
		}
	}
	handle := o.handle
	epoch := o.epoch
	o.mu.Unlock()

	var err error
	switch kind {
	case domain.TrackMicrophone:
		err = handle.SetMicrophoneEnabled(ctx, target)
	case domain.TrackCamera:
		err = handle.SetCameraEnabled(ctx, target)
	case domain.TrackScreen:
		err = handle.SetScreenShareEnabled(ctx, target)
	}
	if err != nil {
		o.setErr(epoch, err.Error())
		return err
	}

	o.mu.Lock()
	if o.epoch == epoch {
		switch kind {
		case domain.TrackMicrophone:
			o.micOn = target
		case domain.TrackCamera:
			o.camOn = target
		case domain.TrackScreen:
			o.screenOn = target
		}
	}
	o.mu.Unlock()
	return nil
}

// remoteScreenShareLocked reports whether a participant other than the local
// one currently publishes a screen track.
func (o *Orchestrator) remoteScreenShareLocked() bool {
	local := domain.IdentityID("")
	if o.active != nil {
		local = o.active.SpeakingIdentity
	}
	for id, ps := range o.participants {
		if id == local {
			continue
		}
		if ps.tracks[domain.TrackScreen] != "" {
			return true
		}
	}
	return false
}

// ToggleDeafen flips the purely local deafen flag. The transport is not
// touched; only the rendering of remote audio changes.
func (o *Orchestrator) ToggleDeafen() {
	o.mu.Lock()
	if o.state.Live() {
		o.deafened = !o.deafened
	}
	o.mu.Unlock()
}

// MuteParticipant performs a moderation mute through the backend and
// replaces the moderation snapshot with the response. Nothing is mutated
// optimistically.
func (o *Orchestrator) MuteParticipant(ctx context.Context, target domain.IdentityID) error {
	o.mu.Lock()
	if !o.state.Live() || o.sessionID == "" {
		o.mu.Unlock()
		return ErrNoSession
	}
	if o.active == nil || !o.active.CanModerate {
		o.errMsg = ErrNotModerator.Error()
		o.mu.Unlock()
		return ErrNotModerator
	}
	sessionID := o.sessionID
	actor := o.active.ActingIdentity
	epoch := o.epoch
	o.mu.Unlock()

	entries, err := o.backend.MuteParticipant(ctx, sessionID, actor, target)
	if err != nil {
		o.setErr(epoch, err.Error())
		return err
	}

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return nil
	}
	forceOff := o.applyModerationLocked(entries)
	handle := o.handle
	o.mu.Unlock()

	if forceOff && handle != nil {
		o.forceMediaOff(ctx, epoch, handle)
	}
	return nil
}

// applyModerationLocked swaps in a new moderation snapshot, last writer
// wins. It reports whether the local participant just transitioned into the
// muted set and therefore needs its media forced off. Leaving the muted set
// never re-enables anything; the user toggles again explicitly.
func (o *Orchestrator) applyModerationLocked(entries []core.ModerationEntry) bool {
	wasMuted := o.localServerMutedLocked()
	o.muted = make(map[domain.IdentityID]bool, len(entries))
	for _, e := range entries {
		if e.ServerMuted {
			o.muted[e.Identity] = true
		}
	}
	nowMuted := o.localServerMutedLocked()
	if nowMuted && !wasMuted {
		o.micOn = false
		o.camOn = false
		o.screenOn = false
		return true
	}
	return false
}

// forceMediaOff disables microphone, camera and screen share at the
// transport after a moderation mute. The flags are already cleared; the
// transport calls are enforcement, so individual failures are only logged.
func (o *Orchestrator) forceMediaOff(ctx context.Context, epoch string, handle core.Transport) {
	o.mu.Lock()
	stale := o.epoch != epoch
	o.mu.Unlock()
	if stale {
		return
	}
	if err := handle.SetMicrophoneEnabled(ctx, false); err != nil {
		log.Warn().Err(err).Str("module", "app.orchestrator").Msg("force mic off")
	}
	if err := handle.SetCameraEnabled(ctx, false); err != nil {
		log.Warn().Err(err).Str("module", "app.orchestrator").Msg("force camera off")
	}
	if err := handle.SetScreenShareEnabled(ctx, false); err != nil {
		log.Warn().Err(err).Str("module", "app.orchestrator").Msg("force screen share off")
	}
	log.Info().Str("module", "app.orchestrator").Msg("server mute enforced, local media off")
}

// SetPreferredDevice persists a device choice and, with a live session,
// applies it best-effort. Device failures are swallowed; the prior selection
// stays usable.
func (o *Orchestrator) SetPreferredDevice(ctx context.Context, kind domain.DeviceKind, deviceID string) error {
	if !kind.Valid() {
		return ErrDeviceKindInvalid
	}
	if o.devices != nil {
		if err := o.devices.Select(kind, deviceID); err != nil {
			return err
		}
	}

	o.mu.Lock()
	handle := o.handle
	live := o.state.Live()
	o.mu.Unlock()
	if !live || handle == nil {
		return nil
	}
	if err := handle.SwitchActiveDevice(ctx, kind, deviceID); err != nil {
		log.Debug().Err(err).Str("module", "app.orchestrator").
			Str("kind", string(kind)).Str("device", deviceID).
			Msg("live device switch failed")
	}
	return nil
}

// RefreshDevices re-enumerates platform devices. Enumeration failures are
// swallowed and prior selections stay intact.
func (o *Orchestrator) RefreshDevices() {
	if o.devices != nil {
		o.devices.Refresh()
	}
}

// reapplyDevicePreferences pushes every stored selection into a freshly
// connected transport. Best-effort by design.
func (o *Orchestrator) reapplyDevicePreferences(ctx context.Context, epoch string, handle core.Transport) {
	if o.devices == nil {
		return
	}
	o.mu.Lock()
	stale := o.epoch != epoch
	o.mu.Unlock()
	if stale {
		return
	}
	for _, kind := range domain.DeviceKinds {
		id, ok := o.devices.Selected(kind)
		if !ok {
			continue
		}
		if err := handle.SwitchActiveDevice(ctx, kind, id); err != nil {
			log.Debug().Err(err).Str("module", "app.orchestrator").
				Str("kind", string(kind)).Str("device", id).
				Msg("device reapply failed")
		}
	}
}
