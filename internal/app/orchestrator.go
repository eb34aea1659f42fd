// Package app owns the call session orchestration: the single live session,
// its state machine, and the scoped views handed to UI surfaces.
package app

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nocturne-gg/callkit/internal/core"
	"github.com/nocturne-gg/callkit/internal/domain"
)

var (
	ErrNoSession         = errors.New("no live call session")
	ErrNotModerator      = errors.New("not allowed to moderate this call")
	ErrCannotEndCall     = errors.New("not allowed to end this call")
	ErrScreenShareBusy   = errors.New("someone else is already sharing")
	ErrUnexpectedHangup  = errors.New("call ended unexpectedly")
	ErrDeviceKindInvalid = errors.New("unknown device kind")
)

// participantState is the orchestrator's raw per-identity transport state.
// ParticipantView values are derived from it on every snapshot.
type participantState struct {
	metadata string
	speaking bool
	tracks   map[domain.TrackKind]string
}

// Orchestrator is the sole owner of the transport handle. Exactly one exists
// per process; every UI surface reaches it through a ScopedView. All
// mutation funnels through its methods under one mutex, and every suspension
// point revalidates the join-attempt epoch so stale results are discarded.
type Orchestrator struct {
	backend   core.SessionAPI
	connector core.Connector
	contexts  core.ContextStore
	devices   *DeviceManager

	mu           sync.Mutex
	state        domain.SessionState
	active       *domain.CallContext
	pending      *domain.CallContext
	sessionID    string
	epoch        string
	handle       core.Transport
	errMsg       string
	micOn        bool
	camOn        bool
	screenOn     bool
	deafened     bool
	muted        map[domain.IdentityID]bool
	participants map[domain.IdentityID]*participantState
	resumeTried  bool
}

func NewOrchestrator(backend core.SessionAPI, connector core.Connector, contexts core.ContextStore, devices *DeviceManager) *Orchestrator {
	return &Orchestrator{
		backend:      backend,
		connector:    connector,
		contexts:     contexts,
		devices:      devices,
		state:        domain.StateIdle,
		muted:        make(map[domain.IdentityID]bool),
		participants: make(map[domain.IdentityID]*participantState),
	}
}

// Snapshot is the derived, reactive view of the orchestrator. It is a value:
// readers never share state with the orchestrator.
type Snapshot struct {
	ActiveContext      *domain.CallContext          `json:"active_context,omitempty"`
	State              domain.SessionState          `json:"state"`
	Err                string                       `json:"error,omitempty"`
	Participants       []domain.ParticipantView     `json:"participants"`
	MicEnabled         bool                         `json:"mic_enabled"`
	CameraEnabled      bool                         `json:"camera_enabled"`
	ScreenShareEnabled bool                         `json:"screen_share_enabled"`
	Deafened           bool                         `json:"deafened"`
	Devices            []domain.MediaDevice         `json:"devices"`
	SelectedDevices    map[domain.DeviceKind]string `json:"selected_devices,omitempty"`
	PendingSwitch      *domain.CallContext          `json:"pending_switch,omitempty"`
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		State:              o.state,
		Err:                o.errMsg,
		MicEnabled:         o.micOn,
		CameraEnabled:      o.camOn,
		ScreenShareEnabled: o.screenOn,
		Deafened:           o.deafened,
		Participants:       o.participantViewsLocked(),
	}
	if o.active != nil {
		cp := *o.active
		snap.ActiveContext = &cp
	}
	if o.pending != nil {
		cp := *o.pending
		snap.PendingSwitch = &cp
	}
	if o.devices != nil {
		snap.Devices = o.devices.Devices()
		snap.SelectedDevices = o.devices.Selections()
	}
	return snap
}

func (o *Orchestrator) participantViewsLocked() []domain.ParticipantView {
	local := domain.IdentityID("")
	if o.active != nil {
		local = o.active.SpeakingIdentity
	}
	out := make([]domain.ParticipantView, 0, len(o.participants))
	for id, ps := range o.participants {
		view := domain.ParticipantView{
			Identity:    id,
			IsLocal:     id == local,
			IsSpeaking:  ps.speaking,
			ServerMuted: o.muted[id],
			Meta:        domain.ParsePresentationMetadata(ps.metadata),
		}
		view.MicrophoneTrack = ps.tracks[domain.TrackMicrophone]
		view.CameraTrack = ps.tracks[domain.TrackCamera]
		view.ScreenTrack = ps.tracks[domain.TrackScreen]
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsLocal != out[j].IsLocal {
			return out[i].IsLocal
		}
		return out[i].Identity < out[j].Identity
	})
	return out
}

// localServerMutedLocked reports whether the local speaking identity is in
// the moderation muted set.
func (o *Orchestrator) localServerMutedLocked() bool {
	if o.active == nil {
		return false
	}
	return o.muted[o.active.SpeakingIdentity]
}

// setErr records a user-visible error unless the session it belongs to is
// already gone.
func (o *Orchestrator) setErr(epoch, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if epoch != "" && o.epoch != epoch {
		return
	}
	o.errMsg = msg
}

// persistActiveLocked mirrors the active context into the durable slot so a
// restart can attempt exactly one resume. Failures are logged, not surfaced.
func (o *Orchestrator) persistActiveLocked() {
	if o.contexts == nil || o.active == nil {
		return
	}
	if err := o.contexts.Save(*o.active); err != nil {
		log.Warn().Err(err).Str("module", "app.orchestrator").Msg("persist active context")
	}
}

func (o *Orchestrator) clearPersisted() {
	if o.contexts == nil {
		return
	}
	if err := o.contexts.Clear(); err != nil {
		log.Debug().Err(err).Str("module", "app.orchestrator").Msg("clear persisted context")
	}
}
