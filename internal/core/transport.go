// Package core declares the contracts between the orchestrator and its
// collaborators. Adapters implement them; the app layer never imports an
// adapter package.
package core

import (
	"context"

	"github.com/nocturne-gg/callkit/internal/domain"
)

// EventBufferSize bounds every transport event channel. The orchestrator
// subscribes once per session and fully unsubscribes on teardown.
const EventBufferSize = 64

type EventKind int

const (
	EventParticipantJoined EventKind = iota
	EventParticipantLeft
	EventTrackPublished
	EventTrackUnpublished
	EventTrackSubscribed
	EventSpeakingChanged
	EventStateChanged
	EventDisconnected
)

// Event is one transport notification. Only the fields relevant to Kind are
// populated; Metadata carries the raw, unvalidated presentation payload.
type Event struct {
	Kind     EventKind
	Identity domain.IdentityID
	Metadata string
	Track    domain.TrackKind
	TrackID  string
	Speaking bool
	State    domain.SessionState
}

// Transport is the opaque handle for one joined realtime session. It is
// exclusively owned and mutated by the orchestrator; no other component may
// call its mutation methods.
type Transport interface {
	// Events delivers transport notifications until Close. The channel is
	// closed exactly once, after the final EventDisconnected.
	Events() <-chan Event

	SetMicrophoneEnabled(ctx context.Context, enabled bool) error
	SetCameraEnabled(ctx context.Context, enabled bool) error
	SetScreenShareEnabled(ctx context.Context, enabled bool) error

	// SwitchActiveDevice points an already-published source at another
	// platform device. Best-effort; callers swallow failures.
	SwitchActiveDevice(ctx context.Context, kind domain.DeviceKind, deviceID string) error

	// Close tears the session down. Safe to call more than once.
	Close()
}

// Connector establishes a connected Transport from a session grant.
type Connector interface {
	Connect(ctx context.Context, transportURL, accessToken string, identity domain.IdentityID) (Transport, error)
}
