package core

import (
	"context"

	"github.com/nocturne-gg/callkit/internal/domain"
)

// PreferenceStore persists one device choice per kind. Writes are
// synchronous and immediately durable; preferences survive restarts.
type PreferenceStore interface {
	SetPreference(pref domain.DevicePreference) error
	// Preference returns the stored device id for kind, if any. Read
	// failures are reported as absence; callers keep prior selections.
	Preference(kind domain.DeviceKind) (string, bool)
}

// ContextStore is the session-scoped durable slot for the active call
// context, read at most once per process to attempt a single resume.
type ContextStore interface {
	Save(ctx domain.CallContext) error
	// Load returns the stored context if present and schema-valid.
	// Garbage is discarded silently.
	Load() (*domain.CallContext, bool)
	Clear() error
}

// Enumerator lists platform media devices and notifies about changes.
// Absent permission yields an empty list, not an error.
type Enumerator interface {
	Enumerate() ([]domain.MediaDevice, error)
	// Watch emits a tick whenever the device set may have changed, until
	// ctx is done.
	Watch(ctx context.Context) <-chan struct{}
}
