package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nocturne-gg/callkit/internal/core"
	"github.com/nocturne-gg/callkit/internal/domain"
)

// DeviceManager keeps the enumerated platform devices and one selection per
// kind. Selections default to the stored preference, then to the first
// enumerated device. Enumeration is best-effort throughout: a failure keeps
// the previous lists and selections.
type DeviceManager struct {
	enum  core.Enumerator
	prefs core.PreferenceStore

	mu       sync.RWMutex
	devices  []domain.MediaDevice
	selected map[domain.DeviceKind]string
}

func NewDeviceManager(enum core.Enumerator, prefs core.PreferenceStore) *DeviceManager {
	return &DeviceManager{
		enum:     enum,
		prefs:    prefs,
		selected: make(map[domain.DeviceKind]string),
	}
}

// Refresh re-enumerates devices and recomputes selections, preserving an
// existing selection whenever its device is still present.
func (m *DeviceManager) Refresh() {
	if m.enum == nil {
		return
	}
	devices, err := m.enum.Enumerate()
	if err != nil {
		log.Debug().Err(err).Str("module", "app.devices").Msg("device enumeration failed, keeping previous set")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = devices
	for _, kind := range domain.DeviceKinds {
		m.selected[kind] = m.pickLocked(kind)
		if m.selected[kind] == "" {
			delete(m.selected, kind)
		}
	}
}

// pickLocked resolves the selection for one kind: the stored preference if
// enumerated, else the current selection if still enumerated, else the first
// device of that kind. Preference before current selection, so a preferred
// device that disappeared reclaims its slot when it comes back.
func (m *DeviceManager) pickLocked(kind domain.DeviceKind) string {
	if m.prefs != nil {
		if stored, ok := m.prefs.Preference(kind); ok && m.presentLocked(kind, stored) {
			return stored
		}
	}
	if cur, ok := m.selected[kind]; ok && m.presentLocked(kind, cur) {
		return cur
	}
	for _, d := range m.devices {
		if d.Kind == kind {
			return d.ID
		}
	}
	return ""
}

func (m *DeviceManager) presentLocked(kind domain.DeviceKind, id string) bool {
	for _, d := range m.devices {
		if d.Kind == kind && d.ID == id {
			return true
		}
	}
	return false
}

// Select persists a device choice synchronously and makes it the current
// selection. The choice sticks even if the device is not currently
// enumerated; it wins again once the device reappears.
func (m *DeviceManager) Select(kind domain.DeviceKind, deviceID string) error {
	if m.prefs != nil {
		if err := m.prefs.SetPreference(domain.DevicePreference{Kind: kind, DeviceID: deviceID}); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.selected[kind] = deviceID
	m.mu.Unlock()
	log.Info().Str("module", "app.devices").Str("kind", string(kind)).Str("device", deviceID).Msg("device selected")
	return nil
}

// Selected returns the current selection for kind, if any.
func (m *DeviceManager) Selected(kind domain.DeviceKind) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.selected[kind]
	return id, ok
}

// Selections returns a copy of all current selections.
func (m *DeviceManager) Selections() map[domain.DeviceKind]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.DeviceKind]string, len(m.selected))
	for k, v := range m.selected {
		out[k] = v
	}
	return out
}

// Devices returns a copy of the last successful enumeration.
func (m *DeviceManager) Devices() []domain.MediaDevice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.MediaDevice, len(m.devices))
	copy(out, m.devices)
	return out
}

// Watch re-enumerates on every device-change notification until ctx is done.
func (m *DeviceManager) Watch(ctx context.Context) {
	if m.enum == nil {
		return
	}
	for range m.enum.Watch(ctx) {
		log.Debug().Str("module", "app.devices").Msg("device change notification")
		m.Refresh()
	}
}
