package app

import (
	"context"
	"errors"
	"testing"

	"github.com/nocturne-gg/callkit/internal/domain"
)

func TestRefreshPrefersStoredPreference(t *testing.T) {
	prefs := newMemPrefs()
	enum := &fakeEnum{devices: []domain.MediaDevice{
		{ID: "builtin", Kind: domain.DeviceAudioInput, Label: "Built-in"},
		{ID: "hs-1", Kind: domain.DeviceAudioInput, Label: "Headset"},
	}}
	if err := prefs.SetPreference(domain.DevicePreference{Kind: domain.DeviceAudioInput, DeviceID: "hs-1"}); err != nil {
		t.Fatalf("seed preference: %v", err)
	}

	dm := NewDeviceManager(enum, prefs)
	dm.Refresh()

	if id, _ := dm.Selected(domain.DeviceAudioInput); id != "hs-1" {
		t.Fatalf("selected = %q, want stored preference", id)
	}
}

func TestRefreshFallsBackToFirstOfKind(t *testing.T) {
	enum := &fakeEnum{devices: []domain.MediaDevice{
		{ID: "spk-1", Kind: domain.DeviceAudioOutput, Label: "Speakers"},
		{ID: "spk-2", Kind: domain.DeviceAudioOutput, Label: "Headphones"},
	}}
	dm := NewDeviceManager(enum, newMemPrefs())
	dm.Refresh()

	if id, _ := dm.Selected(domain.DeviceAudioOutput); id != "spk-1" {
		t.Fatalf("selected = %q, want first enumerated", id)
	}
	if _, ok := dm.Selected(domain.DeviceVideoInput); ok {
		t.Fatalf("selection invented for absent kind")
	}
}

func TestPreferredDeviceReclaimsSlotWhenItReturns(t *testing.T) {
	prefs := newMemPrefs()
	enum := &fakeEnum{devices: []domain.MediaDevice{
		{ID: "builtin", Kind: domain.DeviceAudioInput, Label: "Built-in"},
		{ID: "hs-1", Kind: domain.DeviceAudioInput, Label: "Headset"},
	}}
	dm := NewDeviceManager(enum, prefs)
	dm.Refresh()
	if err := dm.Select(domain.DeviceAudioInput, "hs-1"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	// Headset unplugged.
	enum.mu.Lock()
	enum.devices = []domain.MediaDevice{{ID: "builtin", Kind: domain.DeviceAudioInput, Label: "Built-in"}}
	enum.mu.Unlock()
	dm.Refresh()
	if id, _ := dm.Selected(domain.DeviceAudioInput); id != "builtin" {
		t.Fatalf("selected = %q, want fallback while unplugged", id)
	}

	// Headset back.
	enum.mu.Lock()
	enum.devices = []domain.MediaDevice{
		{ID: "builtin", Kind: domain.DeviceAudioInput, Label: "Built-in"},
		{ID: "hs-1", Kind: domain.DeviceAudioInput, Label: "Headset"},
	}
	enum.mu.Unlock()
	dm.Refresh()
	if id, _ := dm.Selected(domain.DeviceAudioInput); id != "hs-1" {
		t.Fatalf("selected = %q, want preference to reclaim its slot", id)
	}
}

func TestEnumerationFailureKeepsPreviousSet(t *testing.T) {
	enum := &fakeEnum{devices: []domain.MediaDevice{
		{ID: "cam-1", Kind: domain.DeviceVideoInput, Label: "Webcam"},
	}}
	dm := NewDeviceManager(enum, newMemPrefs())
	dm.Refresh()

	enum.mu.Lock()
	enum.err = errors.New("permission denied")
	enum.mu.Unlock()
	dm.Refresh()

	if len(dm.Devices()) != 1 {
		t.Fatalf("failed enumeration dropped the device list")
	}
	if id, _ := dm.Selected(domain.DeviceVideoInput); id != "cam-1" {
		t.Fatalf("failed enumeration dropped the selection")
	}
}

func TestSelectionSticksWhenDeviceNotEnumerated(t *testing.T) {
	dm := NewDeviceManager(&fakeEnum{}, newMemPrefs())
	if err := dm.Select(domain.DeviceAudioInput, "ghost-mic"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if id, ok := dm.Selected(domain.DeviceAudioInput); !ok || id != "ghost-mic" {
		t.Fatalf("selection of unenumerated device lost: %q %v", id, ok)
	}
}

func TestWatchTriggersRefresh(t *testing.T) {
	enum := &fakeEnum{ticks: make(chan struct{})}
	dm := NewDeviceManager(enum, newMemPrefs())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dm.Watch(ctx)

	enum.mu.Lock()
	enum.devices = []domain.MediaDevice{{ID: "hs-1", Kind: domain.DeviceAudioInput, Label: "Headset"}}
	enum.mu.Unlock()
	enum.ticks <- struct{}{}

	waitFor(t, func() bool { return len(dm.Devices()) == 1 }, "device set refreshed")
}
