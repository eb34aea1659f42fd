// Package devices adapts platform media device enumeration to the
// orchestrator's Enumerator contract.
package devices

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pion/mediadevices"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-gg/callkit/internal/domain"
)

// MediaEnumerator lists devices through pion/mediadevices and emits a change
// tick whenever the observed device set differs from the last poll. The
// platform gives no push notification for hotplug, so Watch polls.
type MediaEnumerator struct {
	interval time.Duration

	mu       sync.Mutex
	lastSeen string
}

func NewMediaEnumerator(pollInterval time.Duration) *MediaEnumerator {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &MediaEnumerator{interval: pollInterval}
}

// Enumerate maps the platform device list. Missing permission or missing
// drivers simply yield an empty list.
func (e *MediaEnumerator) Enumerate() ([]domain.MediaDevice, error) {
	infos := mediadevices.EnumerateDevices()
	out := make([]domain.MediaDevice, 0, len(infos))
	for _, info := range infos {
		kind, ok := mapKind(info.Kind)
		if !ok {
			continue
		}
		out = append(out, domain.MediaDevice{
			ID:    info.DeviceID,
			Kind:  kind,
			Label: info.Label,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func mapKind(kind mediadevices.MediaDeviceType) (domain.DeviceKind, bool) {
	switch kind {
	case mediadevices.AudioInput:
		return domain.DeviceAudioInput, true
	case mediadevices.AudioOutput:
		return domain.DeviceAudioOutput, true
	case mediadevices.VideoInput:
		return domain.DeviceVideoInput, true
	}
	return "", false
}

// Watch polls for device set changes until ctx is done. Ticks are dropped,
// never queued: one pending notification is enough for a re-enumeration.
func (e *MediaEnumerator) Watch(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !e.changed() {
					continue
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch
}

func (e *MediaEnumerator) changed() bool {
	devices, err := e.Enumerate()
	if err != nil {
		log.Debug().Err(err).Str("module", "devices").Msg("poll enumeration failed")
		return false
	}
	ids := make([]string, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, string(d.Kind)+"/"+d.ID)
	}
	fingerprint := strings.Join(ids, "|")

	e.mu.Lock()
	defer e.mu.Unlock()
	if fingerprint == e.lastSeen {
		return false
	}
	e.lastSeen = fingerprint
	return true
}
