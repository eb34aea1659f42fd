// Package rtc implements the realtime transport handle on pion/webrtc with
// a websocket signaling channel to the session server.
package rtc

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/nocturne-gg/callkit/internal/domain"
)

// LocalMedia supplies the local publishable tracks and owns the capture
// pipeline behind them. The transport never talks to capture hardware
// directly.
type LocalMedia interface {
	Track(kind domain.TrackKind) (webrtc.TrackLocal, error)
	// SwitchDevice rebinds the capture source for kind to another device.
	SwitchDevice(kind domain.DeviceKind, deviceID string) error
}

// StaticLocalMedia provides pre-allocated RTP tracks fed by an external
// capture process writing into them. Device switching is a no-op here; the
// capture process follows the persisted preference on its own.
type StaticLocalMedia struct {
	streamID string

	mu     sync.Mutex
	tracks map[domain.TrackKind]*webrtc.TrackLocalStaticRTP
}

func NewStaticLocalMedia(streamID string) *StaticLocalMedia {
	return &StaticLocalMedia{
		streamID: streamID,
		tracks:   make(map[domain.TrackKind]*webrtc.TrackLocalStaticRTP),
	}
}

func (m *StaticLocalMedia) Track(kind domain.TrackKind) (webrtc.TrackLocal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tracks[kind]; ok {
		return t, nil
	}

	var capability webrtc.RTPCodecCapability
	switch kind {
	case domain.TrackMicrophone:
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	case domain.TrackCamera, domain.TrackScreen:
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	default:
		return nil, fmt.Errorf("unknown track kind %q", kind)
	}

	t, err := webrtc.NewTrackLocalStaticRTP(capability, string(kind), m.streamID)
	if err != nil {
		return nil, err
	}
	m.tracks[kind] = t
	return t, nil
}

func (m *StaticLocalMedia) SwitchDevice(domain.DeviceKind, string) error { return nil }

// WriteTrack exposes the raw RTP track for the capture process to feed.
func (m *StaticLocalMedia) WriteTrack(kind domain.TrackKind) (*webrtc.TrackLocalStaticRTP, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[kind]
	return t, ok
}
