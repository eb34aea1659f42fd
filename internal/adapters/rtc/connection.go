package rtc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-gg/callkit/internal/core"
	"github.com/nocturne-gg/callkit/internal/domain"
)

var ErrConnClosed = errors.New("transport connection closed")

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// Connector dials the session server named in a grant and negotiates one
// peer connection. The returned handle is exclusively owned by the
// orchestrator.
type Connector struct {
	cfg   webrtc.Configuration
	media LocalMedia
}

func NewConnector(media LocalMedia) *Connector {
	return &Connector{cfg: DefaultWebRTCConfig(), media: media}
}

func NewConnectorWithConfig(cfg webrtc.Configuration, media LocalMedia) *Connector {
	return &Connector{cfg: cfg, media: media}
}

// Conn is one joined realtime session: a websocket signaling channel plus a
// pion PeerConnection, surfaced to the orchestrator as a bounded event
// stream.
type Conn struct {
	pc       *webrtc.PeerConnection
	ws       *websocket.Conn
	media    LocalMedia
	identity domain.IdentityID

	events chan core.Event
	send   chan []byte
	cancel context.CancelFunc

	readyOnce sync.Once
	ready     chan error

	mu      sync.Mutex
	closed  bool
	senders map[domain.TrackKind]*webrtc.RTPSender
	tracks  map[domain.TrackKind]webrtc.TrackLocal
}

func (c *Connector) Connect(ctx context.Context, transportURL, accessToken string, identity domain.IdentityID) (core.Transport, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, transportURL, header)
	if err != nil {
		return nil, fmt.Errorf("transport dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	pc, err := webrtc.NewPeerConnection(c.cfg)
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("transport peer connection: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	conn := &Conn{
		pc:       pc,
		ws:       ws,
		media:    c.media,
		identity: identity,
		events:   make(chan core.Event, core.EventBufferSize),
		send:     make(chan []byte, 32),
		cancel:   cancel,
		ready:    make(chan error, 1),
		senders:  make(map[domain.TrackKind]*webrtc.RTPSender),
		tracks:   make(map[domain.TrackKind]webrtc.TrackLocal),
	}

	if err := conn.publishLocalTracks(); err != nil {
		conn.Close()
		return nil, err
	}
	conn.bindCallbacks(runCtx)

	go conn.writePump(runCtx)
	go conn.readPump()

	if err := conn.negotiate(accessToken); err != nil {
		conn.Close()
		return nil, err
	}

	select {
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	case err := <-conn.ready:
		if err != nil {
			conn.Close()
			return nil, err
		}
	}

	log.Info().Str("module", "rtc").Str("identity", string(identity)).Msg("transport connected")
	return conn, nil
}

// publishLocalTracks attaches the three local tracks up front so no
// renegotiation is needed when media is toggled; every sender starts with
// its track replaced away, which is the muted position.
func (c *Conn) publishLocalTracks() error {
	for _, kind := range []domain.TrackKind{domain.TrackMicrophone, domain.TrackCamera, domain.TrackScreen} {
		track, err := c.media.Track(kind)
		if err != nil {
			return fmt.Errorf("local %s track: %w", kind, err)
		}
		sender, err := c.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("publish %s track: %w", kind, err)
		}
		if err := sender.ReplaceTrack(nil); err != nil {
			return fmt.Errorf("silence %s track: %w", kind, err)
		}
		c.mu.Lock()
		c.senders[kind] = sender
		c.tracks[kind] = track
		c.mu.Unlock()
	}
	return nil
}

func (c *Conn) bindCallbacks(runCtx context.Context) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c.sendCandidate(cand.ToJSON())
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("identity", string(c.identity)).Str("peer_connection_state", s.String()).Msg("peer state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			c.readyOnce.Do(func() { c.ready <- nil })
			c.tryEmit(core.Event{Kind: core.EventStateChanged, State: domain.StateConnected})
		case webrtc.PeerConnectionStateDisconnected:
			c.tryEmit(core.Event{Kind: core.EventStateChanged, State: domain.StateReconnecting})
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			c.readyOnce.Do(func() { c.ready <- errors.New("transport connect failed") })
			c.fail("peer connection " + s.String())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		identity := domain.IdentityID(track.StreamID())
		kind := remoteTrackKind(track)
		log.Info().Str("module", "rtc").
			Str("identity", string(identity)).
			Str("kind", string(kind)).
			Str("track_id", track.ID()).
			Msg("remote track subscribed")
		c.tryEmit(core.Event{
			Kind:     core.EventTrackSubscribed,
			Identity: identity,
			Track:    kind,
			TrackID:  track.ID(),
		})
		if kind == domain.TrackMicrophone {
			go c.watchSpeaking(runCtx, identity, track)
		}
	})
}

// remoteTrackKind resolves a remote track's role. Publishers name their
// tracks after the kind; the media kind disambiguates anything else.
func remoteTrackKind(track *webrtc.TrackRemote) domain.TrackKind {
	switch domain.TrackKind(track.ID()) {
	case domain.TrackMicrophone, domain.TrackCamera, domain.TrackScreen:
		return domain.TrackKind(track.ID())
	}
	if track.Kind() == webrtc.RTPCodecTypeAudio {
		return domain.TrackMicrophone
	}
	return domain.TrackCamera
}

func (c *Conn) Events() <-chan core.Event { return c.events }

func (c *Conn) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	return c.setTrackEnabled(ctx, domain.TrackMicrophone, enabled)
}

func (c *Conn) SetCameraEnabled(ctx context.Context, enabled bool) error {
	return c.setTrackEnabled(ctx, domain.TrackCamera, enabled)
}

func (c *Conn) SetScreenShareEnabled(ctx context.Context, enabled bool) error {
	return c.setTrackEnabled(ctx, domain.TrackScreen, enabled)
}

func (c *Conn) setTrackEnabled(_ context.Context, kind domain.TrackKind, enabled bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	sender := c.senders[kind]
	track := c.tracks[kind]
	c.mu.Unlock()
	if sender == nil {
		return fmt.Errorf("no sender for %s track", kind)
	}

	var err error
	if enabled {
		err = sender.ReplaceTrack(track)
	} else {
		err = sender.ReplaceTrack(nil)
	}
	if err != nil {
		return fmt.Errorf("%s toggle rejected: %w", kind, err)
	}

	c.sendJSON(trackMessage{Type: msgTrack, Track: kind, Enabled: enabled})
	return nil
}

func (c *Conn) SwitchActiveDevice(_ context.Context, kind domain.DeviceKind, deviceID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	c.mu.Unlock()
	return c.media.SwitchDevice(kind, deviceID)
}

// Close tears the session down. Idempotent; the event channel is closed
// exactly once, after which no event is ever emitted again.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	_ = c.ws.Close()
	if err := c.pc.Close(); err != nil {
		log.Debug().Err(err).Str("module", "rtc").Msg("peer connection close")
	}
	close(c.events)
	log.Info().Str("module", "rtc").Str("identity", string(c.identity)).Msg("transport closed")
}

// fail reports an unexpected transport death and closes the handle. The
// disconnected event goes out before the channel closes.
func (c *Conn) fail(reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	log.Warn().Str("module", "rtc").Str("reason", reason).Msg("transport failed")
	c.tryEmit(core.Event{Kind: core.EventDisconnected})
	c.Close()
}

// tryEmit delivers an event without ever blocking the transport. The
// channel is bounded; an overrun drops the event, which the orchestrator
// absorbs on its next full snapshot.
func (c *Conn) tryEmit(ev core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		log.Warn().Str("module", "rtc").Int("kind", int(ev.Kind)).Msg("event channel full, dropping")
	}
}

const speakingHangover = 400 * time.Millisecond

// watchSpeaking derives speaking activity from RTP packet flow on a remote
// microphone track: audible packets keep the participant speaking, and the
// flag drops after a short hangover once packets stop.
func (c *Conn) watchSpeaking(ctx context.Context, identity domain.IdentityID, track *webrtc.TrackRemote) {
	var mu sync.Mutex
	lastAudible := time.Time{}

	go func() {
		for {
			pkt, _, err := track.ReadRTP()
			if err != nil {
				return
			}
			if packetAudible(pkt) {
				mu.Lock()
				lastAudible = time.Now()
				mu.Unlock()
			}
		}
	}()

	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()
	speaking := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mu.Lock()
			active := time.Since(lastAudible) <= speakingHangover
			mu.Unlock()
			if active == speaking {
				continue
			}
			speaking = active
			c.tryEmit(core.Event{
				Kind:     core.EventSpeakingChanged,
				Identity: identity,
				Speaking: speaking,
			})
		}
	}
}
