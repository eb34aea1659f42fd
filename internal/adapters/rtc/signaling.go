package rtc

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-gg/callkit/internal/core"
	"github.com/nocturne-gg/callkit/internal/domain"
)

const (
	msgJoin              = "join"
	msgOffer             = "offer"
	msgAnswer            = "answer"
	msgCandidate         = "candidate"
	msgTrack             = "track"
	msgParticipantJoined = "participant_joined"
	msgParticipantLeft   = "participant_left"
	msgTrackPublished    = "track_published"
	msgTrackUnpublished  = "track_unpublished"
	msgSpeaking          = "speaking"
)

type trackMessage struct {
	Type    string           `json:"type"`
	Track   domain.TrackKind `json:"track"`
	Enabled bool             `json:"enabled"`
}

type candidateMessage struct {
	Type          string `json:"type"`
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
}

// negotiate announces the local identity and runs the offer side of the
// handshake: the full local description, ICE gathered, goes out in one shot.
func (c *Conn) negotiate(accessToken string) error {
	c.sendJSON(struct {
		Type     string            `json:"type"`
		Token    string            `json:"token"`
		Identity domain.IdentityID `json:"identity"`
	}{msgJoin, accessToken, c.identity})

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	<-gatherComplete

	local := c.pc.LocalDescription()
	c.sendJSON(struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}{msgOffer, local.SDP})
	return nil
}

func (c *Conn) sendCandidate(ci webrtc.ICECandidateInit) {
	msg := candidateMessage{Type: msgCandidate, Candidate: ci.Candidate}
	if ci.SDPMid != nil {
		msg.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		msg.SDPMLineIndex = *ci.SDPMLineIndex
	}
	c.sendJSON(msg)
}

func (c *Conn) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("sendJSON marshal")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		log.Warn().Str("module", "rtc").Msg("signal send buffer full, dropping")
	}
}

func (c *Conn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "rtc").Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "rtc").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *Conn) readPump() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.fail("signal read: " + err.Error())
			}
			return
		}
		c.handleSignal(data)
	}
}

func (c *Conn) handleSignal(data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad signal json")
		return
	}

	switch env.Type {
	case msgAnswer:
		c.handleAnswer(data)
	case msgCandidate:
		c.handleCandidate(data)
	case msgParticipantJoined:
		var p struct {
			Identity domain.IdentityID `json:"identity"`
			Metadata string            `json:"metadata"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.tryEmit(core.Event{Kind: core.EventParticipantJoined, Identity: p.Identity, Metadata: p.Metadata})
	case msgParticipantLeft:
		var p struct {
			Identity domain.IdentityID `json:"identity"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.tryEmit(core.Event{Kind: core.EventParticipantLeft, Identity: p.Identity})
	case msgTrackPublished, msgTrackUnpublished:
		var p struct {
			Identity domain.IdentityID `json:"identity"`
			Track    domain.TrackKind  `json:"track"`
			TrackID  string            `json:"track_id"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		kind := core.EventTrackPublished
		if env.Type == msgTrackUnpublished {
			kind = core.EventTrackUnpublished
		}
		c.tryEmit(core.Event{Kind: kind, Identity: p.Identity, Track: p.Track, TrackID: p.TrackID})
	case msgSpeaking:
		var p struct {
			Identity domain.IdentityID `json:"identity"`
			Speaking bool              `json:"speaking"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.tryEmit(core.Event{Kind: core.EventSpeakingChanged, Identity: p.Identity, Speaking: p.Speaking})
	default:
		log.Warn().Str("module", "rtc").Str("type", env.Type).Msg("unknown signal")
	}
}

func (c *Conn) handleAnswer(data []byte) {
	var p struct {
		SDP string `json:"sdp"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad answer payload")
		return
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP}
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("apply answer")
	}
}

func (c *Conn) handleCandidate(data []byte) {
	var p candidateMessage
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad candidate payload")
		return
	}
	cand := webrtc.ICECandidateInit{Candidate: p.Candidate}
	if p.SDPMid != "" {
		cand.SDPMid = &p.SDPMid
	}
	cand.SDPMLineIndex = &p.SDPMLineIndex
	if err := c.pc.AddICECandidate(cand); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("add ice candidate")
	}
}
