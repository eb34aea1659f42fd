package rtc

import "github.com/pion/rtp"

// packetAudible filters out DTX and comfort-noise frames, which carry only a
// few payload bytes; anything larger counts as voice activity.
func packetAudible(pkt *rtp.Packet) bool {
	return len(pkt.Payload) > 3
}
