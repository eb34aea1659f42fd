package domain

import (
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// TrackKind names the three media tracks a participant can publish.
type TrackKind string

const (
	TrackMicrophone TrackKind = "microphone"
	TrackCamera     TrackKind = "camera"
	TrackScreen     TrackKind = "screen"
)

// PresentationMetadata is identity data attached out-of-band to a transport
// participant. It arrives as an untrusted JSON string and is only ever used
// after schema validation.
type PresentationMetadata struct {
	DisplayName      string `json:"display_name" validate:"required,max=64"`
	AccentColor      string `json:"accent_color,omitempty" validate:"omitempty,hexcolor"`
	SpeakingIdentity string `json:"speaking_identity" validate:"required,max=64"`
}

var metadataValidate = validator.New()

// ParsePresentationMetadata decodes and schema-checks raw participant
// metadata. Absent or malformed input yields nil, never an error: the raw
// shape is not trusted past this boundary.
func ParsePresentationMetadata(raw string) *PresentationMetadata {
	if raw == "" {
		return nil
	}
	var meta PresentationMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil
	}
	if err := metadataValidate.Struct(&meta); err != nil {
		return nil
	}
	return &meta
}

// ParticipantView is the per-participant projection exposed to UI surfaces.
// Views are derived from live transport state plus the moderation snapshot,
// never stored.
type ParticipantView struct {
	Identity        IdentityID            `json:"identity"`
	IsLocal         bool                  `json:"is_local"`
	IsSpeaking      bool                  `json:"is_speaking"`
	ServerMuted     bool                  `json:"server_muted"`
	MicrophoneTrack string                `json:"microphone_track,omitempty"`
	CameraTrack     string                `json:"camera_track,omitempty"`
	ScreenTrack     string                `json:"screen_track,omitempty"`
	Meta            *PresentationMetadata `json:"meta,omitempty"`
}
