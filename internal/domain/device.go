package domain

// DeviceKind mirrors the platform's media device classes.
type DeviceKind string

const (
	DeviceAudioInput  DeviceKind = "audio_input"
	DeviceAudioOutput DeviceKind = "audio_output"
	DeviceVideoInput  DeviceKind = "video_input"
)

func (k DeviceKind) Valid() bool {
	switch k {
	case DeviceAudioInput, DeviceAudioOutput, DeviceVideoInput:
		return true
	}
	return false
}

// DeviceKinds lists all kinds in a stable order.
var DeviceKinds = []DeviceKind{DeviceAudioInput, DeviceAudioOutput, DeviceVideoInput}

// DevicePreference is one persisted device choice. Preferences outlive any
// call and are reapplied at the start of every new session.
type DevicePreference struct {
	Kind     DeviceKind `json:"kind" validate:"required,oneof=audio_input audio_output video_input"`
	DeviceID string     `json:"device_id" validate:"required,max=256"`
}

// MediaDevice is one enumerated platform device.
type MediaDevice struct {
	ID    string     `json:"id"`
	Kind  DeviceKind `json:"kind"`
	Label string     `json:"label"`
}
