// Package domain contains call entities and their validation, just meta-data.
package domain

import "errors"

const (
	MaxContextIDLen = 64
	MaxIdentityLen  = 64
	MaxLabelLen     = 128
)

var (
	ErrContextKindInvalid  = errors.New("unknown context kind")
	ErrContextIDEmpty      = errors.New("context id empty")
	ErrContextIDTooLong    = errors.New("context id too long")
	ErrSpeakingIdentityNil = errors.New("no speaking identity")
	ErrContextDisabled     = errors.New("voice is disabled for this context")
)

// ContextKind identifies what a call belongs to.
type ContextKind string

const (
	ContextChannel       ContextKind = "channel"
	ContextDirectThread  ContextKind = "direct"
	ContextEphemeralRoom ContextKind = "room"
)

func (k ContextKind) Valid() bool {
	switch k {
	case ContextChannel, ContextDirectThread, ContextEphemeralRoom:
		return true
	}
	return false
}

// IdentityID is the persona id a participant is heard and seen as.
// It is distinct from the platform account id.
type IdentityID string

// CallContext captures what is being called and with which permissions.
// It is immutable once captured for a join attempt; a new join always
// captures a fresh value.
type CallContext struct {
	Kind             ContextKind `json:"kind" validate:"required,oneof=channel direct room"`
	ID               string      `json:"id" validate:"required,max=64"`
	SpeakingIdentity IdentityID  `json:"speaking_identity" validate:"required,max=64"`
	ActingIdentity   IdentityID  `json:"acting_identity,omitempty" validate:"max=64"`
	CanModerate      bool        `json:"can_moderate"`
	CanEndCall       bool        `json:"can_end_call"`
	Label            string      `json:"label,omitempty" validate:"max=128"`
	Disabled         bool        `json:"disabled,omitempty"`
}

// Validate reports whether the context is usable for a join attempt.
func (c CallContext) Validate() error {
	if !c.Kind.Valid() {
		return ErrContextKindInvalid
	}
	if c.ID == "" {
		return ErrContextIDEmpty
	}
	if len(c.ID) > MaxContextIDLen {
		return ErrContextIDTooLong
	}
	if c.SpeakingIdentity == "" {
		return ErrSpeakingIdentityNil
	}
	if c.Disabled {
		return ErrContextDisabled
	}
	return nil
}

// SameCall reports whether two contexts identify the same call.
// The identity used for voice does not participate in equality.
func (c CallContext) SameCall(other CallContext) bool {
	return c.Kind == other.Kind && c.ID == other.ID
}

// RefreshMeta updates the mutable presentation fields from a newer capture
// of the same context. Kind, id and speaking identity stay as joined.
func (c *CallContext) RefreshMeta(from CallContext) {
	c.Label = from.Label
	c.CanModerate = from.CanModerate
	c.CanEndCall = from.CanEndCall
	c.ActingIdentity = from.ActingIdentity
}
