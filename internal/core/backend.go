package core

import (
	"context"

	"github.com/nocturne-gg/callkit/internal/domain"
)

// ModerationEntry is one row of the backend's participant moderation
// snapshot. Each refresh response fully replaces the prior snapshot.
type ModerationEntry struct {
	Identity    domain.IdentityID `json:"identity"`
	ServerMuted bool              `json:"server_muted"`
}

// SessionGrant is the result of backend session creation: where to connect
// and with what token, plus the initial moderation snapshot.
type SessionGrant struct {
	SessionID    string            `json:"session_id"`
	TransportURL string            `json:"transport_url"`
	AccessToken  string            `json:"access_token"`
	Participants []ModerationEntry `json:"participants"`
}

// SessionAPI is the backend signaling collaborator. Error messages returned
// from it are shown to the user verbatim for join and moderation failures.
type SessionAPI interface {
	CreateSession(ctx context.Context, kind domain.ContextKind, contextID string, speaking domain.IdentityID) (*SessionGrant, error)

	// LeaveSession is best-effort; local teardown never waits on it.
	LeaveSession(ctx context.Context, sessionID string) error

	MuteParticipant(ctx context.Context, sessionID string, actor, target domain.IdentityID) ([]ModerationEntry, error)

	// EndSession terminates the call for every participant. Privileged.
	EndSession(ctx context.Context, sessionID string, actor domain.IdentityID) error
}
