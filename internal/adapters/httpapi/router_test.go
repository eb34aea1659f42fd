package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/nocturne-gg/callkit/internal/app"
	"github.com/nocturne-gg/callkit/internal/config"
	"github.com/nocturne-gg/callkit/internal/core"
	"github.com/nocturne-gg/callkit/internal/domain"
)

type stubBackend struct{}

func (stubBackend) CreateSession(_ context.Context, _ domain.ContextKind, _ string, _ domain.IdentityID) (*core.SessionGrant, error) {
	return &core.SessionGrant{SessionID: "sess-1", TransportURL: "wss://rt.example/ws", AccessToken: "tok"}, nil
}
func (stubBackend) LeaveSession(context.Context, string) error { return nil }
func (stubBackend) MuteParticipant(context.Context, string, domain.IdentityID, domain.IdentityID) ([]core.ModerationEntry, error) {
	return nil, nil
}
func (stubBackend) EndSession(context.Context, string, domain.IdentityID) error { return nil }

type stubTransport struct {
	events    chan core.Event
	closeOnce sync.Once
}

func (t *stubTransport) Events() <-chan core.Event { return t.events }
func (t *stubTransport) SetMicrophoneEnabled(context.Context, bool) error { return nil }
func (t *stubTransport) SetCameraEnabled(context.Context, bool) error { return nil }
func (t *stubTransport) SetScreenShareEnabled(context.Context, bool) error { return nil }
func (t *stubTransport) SwitchActiveDevice(context.Context, domain.DeviceKind, string) error {
	return nil
}
func (t *stubTransport) Close() {
	t.closeOnce.Do(func() { close(t.events) })
}

type stubConnector struct{}

func (stubConnector) Connect(context.Context, string, string, domain.IdentityID) (core.Transport, error) {
	return &stubTransport{events: make(chan core.Event)}, nil
}

func newTestRouter() http.Handler {
	cfg := &config.Config{Mode: "release", Secret: "test-secret"}
	orch := app.NewOrchestrator(stubBackend{}, stubConnector{}, nil, nil)
	return SetupRouter(cfg, orch)
}

func scopeBody() string {
	return `{"kind":"channel","id":"general","speaking_identity":"hero-1","label":"General"}`
}

func TestStateRequiresScope(t *testing.T) {
	r := newTestRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/call/state", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestJoinThenScopedState(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/call/join", strings.NewReader(scopeBody()))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("join status = %d, body %s", w.Code, w.Body.String())
	}

	var snap struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode join response: %v", err)
	}
	if snap.State != "connected" {
		t.Fatalf("state = %q, want connected", snap.State)
	}

	// A different surface's scope sees inert idle state.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/call/state?kind=direct&id=dm-42&speaking_identity=hero-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("state status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode state response: %v", err)
	}
	if snap.State != "idle" {
		t.Fatalf("foreign scope state = %q, want idle", snap.State)
	}
}

func TestJoinFailurePropagatesMessage(t *testing.T) {
	r := newTestRouter()
	body := `{"kind":"channel","id":"general","speaking_identity":"hero-1","disabled":true}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/call/join", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error != domain.ErrContextDisabled.Error() {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestUnknownToggleRejected(t *testing.T) {
	r := newTestRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/call/toggles/volume", strings.NewReader(scopeBody()))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSurfaceTokenCookieIssued(t *testing.T) {
	r := newTestRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/devices", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("devices status = %d", w.Code)
	}
	var issued bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "st" && c.Value != "" {
			issued = true
		}
	}
	if !issued {
		t.Fatalf("surface token cookie not issued")
	}
}
