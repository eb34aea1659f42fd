package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/nocturne-gg/callkit/internal/domain"
)

func TestCreateSessionParsesGrant(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"session_id":    "sess-1",
			"transport_url": "wss://rt.example/ws",
			"access_token":  "tok",
			"participants": []map[string]any{
				{"identity": "hero-1", "server_muted": true},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	grant, err := c.CreateSession(context.Background(), domain.ContextChannel, "general", "hero-1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if gotPath != "/v1/call-sessions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["kind"] != "channel" || gotBody["context_id"] != "general" || gotBody["speaking_identity"] != "hero-1" {
		t.Fatalf("request body = %v", gotBody)
	}
	if grant.SessionID != "sess-1" || grant.TransportURL != "wss://rt.example/ws" || grant.AccessToken != "tok" {
		t.Fatalf("grant = %+v", grant)
	}
	if len(grant.Participants) != 1 || !grant.Participants[0].ServerMuted {
		t.Fatalf("moderation snapshot = %+v", grant.Participants)
	}
}

func TestCreateSessionRejectsIncompleteGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"session_id": "sess-1"})
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, time.Second).CreateSession(context.Background(), domain.ContextChannel, "general", "hero-1"); err == nil {
		t.Fatalf("incomplete grant accepted")
	}
}

func TestErrorBodyBecomesUserMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "voice is at capacity"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).CreateSession(context.Background(), domain.ContextChannel, "general", "hero-1")
	if err == nil || err.Error() != "voice is at capacity" {
		t.Fatalf("err = %v, want backend message verbatim", err)
	}
}

func TestUnstructuredErrorGetsStatusMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).LeaveSession(context.Background(), "sess-1")
	if err == nil || err.Error() != "backend request failed with status 502" {
		t.Fatalf("err = %v", err)
	}
}

func TestMuteParticipantReturnsSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/call-sessions/sess-1/mute" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"participants": []map[string]any{
				{"identity": "loudguy", "server_muted": true},
				{"identity": "hero-1", "server_muted": false},
			},
		})
	}))
	defer srv.Close()

	entries, err := NewClient(srv.URL, time.Second).MuteParticipant(context.Background(), "sess-1", "acct-1", "loudguy")
	if err != nil {
		t.Fatalf("MuteParticipant: %v", err)
	}
	if len(entries) != 2 || entries[0].Identity != "loudguy" || !entries[0].ServerMuted {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestEndSessionHitsEndEndpoint(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, time.Second).EndSession(context.Background(), "sess-1", "acct-1"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if gotPath != "/v1/call-sessions/sess-1/end" || gotMethod != http.MethodPost {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
}
