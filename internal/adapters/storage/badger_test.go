package storage

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/nocturne-gg/callkit/internal/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPreferenceRoundTrip(t *testing.T) {
	store := NewPreferenceStore(openTestDB(t))

	if _, ok := store.Preference(domain.DeviceAudioInput); ok {
		t.Fatalf("empty store reported a preference")
	}

	pref := domain.DevicePreference{Kind: domain.DeviceAudioInput, DeviceID: "hs-1"}
	if err := store.SetPreference(pref); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	if id, ok := store.Preference(domain.DeviceAudioInput); !ok || id != "hs-1" {
		t.Fatalf("Preference = %q %v, want hs-1", id, ok)
	}

	// One slot per kind; other kinds stay empty.
	if _, ok := store.Preference(domain.DeviceVideoInput); ok {
		t.Fatalf("preference leaked across kinds")
	}

	pref.DeviceID = "hs-2"
	if err := store.SetPreference(pref); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if id, _ := store.Preference(domain.DeviceAudioInput); id != "hs-2" {
		t.Fatalf("overwrite not visible: %q", id)
	}
}

func TestContextSlotRoundTrip(t *testing.T) {
	store := NewContextStore(openTestDB(t), time.Hour)

	if _, ok := store.Load(); ok {
		t.Fatalf("empty slot reported a context")
	}

	ctx := domain.CallContext{
		Kind:             domain.ContextDirectThread,
		ID:               "dm-42",
		SpeakingIdentity: "hero-1",
		Label:            "Duo queue",
		CanEndCall:       true,
	}
	if err := store.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok := store.Load()
	if !ok {
		t.Fatalf("saved context not loadable")
	}
	if got.Kind != ctx.Kind || got.ID != ctx.ID || got.SpeakingIdentity != ctx.SpeakingIdentity || !got.CanEndCall {
		t.Fatalf("loaded = %+v, want %+v", got, ctx)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := store.Load(); ok {
		t.Fatalf("cleared slot still loadable")
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clearing an empty slot: %v", err)
	}
}

func TestContextSlotDiscardsGarbage(t *testing.T) {
	db := openTestDB(t)
	store := NewContextStore(db, time.Hour)

	write := func(val string) {
		t.Helper()
		err := db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte("callctx"), []byte(val))
		})
		if err != nil {
			t.Fatalf("seed slot: %v", err)
		}
	}

	write(`not json at all`)
	if _, ok := store.Load(); ok {
		t.Fatalf("malformed slot loaded")
	}

	write(`{"kind":"forum","id":"general","speaking_identity":"hero-1"}`)
	if _, ok := store.Load(); ok {
		t.Fatalf("schema-invalid slot loaded")
	}

	write(`{"kind":"channel","id":"general","speaking_identity":"hero-1","disabled":true}`)
	if _, ok := store.Load(); ok {
		t.Fatalf("disabled context slot loaded")
	}
}
