// Package storage provides the two durable slots backing the orchestrator:
// device preferences, which survive restarts indefinitely, and the active
// call context, which is TTL-bounded to the login session.
package storage

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-gg/callkit/internal/domain"
)

const (
	prefKeyPrefix  = "devicepref:"
	callContextKey = "callctx"
)

// Open opens the badger database under dir with logging routed away from
// badger's default logger.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	return badger.Open(opts)
}

// OpenInMemory opens a throwaway in-memory database, used in tests.
func OpenInMemory() (*badger.DB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return badger.Open(opts)
}

// PreferenceStore persists one device choice per kind.
type PreferenceStore struct {
	db *badger.DB
}

func NewPreferenceStore(db *badger.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

func (s *PreferenceStore) SetPreference(pref domain.DevicePreference) error {
	data, err := json.Marshal(pref)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefKeyPrefix+string(pref.Kind)), data)
	})
}

// Preference reports absence for both missing keys and read failures; the
// caller keeps whatever selection it already has.
func (s *PreferenceStore) Preference(kind domain.DeviceKind) (string, bool) {
	var pref domain.DevicePreference
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefKeyPrefix + string(kind)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &pref)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			log.Debug().Err(err).Str("module", "storage").Str("kind", string(kind)).Msg("preference read failed")
		}
		return "", false
	}
	if pref.DeviceID == "" {
		return "", false
	}
	return pref.DeviceID, true
}

// ContextStore holds the serialized active call context. Entries are written
// with a TTL so a stale context cannot outlive the login session it belongs
// to.
type ContextStore struct {
	db       *badger.DB
	ttl      time.Duration
	validate *validator.Validate
}

func NewContextStore(db *badger.DB, ttl time.Duration) *ContextStore {
	return &ContextStore{db: db, ttl: ttl, validate: validator.New()}
}

func (s *ContextStore) Save(ctx domain.CallContext) error {
	data, err := json.Marshal(ctx)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(callContextKey), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Load returns the stored context only when it passes schema validation.
// Anything else is discarded silently, as if the slot were empty.
func (s *ContextStore) Load() (*domain.CallContext, bool) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(callContextKey))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			log.Debug().Err(err).Str("module", "storage").Msg("context slot read failed")
		}
		return nil, false
	}

	var ctx domain.CallContext
	if err := json.Unmarshal(raw, &ctx); err != nil {
		return nil, false
	}
	if err := s.validate.Struct(&ctx); err != nil {
		log.Debug().Err(err).Str("module", "storage").Msg("discarding invalid persisted context")
		return nil, false
	}
	if err := ctx.Validate(); err != nil {
		return nil, false
	}
	return &ctx, true
}

func (s *ContextStore) Clear() error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(callContextKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
