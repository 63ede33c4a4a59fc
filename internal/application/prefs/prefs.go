// Package prefs persists a page's filter and layout choices.
//
// Every storage failure is absorbed here: Load reports "nothing saved" and Save
// drops the write. Callers always fall back to preference.DefaultRecord.
package prefs

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	kv "catalog/internal/adapters/storage/preference"
	"catalog/internal/domain/preference"
)

// Store saves and restores a single preference record.
type Store interface {
	Save(ctx context.Context, rec preference.Record)
	Load(ctx context.Context) (preference.Record, bool)
}

// KVStore binds a key-value backend and a fixed key.
type KVStore struct {
	backend kv.Store
	key     string
}

var _ Store = (*KVStore)(nil)

// NewKVStore creates a Store writing to key in backend.
// PRE: key is non-empty
// POST: Returns a Store; a nil backend behaves as unavailable storage
func NewKVStore(backend kv.Store, key string) *KVStore {
	return &KVStore{backend: backend, key: key}
}

// Save overwrites the stored record in full.
// POST: on failure nothing is returned to the caller; the failure is logged at debug level
func (s *KVStore) Save(ctx context.Context, rec preference.Record) {
	if s.backend == nil {
		return
	}
	data, err := rec.Encode()
	if err != nil {
		slog.Debug("preference_encode_failed", "key", s.key, "error", err.Error())
		return
	}
	if err := safely(func() error { return s.backend.Put(ctx, s.key, string(data)) }); err != nil {
		slog.Debug("preference_save_failed", "key", s.key, "error", err.Error())
	}
}

// Load returns the stored record.
// POST: ok is false when the key is absent, the value is corrupt, or the backend fails
func (s *KVStore) Load(ctx context.Context) (rec preference.Record, ok bool) {
	if s.backend == nil {
		return preference.Record{}, false
	}
	var raw string
	err := safely(func() error {
		var err error
		raw, err = s.backend.Get(ctx, s.key)
		return err
	})
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			slog.Debug("preference_load_failed", "key", s.key, "error", err.Error())
		}
		return preference.Record{}, false
	}
	rec, err = preference.DecodeRecord([]byte(raw))
	if err != nil {
		slog.Debug("preference_corrupt", "key", s.key, "error", err.Error())
		return preference.Record{}, false
	}
	return rec, true
}

// safely runs fn and converts a panic in a backend into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errPanicked
		}
	}()
	return fn()
}

var errPanicked = errors.New("preference backend panicked")

// LastVisitKey prefixes the per-visitor last-visit timestamp.
const LastVisitKey = "lastVisit"

// Visits remembers when each visitor was last seen. Failures are absorbed
// the same way KVStore absorbs them.
type Visits struct {
	backend kv.Store
}

// NewVisits creates a visit log over backend. A nil backend remembers nothing.
func NewVisits(backend kv.Store) *Visits {
	return &Visits{backend: backend}
}

// Touch records now as the visitor's latest visit and returns the previous one.
// POST: ok is false on a first visit, an empty visitor, a corrupt value or a backend failure
func (v *Visits) Touch(ctx context.Context, visitor string, now time.Time) (last time.Time, ok bool) {
	if v == nil || v.backend == nil || visitor == "" {
		return time.Time{}, false
	}
	key := LastVisitKey + ":" + visitor

	var raw string
	err := safely(func() error {
		var err error
		raw, err = v.backend.Get(ctx, key)
		return err
	})
	switch {
	case err == nil:
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			last, ok = time.UnixMilli(ms).UTC(), true
		} else {
			slog.Debug("last_visit_corrupt", "key", key, "error", perr.Error())
		}
	case !errors.Is(err, kv.ErrNotFound):
		slog.Debug("last_visit_load_failed", "key", key, "error", err.Error())
	}

	value := strconv.FormatInt(now.UnixMilli(), 10)
	if err := safely(func() error { return v.backend.Put(ctx, key, value) }); err != nil {
		slog.Debug("last_visit_save_failed", "key", key, "error", err.Error())
	}
	return last, ok
}

// Nop is a Store that never persists anything.
type Nop struct{}

// Save discards rec.
func (Nop) Save(context.Context, preference.Record) {}

// Load reports that nothing is saved.
func (Nop) Load(context.Context) (preference.Record, bool) {
	return preference.Record{}, false
}
